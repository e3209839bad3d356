// Package table converts kbmirror results into rows for table output.
package table

import (
	"strconv"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/cmd/emoji"
	"github.com/agentstation/kbmirror/internal/report"
	"github.com/agentstation/kbmirror/pkg/documents"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// DocumentsToTableData converts mirror records to table format.
// Wide output adds the content hash, size and chunk count.
func DocumentsToTableData(records []documents.Record, wide bool) Data {
	headers := []string{"", "ID", "Name", "Progress", "Run", "Updated"}
	align := []Align{AlignCenter, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignLeft}
	if wide {
		headers = append(headers, "Size", "Chunks", "Hash")
		align = append(align, AlignRight, AlignRight, AlignLeft)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := []string{
			emoji.ForStatus(r.Status),
			r.DocID,
			r.Name,
			report.Percent(r.Process),
			r.Run.String(),
			r.UpdateDate,
		}
		if wide {
			row = append(row,
				report.Bytes(r.Size),
				strconv.Itoa(r.ChunkNum),
				ShortHash(r.FileHash),
			)
		}
		rows = append(rows, row)
	}

	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// PlansToTableData converts deletion plans to one row per member. The
// first-seen member of each group is marked keep.
func PlansToTableData(plans []kbmirror.DeletionPlan, wide bool) Data {
	headers := []string{"Hash", "Document", "Action"}
	rows := [][]string{}
	for _, p := range plans {
		hash := p.Hash
		if !wide {
			hash = ShortHash(hash)
		}
		for i, id := range p.DocIDs {
			action := "delete"
			if i == 0 {
				action = "keep"
			}
			rows = append(rows, []string{hash, id, action})
		}
	}
	return Data{Headers: headers, Rows: rows}
}

// ShortHash abbreviates a content hash for narrow tables.
func ShortHash(hash string) string {
	if hash == "" {
		return "-"
	}
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
