// Package documents defines the document types shared by the mirror, the
// remote client and the reconciliation engine.
//
// A Record is one row of the local mirror. A RemoteDocument is one entry of
// the remote listing, already parsed into typed fields. FileHash is the
// hex-encoded SHA-256 of the full document content; an empty FileHash means
// the content has not been hashed yet.
package documents

import (
	"sort"
)

// Record is the mirrored metadata of a single remote document.
type Record struct {
	DocID      string   `json:"doc_id" yaml:"doc_id"`
	KBID       string   `json:"kb_id" yaml:"kb_id"`
	Name       string   `json:"name" yaml:"name"`
	FileHash   string   `json:"file_hash,omitempty" yaml:"file_hash,omitempty"`
	CreateDate string   `json:"create_date" yaml:"create_date"`
	UpdateDate string   `json:"update_date" yaml:"update_date"`
	Status     Status   `json:"status" yaml:"status"`
	ProcessMsg string   `json:"process_msg,omitempty" yaml:"process_msg,omitempty"`
	Process    float64  `json:"process" yaml:"process"`
	Size       int64    `json:"size" yaml:"size"`
	SourceType string   `json:"source_type" yaml:"source_type"`
	ChunkNum   int      `json:"chunk_num" yaml:"chunk_num"`
	Run        RunState `json:"run" yaml:"run"`
}

// HasHash reports whether the content hash has been computed.
func (r Record) HasHash() bool {
	return r.FileHash != ""
}

// RemoteDocument is one entry of the remote document listing.
type RemoteDocument struct {
	ID          string   `json:"id"`
	KBID        string   `json:"kb_id,omitempty"`
	Name        string   `json:"name"`
	CreateDate  string   `json:"create_date"`
	UpdateDate  string   `json:"update_date"`
	Status      Status   `json:"status"`
	ProgressMsg string   `json:"progress_msg,omitempty"`
	Progress    float64  `json:"progress"`
	Size        int64    `json:"size"`
	SourceType  string   `json:"source_type"`
	ChunkNum    int      `json:"chunk_num"`
	Run         RunState `json:"run"`
}

// NewRecord builds a mirror record for a document observed in the listing of kbID.
func NewRecord(kbID string, doc RemoteDocument, fileHash string) Record {
	return Record{
		DocID:      doc.ID,
		KBID:       kbID,
		Name:       doc.Name,
		FileHash:   fileHash,
		CreateDate: doc.CreateDate,
		UpdateDate: doc.UpdateDate,
		Status:     doc.Status,
		ProcessMsg: doc.ProgressMsg,
		Process:    doc.Progress,
		Size:       doc.Size,
		SourceType: doc.SourceType,
		ChunkNum:   doc.ChunkNum,
		Run:        doc.Run,
	}
}

// Refresh returns r with every metadata field taken from doc. The content
// hash is kept: a metadata change does not imply a content change.
func (r Record) Refresh(kbID string, doc RemoteDocument) Record {
	refreshed := NewRecord(kbID, doc, r.FileHash)
	refreshed.DocID = r.DocID
	return refreshed
}

// DuplicateGroup is a set of two or more records in one knowledge base
// sharing the same content hash. Records keep first-seen order.
type DuplicateGroup struct {
	Hash    string   `json:"hash" yaml:"hash"`
	Records []Record `json:"records" yaml:"records"`
}

// DocIDs returns the document ids of the group in first-seen order.
func (g DuplicateGroup) DocIDs() []string {
	ids := make([]string, len(g.Records))
	for i, r := range g.Records {
		ids[i] = r.DocID
	}
	return ids
}

// GroupByHash groups records by content hash. Only groups with at least two
// members are returned, ordered by size descending and then hash ascending.
// Records without a hash never form a group.
func GroupByHash(records []Record) []DuplicateGroup {
	byHash := make(map[string][]Record)
	var order []string
	for _, r := range records {
		if !r.HasHash() {
			continue
		}
		if _, seen := byHash[r.FileHash]; !seen {
			order = append(order, r.FileHash)
		}
		byHash[r.FileHash] = append(byHash[r.FileHash], r)
	}

	groups := make([]DuplicateGroup, 0)
	for _, hash := range order {
		if members := byHash[hash]; len(members) > 1 {
			groups = append(groups, DuplicateGroup{Hash: hash, Records: members})
		}
	}
	SortGroups(groups)
	return groups
}

// SortGroups orders groups by size descending, breaking ties by hash ascending.
func SortGroups(groups []DuplicateGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].Records) != len(groups[j].Records) {
			return len(groups[i].Records) > len(groups[j].Records)
		}
		return groups[i].Hash < groups[j].Hash
	})
}

// ByProcess returns a copy of records sorted by Process descending. The sort
// is stable, so equal progress keeps first-seen order.
func ByProcess(records []Record) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Process > sorted[j].Process
	})
	return sorted
}
