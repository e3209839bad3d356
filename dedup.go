package kbmirror

import (
	"context"
	"fmt"

	"github.com/agentstation/kbmirror/internal/metrics"
	"github.com/agentstation/kbmirror/internal/report"
	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
	"github.com/agentstation/kbmirror/pkg/mirror"
)

// Resolver reports and removes duplicate documents. Report, PlanDeletions
// and Clean each begin with a fresh sync of the knowledge base.
type Resolver interface {
	// Report returns the duplicate groups of kbID with members ranked by progress.
	Report(ctx context.Context, kbID string) (*DuplicateReport, error)

	// PlanDeletions returns the raw hash groups of kbID without ranking.
	PlanDeletions(ctx context.Context, kbID string) ([]DeletionPlan, error)

	// Clean keeps the most processed copy of every group and deletes the rest.
	Clean(ctx context.Context, kbID string, opts ...OperationOption) (*CleanResult, error)

	// Delete removes one document remotely, then from the mirror.
	Delete(ctx context.Context, docID string) error
}

// DuplicateReport lists the duplicate groups of a knowledge base.
type DuplicateReport struct {
	KnowledgeBase  string                     `json:"kb_id" yaml:"kb_id"`
	TotalDocuments int                        `json:"total_documents" yaml:"total_documents"`
	Groups         []documents.DuplicateGroup `json:"groups" yaml:"groups"`
	Sync           *SyncResult                `json:"sync,omitempty" yaml:"sync,omitempty"`
}

// Redundant returns the number of documents that Clean would delete.
func (r *DuplicateReport) Redundant() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Records) - 1
	}
	return n
}

// Text renders the report as plain text.
func (r *DuplicateReport) Text() string {
	t := &report.Text{}
	t.Title("Duplicate report " + r.KnowledgeBase)
	t.Field("documents", report.Count(r.TotalDocuments))
	t.Field("groups", len(r.Groups))
	t.Field("redundant", r.Redundant())

	if len(r.Groups) == 0 {
		t.Section("No duplicate documents found.")
		return t.String()
	}

	for _, g := range r.Groups {
		t.Section(fmt.Sprintf("Hash %s (%d copies)", g.Hash, len(g.Records)))
		for _, rec := range g.Records {
			t.Item("%s  %s", rec.DocID, rec.Name)
			t.Line("      created %s, %s, %s, %s",
				rec.CreateDate, rec.Status, report.Percent(rec.Process), report.Bytes(rec.Size))
		}
	}
	return t.String()
}

// Markdown renders the report as a Markdown document.
func (r *DuplicateReport) Markdown() (string, error) {
	m := report.NewMarkdownBuffer()
	m.H1("Duplicate report").
		BulletList(
			"Knowledge base: "+report.Code(r.KnowledgeBase),
			"Documents: "+report.Count(r.TotalDocuments),
			fmt.Sprintf("Duplicate groups: %d", len(r.Groups)),
			fmt.Sprintf("Redundant copies: %d", r.Redundant()),
		)

	if len(r.Groups) == 0 {
		m.PlainText("No duplicate documents found.").LF()
	}

	for _, g := range r.Groups {
		m.H2(report.Code(g.Hash))
		rows := make([][]string, 0, len(g.Records))
		for _, rec := range g.Records {
			rows = append(rows, []string{
				rec.DocID, rec.Name, rec.CreateDate, rec.Status.String(),
				report.Percent(rec.Process), report.Bytes(rec.Size),
			})
		}
		m.Table([]string{"ID", "Name", "Created", "Status", "Progress", "Size"}, rows)
	}
	if err := m.Build(); err != nil {
		return "", err
	}
	return m.String(), nil
}

// DeletionPlan is one raw hash group: every id sharing the hash, first-seen first.
type DeletionPlan struct {
	Hash   string   `json:"hash" yaml:"hash"`
	DocIDs []string `json:"doc_ids" yaml:"doc_ids"`
}

// Removal outcomes recorded in a CleanGroup.
const (
	RemovalDeleted = "deleted"
	RemovalFailed  = "failed"
	RemovalPlanned = "planned"
)

// Removal is one non-keeper of a duplicate group.
type Removal struct {
	ID      string  `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Process float64 `json:"process" yaml:"process"`
	Outcome string  `json:"outcome" yaml:"outcome"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// CleanGroup details how one duplicate group was resolved.
type CleanGroup struct {
	Hash string           `json:"hash" yaml:"hash"`
	Kept documents.Record `json:"kept" yaml:"kept"`
	// TieBreak is set when the keeper shared the top progress with another
	// copy and was chosen only for being seen first.
	TieBreak bool      `json:"tie_break" yaml:"tie_break"`
	Removals []Removal `json:"removals" yaml:"removals"`
}

// CleanResult summarizes a Clean call.
type CleanResult struct {
	KnowledgeBase   string       `json:"kb_id" yaml:"kb_id"`
	DryRun          bool         `json:"dry_run" yaml:"dry_run"`
	TotalGroups     int          `json:"total_groups" yaml:"total_groups"`
	TotalDeleted    int          `json:"total_deleted" yaml:"total_deleted"`
	FailedDeletions []string     `json:"failed_deletions" yaml:"failed_deletions"`
	Groups          []CleanGroup `json:"groups" yaml:"groups"`
	Sync            *SyncResult  `json:"sync,omitempty" yaml:"sync,omitempty"`
}

// Text renders the result as plain text.
func (r *CleanResult) Text() string {
	t := &report.Text{}
	title := "Duplicate cleanup " + r.KnowledgeBase
	if r.DryRun {
		title += " (dry run)"
	}
	t.Title(title)
	t.Field("groups", r.TotalGroups)
	t.Field("deleted", r.TotalDeleted)
	if len(r.FailedDeletions) > 0 {
		t.Field("failed", len(r.FailedDeletions))
	}

	for _, g := range r.Groups {
		t.Section("Hash " + g.Hash)
		kept := fmt.Sprintf("kept %s  %s  %s", g.Kept.DocID, g.Kept.Name, report.Percent(g.Kept.Process))
		if g.TieBreak {
			kept += "  (tie, first seen)"
		}
		t.Line("  %s", kept)
		for _, rm := range g.Removals {
			line := fmt.Sprintf("%s %s  %s  %s", rm.Outcome, rm.ID, rm.Name, report.Percent(rm.Process))
			if rm.Error != "" {
				line += ": " + rm.Error
			}
			t.Item("%s", line)
		}
	}
	return t.String()
}

// Markdown renders the result as a Markdown document.
func (r *CleanResult) Markdown() (string, error) {
	m := report.NewMarkdownBuffer()
	m.H1("Duplicate cleanup")
	if r.DryRun {
		m.Alert("note", "Dry run: nothing was deleted.")
	}
	m.BulletList(
		"Knowledge base: "+report.Code(r.KnowledgeBase),
		fmt.Sprintf("Groups: %d", r.TotalGroups),
		fmt.Sprintf("Deleted: %d", r.TotalDeleted),
		fmt.Sprintf("Failed: %d", len(r.FailedDeletions)),
	)
	if len(r.FailedDeletions) > 0 {
		m.Alert("warning", "Some deletions failed; their mirror records were kept.")
	}

	for _, g := range r.Groups {
		m.H2(report.Code(g.Hash))
		keeper := "Kept " + report.Bold(g.Kept.Name) + " (" + report.Code(g.Kept.DocID) + ", " + report.Percent(g.Kept.Process) + ")"
		if g.TieBreak {
			keeper += ", chosen by first-seen order"
		}
		m.PlainText(keeper).LF()
		rows := make([][]string, 0, len(g.Removals))
		for _, rm := range g.Removals {
			rows = append(rows, []string{rm.ID, rm.Name, report.Percent(rm.Process), rm.Outcome, rm.Error})
		}
		m.Table([]string{"ID", "Name", "Progress", "Outcome", "Error"}, rows)
	}
	if err := m.Build(); err != nil {
		return "", err
	}
	return m.String(), nil
}

// Report implements Resolver.
func (c *client) Report(ctx context.Context, kbID string) (*DuplicateReport, error) {
	if err := validateKB(kbID); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return withStore(ctx, c, func(store mirror.Store, reset *mirror.ResetEvent) (*DuplicateReport, error) {
		syncResult, err := c.sync(ctx, store, reset, kbID)
		if err != nil {
			return nil, err
		}

		groups, err := store.GroupDuplicates(ctx, kbID)
		if err != nil {
			return nil, err
		}
		for i := range groups {
			groups[i].Records = documents.ByProcess(groups[i].Records)
		}

		total, err := store.Count(ctx, kbID)
		if err != nil {
			return nil, err
		}

		return &DuplicateReport{
			KnowledgeBase:  kbID,
			TotalDocuments: total,
			Groups:         groups,
			Sync:           syncResult,
		}, nil
	})
}

// PlanDeletions implements Resolver.
func (c *client) PlanDeletions(ctx context.Context, kbID string) ([]DeletionPlan, error) {
	if err := validateKB(kbID); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return withStore(ctx, c, func(store mirror.Store, reset *mirror.ResetEvent) ([]DeletionPlan, error) {
		if _, err := c.sync(ctx, store, reset, kbID); err != nil {
			return nil, err
		}
		groups, err := store.GroupDuplicates(ctx, kbID)
		if err != nil {
			return nil, err
		}
		plans := make([]DeletionPlan, len(groups))
		for i, g := range groups {
			plans[i] = DeletionPlan{Hash: g.Hash, DocIDs: g.DocIDs()}
		}
		return plans, nil
	})
}

// Clean implements Resolver.
func (c *client) Clean(ctx context.Context, kbID string, opts ...OperationOption) (*CleanResult, error) {
	if err := validateKB(kbID); err != nil {
		return nil, err
	}
	options := NewOperationOptions(opts...)

	c.mu.Lock()
	defer c.mu.Unlock()

	return withStore(ctx, c, func(store mirror.Store, reset *mirror.ResetEvent) (*CleanResult, error) {
		ctx := logging.WithKnowledgeBase(logging.WithOperation(ctx, "clean"), kbID)
		logger := logging.Ctx(ctx)

		// Step 1: Sync so grouping reflects the remote state
		syncResult, err := c.sync(ctx, store, reset, kbID)
		if err != nil {
			return nil, err
		}

		// Step 2: Group hash collisions
		groups, err := store.GroupDuplicates(ctx, kbID)
		if err != nil {
			return nil, err
		}

		result := &CleanResult{
			KnowledgeBase:   kbID,
			DryRun:          options.DryRun,
			TotalGroups:     len(groups),
			FailedDeletions: []string{},
			Groups:          make([]CleanGroup, 0, len(groups)),
			Sync:            syncResult,
		}

		// Step 3: Keep the most processed copy of each group, delete the rest
		for _, g := range groups {
			ranked := documents.ByProcess(g.Records)
			group := CleanGroup{
				Hash:     g.Hash,
				Kept:     ranked[0],
				TieBreak: ranked[1].Process == ranked[0].Process,
			}

			for _, rec := range ranked[1:] {
				removal := Removal{ID: rec.DocID, Name: rec.Name, Process: rec.Process}

				if options.DryRun {
					removal.Outcome = RemovalPlanned
					group.Removals = append(group.Removals, removal)
					continue
				}
				if err := ctx.Err(); err != nil {
					result.Groups = append(result.Groups, group)
					return result, contextErr(err)
				}

				if err := c.remote.Delete(ctx, rec.DocID); err != nil {
					if errors.IsFatal(err) {
						result.Groups = append(result.Groups, group)
						return result, err
					}
					logger.Warn().Err(err).Str("doc_id", rec.DocID).Msg("Remote delete failed, keeping mirror record")
					removal.Outcome = RemovalFailed
					removal.Error = err.Error()
					result.FailedDeletions = append(result.FailedDeletions, rec.DocID)
					group.Removals = append(group.Removals, removal)
					metrics.DedupDeletion(metrics.OutcomeFailed)
					continue
				}

				c.removeLocal(ctx, store, rec)
				removal.Outcome = RemovalDeleted
				result.TotalDeleted++
				group.Removals = append(group.Removals, removal)
				metrics.DedupDeletion(metrics.OutcomeDeleted)
			}

			if group.TieBreak {
				logger.Info().
					Str("hash", g.Hash).
					Str("kept", group.Kept.DocID).
					Msg("Keeper chosen by first-seen order among equal progress")
			}
			result.Groups = append(result.Groups, group)
		}

		logger.Info().
			Int("groups", result.TotalGroups).
			Int("deleted", result.TotalDeleted).
			Int("failed", len(result.FailedDeletions)).
			Bool("dry_run", options.DryRun).
			Msg("Duplicate cleanup completed")
		return result, nil
	})
}

// Delete implements Resolver.
func (c *client) Delete(ctx context.Context, docID string) error {
	if docID == "" {
		return errors.NewValidationError("doc_id", docID, "document id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := withStore(ctx, c, func(store mirror.Store, _ *mirror.ResetEvent) (struct{}, error) {
		rec, err := store.Get(ctx, docID)
		if err != nil && !errors.IsNotFound(err) {
			return struct{}{}, err
		}

		if err := c.remote.Delete(ctx, docID); err != nil {
			return struct{}{}, err
		}

		if rec == nil {
			rec = &documents.Record{DocID: docID}
		}
		c.removeLocal(ctx, store, *rec)
		return struct{}{}, nil
	})
	return err
}

// removeLocal drops a record after the remote delete succeeded. A local
// failure leaves a record the remote no longer has; it is only logged.
func (c *client) removeLocal(ctx context.Context, store mirror.Store, rec documents.Record) {
	logger := logging.Ctx(logging.WithDocument(ctx, rec.DocID))
	if err := store.Delete(ctx, rec.DocID); err != nil {
		logger.Error().Err(err).Msg("Deleted remotely but failed to remove mirror record")
		return
	}
	c.hooks.triggerRemoved(rec)
	logger.Info().Str("name", rec.Name).Msg("Document deleted")
}
