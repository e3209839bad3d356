package kbmirror

import (
	"context"
	"time"

	"github.com/agentstation/kbmirror/internal/digest"
	"github.com/agentstation/kbmirror/internal/metrics"
	"github.com/agentstation/kbmirror/internal/report"
	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
	"github.com/agentstation/kbmirror/pkg/mirror"
)

// Syncer reconciles the mirror with the remote listing.
type Syncer interface {
	// Sync brings the mirror of kbID up to date. Per-document failures are
	// collected in the result. An error is returned only when the whole pass
	// had to stop: authentication failure, cancellation or mirror failure.
	Sync(ctx context.Context, kbID string) (*SyncResult, error)
}

// Failure names a document or file an operation could not process.
type Failure struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Error string `json:"error" yaml:"error"`
}

// SyncResult summarizes one reconciliation pass.
type SyncResult struct {
	KnowledgeBase string             `json:"kb_id" yaml:"kb_id"`
	Listed        int                `json:"listed" yaml:"listed"`
	Pages         int                `json:"pages" yaml:"pages"`
	Added         int                `json:"added" yaml:"added"`
	Refreshed     int                `json:"refreshed" yaml:"refreshed"`
	Unchanged     int                `json:"unchanged" yaml:"unchanged"`
	Failed        []Failure          `json:"failed,omitempty" yaml:"failed,omitempty"`
	ListingError  string             `json:"listing_error,omitempty" yaml:"listing_error,omitempty"`
	Reset         *mirror.ResetEvent `json:"cache_reset,omitempty" yaml:"cache_reset,omitempty"`
	Duration      time.Duration      `json:"duration" yaml:"duration"`
}

// Complete reports whether the listing was read to the end and every
// document was reconciled.
func (r *SyncResult) Complete() bool {
	return r.ListingError == "" && len(r.Failed) == 0
}

// Text renders the result as a plain-text report.
func (r *SyncResult) Text() string {
	t := &report.Text{}
	t.Title("Sync " + r.KnowledgeBase)
	if r.Reset != nil {
		t.Line("Cache reset: %s", r.Reset.Reason())
	}
	t.Field("listed", report.Count(r.Listed))
	t.Field("pages", r.Pages)
	t.Field("added", report.Count(r.Added))
	t.Field("refreshed", report.Count(r.Refreshed))
	t.Field("unchanged", report.Count(r.Unchanged))
	t.Field("failed", len(r.Failed))
	t.Field("duration", r.Duration.Round(time.Millisecond))
	if r.ListingError != "" {
		t.Section("Listing stopped early")
		t.Item("%s", r.ListingError)
	}
	if len(r.Failed) > 0 {
		t.Section("Failed documents")
		for _, f := range r.Failed {
			t.Item("%s (%s): %s", f.Name, f.ID, f.Error)
		}
	}
	return t.String()
}

// Sync implements Syncer.
func (c *client) Sync(ctx context.Context, kbID string) (*SyncResult, error) {
	if err := validateKB(kbID); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return withStore(ctx, c, func(store mirror.Store, reset *mirror.ResetEvent) (*SyncResult, error) {
		return c.sync(ctx, store, reset, kbID)
	})
}

// sync runs one reconciliation pass against an open store. The caller holds c.mu.
func (c *client) sync(ctx context.Context, store mirror.Store, reset *mirror.ResetEvent, kbID string) (*SyncResult, error) {
	start := time.Now()
	ctx = logging.WithKnowledgeBase(ctx, kbID)
	logger := logging.Ctx(ctx)

	result := &SyncResult{KnowledgeBase: kbID, Reset: reset}
	defer func() {
		result.Duration = time.Since(start)
		metrics.ObserveSync(result.Duration)
	}()

	// Step 1: Read the remote listing
	docs, pages, listErr := c.listAll(ctx, kbID)
	result.Listed = len(docs)
	result.Pages = pages
	if listErr != nil {
		if errors.IsFatal(listErr) || ctx.Err() != nil {
			return result, errors.NewSyncError(kbID, "list", listErr)
		}
		result.ListingError = listErr.Error()
		logger.Warn().Err(listErr).
			Int("collected", len(docs)).
			Msg("Listing stopped early, reconciling what was collected")
	}

	logger.Info().
		Int("documents", len(docs)).
		Int("pages", pages).
		Msg("Remote listing read")

	// Step 2: Reconcile each document against the mirror
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, errors.NewSyncError(kbID, "reconcile", contextErr(err))
		}

		outcome, err := c.reconcile(ctx, store, kbID, doc)
		if err != nil {
			if errors.IsFatal(err) {
				return result, errors.NewSyncError(kbID, "reconcile", err)
			}
			if ctx.Err() != nil {
				return result, errors.NewSyncError(kbID, "reconcile", contextErr(ctx.Err()))
			}
			logger.Warn().Err(err).
				Str("doc_id", doc.ID).
				Str("name", doc.Name).
				Msg("Skipping document this pass")
			result.Failed = append(result.Failed, Failure{ID: doc.ID, Name: doc.Name, Error: err.Error()})
			metrics.SyncDocument(metrics.OutcomeFailed)
			continue
		}

		switch outcome {
		case metrics.OutcomeAdded:
			result.Added++
		case metrics.OutcomeRefreshed:
			result.Refreshed++
		default:
			result.Unchanged++
		}
		metrics.SyncDocument(outcome)

		logger.Debug().
			Str("doc_id", doc.ID).
			Str("outcome", outcome).
			Int("position", i+1).
			Int("total", len(docs)).
			Msg("Document reconciled")
	}

	// Step 3: Log the summary
	logger.Info().
		Int("added", result.Added).
		Int("refreshed", result.Refreshed).
		Int("unchanged", result.Unchanged).
		Int("failed", len(result.Failed)).
		Msg("Sync completed")

	return result, nil
}

// reconcile applies one remote document to the mirror and returns the outcome.
func (c *client) reconcile(ctx context.Context, store mirror.Store, kbID string, doc documents.RemoteDocument) (string, error) {
	cached, found, err := store.Staleness(ctx, doc.ID)
	if err != nil {
		return "", err
	}

	switch {
	case !found:
		hash, err := c.fetchHash(ctx, doc.ID)
		if err != nil {
			return "", err
		}
		rec := documents.NewRecord(kbID, doc, hash)
		if err := store.Upsert(ctx, rec); err != nil {
			return "", err
		}
		c.hooks.triggerAdded(rec)
		return metrics.OutcomeAdded, nil

	case cached != doc.UpdateDate:
		var old *documents.Record
		if c.hooks.hasUpdated() {
			if old, err = store.Get(ctx, doc.ID); err != nil {
				return "", err
			}
		}
		// An empty hash keeps the stored one.
		rec := documents.NewRecord(kbID, doc, "")
		if err := store.Upsert(ctx, rec); err != nil {
			return "", err
		}
		if old != nil {
			c.hooks.triggerUpdated(*old, old.Refresh(kbID, doc))
		}
		return metrics.OutcomeRefreshed, nil

	default:
		return metrics.OutcomeUnchanged, nil
	}
}

// listAll pages through the remote listing from page 1 until a page comes
// back empty. On error it returns what was collected so far.
func (c *client) listAll(ctx context.Context, kbID string) ([]documents.RemoteDocument, int, error) {
	var all []documents.RemoteDocument
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return all, page - 1, contextErr(err)
		}

		p, err := c.remote.ListPage(ctx, kbID, page, c.options.pageSize)
		if err != nil {
			return all, page, err
		}
		if len(p.Documents) == 0 {
			return all, page, nil
		}
		all = append(all, p.Documents...)

		logging.Ctx(ctx).Debug().
			Int("page", page).
			Int("count", len(p.Documents)).
			Int("total", p.Total).
			Msg("Listing page read")
	}
}

// fetchHash downloads a document and hashes it through a scoped temp file.
func (c *client) fetchHash(ctx context.Context, docID string) (string, error) {
	body, err := c.remote.Download(ctx, docID)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := body.Close(); cerr != nil {
			logging.Ctx(ctx).Debug().Err(cerr).Str("doc_id", docID).Msg("Failed to close download")
		}
	}()

	sum, err := digest.StreamToTemp(body, c.options.tempDir)
	if err != nil {
		return "", errors.WrapResource("hash", "document", docID, err)
	}
	return sum.Hash, nil
}

func contextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(errors.ErrTimeout, err)
	}
	return errors.Join(errors.ErrCanceled, err)
}
