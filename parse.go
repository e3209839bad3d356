package kbmirror

import (
	"context"
	"fmt"

	"github.com/agentstation/kbmirror/internal/report"
	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
	"github.com/agentstation/kbmirror/pkg/ragflow"
)

// Parser triggers parsing of documents that have not been parsed successfully.
type Parser interface {
	// Parse lists kbID, queues documents whose run state is pending or
	// failed and asks the remote to parse them in batches.
	Parse(ctx context.Context, kbID string, opts ...OperationOption) (*ParseResult, error)
}

// ParseResult summarizes a Parse call.
type ParseResult struct {
	KnowledgeBase string         `json:"kb_id" yaml:"kb_id"`
	DryRun        bool           `json:"dry_run" yaml:"dry_run"`
	Total         int            `json:"total" yaml:"total"`
	States        map[string]int `json:"states" yaml:"states"`
	Queued        []string       `json:"queued" yaml:"queued"`
	Triggered     []string       `json:"triggered" yaml:"triggered"`
	FailedBatches [][]string     `json:"failed_batches,omitempty" yaml:"failed_batches,omitempty"`
	ListingError  string         `json:"listing_error,omitempty" yaml:"listing_error,omitempty"`
}

// Text renders the result as plain text.
func (r *ParseResult) Text() string {
	t := &report.Text{}
	title := "Parse " + r.KnowledgeBase
	if r.DryRun {
		title += " (dry run)"
	}
	t.Title(title)
	t.Field("documents", report.Count(r.Total))
	for _, state := range []documents.RunState{
		documents.RunPending, documents.RunRunning, documents.RunFailed, documents.RunDone, documents.RunUnknown,
	} {
		if n := r.States[state.String()]; n > 0 {
			t.Field(state.String(), n)
		}
	}
	t.Field("queued", len(r.Queued))
	t.Field("triggered", len(r.Triggered))
	if r.ListingError != "" {
		t.Section("Listing stopped early")
		t.Item("%s", r.ListingError)
	}
	if len(r.FailedBatches) > 0 {
		t.Section("Failed batches")
		for i, batch := range r.FailedBatches {
			t.Item("batch %d: %v", i+1, batch)
		}
	}
	return t.String()
}

// Parse implements Parser.
func (c *client) Parse(ctx context.Context, kbID string, opts ...OperationOption) (*ParseResult, error) {
	if err := validateKB(kbID); err != nil {
		return nil, err
	}
	options := NewOperationOptions(opts...)
	ctx = logging.WithKnowledgeBase(logging.WithOperation(ctx, "parse"), kbID)
	logger := logging.Ctx(ctx)

	// Step 1: List the knowledge base
	docs, _, listErr := c.listAll(ctx, kbID)
	result := &ParseResult{
		KnowledgeBase: kbID,
		DryRun:        options.DryRun,
		Total:         len(docs),
		States:        make(map[string]int),
		Queued:        []string{},
		Triggered:     []string{},
	}
	if listErr != nil {
		if errors.IsFatal(listErr) || ctx.Err() != nil {
			return result, listErr
		}
		result.ListingError = listErr.Error()
		logger.Warn().Err(listErr).Msg("Listing stopped early, parsing what was collected")
	}

	// Step 2: Classify by run state
	for _, doc := range docs {
		result.States[doc.Run.String()]++
		if doc.Run.NeedsParse() {
			result.Queued = append(result.Queued, doc.ID)
		}
	}
	logger.Info().
		Int("documents", result.Total).
		Int("queued", len(result.Queued)).
		Msg("Documents classified")

	if options.DryRun {
		return result, nil
	}

	// Step 3: Trigger parsing in batches
	for start := 0; start < len(result.Queued); start += constants.ParseBatchSize {
		end := min(start+constants.ParseBatchSize, len(result.Queued))
		batch := result.Queued[start:end]

		if err := ctx.Err(); err != nil {
			return result, contextErr(err)
		}

		if err := c.remote.Run(ctx, batch, ragflow.RunStart); err != nil {
			if errors.IsFatal(err) {
				return result, err
			}
			logger.Warn().Err(err).Strs("doc_ids", batch).Msg("Parse batch failed")
			result.FailedBatches = append(result.FailedBatches, batch)
			continue
		}
		result.Triggered = append(result.Triggered, batch...)
		logger.Debug().
			Str("batch", fmt.Sprintf("%d-%d", start+1, end)).
			Int("queued", len(result.Queued)).
			Msg("Parse batch triggered")
	}

	logger.Info().
		Int("triggered", len(result.Triggered)).
		Int("failed_batches", len(result.FailedBatches)).
		Msg("Parse trigger completed")
	return result, nil
}
