// Package kbmirror keeps a local mirror of the document metadata of a
// RAGFlow knowledge base and uses it to find and remove duplicate uploads.
//
// The mirror stores one record per remote document, including the SHA-256
// of its content. Sync brings the mirror up to date with the remote
// listing, downloading and hashing only documents it has never seen.
// Duplicates are documents of one knowledge base sharing a content hash.
//
// Example usage:
//
//	remote, err := ragflow.New(ragflow.DefaultConfig(baseURL, token))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	km, err := kbmirror.New(remote)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer km.AutoSyncOff()
//
//	// Rebuild the mirror and print the duplicate report
//	report, err := km.Report(ctx, kbID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Text())
//
//	// Delete every duplicate but the most processed copy
//	result, err := km.Clean(ctx, kbID)
//
// Authentication failures are returned as errors for which
// errors.IsFatal reports true. The library never exits the process.
package kbmirror

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/agentstation/kbmirror/internal/metrics"
	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
	"github.com/agentstation/kbmirror/pkg/mirror"
	"github.com/agentstation/kbmirror/pkg/ragflow"
)

// RemoteCatalog is the remote knowledge-base service. *ragflow.Client
// implements it.
type RemoteCatalog interface {
	ListPage(ctx context.Context, kbID string, page, pageSize int) (*ragflow.Page, error)
	Download(ctx context.Context, docID string) (io.ReadCloser, error)
	Upload(ctx context.Context, kbID, filename string, content io.Reader) error
	Delete(ctx context.Context, docID string) error
	Run(ctx context.Context, docIDs []string, action ragflow.RunAction) error
}

var _ RemoteCatalog = (*ragflow.Client)(nil)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Client mirrors knowledge bases and resolves duplicates.
type Client interface {

	// Syncer reconciles the mirror with the remote listing
	Syncer

	// Resolver reports and removes duplicates
	Resolver

	// Uploader uploads files behind the idempotency guard
	Uploader

	// Parser triggers parsing of unparsed documents
	Parser

	// Mirror gives read access to mirrored records
	Mirror

	// AutoSyncer controls periodic background syncs
	AutoSyncer

	// Hooks provides access to event callback registration
	Hooks
}

// Mirror gives read access to the local mirror.
type Mirror interface {
	// Documents returns the mirrored records of kbID in first-seen order.
	Documents(ctx context.Context, kbID string) ([]documents.Record, error)

	// Count returns the number of mirrored records of kbID.
	Count(ctx context.Context, kbID string) (int, error)
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options
	remote  RemoteCatalog

	// mu serializes every operation touching the mirror, so the watcher,
	// the auto-sync loop and the HTTP API never act on it concurrently.
	mu sync.Mutex

	// auto sync state
	autoMu     sync.Mutex
	syncTicker *time.Ticker
	stopCh     chan struct{}
	syncCancel context.CancelFunc

	hooks *hooks
}

// New creates a Client bound to remote.
func New(remote RemoteCatalog, opts ...Option) (Client, error) {
	if remote == nil {
		return nil, errors.NewValidationError("remote", nil, "remote catalog is required")
	}

	o, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}

	c := &client{
		options: o,
		remote:  remote,
		stopCh:  make(chan struct{}),
		hooks:   newHooks(),
	}
	close(c.stopCh)

	logging.Debug().
		Str("mirror", o.mirrorDSN).
		Int("page_size", o.pageSize).
		Msg("Client created")
	return c, nil
}

// withStore opens the mirror for one logical operation and closes it afterwards.
func withStore[T any](ctx context.Context, c *client, fn func(mirror.Store, *mirror.ResetEvent) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, contextErr(err)
	}

	store, err := c.options.openStore()
	if err != nil {
		return zero, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logging.Ctx(ctx).Warn().Err(cerr).Msg("Failed to close mirror")
		}
	}()

	reset, err := store.Initialize(ctx)
	if err != nil {
		return zero, err
	}
	if reset != nil {
		logging.Ctx(ctx).Warn().
			Str("backend", reset.Backend).
			Strs("missing_columns", reset.MissingColumns).
			Int("dropped_records", reset.DroppedRecords).
			Msg("Mirror schema changed, cache reset")
		metrics.CacheReset()
		c.hooks.triggerCacheReset(*reset)
	}

	return fn(store, reset)
}

// Documents implements Mirror.
func (c *client) Documents(ctx context.Context, kbID string) ([]documents.Record, error) {
	if err := validateKB(kbID); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return withStore(ctx, c, func(store mirror.Store, _ *mirror.ResetEvent) ([]documents.Record, error) {
		return store.List(ctx, kbID)
	})
}

// Count implements Mirror.
func (c *client) Count(ctx context.Context, kbID string) (int, error) {
	if err := validateKB(kbID); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return withStore(ctx, c, func(store mirror.Store, _ *mirror.ResetEvent) (int, error) {
		return store.Count(ctx, kbID)
	})
}

func validateKB(kbID string) error {
	if kbID == "" {
		return errors.NewValidationError("kb_id", kbID, "knowledge base id is required")
	}
	return nil
}
