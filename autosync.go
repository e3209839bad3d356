package kbmirror

import (
	"context"
	"time"

	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
)

// Compile-time interface check to ensure proper implementation.
var _ AutoSyncer = (*client)(nil)

// AutoSyncer provides controls for periodic background syncs.
type AutoSyncer interface {
	// AutoSyncOn syncs every kbID once per configured interval until
	// AutoSyncOff is called or an authentication failure occurs.
	AutoSyncOn(kbIDs ...string) error

	// AutoSyncOff stops periodic syncs
	AutoSyncOff() error
}

// AutoSyncOn implements AutoSyncer.
func (c *client) AutoSyncOn(kbIDs ...string) error {
	if c.options.syncInterval <= 0 {
		return &errors.ValidationError{
			Field:   "syncInterval",
			Value:   c.options.syncInterval,
			Message: "sync interval must be positive",
		}
	}
	if len(kbIDs) == 0 {
		return errors.NewValidationError("kb_id", kbIDs, "at least one knowledge base is required")
	}
	for _, kbID := range kbIDs {
		if err := validateKB(kbID); err != nil {
			return err
		}
	}

	// Stop any existing loop to prevent resource leaks
	if err := c.AutoSyncOff(); err != nil {
		return err
	}

	c.autoMu.Lock()
	defer c.autoMu.Unlock()

	// Recreate stopCh since it was closed in AutoSyncOff
	stopCh := make(chan struct{})
	ticker := time.NewTicker(c.options.syncInterval)
	ctx, cancel := context.WithCancel(context.Background())
	c.stopCh = stopCh
	c.syncTicker = ticker
	c.syncCancel = cancel

	logging.Info().
		Strs("kb_ids", kbIDs).
		Dur("interval", c.options.syncInterval).
		Msg("Auto-sync started")

	go func(parentCtx context.Context) {
		for {
			select {
			case <-ticker.C:
				if stop := c.syncCycle(parentCtx, kbIDs); stop {
					ticker.Stop()
					return
				}
			case <-parentCtx.Done():
				return
			case <-stopCh:
				return
			}
		}
	}(ctx)

	return nil
}

// syncCycle syncs each knowledge base once and reports whether the loop must stop.
func (c *client) syncCycle(parentCtx context.Context, kbIDs []string) bool {
	for _, kbID := range kbIDs {
		// Each sync gets its own deadline
		syncCtx, syncCancel := context.WithTimeout(parentCtx, constants.SyncContextTimeout)
		result, err := c.Sync(syncCtx, kbID)
		syncCancel()

		if err != nil {
			if parentCtx.Err() != nil {
				return true
			}
			if errors.IsFatal(err) {
				logging.Error().Err(err).Str("kb_id", kbID).Msg("Auto-sync stopped: authentication failed")
				return true
			}
			// Log other errors but continue
			logging.Error().Err(err).Str("kb_id", kbID).Msg("Auto-sync failed")
			continue
		}

		logging.Debug().
			Str("kb_id", kbID).
			Int("added", result.Added).
			Int("refreshed", result.Refreshed).
			Int("failed", len(result.Failed)).
			Msg("Auto-sync cycle completed")
	}
	return false
}

// AutoSyncOff implements AutoSyncer.
func (c *client) AutoSyncOff() error {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()

	if c.syncTicker != nil {
		c.syncTicker.Stop()
		c.syncTicker = nil
	}
	if c.syncCancel != nil {
		c.syncCancel()
		c.syncCancel = nil
	}
	select {
	case <-c.stopCh:
		// Already closed
	default:
		close(c.stopCh)
	}
	return nil
}
