package kbmirror

import (
	"sync"

	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/mirror"
)

// Compile-time interface check to ensure proper implementation.
var _ Hooks = (*client)(nil)

// Hook function types for mirror events. Hooks run synchronously while the
// mirror is held and must not call back into the Client.
type (
	// DocumentAddedHook is called when a document enters the mirror
	DocumentAddedHook func(record documents.Record)

	// DocumentUpdatedHook is called when a mirrored document's metadata changes
	DocumentUpdatedHook func(old, new documents.Record)

	// DocumentRemovedHook is called after a document is deleted remotely and locally
	DocumentRemovedHook func(record documents.Record)

	// CacheResetHook is called when the mirror discards its contents
	CacheResetHook func(event mirror.ResetEvent)
)

// Hooks registers event callbacks.
type Hooks interface {
	OnDocumentAdded(fn DocumentAddedHook)
	OnDocumentUpdated(fn DocumentUpdatedHook)
	OnDocumentRemoved(fn DocumentRemovedHook)
	OnCacheReset(fn CacheResetHook)
}

// hooks manages event callbacks for mirror changes
type hooks struct {
	mu                sync.RWMutex
	onDocumentAdded   []DocumentAddedHook
	onDocumentUpdated []DocumentUpdatedHook
	onDocumentRemoved []DocumentRemovedHook
	onCacheReset      []CacheResetHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnDocumentAdded implements Hooks.
func (c *client) OnDocumentAdded(fn DocumentAddedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onDocumentAdded = append(c.hooks.onDocumentAdded, fn)
}

// OnDocumentUpdated implements Hooks.
func (c *client) OnDocumentUpdated(fn DocumentUpdatedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onDocumentUpdated = append(c.hooks.onDocumentUpdated, fn)
}

// OnDocumentRemoved implements Hooks.
func (c *client) OnDocumentRemoved(fn DocumentRemovedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onDocumentRemoved = append(c.hooks.onDocumentRemoved, fn)
}

// OnCacheReset implements Hooks.
func (c *client) OnCacheReset(fn CacheResetHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onCacheReset = append(c.hooks.onCacheReset, fn)
}

func (h *hooks) triggerAdded(rec documents.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onDocumentAdded {
		hook(rec)
	}
}

func (h *hooks) triggerUpdated(old, new documents.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onDocumentUpdated {
		hook(old, new)
	}
}

func (h *hooks) triggerRemoved(rec documents.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onDocumentRemoved {
		hook(rec)
	}
}

func (h *hooks) triggerCacheReset(event mirror.ResetEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onCacheReset {
		hook(event)
	}
}

// hasUpdated reports whether any update hook is registered.
func (h *hooks) hasUpdated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.onDocumentUpdated) > 0
}
