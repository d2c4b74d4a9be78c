package websocket

import (
	"io"
	"sync"
)

// StreamRegistry tracks the active log-tail handle of every live session so
// teardown can release it even if the owning session has already begun
// destruction. It is a safety net against handle leaks, not a pool: handles
// are never shared across sessions, so entries are keyed by session id.
type StreamRegistry struct {
	mu      sync.Mutex
	streams map[string]registryEntry
}

type registryEntry struct {
	containerID string
	handle      io.Closer
}

// NewStreamRegistry returns an empty registry.
func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{streams: make(map[string]registryEntry)}
}

// Register records the session's log-tail handle, first releasing any handle
// the session already holds: at most one open log stream per session.
func (r *StreamRegistry) Register(sessionID, containerID string, handle io.Closer) {
	r.mu.Lock()
	prev, ok := r.streams[sessionID]
	r.streams[sessionID] = registryEntry{containerID: containerID, handle: handle}
	r.mu.Unlock()

	if ok {
		_ = prev.handle.Close()
	}
}

// Release closes and forgets the session's handle, if any.
func (r *StreamRegistry) Release(sessionID string) {
	r.mu.Lock()
	entry, ok := r.streams[sessionID]
	delete(r.streams, sessionID)
	r.mu.Unlock()

	if ok {
		_ = entry.handle.Close()
	}
}

// Len returns the number of registered handles.
func (r *StreamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
