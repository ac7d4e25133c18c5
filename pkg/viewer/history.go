package viewer

import "sync"

// History is the page's navigation history as seen by the controller.
// Search returns the search string of the current entry; Push appends a new
// entry and makes it current.
type History interface {
	Search() string
	Push(search string)
}

// MemoryHistory is a History kept in process. It follows browser semantics:
// pushing after navigating back discards the forward entries.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries []string
	index   int
}

// Ensure MemoryHistory implements History.
var _ History = (*MemoryHistory)(nil)

// NewMemoryHistory creates a history whose first entry is search.
func NewMemoryHistory(search string) *MemoryHistory {
	return &MemoryHistory{entries: []string{search}}
}

// Search returns the current entry.
func (h *MemoryHistory) Search() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.entries[h.index]
}

// Push appends search after the current entry.
func (h *MemoryHistory) Push(search string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries[:h.index+1], search)
	h.index = len(h.entries) - 1
}

// Replace overwrites the current entry.
func (h *MemoryHistory) Replace(search string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.index] = search
}

// At returns the entry at index without moving.
func (h *MemoryHistory) At(index int) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if index < 0 || index >= len(h.entries) {
		return "", false
	}

	return h.entries[index], true
}

// Go moves to the entry at index and returns it.
func (h *MemoryHistory) Go(index int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.entries) {
		return "", false
	}

	h.index = index

	return h.entries[index], true
}

// Back moves one entry back.
func (h *MemoryHistory) Back() (string, bool) {
	return h.Go(h.Index() - 1)
}

// Forward moves one entry forward.
func (h *MemoryHistory) Forward() (string, bool) {
	return h.Go(h.Index() + 1)
}

// Index returns the position of the current entry.
func (h *MemoryHistory) Index() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.index
}

// Entries returns a copy of all entries.
func (h *MemoryHistory) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, len(h.entries))
	copy(out, h.entries)

	return out
}
