// Package transcript maintains the rolling transcript window and the
// persona classification for the live demo UI.
//
// Both are display-side annotations: they never feed back into the
// audio path or the backend conversation.
package transcript

import (
	"sync"
	"time"
)

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Item is one finalized transcript line. Immutable once created.
type Item struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultHistorySize matches the shipped demo: the UI shows the last
// three lines.
const DefaultHistorySize = 3

// History is a bounded FIFO window of the most recent transcript
// items. It is a display cache, not a durable transcript log: when the
// window is full the oldest item is evicted.
type History struct {
	mu    sync.Mutex
	items []Item
	max   int
}

// NewHistory creates a history bounded to max items.
// A non-positive max falls back to DefaultHistorySize.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{
		items: make([]Item, 0, max),
		max:   max,
	}
}

// Append adds a finalized item, evicting the oldest when full.
func (h *History) Append(item Item) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, item)
	if len(h.items) > h.max {
		h.items = h.items[len(h.items)-h.max:]
	}
}

// Items returns a copy of the current window, oldest first.
func (h *History) Items() []Item {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Item, len(h.items))
	copy(out, h.items)
	return out
}

// Last returns the most recent item, or false when the window is empty.
func (h *History) Last() (Item, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return Item{}, false
	}
	return h.items[len(h.items)-1], true
}

// Len returns the number of items currently held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Clear empties the window.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = h.items[:0]
}
