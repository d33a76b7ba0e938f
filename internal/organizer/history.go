package organizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/omjikush09/aggroso/internal/specs"
)

// HistorySource lists recent specs.
type HistorySource interface {
	History(ctx context.Context) ([]specs.Specification, error)
}

// History caches the recent-spec list and loads entries into a Session.
type History struct {
	src   HistorySource
	mu    sync.Mutex
	items []specs.Specification
}

// NewHistory creates a History over src.
func NewHistory(src HistorySource) *History {
	return &History{src: src}
}

// Refresh reloads the list from the source.
func (h *History) Refresh(ctx context.Context) ([]specs.Specification, error) {
	items, err := h.src.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh history: %w", err)
	}
	h.mu.Lock()
	h.items = items
	h.mu.Unlock()
	return h.Items(), nil
}

// Items returns the cached list, newest first.
func (h *History) Items() []specs.Specification {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]specs.Specification, len(h.items))
	copy(out, h.items)
	return out
}

// Find returns the cached entry with id.
func (h *History) Find(id string) (specs.Specification, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, item := range h.items {
		if item.ID == id {
			return item, nil
		}
	}
	return specs.Specification{}, fmt.Errorf("history entry %q: %w", id, specs.ErrNotFound)
}

// Open loads the entry with id into sess, refreshing once if the id is not
// cached.
func (h *History) Open(ctx context.Context, sess *Session, id string) (specs.Specification, error) {
	item, err := h.Find(id)
	if err != nil {
		if _, rerr := h.Refresh(ctx); rerr != nil {
			return specs.Specification{}, rerr
		}
		if item, err = h.Find(id); err != nil {
			return specs.Specification{}, err
		}
	}
	sess.Load(item)
	return item, nil
}
