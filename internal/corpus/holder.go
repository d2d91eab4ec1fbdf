package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Holder publishes the current Store. Readers call Current once per query and
// keep using that snapshot; reloads swap the pointer atomically.
type Holder struct {
	current    atomic.Pointer[Store]
	generation atomic.Uint64
	reloadMu   sync.Mutex
	dir        string
	opts       []Option
	logger     *slog.Logger
}

// NewHolder loads dir and returns a Holder serving it. Load errors are
// returned unchanged so that startup can refuse to serve.
func NewHolder(dir string, opts ...Option) (*Holder, error) {
	store, err := Load(dir, opts...)
	if err != nil {
		return nil, err
	}
	h := &Holder{
		dir:    dir,
		opts:   opts,
		logger: slog.Default().With("component", "corpus-holder"),
	}
	h.current.Store(store)
	h.generation.Store(1)
	return h, nil
}

// NewStaticHolder wraps an in-memory Store. Reload on such a holder fails.
func NewStaticHolder(store *Store) *Holder {
	h := &Holder{logger: slog.Default().With("component", "corpus-holder")}
	h.current.Store(store)
	h.generation.Store(1)
	return h
}

// Current returns the Store serving queries right now.
func (h *Holder) Current() *Store {
	return h.current.Load()
}

// Generation increases by one on every successful swap.
func (h *Holder) Generation() uint64 {
	return h.generation.Load()
}

// Swap installs store and returns the previous one.
func (h *Holder) Swap(store *Store) *Store {
	old := h.current.Swap(store)
	h.generation.Add(1)
	return old
}

// Reload re-reads the corpus directory with the original options. On error the
// current Store keeps serving.
func (h *Holder) Reload(ctx context.Context) (*Store, error) {
	if h.dir == "" {
		return nil, fmt.Errorf("reloading corpus: holder has no source directory")
	}
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reloading corpus: %w", err)
	}
	store, err := Load(h.dir, h.opts...)
	if err != nil {
		h.logger.Error("corpus reload failed, keeping previous snapshot", "dir", h.dir, "error", err)
		return nil, fmt.Errorf("reloading corpus: %w", err)
	}
	old := h.Swap(store)
	h.logger.Info("corpus reloaded",
		"documents", store.Len(),
		"previous_documents", old.Len(),
		"generation", h.Generation(),
	)
	return store, nil
}
