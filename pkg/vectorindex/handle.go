package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
)

// AcquireFunc opens a store.
type AcquireFunc func(ctx context.Context) (Store, error)

// Handle acquires its store on first use. A failed acquisition marks this
// handle unavailable for the rest of its life; other handles are unaffected.
// Acquisition interrupted by the caller's context is not treated as a failure.
type Handle struct {
	name    string
	acquire AcquireFunc
	logger  *zap.Logger

	mu          sync.Mutex
	store       Store
	unavailable bool
	cause       error
}

// NewHandle creates a handle that calls acquire lazily.
func NewHandle(name string, acquire AcquireFunc, logger *zap.Logger) *Handle {
	return &Handle{
		name:    name,
		acquire: acquire,
		logger:  logger.Named("vector-handle").With(zap.String("collection", name)),
	}
}

// NewStaticHandle wraps an already-open store. A nil store yields a handle
// that is permanently unavailable.
func NewStaticHandle(name string, store Store) *Handle {
	h := &Handle{name: name, store: store, logger: zap.NewNop()}
	if store == nil {
		h.unavailable = true
		h.cause = errors.New("not configured")
	}
	return h
}

// Get returns the store, acquiring it on first call. The error wraps
// apperrors.ErrUnavailable when the store cannot be used.
func (h *Handle) Get(ctx context.Context) (Store, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store != nil {
		return h.store, nil
	}
	if h.unavailable {
		return nil, fmt.Errorf("vector index %s: %w: %v", h.name, apperrors.ErrUnavailable, h.cause)
	}

	store, err := h.acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("vector index %s: %w", h.name, ctx.Err())
		}
		h.unavailable = true
		h.cause = err
		h.logger.Warn("Vector index unavailable; falling back for the rest of this process",
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("vector index %s: %w: %v", h.name, apperrors.ErrUnavailable, err)
	}

	h.store = store
	h.logger.Info("Vector index acquired")
	return store, nil
}

// Available reports whether the handle has not been marked unavailable.
// It does not trigger acquisition.
func (h *Handle) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.unavailable
}
