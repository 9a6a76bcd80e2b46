package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/repositories"
)

// recordSaveTimeout bounds each background insert so a stuck database cannot
// pin the writer goroutine.
const recordSaveTimeout = 5 * time.Second

// CallRecorder accepts call accounting records without blocking the caller.
type CallRecorder interface {
	Record(call *models.LLMCall)
}

// NopCallRecorder discards every record.
type NopCallRecorder struct{}

// Record implements CallRecorder.
func (NopCallRecorder) Record(*models.LLMCall) {}

// AsyncCallRecorder persists call records on a background goroutine so
// accounting never adds latency to SQL generation or changes its outcome.
type AsyncCallRecorder struct {
	repo   repositories.LLMCallRepository
	logger *zap.Logger
	queue  chan *models.LLMCall
	done   chan struct{}
}

// NewAsyncCallRecorder creates a new async recorder.
// queueSize controls the buffer size - if full, records are dropped with a warning.
func NewAsyncCallRecorder(repo repositories.LLMCallRepository, logger *zap.Logger, queueSize int) *AsyncCallRecorder {
	if queueSize <= 0 {
		queueSize = 100
	}

	r := &AsyncCallRecorder{
		repo:   repo,
		logger: logger.Named("call-recorder"),
		queue:  make(chan *models.LLMCall, queueSize),
		done:   make(chan struct{}),
	}

	go r.processQueue()

	return r
}

// Record queues a call record for async persistence.
// Non-blocking - if queue is full, the record is dropped with a warning.
func (r *AsyncCallRecorder) Record(call *models.LLMCall) {
	select {
	case r.queue <- call:
	default:
		r.logger.Warn("LLM call record queue full, dropping entry",
			zap.String("id", call.ID.String()),
			zap.String("model", call.Model),
			zap.String("status", call.Status))
	}
}

// Close stops the recorder and waits for queued records to be saved.
// Record must not be called after Close.
func (r *AsyncCallRecorder) Close() {
	close(r.queue)
	<-r.done
}

func (r *AsyncCallRecorder) processQueue() {
	defer close(r.done)

	for call := range r.queue {
		r.save(call)
	}
}

func (r *AsyncCallRecorder) save(call *models.LLMCall) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic while saving LLM call record",
				zap.String("id", call.ID.String()),
				zap.Any("panic", p))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), recordSaveTimeout)
	defer cancel()

	if err := r.repo.Save(ctx, call); err != nil {
		r.logger.Error("Failed to save LLM call record",
			zap.String("id", call.ID.String()),
			zap.String("model", call.Model),
			zap.String("error", logging.SanitizeError(err)))
		return
	}

	r.logger.Debug("Saved LLM call record",
		zap.String("id", call.ID.String()),
		zap.String("status", call.Status),
		zap.Int64("duration_ms", call.DurationMs))
}

var _ CallRecorder = (*AsyncCallRecorder)(nil)
