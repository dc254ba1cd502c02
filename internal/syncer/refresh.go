package syncer

import (
	"context"
	"errors"
	"time"
)

var ErrQueueFull = errors.New("refresh queue full")

// RefreshRequest asks the worker to run an incremental pass out of band,
// typically because a webhook notification arrived.
type RefreshRequest struct {
	Reason        string    `json:"reason"`
	BookingNumber string    `json:"bookingNumber,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// RefreshQueue decouples the webhook response path from the sync work it
// triggers. Enqueue never blocks; a full queue is reported and the caller
// moves on, because a pending request already guarantees a re-sync.
type RefreshQueue interface {
	Enqueue(ctx context.Context, req RefreshRequest) error
	// Dequeue blocks until a request or ctx cancellation.
	Dequeue(ctx context.Context) (RefreshRequest, bool)
	// TryDequeue returns immediately; used to coalesce bursts.
	TryDequeue() (RefreshRequest, bool)
	Close() error
}

type InMemoryRefreshQueue struct {
	ch chan RefreshRequest
}

func NewInMemoryRefreshQueue(capacity int) *InMemoryRefreshQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &InMemoryRefreshQueue{ch: make(chan RefreshRequest, capacity)}
}

func (q *InMemoryRefreshQueue) Enqueue(ctx context.Context, req RefreshRequest) error {
	select {
	case q.ch <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *InMemoryRefreshQueue) Dequeue(ctx context.Context) (RefreshRequest, bool) {
	select {
	case <-ctx.Done():
		return RefreshRequest{}, false
	case req, ok := <-q.ch:
		return req, ok
	}
}

func (q *InMemoryRefreshQueue) TryDequeue() (RefreshRequest, bool) {
	select {
	case req, ok := <-q.ch:
		return req, ok
	default:
		return RefreshRequest{}, false
	}
}

func (q *InMemoryRefreshQueue) Close() error { return nil }

// RunRefreshWorker consumes refresh requests and runs incremental passes
// until ctx is cancelled. A burst of pending requests collapses into one
// pass: a single incremental pass already covers everything the burst
// announced.
func RunRefreshWorker(ctx context.Context, queue RefreshQueue, s *Syncer, logger Logger) {
	for {
		req, ok := queue.Dequeue(ctx)
		if !ok {
			return
		}
		drained := 0
		for {
			if _, more := queue.TryDequeue(); !more {
				break
			}
			drained++
		}
		if logger != nil {
			logger.Printf("[refresh] running incremental sync (reason=%s coalesced=%d)", req.Reason, drained)
		}
		if _, err := s.RunIncremental(ctx); err != nil {
			if logger != nil {
				logger.Printf("[refresh] incremental sync failed: %v", err)
			}
		}
	}
}
