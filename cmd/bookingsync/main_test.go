package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corkandcandles/bookingsync/internal/bookeo"
	"github.com/corkandcandles/bookingsync/internal/store"
	"github.com/corkandcandles/bookingsync/internal/syncer"
)

type noopFetcher struct {
	calls atomic.Int32
}

func (f *noopFetcher) GetBookings(ctx context.Context, window bookeo.Window, opts bookeo.FetchOptions) ([]bookeo.Booking, error) {
	f.calls.Add(1)
	return nil, nil
}

func TestRunSchedulerRunsIncrementalPasses(t *testing.T) {
	fetcher := &noopFetcher{}
	engine, err := syncer.New(syncer.Options{
		Store:           store.NewInMemoryStore(),
		Fetcher:         fetcher,
		HistoricalStart: time.Now().UTC().Add(-time.Hour),
		FutureDays:      1,
	})
	if err != nil {
		t.Fatalf("syncer.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runScheduler(ctx, engine, 5*time.Millisecond, 0)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for fetcher.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never ran a pass")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	cancel()
	<-done
}

func TestRunSchedulerDisabledWithoutInterval(t *testing.T) {
	done := make(chan struct{})
	go func() {
		runScheduler(context.Background(), nil, 0, 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler with zero interval should return immediately")
	}
}
