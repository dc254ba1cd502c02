package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corkandcandles/bookingsync/internal/bookeo"
	"github.com/corkandcandles/bookingsync/internal/store"
)

type fakeFetcher struct {
	calls   []bookeo.Window
	respond func(window bookeo.Window, call int) ([]bookeo.Booking, error)
}

func (f *fakeFetcher) GetBookings(ctx context.Context, window bookeo.Window, opts bookeo.FetchOptions) ([]bookeo.Booking, error) {
	call := len(f.calls)
	f.calls = append(f.calls, window)
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(window, call)
}

func fixedNow() time.Time {
	return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestSyncer(t *testing.T, st store.BookingStore, fetcher Fetcher, adjust func(*Options)) *Syncer {
	t.Helper()
	opts := Options{
		Store:           st,
		Fetcher:         fetcher,
		HistoricalStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FutureDays:      30,
		Now:             fixedNow,
	}
	if adjust != nil {
		adjust(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestRunBackfillCoversConfiguredRange(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := &fakeFetcher{respond: func(window bookeo.Window, call int) ([]bookeo.Booking, error) {
		return []bookeo.Booking{{BookingNumber: fmt.Sprintf("B-%d", call)}}, nil
	}}
	s := newTestSyncer(t, st, fetcher, nil)

	summary, err := s.RunBackfill(context.Background())
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}

	wantEnd := fixedNow().AddDate(0, 0, 30)
	if len(fetcher.calls) == 0 {
		t.Fatal("no windows fetched")
	}
	if !fetcher.calls[0].Start.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("first window starts at %s", fetcher.calls[0].Start)
	}
	if !fetcher.calls[len(fetcher.calls)-1].End.Equal(wantEnd) {
		t.Fatalf("last window ends at %s, want %s", fetcher.calls[len(fetcher.calls)-1].End, wantEnd)
	}
	if summary.Upserted != len(fetcher.calls) {
		t.Fatalf("upserted=%d, want %d", summary.Upserted, len(fetcher.calls))
	}
	if st.Count() != len(fetcher.calls) {
		t.Fatalf("store holds %d rows, want %d", st.Count(), len(fetcher.calls))
	}
}

func TestRunBackfillAdvancesWatermarkToPassStart(t *testing.T) {
	st := store.NewInMemoryStore()
	s := newTestSyncer(t, st, &fakeFetcher{}, nil)

	summary, err := s.RunBackfill(context.Background())
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}
	if !summary.Watermark.Equal(fixedNow()) {
		t.Fatalf("watermark=%s, want pass start %s", summary.Watermark, fixedNow())
	}
	mark, ok, err := st.LastSyncTime(context.Background())
	if err != nil || !ok {
		t.Fatalf("LastSyncTime ok=%v err=%v", ok, err)
	}
	if !mark.Equal(fixedNow()) {
		t.Fatalf("stored watermark=%s", mark)
	}
}

func TestRunIncrementalUsesWatermark(t *testing.T) {
	st := store.NewInMemoryStore()
	watermark := time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC)
	if err := st.SetLastSyncTime(context.Background(), watermark); err != nil {
		t.Fatalf("SetLastSyncTime: %v", err)
	}
	fetcher := &fakeFetcher{}
	s := newTestSyncer(t, st, fetcher, nil)

	if _, err := s.RunIncremental(context.Background()); err != nil {
		t.Fatalf("RunIncremental: %v", err)
	}
	if len(fetcher.calls) == 0 {
		t.Fatal("no windows fetched")
	}
	if !fetcher.calls[0].Start.Equal(watermark) {
		t.Fatalf("incremental starts at %s, want watermark %s", fetcher.calls[0].Start, watermark)
	}
}

func TestRunIncrementalFirstRunLookback(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := &fakeFetcher{}
	s := newTestSyncer(t, st, fetcher, nil)

	if _, err := s.RunIncremental(context.Background()); err != nil {
		t.Fatalf("RunIncremental: %v", err)
	}
	want := fixedNow().Add(-24 * time.Hour)
	if !fetcher.calls[0].Start.Equal(want) {
		t.Fatalf("first-run start=%s, want %s", fetcher.calls[0].Start, want)
	}
}

func TestRunPassFailureLeavesWatermarkUntouched(t *testing.T) {
	st := store.NewInMemoryStore()
	previous := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := st.SetLastSyncTime(context.Background(), previous); err != nil {
		t.Fatalf("SetLastSyncTime: %v", err)
	}
	upstreamErr := errors.New("upstream down")
	fetcher := &fakeFetcher{respond: func(window bookeo.Window, call int) ([]bookeo.Booking, error) {
		if call == 1 {
			return nil, upstreamErr
		}
		return []bookeo.Booking{{BookingNumber: fmt.Sprintf("B-%d", call)}}, nil
	}}
	s := newTestSyncer(t, st, fetcher, nil)

	_, err := s.RunBackfill(context.Background())
	if !errors.Is(err, upstreamErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	mark, ok, err := st.LastSyncTime(context.Background())
	if err != nil || !ok {
		t.Fatalf("LastSyncTime ok=%v err=%v", ok, err)
	}
	if !mark.Equal(previous) {
		t.Fatalf("watermark moved to %s after failed pass", mark)
	}
}

func TestRunPassRetriesWindowWhenConfigured(t *testing.T) {
	st := store.NewInMemoryStore()
	attempts := 0
	fetcher := &fakeFetcher{respond: func(window bookeo.Window, call int) ([]bookeo.Booking, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return nil, nil
	}}
	s := newTestSyncer(t, st, fetcher, func(o *Options) {
		o.WindowRetries = 2
		o.RetryBaseDelay = time.Millisecond
		o.FutureDays = 1
		o.HistoricalStart = fixedNow().Add(-time.Hour)
	})

	if _, err := s.RunBackfill(context.Background()); err != nil {
		t.Fatalf("RunBackfill with retries: %v", err)
	}
	if attempts < 2 {
		t.Fatalf("attempts=%d, want retry", attempts)
	}
}

func TestRunPassDedupesWithinWindow(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := &fakeFetcher{respond: func(window bookeo.Window, call int) ([]bookeo.Booking, error) {
		if call > 0 {
			return nil, nil
		}
		return []bookeo.Booking{
			{BookingNumber: "B-100", Title: "first"},
			{BookingNumber: "B-200"},
			{BookingNumber: "B-100", Title: "second"},
		}, nil
	}}
	s := newTestSyncer(t, st, fetcher, nil)

	summary, err := s.RunBackfill(context.Background())
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}
	if summary.Fetched != 3 {
		t.Fatalf("fetched=%d, want 3", summary.Fetched)
	}
	if st.Count() != 2 {
		t.Fatalf("store holds %d rows, want 2", st.Count())
	}
	row, err := st.GetBooking(context.Background(), "B-100")
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if row.Title != "second" {
		t.Fatalf("title=%q, want last occurrence to win", row.Title)
	}
}

func TestRunPassCountsDroppedRecords(t *testing.T) {
	st := store.NewInMemoryStore()
	fetcher := &fakeFetcher{respond: func(window bookeo.Window, call int) ([]bookeo.Booking, error) {
		if call > 0 {
			return nil, nil
		}
		return []bookeo.Booking{
			{BookingNumber: "B-1"},
			{Title: "keyless"},
			{BookingNumber: "  "},
		}, nil
	}}
	s := newTestSyncer(t, st, fetcher, nil)

	summary, err := s.RunBackfill(context.Background())
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}
	if summary.Dropped != 2 {
		t.Fatalf("dropped=%d, want 2", summary.Dropped)
	}
	if st.Count() != 1 {
		t.Fatalf("store holds %d rows, want 1", st.Count())
	}
}

func TestRunPassEmitsProgressEvents(t *testing.T) {
	st := store.NewInMemoryStore()
	var events []Event
	s := newTestSyncer(t, st, &fakeFetcher{}, func(o *Options) {
		o.Progress = func(e Event) { events = append(events, e) }
	})

	if _, err := s.RunBackfill(context.Background()); err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected at least start and completion events, got %d", len(events))
	}
	if events[0].Type != "pass_started" {
		t.Fatalf("first event %q", events[0].Type)
	}
	if events[len(events)-1].Type != "pass_completed" {
		t.Fatalf("last event %q", events[len(events)-1].Type)
	}
}

func TestInMemoryRefreshQueueFullReturnsError(t *testing.T) {
	q := NewInMemoryRefreshQueue(1)
	defer q.Close()
	if err := q.Enqueue(context.Background(), RefreshRequest{Reason: "manual"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(context.Background(), RefreshRequest{Reason: "manual"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if req, ok := q.TryDequeue(); !ok || req.Reason != "manual" {
		t.Fatalf("dequeue ok=%v req=%+v", ok, req)
	}
}

func TestRunRefreshWorkerCoalescesBurst(t *testing.T) {
	st := store.NewInMemoryStore()
	var passes atomic.Int32
	fetcher := &fakeFetcher{respond: func(window bookeo.Window, call int) ([]bookeo.Booking, error) {
		return nil, nil
	}}
	s := newTestSyncer(t, st, fetcher, func(o *Options) {
		o.Progress = func(e Event) {
			if e.Type == "pass_completed" {
				passes.Add(1)
			}
		}
		o.FutureDays = 1
		o.HistoricalStart = fixedNow().Add(-time.Hour)
	})

	q := NewInMemoryRefreshQueue(8)
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(context.Background(), RefreshRequest{Reason: "webhook"}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunRefreshWorker(ctx, q, s, nil)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for passes.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("refresh worker never ran a pass")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	cancel()
	<-done

	// Five queued requests collapse into far fewer passes.
	if passes.Load() > 2 {
		t.Fatalf("passes=%d, want coalescing", passes.Load())
	}
}
