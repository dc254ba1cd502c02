package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/corkandcandles/bookingsync/internal/bookeo"
	"github.com/corkandcandles/bookingsync/internal/store"
)

const (
	// DefaultFutureDays is the forward horizon added to every pass so that
	// upcoming bookings land alongside historical ones.
	DefaultFutureDays = 90

	// firstRunLookback bounds the first incremental pass when no watermark
	// exists yet; a full backfill is a separate, explicit operation.
	firstRunLookback = 24 * time.Hour
)

// Fetcher is the slice of the upstream client the orchestrator needs.
// *bookeo.Client satisfies it; tests substitute fakes.
type Fetcher interface {
	GetBookings(ctx context.Context, window bookeo.Window, opts bookeo.FetchOptions) ([]bookeo.Booking, error)
}

type Logger interface {
	Printf(format string, args ...any)
}

// Event describes sync pass progress for listeners such as the admin
// WebSocket stream.
type Event struct {
	Type        string    `json:"type"` // pass_started, window_synced, pass_completed, pass_failed
	Mode        string    `json:"mode"` // backfill or incremental
	RangeStart  time.Time `json:"rangeStart,omitempty"`
	RangeEnd    time.Time `json:"rangeEnd,omitempty"`
	WindowStart time.Time `json:"windowStart,omitempty"`
	WindowEnd   time.Time `json:"windowEnd,omitempty"`
	Windows     int       `json:"windows,omitempty"`
	WindowIndex int       `json:"windowIndex,omitempty"`
	Upserted    int       `json:"upserted,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Summary reports one completed pass.
type Summary struct {
	Mode      string    `json:"mode"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Windows   int       `json:"windows"`
	Fetched   int       `json:"fetched"`
	Dropped   int       `json:"dropped"`
	Upserted  int       `json:"upserted"`
	Watermark time.Time `json:"watermark"`
}

type Options struct {
	Store           store.BookingStore
	Fetcher         Fetcher
	HistoricalStart time.Time
	FutureDays      int
	MaxWindowDays   int
	IncludeCanceled bool
	ProductID       string
	PageOptions     bookeo.FetchOptions // expand flags; IncludeCanceled/ProductID above win

	// WindowRetries > 0 enables exponential backoff on upstream errors
	// before a window is declared failed. Zero keeps the fail-fast
	// behavior.
	WindowRetries  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	Logger   Logger
	Progress func(Event)
	Now      func() time.Time
}

// Syncer drives full and incremental passes: plan windows, fetch, map,
// upsert, and only then advance the watermark.
type Syncer struct {
	store           store.BookingStore
	fetcher         Fetcher
	historicalStart time.Time
	futureDays      int
	maxWindowDays   int
	fetchOpts       bookeo.FetchOptions
	windowRetries   int
	retryBaseDelay  time.Duration
	retryMaxDelay   time.Duration
	logger          Logger
	progress        func(Event)
	now             func() time.Time
}

func New(opts Options) (*Syncer, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	futureDays := opts.FutureDays
	if futureDays <= 0 {
		futureDays = DefaultFutureDays
	}
	maxWindowDays := opts.MaxWindowDays
	if maxWindowDays <= 0 || maxWindowDays > bookeo.MaxWindowDays {
		maxWindowDays = bookeo.MaxWindowDays
	}
	retryBaseDelay := opts.RetryBaseDelay
	if retryBaseDelay <= 0 {
		retryBaseDelay = time.Second
	}
	retryMaxDelay := opts.RetryMaxDelay
	if retryMaxDelay <= 0 {
		retryMaxDelay = time.Minute
	}
	nowFunc := opts.Now
	if nowFunc == nil {
		nowFunc = func() time.Time { return time.Now().UTC() }
	}
	fetchOpts := opts.PageOptions
	fetchOpts.IncludeCanceled = opts.IncludeCanceled
	fetchOpts.ProductID = strings.TrimSpace(opts.ProductID)
	return &Syncer{
		store:           opts.Store,
		fetcher:         opts.Fetcher,
		historicalStart: opts.HistoricalStart,
		futureDays:      futureDays,
		maxWindowDays:   maxWindowDays,
		fetchOpts:       fetchOpts,
		windowRetries:   opts.WindowRetries,
		retryBaseDelay:  retryBaseDelay,
		retryMaxDelay:   retryMaxDelay,
		logger:          opts.Logger,
		progress:        opts.Progress,
		now:             nowFunc,
	}, nil
}

// RunBackfill syncs the full configured history through the forward
// horizon. It ignores the stored watermark for range selection and, like
// the incremental pass, records the pass-start time as the new watermark
// on success.
func (s *Syncer) RunBackfill(ctx context.Context) (Summary, error) {
	now := s.now()
	start := s.historicalStart
	if start.IsZero() {
		start = now.Add(-firstRunLookback)
	}
	end := now.AddDate(0, 0, s.futureDays)
	return s.runPass(ctx, "backfill", start, end, now)
}

// RunIncremental syncs from the stored watermark (or a 24h lookback on the
// very first run) through the forward horizon.
func (s *Syncer) RunIncremental(ctx context.Context) (Summary, error) {
	now := s.now()
	start, ok, err := s.store.LastSyncTime(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read watermark: %w", err)
	}
	if !ok {
		start = now.Add(-firstRunLookback)
	}
	end := now.AddDate(0, 0, s.futureDays)
	return s.runPass(ctx, "incremental", start, end, now)
}

// runPass captures "now" once at entry: that value, not the pass end time,
// becomes the watermark, so records changed while the pass runs fall after
// the recorded watermark and get picked up next time.
func (s *Syncer) runPass(ctx context.Context, mode string, start, end, passStart time.Time) (Summary, error) {
	windows := bookeo.SplitRange(start, end, s.maxWindowDays)
	summary := Summary{Mode: mode, Start: start, End: end, Windows: len(windows)}
	s.emit(Event{Type: "pass_started", Mode: mode, RangeStart: start, RangeEnd: end, Windows: len(windows)})
	s.logf("[sync] %s pass: %s to %s (%d windows)", mode, start.Format(time.RFC3339), end.Format(time.RFC3339), len(windows))

	for i, window := range windows {
		bookings, err := s.fetchWindow(ctx, window)
		if err != nil {
			s.logf("[sync] window %s to %s failed: %v", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339), err)
			s.emit(Event{Type: "pass_failed", Mode: mode, WindowStart: window.Start, WindowEnd: window.End, Error: err.Error()})
			return summary, fmt.Errorf("fetch window [%s, %s): %w", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339), err)
		}
		summary.Fetched += len(bookings)

		rows, dropped := mapAndDedupe(bookings)
		summary.Dropped += dropped

		upserted, err := s.store.UpsertBookings(ctx, rows)
		if err != nil {
			s.logf("[sync] upsert for window %s to %s failed: %v", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339), err)
			s.emit(Event{Type: "pass_failed", Mode: mode, WindowStart: window.Start, WindowEnd: window.End, Error: err.Error()})
			return summary, fmt.Errorf("upsert window [%s, %s): %w", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339), err)
		}
		summary.Upserted += upserted
		s.emit(Event{Type: "window_synced", Mode: mode, WindowStart: window.Start, WindowEnd: window.End, Windows: len(windows), WindowIndex: i + 1, Upserted: upserted})
	}

	if err := s.store.SetLastSyncTime(ctx, passStart); err != nil {
		return summary, fmt.Errorf("advance watermark: %w", err)
	}
	summary.Watermark = passStart
	s.emit(Event{Type: "pass_completed", Mode: mode, RangeStart: start, RangeEnd: end, Windows: len(windows), Upserted: summary.Upserted})
	s.logf("[sync] %s pass done: fetched=%d dropped=%d upserted=%d watermark=%s",
		mode, summary.Fetched, summary.Dropped, summary.Upserted, passStart.Format(time.RFC3339))
	return summary, nil
}

func (s *Syncer) fetchWindow(ctx context.Context, window bookeo.Window) ([]bookeo.Booking, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		bookings, err := s.fetcher.GetBookings(ctx, window, s.fetchOpts)
		if err == nil {
			return bookings, nil
		}
		lastErr = err
		if attempt >= s.windowRetries {
			return nil, lastErr
		}
		delay := s.retryDelay(attempt + 1)
		s.logf("[sync] retrying window %s to %s in %s after error: %v",
			window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339), delay, err)
		if waitErr := sleepContext(ctx, delay); waitErr != nil {
			return nil, waitErr
		}
	}
}

func (s *Syncer) retryDelay(attempt int) time.Duration {
	delay := s.retryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.retryMaxDelay {
			return s.retryMaxDelay
		}
	}
	if delay > s.retryMaxDelay {
		return s.retryMaxDelay
	}
	return delay
}

// mapAndDedupe maps the window's records and collapses duplicate booking
// numbers, keeping the last occurrence. Duplicates spanning two windows
// resolve the same way because later windows upsert over earlier ones.
func mapAndDedupe(bookings []bookeo.Booking) ([]store.Row, int) {
	order := make([]string, 0, len(bookings))
	byKey := make(map[string]store.Row, len(bookings))
	dropped := 0
	for _, booking := range bookings {
		row, ok := MapBooking(booking)
		if !ok {
			dropped++
			continue
		}
		if _, seen := byKey[row.BookingNumber]; !seen {
			order = append(order, row.BookingNumber)
		}
		byKey[row.BookingNumber] = row
	}
	rows := make([]store.Row, 0, len(order))
	for _, key := range order {
		rows = append(rows, byKey[key])
	}
	return rows, dropped
}

func (s *Syncer) emit(event Event) {
	if s.progress != nil {
		s.progress(event)
	}
}

func (s *Syncer) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
