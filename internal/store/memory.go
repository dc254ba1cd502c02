package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryStore keeps everything in maps. It backs the memory:// DSN and
// substitutes for Postgres in tests.
type InMemoryStore struct {
	mu        sync.Mutex
	rows      map[string]Row
	watermark time.Time
	hasMark   bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: map[string]Row{}}
}

func (s *InMemoryStore) UpsertBookings(ctx context.Context, rows []Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	processed := 0
	for _, row := range rows {
		if strings.TrimSpace(row.BookingNumber) == "" {
			continue
		}
		s.rows[row.BookingNumber] = row
		processed++
	}
	return processed, nil
}

func (s *InMemoryStore) GetBooking(ctx context.Context, bookingNumber string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[bookingNumber]
	if !ok {
		return Row{}, ErrNotFound
	}
	return row, nil
}

func (s *InMemoryStore) ListBookings(ctx context.Context, filter Filter) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Row
	for _, row := range s.rows {
		if !matchesFilter(row, filter) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].BookingNumber < out[j].BookingNumber
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesFilter(row Row, filter Filter) bool {
	if filter.From != "" && row.StartTime < filter.From {
		return false
	}
	if filter.To != "" && row.StartTime >= filter.To {
		return false
	}
	if filter.CustomerID != "" && row.CustomerID != filter.CustomerID {
		return false
	}
	if filter.ProductID != "" && row.ProductID != filter.ProductID {
		return false
	}
	if filter.Canceled != nil && row.Canceled != *filter.Canceled {
		return false
	}
	return true
}

func (s *InMemoryStore) LastSyncTime(ctx context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark, s.hasMark, nil
}

func (s *InMemoryStore) SetLastSyncTime(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermark = t.UTC()
	s.hasMark = true
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

// Count is a test helper.
func (s *InMemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
