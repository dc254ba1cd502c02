package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Row is the flat destination shape of one booking. Timestamp columns are
// strings on purpose: the mapper normalizes them to "2006-01-02 15:04:05"
// UTC when it can and passes a literal prefix through when it cannot, and
// the store never re-interprets either. BookingNumber is the sole identity
// of a row.
type Row struct {
	BookingNumber     string `json:"bookingNumber"`
	EventID           string `json:"eventId,omitempty"`
	ProductID         string `json:"productId,omitempty"`
	ProductName       string `json:"productName,omitempty"`
	Title             string `json:"title,omitempty"`
	StartTime         string `json:"startTime,omitempty"`
	EndTime           string `json:"endTime,omitempty"`
	CustomerID        string `json:"customerId,omitempty"`
	CustomerName      string `json:"customerName,omitempty"`
	CustomerEmail     string `json:"customerEmail,omitempty"`
	CustomerPhone     string `json:"customerPhone,omitempty"`
	Canceled          bool   `json:"canceled"`
	Accepted          bool   `json:"accepted"`
	NoShow            bool   `json:"noShow"`
	PrivateEvent      bool   `json:"privateEvent"`
	CancelationTime   string `json:"cancelationTime,omitempty"`
	CreationTime      string `json:"creationTime,omitempty"`
	CreationAgent     string `json:"creationAgent,omitempty"`
	LastChangeTime    string `json:"lastChangeTime,omitempty"`
	LastChangeAgent   string `json:"lastChangeAgent,omitempty"`
	SourceIP          string `json:"sourceIp,omitempty"`
	Source            string `json:"source,omitempty"`
	ExternalRef       string `json:"externalRef,omitempty"`
	Resources         string `json:"resources,omitempty"`
	Options           string `json:"options,omitempty"`
	TotalParticipants int    `json:"totalParticipants"`
	TotalGross        string `json:"totalGross,omitempty"`
	TotalNet          string `json:"totalNet,omitempty"`
	TotalPaid         string `json:"totalPaid,omitempty"`
	Currency          string `json:"currency,omitempty"`
	RawJSON           string `json:"-"`
}

// Filter selects bookings for the query endpoints and the exporter. From
// and To compare against the normalized start_time column, which sorts
// lexicographically in time order.
type Filter struct {
	From       string
	To         string
	CustomerID string
	ProductID  string
	Canceled   *bool
	Limit      int
}

// BookingStore is the destination store: an idempotent upsert sink keyed
// by booking number plus the single sync watermark record.
type BookingStore interface {
	// UpsertBookings applies the batch with update-then-insert semantics
	// per row and returns the number of rows processed. Re-applying the
	// same batch leaves the store unchanged.
	UpsertBookings(ctx context.Context, rows []Row) (int, error)
	GetBooking(ctx context.Context, bookingNumber string) (Row, error)
	ListBookings(ctx context.Context, filter Filter) ([]Row, error)

	// LastSyncTime returns the watermark, with false when no sync has
	// completed yet.
	LastSyncTime(ctx context.Context) (time.Time, bool, error)
	SetLastSyncTime(ctx context.Context, t time.Time) error

	Close() error
}
