package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	postgresBookingsTable  = "bookings"
	postgresSyncStateTable = "sync_state"
	postgresSyncStateKey   = "default"
	postgresOpTimeout      = 30 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresStore persists bookings and the sync watermark in Postgres. The
// schema is created lazily on first use.
type PostgresStore struct {
	dsn    string
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}
	return &PostgresStore{dsn: dsn, openDB: sql.Open}, nil
}

func (s *PostgresStore) ensureReady() error {
	if s == nil {
		return ErrInvalidInput
	}
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.dsn)
		if err != nil {
			s.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOpTimeout)
		defer cancel()

		statements := []string{
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					booking_number TEXT PRIMARY KEY,
					event_id TEXT NOT NULL DEFAULT '',
					product_id TEXT NOT NULL DEFAULT '',
					product_name TEXT NOT NULL DEFAULT '',
					title TEXT NOT NULL DEFAULT '',
					start_time TEXT NOT NULL DEFAULT '',
					end_time TEXT NOT NULL DEFAULT '',
					customer_id TEXT NOT NULL DEFAULT '',
					customer_name TEXT NOT NULL DEFAULT '',
					customer_email TEXT NOT NULL DEFAULT '',
					customer_phone TEXT NOT NULL DEFAULT '',
					canceled BOOLEAN NOT NULL DEFAULT FALSE,
					accepted BOOLEAN NOT NULL DEFAULT TRUE,
					no_show BOOLEAN NOT NULL DEFAULT FALSE,
					private_event BOOLEAN NOT NULL DEFAULT FALSE,
					cancelation_time TEXT NOT NULL DEFAULT '',
					creation_time TEXT NOT NULL DEFAULT '',
					creation_agent TEXT NOT NULL DEFAULT '',
					last_change_time TEXT NOT NULL DEFAULT '',
					last_change_agent TEXT NOT NULL DEFAULT '',
					source_ip TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL DEFAULT '',
					external_ref TEXT NOT NULL DEFAULT '',
					resources TEXT NOT NULL DEFAULT '',
					options TEXT NOT NULL DEFAULT '',
					total_participants INTEGER NOT NULL DEFAULT 0,
					total_gross TEXT NOT NULL DEFAULT '',
					total_net TEXT NOT NULL DEFAULT '',
					total_paid TEXT NOT NULL DEFAULT '',
					currency TEXT NOT NULL DEFAULT '',
					raw_json TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`, postgresBookingsTable),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS bookings_start_time_idx ON %s (start_time)", postgresBookingsTable),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS bookings_customer_id_idx ON %s (customer_id)", postgresBookingsTable),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS bookings_product_id_idx ON %s (product_id)", postgresBookingsTable),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS bookings_canceled_idx ON %s (canceled)", postgresBookingsTable),
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					state_key TEXT PRIMARY KEY,
					last_sync_time TIMESTAMPTZ NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`, postgresSyncStateTable),
		}
		for _, statement := range statements {
			if _, err := db.ExecContext(ctx, statement); err != nil {
				_ = db.Close()
				s.initErr = err
				return
			}
		}
		s.db = db
	})
	return s.initErr
}

var bookingColumns = []string{
	"event_id", "product_id", "product_name", "title",
	"start_time", "end_time",
	"customer_id", "customer_name", "customer_email", "customer_phone",
	"canceled", "accepted", "no_show", "private_event",
	"cancelation_time", "creation_time", "creation_agent",
	"last_change_time", "last_change_agent",
	"source_ip", "source", "external_ref", "resources", "options",
	"total_participants", "total_gross", "total_net", "total_paid", "currency",
	"raw_json",
}

func bookingValues(row Row) []any {
	return []any{
		row.EventID, row.ProductID, row.ProductName, row.Title,
		row.StartTime, row.EndTime,
		row.CustomerID, row.CustomerName, row.CustomerEmail, row.CustomerPhone,
		row.Canceled, row.Accepted, row.NoShow, row.PrivateEvent,
		row.CancelationTime, row.CreationTime, row.CreationAgent,
		row.LastChangeTime, row.LastChangeAgent,
		row.SourceIP, row.Source, row.ExternalRef, row.Resources, row.Options,
		row.TotalParticipants, row.TotalGross, row.TotalNet, row.TotalPaid, row.Currency,
		row.RawJSON,
	}
}

// UpsertBookings applies the batch in one transaction. Each row is an
// UPDATE by booking_number followed by an INSERT when nothing matched; the
// two-step form keeps identity decisions in this layer instead of a
// database-specific upsert primitive. A failure rolls the whole batch
// back, which is safe to retry wholesale.
func (s *PostgresStore) UpsertBookings(ctx context.Context, rows []Row) (int, error) {
	if err := s.ensureReady(); err != nil {
		return 0, fmt.Errorf("bookings store unavailable: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	setClauses := make([]string, 0, len(bookingColumns))
	for i, column := range bookingColumns {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, i+1))
	}
	updateQuery := fmt.Sprintf(
		"UPDATE %s SET %s, updated_at = NOW() WHERE booking_number = $%d",
		postgresBookingsTable, strings.Join(setClauses, ", "), len(bookingColumns)+1,
	)

	placeholders := make([]string, 0, len(bookingColumns)+1)
	for i := 0; i < len(bookingColumns)+1; i++ {
		placeholders = append(placeholders, "$"+strconv.Itoa(i+1))
	}
	insertQuery := fmt.Sprintf(
		"INSERT INTO %s (booking_number, %s) VALUES (%s)",
		postgresBookingsTable, strings.Join(bookingColumns, ", "), strings.Join(placeholders, ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	processed := 0
	for _, row := range rows {
		if strings.TrimSpace(row.BookingNumber) == "" {
			continue
		}
		values := bookingValues(row)
		result, err := tx.ExecContext(ctx, updateQuery, append(values, row.BookingNumber)...)
		if err != nil {
			return 0, fmt.Errorf("update booking %s: %w", row.BookingNumber, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("update booking %s: %w", row.BookingNumber, err)
		}
		if affected == 0 {
			insertValues := append([]any{row.BookingNumber}, values...)
			if _, err := tx.ExecContext(ctx, insertQuery, insertValues...); err != nil {
				return 0, fmt.Errorf("insert booking %s: %w", row.BookingNumber, err)
			}
		}
		processed++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert batch: %w", err)
	}
	committed = true
	return processed, nil
}

func (s *PostgresStore) GetBooking(ctx context.Context, bookingNumber string) (Row, error) {
	if err := s.ensureReady(); err != nil {
		return Row{}, fmt.Errorf("bookings store unavailable: %w", err)
	}
	query := fmt.Sprintf(
		"SELECT booking_number, %s FROM %s WHERE booking_number = $1",
		strings.Join(bookingColumns, ", "), postgresBookingsTable,
	)
	row, err := scanBookingRow(s.db.QueryRowContext(ctx, query, bookingNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return row, nil
}

func (s *PostgresStore) ListBookings(ctx context.Context, filter Filter) ([]Row, error) {
	if err := s.ensureReady(); err != nil {
		return nil, fmt.Errorf("bookings store unavailable: %w", err)
	}
	var conditions []string
	var args []any
	addCondition := func(expr string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}
	if filter.From != "" {
		addCondition("start_time >= $%d", filter.From)
	}
	if filter.To != "" {
		addCondition("start_time < $%d", filter.To)
	}
	if filter.CustomerID != "" {
		addCondition("customer_id = $%d", filter.CustomerID)
	}
	if filter.ProductID != "" {
		addCondition("product_id = $%d", filter.ProductID)
	}
	if filter.Canceled != nil {
		addCondition("canceled = $%d", *filter.Canceled)
	}

	query := fmt.Sprintf(
		"SELECT booking_number, %s FROM %s",
		strings.Join(bookingColumns, ", "), postgresBookingsTable,
	)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC, booking_number ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, scanErr := scanBookingRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookingRow(scanner rowScanner) (Row, error) {
	var row Row
	err := scanner.Scan(
		&row.BookingNumber,
		&row.EventID, &row.ProductID, &row.ProductName, &row.Title,
		&row.StartTime, &row.EndTime,
		&row.CustomerID, &row.CustomerName, &row.CustomerEmail, &row.CustomerPhone,
		&row.Canceled, &row.Accepted, &row.NoShow, &row.PrivateEvent,
		&row.CancelationTime, &row.CreationTime, &row.CreationAgent,
		&row.LastChangeTime, &row.LastChangeAgent,
		&row.SourceIP, &row.Source, &row.ExternalRef, &row.Resources, &row.Options,
		&row.TotalParticipants, &row.TotalGross, &row.TotalNet, &row.TotalPaid, &row.Currency,
		&row.RawJSON,
	)
	return row, err
}

func (s *PostgresStore) LastSyncTime(ctx context.Context) (time.Time, bool, error) {
	if err := s.ensureReady(); err != nil {
		return time.Time{}, false, fmt.Errorf("sync state unavailable: %w", err)
	}
	query := fmt.Sprintf("SELECT last_sync_time FROM %s WHERE state_key = $1", postgresSyncStateTable)
	var mark time.Time
	err := s.db.QueryRowContext(ctx, query, postgresSyncStateKey).Scan(&mark)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return mark.UTC(), true, nil
}

func (s *PostgresStore) SetLastSyncTime(ctx context.Context, t time.Time) error {
	if err := s.ensureReady(); err != nil {
		return fmt.Errorf("sync state unavailable: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (state_key, last_sync_time, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (state_key)
		DO UPDATE SET last_sync_time = EXCLUDED.last_sync_time, updated_at = NOW()`, postgresSyncStateTable)
	_, err := s.db.ExecContext(ctx, query, postgresSyncStateKey, t.UTC())
	return err
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
