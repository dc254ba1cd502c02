package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corkandcandles/bookingsync/internal/bookeo"
	"github.com/corkandcandles/bookingsync/internal/store"
	"github.com/corkandcandles/bookingsync/internal/syncer"
)

type ServerConfig struct {
	// WebhookSecret and WebhookURL must match what was registered with
	// Bookeo; the URL participates byte-for-byte in the signature.
	WebhookSecret      string
	WebhookURL         string
	SignatureTolerance time.Duration

	AdminToken   string
	MaxBodyBytes int64
}

type Server struct {
	store     store.BookingStore
	queue     syncer.RefreshQueue
	hub       *StatusHub
	validator *webhookValidator
	cfg       ServerConfig
	now       func() time.Time
}

func NewServer(bookingStore store.BookingStore, queue syncer.RefreshQueue, hub *StatusHub, cfg ServerConfig) (*Server, error) {
	if bookingStore == nil {
		return nil, errors.New("store is required")
	}
	if cfg.SignatureTolerance <= 0 {
		cfg.SignatureTolerance = bookeo.DefaultSignatureTolerance
	}
	if cfg.AdminToken == "" {
		cfg.AdminToken = "dev-secret"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	validator, err := newWebhookValidator()
	if err != nil {
		return nil, err
	}
	return &Server{
		store:     bookingStore,
		queue:     queue,
		hub:       hub,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if r.URL.Path == "/webhooks/bookeo" && r.Method == http.MethodPost {
		s.handleBookeoWebhook(w, r)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	var route string
	switch {
	case len(parts) == 2 && parts[0] == "v1" && parts[1] == "bookings" && r.Method == http.MethodGet:
		route = "bookings_list"
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "bookings" && r.Method == http.MethodGet:
		route = "booking"
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "sync" && parts[2] == "status" && r.Method == http.MethodGet:
		route = "sync_status"
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "sync" && parts[2] == "refresh" && r.Method == http.MethodPost:
		route = "sync_refresh"
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "sync" && parts[2] == "stream" && r.Method == http.MethodGet:
		route = "sync_stream"
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", getCorrelationID(r))
		return
	}

	if !s.authorizeAdmin(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token", getCorrelationID(r))
		return
	}

	switch route {
	case "bookings_list":
		s.handleBookingsList(w, r)
	case "booking":
		s.handleBooking(w, r, parts[2])
	case "sync_status":
		s.handleSyncStatus(w, r)
	case "sync_refresh":
		s.handleSyncRefresh(w, r)
	case "sync_stream":
		s.handleSyncStream(w, r)
	}
}

// handleBookeoWebhook verifies and applies one push notification. The
// notification's own record is upserted inline and an incremental refresh
// is enqueued for the worker; the full fetch never runs in the response
// path, which has to finish well inside Bookeo's delivery deadline.
func (s *Server) handleBookeoWebhook(w http.ResponseWriter, r *http.Request) {
	correlationID := getCorrelationID(r)

	// Never verify against an empty key: an unset secret would let anyone
	// forge signatures. Deliveries are rejected until both are configured.
	if s.cfg.WebhookSecret == "" || s.cfg.WebhookURL == "" {
		writeError(w, http.StatusInternalServerError, "internal_error", "webhook verification not configured", correlationID)
		return
	}

	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return
	}

	verified := bookeo.VerifyWebhookSignature(
		body,
		r.Header.Get("X-Bookeo-Timestamp"),
		r.Header.Get("X-Bookeo-MessageId"),
		r.Header.Get("X-Bookeo-Signature"),
		s.cfg.WebhookURL,
		s.cfg.WebhookSecret,
		s.now(),
		s.cfg.SignatureTolerance,
	)
	if !verified {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid signature", correlationID)
		return
	}

	if err := s.validator.Validate(body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "payload failed schema validation", correlationID)
		return
	}

	var envelope struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Item) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "missing item in payload", correlationID)
		return
	}
	var booking bookeo.Booking
	if err := json.Unmarshal(envelope.Item, &booking); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed booking item", correlationID)
		return
	}
	booking.Raw = envelope.Item

	upserted := 0
	if row, mapped := syncer.MapBooking(booking); mapped {
		n, err := s.store.UpsertBookings(r.Context(), []store.Row{row})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to persist booking", correlationID)
			return
		}
		upserted = n
	}

	if s.queue != nil {
		// A full queue is fine: a pending request already covers this
		// notification's range.
		_ = s.queue.Enqueue(r.Context(), syncer.RefreshRequest{
			Reason:        "webhook",
			BookingNumber: strings.TrimSpace(booking.BookingNumber),
			CorrelationID: correlationID,
			RequestedAt:   s.now(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "upserted": upserted})
}

func (s *Server) handleBookingsList(w http.ResponseWriter, r *http.Request) {
	correlationID := getCorrelationID(r)
	query := r.URL.Query()
	filter := store.Filter{
		From:       strings.TrimSpace(query.Get("from")),
		To:         strings.TrimSpace(query.Get("to")),
		CustomerID: strings.TrimSpace(query.Get("customerId")),
		ProductID:  strings.TrimSpace(query.Get("productId")),
	}
	if raw := strings.TrimSpace(query.Get("canceled")); raw != "" {
		canceled, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid canceled parameter", correlationID)
			return
		}
		filter.Canceled = &canceled
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid limit parameter", correlationID)
			return
		}
		filter.Limit = limit
	}

	rows, err := s.store.ListBookings(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
		return
	}
	if rows == nil {
		rows = []store.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": rows, "count": len(rows)})
}

func (s *Server) handleBooking(w http.ResponseWriter, r *http.Request, bookingNumber string) {
	correlationID := getCorrelationID(r)
	row, err := s.store.GetBooking(r.Context(), bookingNumber)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "booking not found", correlationID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	correlationID := getCorrelationID(r)
	watermark, hasMark, err := s.store.LastSyncTime(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
		return
	}
	status := map[string]any{"synced": hasMark}
	if hasMark {
		status["lastSyncTime"] = watermark.Format(time.RFC3339)
	}
	if s.hub != nil {
		if last := s.hub.LastEvent(); last != nil {
			status["lastEvent"] = last
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSyncRefresh(w http.ResponseWriter, r *http.Request) {
	correlationID := getCorrelationID(r)
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "refresh queue not configured", correlationID)
		return
	}
	err := s.queue.Enqueue(r.Context(), syncer.RefreshRequest{
		Reason:        "manual",
		CorrelationID: correlationID,
		RequestedAt:   s.now(),
	})
	if errors.Is(err, syncer.ErrQueueFull) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "queue_full", "refresh already pending", correlationID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) authorizeAdmin(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) == 1
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request, correlationID string) ([]byte, bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body", correlationID)
		return nil, false
	}
	if int64(len(body)) > s.cfg.MaxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit", correlationID)
		return nil, false
	}
	return body, true
}

func getCorrelationID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Correlation-Id")); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	})
}
