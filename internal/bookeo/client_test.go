package bookeo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testWindow() Window {
	return Window{
		Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestGetBookingsWalksPagination(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		if r.URL.Query().Get("apiKey") != "key" || r.URL.Query().Get("secretKey") != "secret" {
			t.Errorf("missing credentials in query: %s", r.URL.RawQuery)
		}
		page := 1
		if raw := r.URL.Query().Get("pageNumber"); raw != "" {
			fmt.Sscanf(raw, "%d", &page)
		}
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case 1:
			fmt.Fprint(w, `{"data":[{"bookingNumber":"B-1"},{"bookingNumber":"B-2"}],"info":{"totalItems":3,"totalPages":2,"currentPage":1,"pageNavigationToken":"tok"}}`)
		case 2:
			if r.URL.Query().Get("pageNavigationToken") != "tok" {
				t.Errorf("page 2 missing navigation token: %s", r.URL.RawQuery)
			}
			fmt.Fprint(w, `{"data":[{"bookingNumber":"B-3"}],"info":{"totalItems":3,"totalPages":2,"currentPage":2,"pageNavigationToken":"tok"}}`)
		default:
			t.Errorf("unexpected page %d", page)
		}
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, APIKey: "key", SecretKey: "secret"})
	bookings, err := client.GetBookings(context.Background(), testWindow(), FetchOptions{})
	if err != nil {
		t.Fatalf("GetBookings: %v", err)
	}
	if len(bookings) != 3 {
		t.Fatalf("expected 3 bookings, got %d", len(bookings))
	}
	if bookings[2].BookingNumber != "B-3" {
		t.Fatalf("unexpected last booking %q", bookings[2].BookingNumber)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	for _, b := range bookings {
		if len(b.Raw) == 0 {
			t.Fatalf("booking %s missing raw payload", b.BookingNumber)
		}
	}
}

func TestGetBookingsStopsWithoutNavigationToken(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"data":[{"bookingNumber":"B-1"}],"info":{"totalItems":1,"totalPages":1,"currentPage":1}}`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, APIKey: "key", SecretKey: "secret"})
	bookings, err := client.GetBookings(context.Background(), testWindow(), FetchOptions{})
	if err != nil {
		t.Fatalf("GetBookings: %v", err)
	}
	if len(bookings) != 1 || calls != 1 {
		t.Fatalf("bookings=%d calls=%d, want 1 and 1", len(bookings), calls)
	}
}

func TestGetBookingsStopsOnEmptyPage(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Inconsistent metadata: token present and more pages claimed, but
		// no data. The empty page check must still terminate the walk.
		fmt.Fprint(w, `{"data":[],"info":{"totalItems":10,"totalPages":5,"currentPage":1,"pageNavigationToken":"tok"}}`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, APIKey: "key", SecretKey: "secret"})
	bookings, err := client.GetBookings(context.Background(), testWindow(), FetchOptions{})
	if err != nil {
		t.Fatalf("GetBookings: %v", err)
	}
	if len(bookings) != 0 || calls != 1 {
		t.Fatalf("bookings=%d calls=%d, want 0 and 1", len(bookings), calls)
	}
}

func TestGetBookingsStopsAtTotalPages(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"data":[{"bookingNumber":"B-1"}],"info":{"totalItems":1,"totalPages":1,"currentPage":1,"pageNavigationToken":"tok"}}`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, APIKey: "key", SecretKey: "secret"})
	if _, err := client.GetBookings(context.Background(), testWindow(), FetchOptions{}); err != nil {
		t.Fatalf("GetBookings: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestGetBookingsSendsWindowAndFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("startTime") == "" || q.Get("endTime") == "" {
			t.Errorf("missing window params: %s", r.URL.RawQuery)
		}
		if q.Get("includeCanceled") != "true" {
			t.Errorf("includeCanceled=%q, want true", q.Get("includeCanceled"))
		}
		if q.Get("productId") != "P-9" {
			t.Errorf("productId=%q, want P-9", q.Get("productId"))
		}
		if q.Get("itemsPerPage") != "50" {
			t.Errorf("itemsPerPage=%q, want 50", q.Get("itemsPerPage"))
		}
		fmt.Fprint(w, `{"data":[],"info":{}}`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, APIKey: "key", SecretKey: "secret", PageSize: 50})
	_, err := client.GetBookings(context.Background(), testWindow(), FetchOptions{IncludeCanceled: true, ProductID: "P-9"})
	if err != nil {
		t.Fatalf("GetBookings: %v", err)
	}
}

func TestGetBookingsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"invalid API key"}`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, APIKey: "bad", SecretKey: "bad"})
	_, err := client.GetBookings(context.Background(), testWindow(), FetchOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", apiErr.StatusCode)
	}
	if apiErr.Message != "invalid API key" {
		t.Fatalf("message=%q", apiErr.Message)
	}
}

func TestGetBookingsMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": not json`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, APIKey: "key", SecretKey: "secret"})
	_, err := client.GetBookings(context.Background(), testWindow(), FetchOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError for malformed body, got %v", err)
	}
}

func TestRegisterWebhookConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method=%s, want POST", r.Method)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["domain"] != "bookings" || req["type"] != "created" {
			t.Errorf("unexpected request %v", req)
		}
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"webhook already exists"}`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, APIKey: "key", SecretKey: "secret"})
	_, err := client.RegisterWebhook(context.Background(), "https://example.com/hook", "bookings", "created")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 APIError, got %v", err)
	}
}
