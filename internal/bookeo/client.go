package bookeo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxItemsPerPage is the upstream cap on itemsPerPage.
	MaxItemsPerPage = 100

	timeParamLayout = "2006-01-02T15:04:05Z"
)

// APIError is returned for any non-2xx response and for responses whose
// body cannot be decoded. The orchestrator decides whether to retry.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bookeo api: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("bookeo api: status=%d", e.StatusCode)
}

type ClientOptions struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	HTTPClient *http.Client
	PageSize   int
}

type Client struct {
	baseURL    string
	apiKey     string
	secretKey  string
	httpClient *http.Client
	pageSize   int
}

func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.bookeo.com/v2"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > MaxItemsPerPage {
		pageSize = MaxItemsPerPage
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		secretKey:  strings.TrimSpace(opts.SecretKey),
		httpClient: httpClient,
		pageSize:   pageSize,
	}
}

// FetchOptions narrows a bookings query within one window.
type FetchOptions struct {
	IncludeCanceled    bool
	ProductID          string
	ExpandCustomer     bool
	ExpandParticipants bool
}

type pageInfo struct {
	TotalItems          int    `json:"totalItems"`
	TotalPages          int    `json:"totalPages"`
	CurrentPage         int    `json:"currentPage"`
	PageNavigationToken string `json:"pageNavigationToken"`
}

type bookingsPage struct {
	Data []json.RawMessage `json:"data"`
	Info pageInfo          `json:"info"`
}

// GetBookings retrieves every booking in the window, walking pagination
// until the upstream signals the end: a missing navigation token, an empty
// page, or currentPage reaching totalPages, whichever comes first. The
// double-check guards against inconsistent pagination metadata.
func (c *Client) GetBookings(ctx context.Context, window Window, opts FetchOptions) ([]Booking, error) {
	params := url.Values{}
	params.Set("startTime", window.Start.UTC().Format(timeParamLayout))
	params.Set("endTime", window.End.UTC().Format(timeParamLayout))
	params.Set("includeCanceled", strconv.FormatBool(opts.IncludeCanceled))
	params.Set("expandCustomer", strconv.FormatBool(opts.ExpandCustomer))
	params.Set("expandParticipants", strconv.FormatBool(opts.ExpandParticipants))
	params.Set("itemsPerPage", strconv.Itoa(c.pageSize))
	if strings.TrimSpace(opts.ProductID) != "" {
		params.Set("productId", strings.TrimSpace(opts.ProductID))
	}

	var bookings []Booking
	pageToken := ""
	pageNumber := 1
	for {
		if pageToken != "" {
			params.Set("pageNavigationToken", pageToken)
			params.Set("pageNumber", strconv.Itoa(pageNumber))
		} else {
			params.Del("pageNavigationToken")
			params.Del("pageNumber")
		}

		var page bookingsPage
		if err := c.doJSON(ctx, http.MethodGet, "/bookings", params, nil, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Data {
			var b Booking
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, &APIError{StatusCode: http.StatusOK, Message: "malformed booking record", Body: string(raw)}
			}
			b.Raw = raw
			bookings = append(bookings, b)
		}

		pageToken = page.Info.PageNavigationToken
		if pageToken == "" || len(page.Data) == 0 || page.Info.CurrentPage >= page.Info.TotalPages {
			break
		}
		pageNumber++
	}
	return bookings, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	query := url.Values{}
	for key, values := range params {
		query[key] = values
	}
	query.Set("apiKey", c.apiKey)
	query.Set("secretKey", c.secretKey)

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = strings.NewReader(string(payload))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := strings.TrimSpace(string(payload))
		var parsed map[string]any
		if json.Unmarshal(payload, &parsed) == nil {
			if m, ok := parsed["message"].(string); ok && strings.TrimSpace(m) != "" {
				message = m
			} else if m, ok := parsed["error"].(string); ok && strings.TrimSpace(m) != "" {
				message = m
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message, Body: string(payload)}
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "malformed response body", Body: string(payload)}
	}
	return nil
}
