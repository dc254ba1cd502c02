package bookeo

import (
	"context"
	"net/http"
	"net/url"
)

type webhookRequest struct {
	Domain string `json:"domain"`
	Type   string `json:"type"`
	URL    string `json:"url"`
}

type webhookList struct {
	Data []Webhook `json:"data"`
}

// RegisterWebhook subscribes the given URL to push notifications for one
// event type in a domain (e.g. domain "bookings", type "created" or
// "updated"). An already-registered subscription surfaces as an *APIError
// with status 409.
func (c *Client) RegisterWebhook(ctx context.Context, webhookURL, domain, eventType string) (Webhook, error) {
	var out Webhook
	err := c.doJSON(ctx, http.MethodPost, "/webhooks", url.Values{}, webhookRequest{
		Domain: domain,
		Type:   eventType,
		URL:    webhookURL,
	}, &out)
	return out, err
}

// ListWebhooks returns the webhooks registered for the API key.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var out webhookList
	if err := c.doJSON(ctx, http.MethodGet, "/webhooks", url.Values{}, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/webhooks/"+url.PathEscape(id), url.Values{}, nil, nil)
}
