// bookingsync-webhooks manages the Bookeo webhook subscriptions that feed
// the push path of the service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/corkandcandles/bookingsync/internal/bookeo"
)

type Cfg struct {
	BookeoAPIKey    string `envconfig:"BOOKEO_API_KEY" required:"true"`
	BookeoSecretKey string `envconfig:"BOOKEO_SECRET_KEY" required:"true"`
	BookeoBaseURL   string `envconfig:"BOOKEO_BASE_URL" default:"https://api.bookeo.com/v2"`
	WebhookURL      string `envconfig:"BOOKINGSYNC_WEBHOOK_URL"`
}

func main() {
	action := flag.String("action", "list", "action: register, list, or delete")
	webhookURL := flag.String("url", "", "webhook URL to register (overrides BOOKINGSYNC_WEBHOOK_URL)")
	webhookID := flag.String("id", "", "webhook id to delete")
	domain := flag.String("domain", "bookings", "webhook domain")
	flag.Parse()

	_ = godotenv.Load()

	var cfg Cfg
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if *webhookURL != "" {
		cfg.WebhookURL = *webhookURL
	}

	client := bookeo.NewClient(bookeo.ClientOptions{
		BaseURL:   cfg.BookeoBaseURL,
		APIKey:    cfg.BookeoAPIKey,
		SecretKey: cfg.BookeoSecretKey,
	})
	ctx := context.Background()

	switch *action {
	case "register":
		runRegister(ctx, client, cfg.WebhookURL, *domain)
	case "list":
		runList(ctx, client)
	case "delete":
		if *webhookID == "" {
			log.Fatal("delete requires -id")
		}
		if err := client.DeleteWebhook(ctx, *webhookID); err != nil {
			log.Fatalf("delete webhook %s: %v", *webhookID, err)
		}
		fmt.Printf("deleted webhook %s\n", *webhookID)
	default:
		log.Fatalf("unknown action %q (want register, list, or delete)", *action)
	}
}

// runRegister subscribes the URL to both created and updated booking
// events. Bookeo only delivers to HTTPS endpoints, so anything else is
// rejected up front.
func runRegister(ctx context.Context, client *bookeo.Client, webhookURL, domain string) {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		log.Fatal("register requires -url or BOOKINGSYNC_WEBHOOK_URL")
	}
	if !strings.HasPrefix(webhookURL, "https://") {
		log.Fatalf("webhook URL must use https, got %q", webhookURL)
	}
	for _, eventType := range []string{"created", "updated"} {
		hook, err := client.RegisterWebhook(ctx, webhookURL, domain, eventType)
		var apiErr *bookeo.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 409 {
			fmt.Printf("%s/%s already registered for %s\n", domain, eventType, webhookURL)
			continue
		}
		if err != nil {
			log.Fatalf("register %s/%s: %v", domain, eventType, err)
		}
		fmt.Printf("registered %s/%s id=%s\n", domain, eventType, hook.ID)
	}
}

func runList(ctx context.Context, client *bookeo.Client) {
	hooks, err := client.ListWebhooks(ctx)
	if err != nil {
		log.Fatalf("list webhooks: %v", err)
	}
	if len(hooks) == 0 {
		fmt.Println("no webhooks registered")
		return
	}
	for _, hook := range hooks {
		fmt.Printf("%s  %s/%s  %s\n", hook.ID, hook.Domain, hook.Type, hook.URL)
	}
}
