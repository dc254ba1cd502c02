package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/corkandcandles/bookingsync/internal/bookeo"
	"github.com/corkandcandles/bookingsync/internal/httpapi"
	"github.com/corkandcandles/bookingsync/internal/store"
	"github.com/corkandcandles/bookingsync/internal/syncer"
)

type Cfg struct {
	HTTPAddr string `envconfig:"BOOKINGSYNC_ADDR" default:":8080"`

	StoreDSN string `envconfig:"BOOKINGSYNC_STORE_DSN" default:"memory://"`
	QueueDSN string `envconfig:"BOOKINGSYNC_QUEUE_DSN" default:"memory://"`

	BookeoAPIKey    string `envconfig:"BOOKEO_API_KEY" required:"true"`
	BookeoSecretKey string `envconfig:"BOOKEO_SECRET_KEY" required:"true"`
	BookeoBaseURL   string `envconfig:"BOOKEO_BASE_URL" default:"https://api.bookeo.com/v2"`
	PageSize        int    `envconfig:"BOOKEO_PAGE_SIZE" default:"100"`

	WebhookURL         string        `envconfig:"BOOKINGSYNC_WEBHOOK_URL"`
	WebhookSecret      string        `envconfig:"BOOKINGSYNC_WEBHOOK_SECRET"`
	SignatureTolerance time.Duration `envconfig:"BOOKINGSYNC_SIGNATURE_TOLERANCE" default:"120s"`
	AdminToken         string        `envconfig:"BOOKINGSYNC_ADMIN_TOKEN"`
	MaxBodyBytes       int64         `envconfig:"BOOKINGSYNC_MAX_BODY_BYTES" default:"1048576"`

	HistoricalStart string        `envconfig:"BOOKINGSYNC_HISTORICAL_START"`
	FutureDays      int           `envconfig:"BOOKINGSYNC_FUTURE_DAYS" default:"90"`
	MaxWindowDays   int           `envconfig:"BOOKINGSYNC_MAX_WINDOW_DAYS" default:"31"`
	IncludeCanceled bool          `envconfig:"BOOKINGSYNC_INCLUDE_CANCELED" default:"true"`
	ProductID       string        `envconfig:"BOOKINGSYNC_PRODUCT_ID"`
	WindowRetries   int           `envconfig:"BOOKINGSYNC_WINDOW_RETRIES" default:"0"`
	SyncInterval    time.Duration `envconfig:"BOOKINGSYNC_SYNC_INTERVAL" default:"15m"`
	SyncJitter      time.Duration `envconfig:"BOOKINGSYNC_SYNC_JITTER" default:"30s"`
	QueueCapacity   int           `envconfig:"BOOKINGSYNC_QUEUE_CAPACITY" default:"64"`
}

func main() {
	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	var cfg Cfg
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	bookingStore, err := store.BuildStoreFromDSN(cfg.StoreDSN)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer bookingStore.Close()

	queue, err := syncer.BuildRefreshQueueFromDSN(cfg.QueueDSN, cfg.QueueCapacity)
	if err != nil {
		log.Fatalf("refresh queue: %v", err)
	}
	defer queue.Close()

	client := bookeo.NewClient(bookeo.ClientOptions{
		BaseURL:   cfg.BookeoBaseURL,
		APIKey:    cfg.BookeoAPIKey,
		SecretKey: cfg.BookeoSecretKey,
		PageSize:  cfg.PageSize,
	})

	var historicalStart time.Time
	if cfg.HistoricalStart != "" {
		historicalStart, err = time.Parse(time.RFC3339, cfg.HistoricalStart)
		if err != nil {
			log.Fatalf("invalid BOOKINGSYNC_HISTORICAL_START %q: %v", cfg.HistoricalStart, err)
		}
	}

	hub := httpapi.NewStatusHub()
	engine, err := syncer.New(syncer.Options{
		Store:           bookingStore,
		Fetcher:         client,
		HistoricalStart: historicalStart,
		FutureDays:      cfg.FutureDays,
		MaxWindowDays:   cfg.MaxWindowDays,
		IncludeCanceled: cfg.IncludeCanceled,
		ProductID:       cfg.ProductID,
		WindowRetries:   cfg.WindowRetries,
		Logger:          log.Default(),
		Progress:        hub.Publish,
	})
	if err != nil {
		log.Fatalf("syncer: %v", err)
	}

	server, err := httpapi.NewServer(bookingStore, queue, hub, httpapi.ServerConfig{
		WebhookSecret:      cfg.WebhookSecret,
		WebhookURL:         cfg.WebhookURL,
		SignatureTolerance: cfg.SignatureTolerance,
		AdminToken:         cfg.AdminToken,
		MaxBodyBytes:       cfg.MaxBodyBytes,
	})
	if err != nil {
		log.Fatalf("http server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go syncer.RunRefreshWorker(ctx, queue, engine, log.Default())
	go runScheduler(ctx, engine, cfg.SyncInterval, cfg.SyncJitter)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("bookingsync listening on %s (store=%s queue=%s)", cfg.HTTPAddr, cfg.StoreDSN, cfg.QueueDSN)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

// runScheduler runs incremental passes on a fixed interval with a small
// random jitter so multiple replicas do not hit the upstream in lockstep.
func runScheduler(ctx context.Context, engine *syncer.Syncer, interval, jitter time.Duration) {
	if interval <= 0 {
		return
	}
	for {
		wait := interval
		if jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(jitter)))
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if _, err := engine.RunIncremental(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("scheduled sync failed: %v", err)
		}
	}
}
