package store

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildStoreFromDSN selects a store backend by DSN scheme: postgres:// (or
// postgresql://) for the durable store, memory:// for tests and local
// development.
func BuildStoreFromDSN(dsn string) (BookingStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	switch scheme {
	case "memory", "mem", "inmem":
		return NewInMemoryStore(), nil
	case "postgres", "postgresql":
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported store scheme: %s", scheme)
	}
}
