package syncer

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildRefreshQueueFromDSN selects a refresh queue backend by scheme:
// memory:// for a single process, amqp:// (or amqps://) for RabbitMQ when
// the webhook receiver and the sync worker are separate deployments.
func BuildRefreshQueueFromDSN(dsn string, capacity int) (RefreshQueue, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewInMemoryRefreshQueue(capacity), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(parsed.Scheme)) {
	case "memory", "mem", "inmem":
		return NewInMemoryRefreshQueue(capacity), nil
	case "amqp", "amqps":
		return NewAMQPRefreshQueue(dsn)
	default:
		return nil, fmt.Errorf("unsupported refresh queue scheme: %s", parsed.Scheme)
	}
}
