package history

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// Recorder appends a publication to a ledger
type Recorder interface {
	Name() string
	Record(ctx context.Context, pub *model.Publication) error
}

// Backend is an opened history source and, for ledgers, the recorder that
// keeps it current
type Backend struct {
	Source   Source
	Recorder Recorder // nil for read-only backends
	closer   func() error
}

// Close releases backend connections
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// Open creates the history backend named by cfg.History.Backend
func Open(ctx context.Context, cfg *model.Config, httpClient *http.Client) (*Backend, error) {
	hc := cfg.History
	switch strings.ToLower(hc.Backend) {
	case "twitter", "":
		if hc.Twitter.BearerToken == "" {
			return nil, fmt.Errorf("twitter history requires a bearer token (set TWITTER_BEARER_TOKEN)")
		}
		return &Backend{Source: NewTwitter(hc.Twitter.BearerToken, hc.Twitter.BaseURL, httpClient)}, nil
	case "redis":
		ledger, err := NewRedisLedger(ctx, hc.Redis)
		if err != nil {
			return nil, err
		}
		return &Backend{Source: ledger, Recorder: ledger.RecordFor(hc.Actor), closer: ledger.Close}, nil
	case "postgres":
		if hc.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres history requires a dsn (set DATABASE_URL)")
		}
		ledger, err := NewPostgresLedger(ctx, hc.Postgres)
		if err != nil {
			return nil, err
		}
		if err := ledger.EnsureSchema(ctx); err != nil {
			_ = ledger.Close()
			return nil, err
		}
		return &Backend{Source: ledger, Recorder: ledger.RecordFor(hc.Actor), closer: ledger.Close}, nil
	case "none":
		return &Backend{Source: None{}}, nil
	default:
		return nil, fmt.Errorf("unknown history backend: %s (supported: twitter, redis, postgres, none)", hc.Backend)
	}
}
