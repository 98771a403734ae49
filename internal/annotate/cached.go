package annotate

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielorf/ArtCaptionBot/internal/cache"
	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// Cached memoizes usable annotations by provider and image URL.
// Failures are never cached so a transient outage does not stick.
type Cached struct {
	next   Annotator
	store  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps next with store
func NewCached(next Annotator, store cache.Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, store: store, ttl: ttl, logger: logger}
}

// Name returns the wrapped provider's name
func (c *Cached) Name() string {
	return c.next.Name()
}

// Annotate returns the cached annotation for imageURL or calls the provider
func (c *Cached) Annotate(ctx context.Context, imageURL string) (model.Annotation, error) {
	key := cache.Key("annotation", c.next.Name(), imageURL)

	var ann model.Annotation
	if cache.GetJSON(c.store, key, &ann) && ann.Usable() && ann.CaptionText != "" {
		c.logger.Debug("annotation cache hit", "url", imageURL)
		return ann, nil
	}

	ann, err := c.next.Annotate(ctx, imageURL)
	if err != nil || !ann.Usable() {
		return ann, err
	}

	if err := cache.SetJSON(c.store, key, ann, c.ttl); err != nil {
		c.logger.Warn("annotation cache write failed", "url", imageURL, "error", err)
	}
	return ann, nil
}
