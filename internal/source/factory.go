package source

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/worker"
)

// New creates the content source named by cfg.Source.Backend
func New(cfg *model.Config, httpClient *http.Client, limiter *worker.Limiter, logger *slog.Logger) (ContentSource, error) {
	switch strings.ToLower(cfg.Source.Backend) {
	case "reddit", "":
		rc := cfg.Source.Reddit
		if rc.UserAgent == "" {
			rc.UserAgent = cfg.HTTP.UserAgent
		}
		return NewReddit(rc, httpClient, limiter, logger), nil
	case "rss":
		if !strings.Contains(cfg.Source.RSS.FeedURLTemplate, "%s") {
			return nil, fmt.Errorf("rss feed template must contain %%s: %q", cfg.Source.RSS.FeedURLTemplate)
		}
		return NewRSS(cfg.Source.RSS, httpClient, limiter, cfg.HTTP.UserAgent, logger), nil
	default:
		return nil, fmt.Errorf("unknown source backend: %s (supported: reddit, rss)", cfg.Source.Backend)
	}
}
