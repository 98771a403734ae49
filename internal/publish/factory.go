package publish

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// New creates the publisher named by cfg.Publisher.Backend
func New(cfg *model.Config, httpClient *http.Client, logger *slog.Logger) (Publisher, error) {
	switch strings.ToLower(cfg.Publisher.Backend) {
	case "twitter", "":
		tc := cfg.History.Twitter
		return NewTwitter(TwitterConfig{
			ClientID:     tc.ClientID,
			ClientSecret: tc.ClientSecret,
			AccessToken:  tc.AccessToken,
			RefreshToken: tc.RefreshToken,
			BaseURL:      tc.BaseURL,
			UploadURL:    tc.UploadURL,
		}, httpClient)
	case "telegram":
		return NewTelegram(cfg.Publisher.Telegram, httpClient)
	case "dryrun":
		return NewDryRun(logger), nil
	default:
		return nil, fmt.Errorf("unknown publisher backend: %s (supported: twitter, telegram, dryrun)", cfg.Publisher.Backend)
	}
}
