package publish

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// DryRun logs what would be posted
type DryRun struct {
	logger *slog.Logger
}

// NewDryRun creates a publisher that posts nothing
func NewDryRun(logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{logger: logger}
}

// Name returns the publisher name
func (d *DryRun) Name() string {
	return "dryrun"
}

// Post logs the caption and returns a synthetic id
func (d *DryRun) Post(_ context.Context, img *model.Image, caption string) (string, error) {
	id := "dryrun-" + uuid.New().String()
	d.logger.Info("dry run publish",
		"id", id,
		"image", img.URL,
		"mime", img.MIMEType,
		"bytes", len(img.Data),
		"caption", caption,
	)
	return id, nil
}
