package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

type runInfoKey struct{}

// RunInfo is request-scoped metadata attached to publications
type RunInfo struct {
	RunID      string
	Annotation *model.Annotation
}

// WithRunInfo returns ctx carrying info for the publications made under it
func WithRunInfo(ctx context.Context, info RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}

func runInfoFrom(ctx context.Context) RunInfo {
	info, _ := ctx.Value(runInfoKey{}).(RunInfo)
	return info
}

// Adapter downloads the item's image, posts it and records the publication
type Adapter struct {
	images    ImageFetcher
	publisher Publisher
	recorders []Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewAdapter wires a publisher with its image fetcher and recorders
func NewAdapter(publisher Publisher, images ImageFetcher, logger *slog.Logger, recorders ...Recorder) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		images:    images,
		publisher: publisher,
		recorders: recorders,
		logger:    logger.With("component", "publish", "publisher", publisher.Name()),
		now:       time.Now,
	}
}

// Name returns the underlying publisher name
func (a *Adapter) Name() string {
	return a.publisher.Name()
}

// Publish posts item's image with caption. Any failure, including the image
// download, is returned as a *PublishFailedError. Recorder failures are
// logged and do not fail the publish.
func (a *Adapter) Publish(ctx context.Context, item model.ContentItem, caption string) (*model.Publication, error) {
	img, err := a.images.Fetch(ctx, item.URL)
	if err != nil {
		return nil, &PublishFailedError{Publisher: a.publisher.Name(), ItemID: item.ID, Err: err}
	}

	id, err := a.publisher.Post(ctx, img, caption)
	if err != nil {
		return nil, &PublishFailedError{Publisher: a.publisher.Name(), ItemID: item.ID, Err: err}
	}

	info := runInfoFrom(ctx)
	pub := &model.Publication{
		ID:          id,
		ItemID:      item.ID,
		ImageURL:    item.URL,
		Caption:     caption,
		Permalink:   item.Permalink,
		Category:    item.Category,
		Publisher:   a.publisher.Name(),
		PublishedAt: a.now().UTC(),
		RunID:       info.RunID,
		Annotation:  info.Annotation,
	}

	for _, rec := range a.recorders {
		if err := rec.Record(ctx, pub); err != nil {
			a.logger.Warn("recorder failed", "recorder", rec.Name(), "publication", pub.ID, "error", err)
			continue
		}
		a.logger.Debug("publication recorded", "recorder", rec.Name(), "publication", pub.ID)
	}

	return pub, nil
}
