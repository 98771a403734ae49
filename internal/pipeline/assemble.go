package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielorf/ArtCaptionBot/internal/annotate"
	"github.com/danielorf/ArtCaptionBot/internal/archive"
	"github.com/danielorf/ArtCaptionBot/internal/cache"
	"github.com/danielorf/ArtCaptionBot/internal/events"
	"github.com/danielorf/ArtCaptionBot/internal/history"
	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/publish"
	"github.com/danielorf/ArtCaptionBot/internal/source"
	"github.com/danielorf/ArtCaptionBot/internal/util"
	"github.com/danielorf/ArtCaptionBot/internal/validate"
	"github.com/danielorf/ArtCaptionBot/internal/worker"
)

// Runtime is a controller with the connections it owns
type Runtime struct {
	Controller *Controller
	Source     string
	Annotator  string
	Publisher  string
	closers    []func() error
}

// Close releases history, event and archive connections
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Assemble builds every collaborator named by cfg and returns a ready controller
func Assemble(ctx context.Context, cfg *model.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}
	ok := false
	defer func() {
		if !ok {
			_ = rt.Close()
		}
	}()

	httpClient := util.NewHTTPClient(cfg.HTTP)
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	var robots *util.RobotsChecker
	if cfg.Publisher.Robots {
		robots = util.NewRobotsChecker(httpClient, cfg.HTTP.UserAgent)
	}
	images := validate.NewImageProbe(httpClient, robots, cfg.HTTP.UserAgent, cfg.Publisher.MaxImage)

	// 1. Content source
	src, err := source.New(cfg, httpClient, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("content source: %w", err)
	}
	rt.Source = src.Name()

	// 2. Publication history
	backend, err := history.Open(ctx, cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	rt.closers = append(rt.closers, backend.Close)

	// 3. Annotator, optionally cached
	ann, err := annotate.New(annotate.ConfigFromModel(cfg, httpClient, images))
	if err != nil {
		return nil, fmt.Errorf("annotator: %w", err)
	}
	if cfg.Cache.Enabled {
		store := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		ann = annotate.NewCached(ann, store, cfg.Cache.DiskTTL, logger)
	}
	rt.Annotator = ann.Name()

	// 4. Publisher and recorders
	pub, err := publish.New(cfg, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}
	rt.Publisher = pub.Name()

	var recorders []publish.Recorder
	if backend.Recorder != nil {
		recorders = append(recorders, backend.Recorder)
	}
	if cfg.Events.Enabled {
		announcer, err := events.NewKafkaAnnouncer(cfg.Events.Brokers, cfg.Events.Topic)
		if err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		rt.closers = append(rt.closers, announcer.Close)
		recorders = append(recorders, announcer)
	}
	if cfg.Archive.Enabled {
		archiver, err := archive.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		recorders = append(recorders, archiver)
	}

	deps := Dependencies{
		History:   backend.Source,
		Selector:  NewSelector(src, cfg.Pipeline.Categories, cfg.Pipeline.FetchLimit),
		Annotator: ann,
		Publisher: publish.NewAdapter(pub, images, logger, recorders...),
	}
	rt.Controller = New(deps, OptionsFromConfig(cfg), logger)

	ok = true
	return rt, nil
}
