// Package pipeline runs one selection, annotation, safety check and publish
// cycle, substituting candidates when a step fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielorf/ArtCaptionBot/internal/annotate"
	"github.com/danielorf/ArtCaptionBot/internal/caption"
	"github.com/danielorf/ArtCaptionBot/internal/exclusion"
	"github.com/danielorf/ArtCaptionBot/internal/history"
	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/publish"
)

// Step is a controller state
type Step string

const (
	StepInit               Step = "init"
	StepFetchingHistory    Step = "fetching_history"
	StepSelectingCandidate Step = "selecting_candidate"
	StepAnnotating         Step = "annotating"
	StepSafetyCheck        Step = "safety_check"
	StepComposing          Step = "composing"
	StepPublishing         Step = "publishing"
	StepRetryWait          Step = "retry_wait"
	StepDone               Step = "done"
)

// Publisher posts the composed caption for an item. *publish.Adapter implements it.
type Publisher interface {
	Publish(ctx context.Context, item model.ContentItem, caption string) (*model.Publication, error)
}

// Options are the explicit limits and delays of a run
type Options struct {
	Actor              string        // Account whose recent posts form the history
	HistoryCount       int           // Recent posts to read
	FilterExplicit     bool          // Reject explicit annotations
	RetryDelay         time.Duration // Wait after a history or source failure
	MaxPublishAttempts int           // Failed publishes tolerated before the run fails
	PublishBackoff     time.Duration // First wait after a failed publish, doubled per failure
	CallTimeout        time.Duration // Deadline for each collaborator call; 0 disables
}

// OptionsFromConfig builds run options from configuration
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		Actor:              cfg.History.Actor,
		HistoryCount:       cfg.History.Count,
		FilterExplicit:     cfg.Pipeline.FilterExplicit,
		RetryDelay:         cfg.Pipeline.RetryDelay,
		MaxPublishAttempts: cfg.Pipeline.MaxPublishAttempts,
		PublishBackoff:     cfg.Pipeline.PublishBackoff,
		CallTimeout:        cfg.Pipeline.CallTimeout,
	}
}

// Dependencies are the collaborators of a controller
type Dependencies struct {
	History   history.Source
	Selector  *Selector
	Annotator annotate.Annotator
	Publisher Publisher
}

// State is the working memory of one run
type State struct {
	RunID      string
	Step       Step
	Exclusions *exclusion.Set
	Item       model.ContentItem
	Annotation model.Annotation
	Caption    string
}

// RunReport summarizes a finished run. It is returned with partial content
// when the run fails.
type RunReport struct {
	RunID           string             `json:"run_id"`
	Publication     *model.Publication `json:"publication,omitempty"`
	Item            model.ContentItem  `json:"item"`
	Caption         string             `json:"caption,omitempty"`
	Ignored         []string           `json:"ignored"`
	Selections      int                `json:"selections"`
	PublishAttempts int                `json:"publish_attempts"`
	StartedAt       time.Time          `json:"started_at"`
	Duration        time.Duration      `json:"duration"`
}

// Controller runs the pipeline. A controller may be reused for sequential
// runs; each run owns its own State.
type Controller struct {
	deps     Dependencies
	opts     Options
	safety   SafetyFilter
	logger   *slog.Logger
	wait     func(ctx context.Context, d time.Duration) error // injectable for tests
	newRunID func() string
	observer func(step Step)
}

// New creates a controller
func New(deps Dependencies, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxPublishAttempts <= 0 {
		opts.MaxPublishAttempts = 5
	}
	if opts.HistoryCount <= 0 {
		opts.HistoryCount = 50
	}
	return &Controller{
		deps:     deps,
		opts:     opts,
		safety:   SafetyFilter{Enabled: opts.FilterExplicit},
		logger:   logger.With("component", "pipeline"),
		wait:     sleepContext,
		newRunID: uuid.NewString,
	}
}

// OnStep registers fn to be called on every state transition
func (c *Controller) OnStep(fn func(step Step)) {
	c.observer = fn
}

// Run executes one pipeline run and returns the publication it produced.
// Only ErrNoCandidateAvailable, *PublishExhaustedError and cancellation end
// a run with an error.
func (c *Controller) Run(ctx context.Context) (*RunReport, error) {
	st := &State{RunID: c.newRunID(), Step: StepInit}
	report := &RunReport{RunID: st.RunID, StartedAt: time.Now().UTC()}
	logger := c.logger.With("run", st.RunID)
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		if st.Exclusions != nil {
			report.Ignored = st.Exclusions.Ignored()
		}
	}()

	// 1. Publication history
	ids, err := c.fetchHistory(ctx, st, logger)
	if err != nil {
		return report, err
	}
	st.Exclusions = exclusion.New(ids)
	logger.Info("history loaded", "ids", len(ids))

	publishFailures := 0
	for {
		// 2. Candidate selection
		item, err := c.selectCandidate(ctx, st, logger)
		if err != nil {
			return report, err
		}
		st.Item = item
		report.Selections++
		logger.Debug("candidate selected", "id", item.ID, "category", item.Category, "url", item.URL)

		// 3. Annotation
		if err := c.enter(ctx, st, StepAnnotating); err != nil {
			return report, err
		}
		ann, err := c.annotate(ctx, item.URL)
		if err != nil {
			c.reject(st, logger, "annotation failed", err)
			continue
		}
		st.Annotation = ann

		// 4. Safety check
		if err := c.enter(ctx, st, StepSafetyCheck); err != nil {
			return report, err
		}
		if err := c.safety.Reject(ann); err != nil {
			c.reject(st, logger, "safety filter", err)
			continue
		}

		// 5. Caption
		if err := c.enter(ctx, st, StepComposing); err != nil {
			return report, err
		}
		st.Caption = caption.Compose(ann.CaptionText, ann.Confidence, item.Permalink)

		// 6. Publish
		if err := c.enter(ctx, st, StepPublishing); err != nil {
			return report, err
		}
		report.PublishAttempts++
		pub, err := c.publish(ctx, st)
		if err != nil {
			publishFailures++
			c.reject(st, logger, "publish failed", err)
			if publishFailures >= c.opts.MaxPublishAttempts {
				return report, &PublishExhaustedError{Attempts: publishFailures, Err: err}
			}
			if err := c.retryWait(ctx, st, c.publishBackoff(publishFailures)); err != nil {
				return report, err
			}
			continue
		}

		report.Publication = pub
		report.Item = item
		report.Caption = st.Caption
		if err := c.enter(ctx, st, StepDone); err != nil {
			return report, err
		}
		logger.Info("published", "id", pub.ID, "item", item.ID, "publisher", pub.Publisher,
			"confidence", caption.Percent(ann.Confidence))
		return report, nil
	}
}

// fetchHistory retries until the history source answers or ctx ends
func (c *Controller) fetchHistory(ctx context.Context, st *State, logger *slog.Logger) ([]string, error) {
	for {
		if err := c.enter(ctx, st, StepFetchingHistory); err != nil {
			return nil, err
		}
		callCtx, cancel := c.callContext(ctx)
		ids, err := c.deps.History.ListRecent(callCtx, c.opts.Actor, c.opts.HistoryCount)
		cancel()
		if err == nil {
			return ids, nil
		}
		logger.Warn("history fetch failed, retrying", "actor", c.opts.Actor, "delay", c.opts.RetryDelay, "error", err)
		if err := c.retryWait(ctx, st, c.opts.RetryDelay); err != nil {
			return nil, err
		}
	}
}

// selectCandidate retries source outages until a candidate or a terminal error
func (c *Controller) selectCandidate(ctx context.Context, st *State, logger *slog.Logger) (model.ContentItem, error) {
	for {
		if err := c.enter(ctx, st, StepSelectingCandidate); err != nil {
			return model.ContentItem{}, err
		}
		callCtx, cancel := c.callContext(ctx)
		item, err := c.deps.Selector.Select(callCtx, st.Exclusions)
		cancel()
		if err == nil {
			return item, nil
		}

		var unavailable *SourceUnavailableError
		if !errors.As(err, &unavailable) {
			if errors.Is(err, ErrNoCandidateAvailable) {
				logger.Error("no candidate available", "excluded", st.Exclusions.Len(), "ignored", len(st.Exclusions.Ignored()))
			}
			return model.ContentItem{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.ContentItem{}, fmt.Errorf("run %s canceled: %w", st.RunID, ctxErr)
		}
		logger.Warn("content source unavailable, retrying", "category", unavailable.Category, "delay", c.opts.RetryDelay, "error", unavailable.Err)
		if err := c.retryWait(ctx, st, c.opts.RetryDelay); err != nil {
			return model.ContentItem{}, err
		}
	}
}

// annotate treats an error-coded annotation like a failed call
func (c *Controller) annotate(ctx context.Context, url string) (model.Annotation, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ann, err := c.deps.Annotator.Annotate(callCtx, url)
	if err != nil {
		return ann, err
	}
	if !ann.Usable() {
		return ann, &annotate.FailedError{Provider: c.deps.Annotator.Name(), Code: ann.RawErrorCode}
	}
	return ann, nil
}

func (c *Controller) publish(ctx context.Context, st *State) (*model.Publication, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ann := st.Annotation
	callCtx = publish.WithRunInfo(callCtx, publish.RunInfo{RunID: st.RunID, Annotation: &ann})
	return c.deps.Publisher.Publish(callCtx, st.Item, st.Caption)
}

// reject ignore-lists the current candidate
func (c *Controller) reject(st *State, logger *slog.Logger, reason string, err error) {
	st.Exclusions.Ignore(st.Item.ID)
	logger.Warn("candidate rejected",
		"id", st.Item.ID,
		"reason", reason,
		"error", err,
		"ignored", st.Exclusions.Ignored(),
	)
}

func (c *Controller) enter(ctx context.Context, st *State, step Step) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run %s canceled before %s: %w", st.RunID, step, err)
	}
	st.Step = step
	if c.observer != nil {
		c.observer(step)
	}
	return nil
}

func (c *Controller) retryWait(ctx context.Context, st *State, d time.Duration) error {
	if err := c.enter(ctx, st, StepRetryWait); err != nil {
		return err
	}
	if err := c.wait(ctx, d); err != nil {
		return fmt.Errorf("run %s canceled during retry wait: %w", st.RunID, err)
	}
	return nil
}

// publishBackoff doubles from PublishBackoff per failure, capped at RetryDelay
func (c *Controller) publishBackoff(failures int) time.Duration {
	d := c.opts.PublishBackoff
	for i := 1; i < failures && d > 0; i++ {
		d *= 2
		if c.opts.RetryDelay > 0 && d >= c.opts.RetryDelay {
			break
		}
	}
	if c.opts.RetryDelay > 0 && d > c.opts.RetryDelay {
		d = c.opts.RetryDelay
	}
	return d
}

func (c *Controller) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.CallTimeout)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
