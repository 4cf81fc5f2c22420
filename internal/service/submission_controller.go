package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/testgen-workbench/internal/extraction"
	"github.com/noah-isme/testgen-workbench/internal/middleware"
	"github.com/noah-isme/testgen-workbench/internal/models"
	"github.com/noah-isme/testgen-workbench/internal/observability"
)

// ErrDispatchPanicked wraps a panic raised by the dispatcher.
var ErrDispatchPanicked = errors.New("dispatcher panicked")

// SubmitOutcome tells the caller what a submit call did. The skip outcomes
// are guards, not errors.
type SubmitOutcome int

const (
	SubmitStarted SubmitOutcome = iota
	SubmitSkippedNoSelection
	SubmitSkippedInFlight
)

func (o SubmitOutcome) String() string {
	switch o {
	case SubmitStarted:
		return "started"
	case SubmitSkippedNoSelection:
		return "no_selection"
	case SubmitSkippedInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// ResolutionHook observes every resolved dispatch together with the dispatcher error, if any.
type ResolutionHook func(state State, err error)

// ControllerOption customises a SubmissionController.
type ControllerOption func(*SubmissionController)

// WithResolutionHook registers a hook called after each resolution, outside the state lock.
func WithResolutionHook(hook ResolutionHook) ControllerOption {
	return func(c *SubmissionController) {
		if hook != nil {
			c.hooks = append(c.hooks, hook)
		}
	}
}

// SubmissionController owns the selection, phase, results and error message
// of one workbench and allows at most one dispatch in flight.
type SubmissionController struct {
	dispatcher extraction.Dispatcher
	logger     zerolog.Logger
	tracer     trace.Tracer
	hooks      []ResolutionHook

	mu          sync.Mutex
	state       State
	subscribers map[chan State]struct{}
}

// NewSubmissionController constructs a controller in PhaseIdle without a selection.
func NewSubmissionController(dispatcher extraction.Dispatcher, logger zerolog.Logger, opts ...ControllerOption) *SubmissionController {
	controller := &SubmissionController{
		dispatcher:  dispatcher,
		logger:      logger.With().Str("component", "submission_controller").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/testgen-workbench/internal/service/submission"),
		state:       State{Phase: PhaseIdle, Results: []models.TestCase{}},
		subscribers: make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(controller)
	}
	return controller
}

// Snapshot returns a copy of the current state.
func (c *SubmissionController) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SelectFile replaces the selection with a private copy of doc. A nil
// document means nothing was chosen and leaves the state untouched.
func (c *SubmissionController) SelectFile(doc *models.Document) {
	if doc == nil {
		return
	}

	selected := *doc
	selected.Data = slices.Clone(doc.Data)
	c.mu.Lock()
	c.applyLocked(c.state.withSelection(&selected))
	c.mu.Unlock()

	c.logger.Debug().Str("document", selected.Name).Int64("size_bytes", selected.Size()).Msg("document selected")
}

// Submit dispatches the selected document and blocks until the dispatch resolves.
func (c *SubmissionController) Submit(ctx context.Context) SubmitOutcome {
	outcome, done := c.SubmitAsync(ctx)
	<-done
	return outcome
}

// SubmitAsync applies the submit guards and the transition to PhaseSubmitting
// before returning. The returned channel closes once the dispatch has
// resolved, or immediately when the call was skipped.
func (c *SubmissionController) SubmitAsync(ctx context.Context) (SubmitOutcome, <-chan struct{}) {
	done := make(chan struct{})

	c.mu.Lock()
	switch {
	case c.state.Selection == nil:
		c.mu.Unlock()
		close(done)
		c.recordSkip(SubmitSkippedNoSelection)
		return SubmitSkippedNoSelection, done
	case c.state.Phase == PhaseSubmitting:
		c.mu.Unlock()
		close(done)
		c.recordSkip(SubmitSkippedInFlight)
		return SubmitSkippedInFlight, done
	}

	doc := *c.state.Selection
	c.applyLocked(c.state.beginSubmit(doc.Name))
	c.mu.Unlock()

	logger := c.logger.With().
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Str("document", doc.Name).
		Logger()

	observability.Submissions().WithLabelValues(SubmitStarted.String()).Inc()
	logger.Info().Msg("submission started")

	go func() {
		defer close(done)
		c.dispatch(ctx, doc, logger)
	}()

	return SubmitStarted, done
}

// Subscribe streams a snapshot after every change, starting with the current
// one. Slow receivers skip intermediate snapshots but never miss the latest.
func (c *SubmissionController) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	ch <- c.state.clone()
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			close(ch)
			c.mu.Unlock()
		})
	}
	return ch, cancel
}

// Watched reports whether any subscriber is attached.
func (c *SubmissionController) Watched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers) > 0
}

func (c *SubmissionController) dispatch(ctx context.Context, doc models.Document, logger zerolog.Logger) {
	ctx, span := c.tracer.Start(ctx, "submission.dispatch", trace.WithAttributes(
		attribute.String("document.name", doc.Name),
	))
	defer span.End()

	var (
		records []models.TestCase
		err     error
	)

	defer func() {
		if recovered := recover(); recovered != nil {
			records = nil
			err = fmt.Errorf("%w: %v", ErrDispatchPanicked, recovered)
			logger.Error().Interface("panic", recovered).Msg("dispatcher panicked")
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "dispatch failed")
		} else {
			span.SetStatus(codes.Ok, "dispatched")
		}
		c.resolve(records, err, logger)
	}()

	records, err = c.dispatcher.Upload(ctx, doc)
}

func (c *SubmissionController) resolve(records []models.TestCase, err error, logger zerolog.Logger) {
	c.mu.Lock()
	if err != nil {
		c.applyLocked(c.state.fail(ErrorMessage(err)))
	} else {
		c.applyLocked(c.state.succeed(records))
	}
	snapshot := c.state.clone()
	c.mu.Unlock()

	observability.Resolutions().WithLabelValues(snapshot.Phase.String()).Inc()
	if err != nil {
		logger.Warn().Err(err).Str("error_message", snapshot.ErrorMessage).Msg("submission failed")
	} else {
		logger.Info().Int("test_cases", len(snapshot.Results)).Msg("submission succeeded")
	}

	for _, hook := range c.hooks {
		hook(snapshot, err)
	}
}

// applyLocked installs the next state and fans it out. Callers hold c.mu.
func (c *SubmissionController) applyLocked(next State) {
	c.state = next
	if len(c.subscribers) == 0 {
		return
	}

	snapshot := next.clone()
	for ch := range c.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (c *SubmissionController) recordSkip(outcome SubmitOutcome) {
	observability.Submissions().WithLabelValues(outcome.String()).Inc()
	c.logger.Debug().Str("outcome", outcome.String()).Msg("submit ignored")
}

// ErrorMessage derives the display message for a failed dispatch: the
// service's own "error" text when present, the fallback otherwise.
func ErrorMessage(err error) string {
	var failure *extraction.FailurePayload
	if errors.As(err, &failure) {
		if message := failure.ServiceError(); message != "" {
			return message
		}
	}
	return FallbackErrorMessage
}
