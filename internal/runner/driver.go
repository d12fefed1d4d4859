// Package runner drives one assistant run from user message to final answer.
//
// A Driver owns a small state machine per exchange:
//
//	INIT -> THREAD_READY -> MESSAGE_SENT -> RUN_POLLING -> {TOOL_DISPATCH -> RUN_POLLING} -> TERMINAL
//
// Polling suspends the calling goroutine between status checks, so each
// exchange runs on its own goroutine (one per HTTP request).
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/h4d-assistant/book-chat/internal/events"
	"github.com/h4d-assistant/book-chat/internal/llm"
	"github.com/h4d-assistant/book-chat/internal/model"
	"github.com/h4d-assistant/book-chat/internal/tools"
	"github.com/h4d-assistant/book-chat/pkg/logger"
	"github.com/h4d-assistant/book-chat/pkg/metrics"
	"github.com/h4d-assistant/book-chat/pkg/tracing"
)

// State is a step of the per-exchange state machine.
type State string

const (
	StateInit         State = "INIT"
	StateThreadReady  State = "THREAD_READY"
	StateMessageSent  State = "MESSAGE_SENT"
	StateRunPolling   State = "RUN_POLLING"
	StateToolDispatch State = "TOOL_DISPATCH"
	StateTerminal     State = "TERMINAL"
)

var errMaxPolls = errors.New("run poll limit reached")

// cancelTimeout bounds the best-effort cancel sent for abandoned runs.
const cancelTimeout = 10 * time.Second

// Config holds the run loop settings.
type Config struct {
	AssistantID  string
	PollInterval time.Duration
	// MaxPolls caps status checks per run; 0 disables the cap.
	MaxPolls int
	// RunTimeout caps wall time per exchange; 0 disables the cap.
	RunTimeout time.Duration
}

// SleepFunc suspends the exchange between polls.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a Driver.
type Option func(*Driver)

// WithSleep replaces the poll delay primitive.
func WithSleep(fn SleepFunc) Option {
	return func(d *Driver) { d.sleep = fn }
}

// Exchange is a single user turn.
type Exchange struct {
	ID         string
	ThreadHint string
	Message    string
}

// Outcome summarizes a finished exchange.
type Outcome struct {
	ThreadID      string
	ThreadCreated bool
	RunID         string
	RunStatus     model.RunStatus
	Terminal      model.Event
	States        []State
	Err           error
}

// Driver runs exchanges against the hosted assistant.
type Driver struct {
	client   llm.AssistantClient
	registry *tools.Registry
	cfg      Config
	sleep    SleepFunc
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewDriver creates a run driver.
func NewDriver(client llm.AssistantClient, registry *tools.Registry, cfg Config, log *logger.Logger, opts ...Option) *Driver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	d := &Driver{
		client:   client,
		registry: registry,
		cfg:      cfg,
		sleep:    sleepContext,
		logger:   log,
		tracer:   tracing.Tracer("github.com/h4d-assistant/book-chat/internal/runner"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes one exchange and emits its events to sink.
// Exactly one final or error event is emitted, always last.
func (d *Driver) Run(ctx context.Context, ex Exchange, sink events.Emitter) (out Outcome) {
	ctx, span := d.tracer.Start(ctx, "runner.exchange")
	defer span.End()

	// The run timeout bounds the hosted calls only. Terminal events go out
	// on the caller's context so a timed out run still closes the stream.
	runCtx := ctx
	if d.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.cfg.RunTimeout)
		defer cancel()
	}

	x := &exchange{
		driver:  d,
		stream:  events.NewStream(sink),
		log:     d.logger,
		span:    span,
		callCtx: ctx,
	}
	if ex.ID != "" {
		x.log = x.log.With(zap.String("exchange_id", ex.ID))
		span.SetAttributes(attribute.String("exchange.id", ex.ID))
	}
	x.transition(StateInit)

	defer func() {
		if r := recover(); r != nil {
			x.fail(fmt.Errorf("panic: %v", r))
		}
		if !x.stream.Terminated() {
			x.fail(errors.New("exchange ended without a terminal event"))
		}
		x.transition(StateTerminal)
		out = x.outcome()
		span.SetAttributes(
			attribute.String("thread.id", out.ThreadID),
			attribute.String("run.id", out.RunID),
			attribute.String("run.status", string(out.RunStatus)),
		)
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		}
	}()

	if err := x.drive(runCtx, ex); err != nil {
		x.fail(err)
	}
	return
}

// exchange is the mutable state of one Run call; it is never shared.
type exchange struct {
	driver *Driver
	stream *events.Stream
	log    *logger.Logger
	span   trace.Span

	// callCtx is the caller's context, without the run timeout.
	callCtx context.Context

	states        []State
	threadID      string
	threadCreated bool
	run           *model.Run
	runStarted    time.Time
	err           error
}

func (x *exchange) transition(s State) {
	x.states = append(x.states, s)
}

func (x *exchange) state() State {
	return x.states[len(x.states)-1]
}

func (x *exchange) emit(ctx context.Context, ev model.Event) {
	if err := x.stream.Emit(ctx, ev); err != nil {
		x.log.Debug("event not delivered",
			zap.String("event_type", string(ev.Type)),
			zap.Error(err),
		)
	}
}

func (x *exchange) drive(ctx context.Context, ex Exchange) error {
	d := x.driver

	threadID, err := x.resolveThread(ctx, ex.ThreadHint)
	if err != nil {
		return err
	}
	x.threadID = threadID
	x.log = x.log.With(zap.String("thread_id", threadID))
	x.transition(StateThreadReady)

	if err := d.client.AppendMessage(ctx, threadID, model.RoleUser, ex.Message); err != nil {
		return err
	}
	x.emit(ctx, model.Thinking("User message added. Running assistant..."))

	run, err := d.client.CreateRun(ctx, threadID, d.cfg.AssistantID)
	if err != nil {
		return err
	}
	x.run = run
	x.runStarted = time.Now()
	x.log = x.log.With(zap.String("run_id", run.ID))
	x.transition(StateMessageSent)

	if err := x.poll(ctx); err != nil {
		return err
	}
	return x.finish(ctx)
}

// resolveThread reuses the hinted thread when it resolves and silently creates one otherwise.
func (x *exchange) resolveThread(ctx context.Context, hint string) (string, error) {
	d := x.driver

	if hint != "" {
		id, err := d.client.RetrieveThread(ctx, hint)
		if err == nil && id != "" {
			return id, nil
		}
		x.log.Info("continuation token did not resolve, creating a new thread",
			zap.String("thread_hint", hint),
			zap.Error(err),
		)
	}

	id, err := d.client.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	x.threadCreated = true
	x.emit(ctx, model.Thinking("New thread created."))
	metrics.ThreadsCreated.Inc()
	x.emit(ctx, model.ThreadCreated(id))
	return id, nil
}

// poll re-fetches the run until it leaves queued/in_progress/requires_action.
func (x *exchange) poll(ctx context.Context) error {
	d := x.driver
	x.transition(StateRunPolling)

	polls := 0
	for x.run.Status.Active() {
		if x.run.Status == model.RunStatusRequiresAction {
			if err := x.dispatch(ctx); err != nil {
				return err
			}
		}

		if err := d.sleep(ctx, d.cfg.PollInterval); err != nil {
			return err
		}

		polls++
		if d.cfg.MaxPolls > 0 && polls > d.cfg.MaxPolls {
			return errMaxPolls
		}

		run, err := d.client.RetrieveRun(ctx, x.threadID, x.run.ID)
		if err != nil {
			return err
		}
		metrics.RunPollsTotal.Inc()
		x.run = run
	}
	return nil
}

// dispatch resolves the whole pending batch and submits it in one call.
func (x *exchange) dispatch(ctx context.Context) error {
	d := x.driver
	x.transition(StateToolDispatch)
	x.emit(ctx, model.Thinking("Run requires tool call(s)."))

	outputs := make([]model.ToolOutput, 0, len(x.run.ToolCalls))
	for _, call := range x.run.ToolCalls {
		outputs = append(outputs, x.resolve(ctx, call))
	}

	if len(outputs) > 0 {
		run, err := d.client.SubmitToolOutputs(ctx, x.threadID, x.run.ID, outputs)
		if err != nil {
			return err
		}
		x.run = run
		x.emit(ctx, model.Thinking("Tool outputs submitted. Continuing run..."))
	}

	x.transition(StateRunPolling)
	return nil
}

// finish turns a settled run into the terminal event.
func (x *exchange) finish(ctx context.Context) error {
	d := x.driver
	metrics.RecordRun(string(x.run.Status), time.Since(x.runStarted).Seconds())

	if x.run.Status != model.RunStatusCompleted {
		text := fmt.Sprintf("Run failed with status: %s", x.run.Status)
		if x.run.LastError != "" {
			text += " (" + x.run.LastError + ")"
		}
		x.err = fmt.Errorf("run %s", x.run.Status)
		x.log.Warn("run did not complete", zap.String("status", string(x.run.Status)), zap.String("last_error", x.run.LastError))
		x.emit(x.callCtx, model.Failure(text))
		return nil
	}

	msg, err := d.client.LatestMessage(ctx, x.threadID)
	if err != nil {
		return err
	}
	if msg.Role != model.RoleAssistant {
		return fmt.Errorf("latest thread message has role %q, want assistant", msg.Role)
	}

	x.log.Info("run completed")
	x.emit(x.callCtx, model.Final(x.threadID, msg.Text))
	return nil
}

// fail records err and emits the terminal error event if none was sent yet.
func (x *exchange) fail(err error) {
	x.err = err
	x.cancelAbandonedRun(x.callCtx)

	if x.stream.Terminated() {
		return
	}
	x.log.Error("exchange failed", zap.String("state", string(x.state())), zap.Error(err))
	x.emit(x.callCtx, model.Failure(x.describe(err)))
}

func (x *exchange) describe(err error) string {
	d := x.driver
	switch {
	case errors.Is(err, errMaxPolls):
		return fmt.Sprintf("Run did not finish after %d status checks.", d.cfg.MaxPolls)
	case errors.Is(err, context.DeadlineExceeded) && d.cfg.RunTimeout > 0:
		return fmt.Sprintf("Run timed out after %s.", d.cfg.RunTimeout)
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	default:
		return fmt.Sprintf("An unexpected error occurred: %v", err)
	}
}

// cancelAbandonedRun stops a still-active hosted run on a detached context.
func (x *exchange) cancelAbandonedRun(ctx context.Context) {
	if x.run == nil || !x.run.Status.Active() {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	if err := x.driver.client.CancelRun(cctx, x.threadID, x.run.ID); err != nil {
		x.log.Warn("failed to cancel abandoned run", zap.Error(err))
		return
	}
	x.run.Status = model.RunStatusCancelling
	metrics.RecordRun(string(model.RunStatusCancelled), time.Since(x.runStarted).Seconds())
}

func (x *exchange) outcome() Outcome {
	out := Outcome{
		ThreadID:      x.threadID,
		ThreadCreated: x.threadCreated,
		States:        x.states,
		Err:           x.err,
	}
	if x.run != nil {
		out.RunID = x.run.ID
		out.RunStatus = x.run.Status
	}
	if ev, ok := x.stream.Terminal(); ok {
		out.Terminal = ev
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
