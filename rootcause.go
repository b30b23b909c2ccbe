package rootcause

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/rootcause/internal/logging"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/rule"
	"github.com/aretw0/rootcause/pkg/session"
)

const tracerName = "github.com/aretw0/rootcause"

// Engine is the high-level entry point of the library.
// It owns a bounded pool of diagnosis sessions sharing one rule set and is
// safe for concurrent use.
type Engine[I, R any] struct {
	pool     *session.Pool[I, R]
	factory  *session.Factory[I, R]
	defaults domain.SessionVariables
	timeout  time.Duration
	workers  int
	logger   *slog.Logger
	tracer   trace.Tracer
}

type config struct {
	workers    int
	exhaustion session.ExhaustionPolicy
	malformed  session.MalformedInputPolicy
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	storage    session.StorageFactory
	defaults   domain.SessionVariables
	timeout    time.Duration
	tracer     trace.TracerProvider
}

// Option defines a functional option for configuring the Engine.
type Option func(*config)

// WithWorkers sets the maximum number of concurrently running sessions
// (default: number of CPUs).
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithExhaustionPolicy sets what Diagnose does when every session is busy.
func WithExhaustionPolicy(p session.ExhaustionPolicy) Option {
	return func(c *config) {
		c.exhaustion = p
	}
}

// WithMalformedInputPolicy sets how sessions treat inputs whose tag hierarchy
// cannot satisfy a rule.
func WithMalformedInputPolicy(p session.MalformedInputPolicy) Option {
	return func(c *config) {
		c.malformed = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithStorageFactory replaces the in-memory rule output storage.
func WithStorageFactory(fn session.StorageFactory) Option {
	return func(c *config) {
		c.storage = fn
	}
}

// WithDefaultVariables sets session variables applied to every run.
// Variables passed to Diagnose take precedence.
func WithDefaultVariables(vars domain.SessionVariables) Option {
	return func(c *config) {
		c.defaults = vars
	}
}

// WithTimeout bounds every Diagnose call. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
// (default: the global provider).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracer = tp
	}
}

// New builds an engine over the rule set.
func New[I, R any](rules []rule.Rule, collector session.ResultCollector[I, R], opts ...Option) (*Engine[I, R], error) {
	cfg := config{
		workers:    runtime.NumCPU(),
		exhaustion: session.Block,
		malformed:  session.SkipAndWarn,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.GetTracerProvider()
	}

	factoryOpts := []session.Option{
		session.WithMalformedInputPolicy(cfg.malformed),
		session.WithLifecycleHooks(cfg.hooks),
		session.WithLogger(cfg.logger),
	}
	if cfg.storage != nil {
		factoryOpts = append(factoryOpts, session.WithStorageFactory(cfg.storage))
	}
	factory, err := session.NewFactory(rules, collector, factoryOpts...)
	if err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}

	pool, err := session.NewPool(factory, cfg.workers,
		session.WithExhaustionPolicy(cfg.exhaustion),
		session.WithPoolLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}

	return &Engine[I, R]{
		pool:     pool,
		factory:  factory,
		defaults: cfg.defaults.Clone(),
		timeout:  cfg.timeout,
		workers:  cfg.workers,
		logger:   cfg.logger,
		tracer:   cfg.tracer.Tracer(tracerName),
	}, nil
}

// Diagnose runs one input through a pooled session and returns the collected result.
//
// When ctx ends before the run completes, ctx.Err() is returned at once; the
// session keeps running in the background and goes back to the pool when it
// finishes.
func (e *Engine[I, R]) Diagnose(ctx context.Context, input I, vars domain.SessionVariables) (R, error) {
	var zero R
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "rootcause.Diagnose",
		trace.WithAttributes(attribute.Int("rootcause.rules", len(e.factory.Rules()))),
	)
	defer span.End()

	s, err := e.pool.Borrow(ctx, input, e.defaults.Merge(vars))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "borrow failed")
		return zero, fmt.Errorf("failed to acquire diagnosis session: %w", err)
	}
	span.SetAttributes(attribute.String("rootcause.session_id", s.ID()))

	type outcome struct {
		result R
		err    error
	}
	done := make(chan outcome, 1)
	runCtx := context.WithoutCancel(ctx)
	go func() {
		res, err := s.Call(runCtx)
		if retErr := e.pool.Return(runCtx, s); retErr != nil {
			e.logger.Error("Failed to return session to pool", "session_id", s.ID(), "err", retErr)
		}
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			span.RecordError(out.err)
			span.SetStatus(codes.Error, out.err.Error())
			return zero, out.err
		}
		span.SetStatus(codes.Ok, "")
		return out.result, nil
	case <-ctx.Done():
		e.logger.Warn("Diagnosis abandoned before completion", "session_id", s.ID(), "err", ctx.Err())
		span.RecordError(ctx.Err())
		span.SetStatus(codes.Error, "context done")
		return zero, ctx.Err()
	}
}

// DiagnoseAsync runs Diagnose in the background and hands its outcome to callback.
func (e *Engine[I, R]) DiagnoseAsync(ctx context.Context, input I, vars domain.SessionVariables, callback func(R, error)) {
	go func() {
		res, err := e.Diagnose(ctx, input, vars)
		if callback != nil {
			callback(res, err)
		}
	}()
}

// DiagnoseAll runs every input concurrently, bounded by the pool size.
// Results keep the order of inputs. The first failure cancels the runs not
// yet started and is returned.
func (e *Engine[I, R]) DiagnoseAll(ctx context.Context, inputs []I, vars domain.SessionVariables) ([]R, error) {
	results := make([]R, len(inputs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, in := range inputs {
		g.Go(func() error {
			res, err := e.Diagnose(gCtx, in, vars)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Rules returns the rule set of the engine.
func (e *Engine[I, R]) Rules() []rule.Rule {
	return e.factory.Rules()
}

// Stats describes the session pool.
type Stats struct {
	Workers int `json:"workers"`
	Active  int `json:"active"`
	Idle    int `json:"idle"`
}

// Stats returns a snapshot of the session pool.
func (e *Engine[I, R]) Stats() Stats {
	return Stats{
		Workers: e.pool.Size(),
		Active:  e.pool.Active(),
		Idle:    e.pool.Idle(),
	}
}

// Close destroys idle sessions and rejects further diagnoses.
func (e *Engine[I, R]) Close(ctx context.Context) {
	e.pool.Close(ctx)
}

// IsBusy reports whether err means that no session was available.
func IsBusy(err error) bool {
	return errors.Is(err, domain.ErrPoolExhausted)
}
