package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aretw0/rootcause/internal/logging"
	"github.com/aretw0/rootcause/pkg/adapters/memory"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/ports"
	"github.com/aretw0/rootcause/pkg/rule"
)

// StorageFactory creates the output storage of a new session.
type StorageFactory func() ports.OutputStorage

type options struct {
	newStorage StorageFactory
	policy     MalformedInputPolicy
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
}

// Option configures a Factory.
type Option func(*options)

// WithStorageFactory replaces the default in-memory output storage.
func WithStorageFactory(fn StorageFactory) Option {
	return func(o *options) {
		o.newStorage = fn
	}
}

// WithMalformedInputPolicy sets how sessions treat candidates whose tag
// hierarchy cannot satisfy a rule (default SkipAndWarn).
func WithMalformedInputPolicy(p MalformedInputPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithLifecycleHooks registers observability hooks on every session.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithLogger configures the logger of every session.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Factory creates sessions sharing one read-only rule set.
type Factory[I, R any] struct {
	rules     []rule.Rule
	collector ResultCollector[I, R]
	opts      options
}

// NewFactory validates the rule set and returns a factory.
func NewFactory[I, R any](rules []rule.Rule, collector ResultCollector[I, R], opts ...Option) (*Factory[I, R], error) {
	if collector == nil {
		return nil, errors.New("result collector is required")
	}

	names := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r == nil {
			return nil, errors.New("rule set contains a nil rule")
		}
		if _, dup := names[r.Name()]; dup {
			return nil, fmt.Errorf("duplicate rule name %q", r.Name())
		}
		names[r.Name()] = struct{}{}
	}

	o := options{
		newStorage: func() ports.OutputStorage { return memory.NewStorage() },
		policy:     SkipAndWarn,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Factory[I, R]{
		rules:     append([]rule.Rule(nil), rules...),
		collector: collector,
		opts:      o,
	}, nil
}

// Rules returns the rule set shared by all sessions.
func (f *Factory[I, R]) Rules() []rule.Rule {
	return append([]rule.Rule(nil), f.rules...)
}

// Create returns a NEW session.
func (f *Factory[I, R]) Create(ctx context.Context) *Session[I, R] {
	s := &Session[I, R]{
		id:        uuid.NewString(),
		state:     domain.StateNew,
		ctx:       newContext[I](f.opts.newStorage(), f.rules),
		backup:    f.rules,
		collector: f.collector,
		policy:    f.opts.policy,
		hooks:     f.opts.hooks,
		logger:    f.opts.logger,
	}
	if f.opts.hooks.OnSessionCreate != nil {
		f.opts.hooks.OnSessionCreate(ctx, &domain.SessionEvent{
			EventBase: s.event(domain.EventSessionCreate),
			To:        domain.StateNew,
		})
	}
	return s
}
