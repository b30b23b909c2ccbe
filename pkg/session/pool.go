package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/rootcause/internal/logging"
	"github.com/aretw0/rootcause/pkg/domain"
)

// ErrNotBorrowed is returned when a session is handed back to a pool it was not borrowed from.
var ErrNotBorrowed = errors.New("session not borrowed from this pool")

// PoolOption configures a Pool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	policy ExhaustionPolicy
	logger *slog.Logger
}

// WithExhaustionPolicy sets the behaviour of Borrow on a full pool (default Block).
func WithExhaustionPolicy(p ExhaustionPolicy) PoolOption {
	return func(o *poolOptions) {
		o.policy = p
	}
}

// WithPoolLogger configures a logger for the pool.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(o *poolOptions) {
		o.logger = logger
	}
}

// Pool bounds the number of activated sessions and recycles passivated ones.
//
// slots holds one token per borrowed session, so its capacity is the hard
// limit on concurrently activated sessions.
type Pool[I, R any] struct {
	factory *Factory[I, R]
	slots   chan struct{}
	idle    chan *Session[I, R]
	done    chan struct{}
	policy  ExhaustionPolicy
	logger  *slog.Logger

	mu       sync.Mutex
	closed   bool
	borrowed map[*Session[I, R]]struct{}
}

// NewPool creates a pool of at most size activated sessions.
func NewPool[I, R any](factory *Factory[I, R], size int, opts ...PoolOption) (*Pool[I, R], error) {
	if factory == nil {
		return nil, errors.New("session factory is required")
	}
	if size < 1 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}

	o := poolOptions{policy: Block, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Pool[I, R]{
		factory:  factory,
		slots:    make(chan struct{}, size),
		idle:     make(chan *Session[I, R], size),
		done:     make(chan struct{}),
		policy:   o.policy,
		logger:   o.logger,
		borrowed: make(map[*Session[I, R]]struct{}),
	}, nil
}

// Borrow returns a session activated with the input and variables.
// On a full pool it blocks or fails according to the exhaustion policy.
func (p *Pool[I, R]) Borrow(ctx context.Context, input I, vars domain.SessionVariables) (*Session[I, R], error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return nil, domain.ErrPoolClosed
	}
	p.mu.Unlock()

	s := p.take(ctx)
	if err := s.Activate(ctx, input, vars); err != nil {
		// An idle session that cannot be reactivated is replaced.
		p.logger.Warn("Replacing session that failed to activate", "session_id", s.ID(), "err", err)
		s.Destroy(ctx)
		s = p.factory.Create(ctx)
		if err := s.Activate(ctx, input, vars); err != nil {
			<-p.slots
			return nil, err
		}
	}

	p.mu.Lock()
	p.borrowed[s] = struct{}{}
	p.mu.Unlock()
	return s, nil
}

func (p *Pool[I, R]) acquire(ctx context.Context) error {
	select {
	case <-p.done:
		return domain.ErrPoolClosed
	default:
	}

	if p.policy == FailOnExhaustion {
		select {
		case p.slots <- struct{}{}:
			return nil
		default:
			return domain.ErrPoolExhausted
		}
	}

	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return domain.ErrPoolClosed
	}
}

func (p *Pool[I, R]) take(ctx context.Context) *Session[I, R] {
	select {
	case s := <-p.idle:
		return s
	default:
		return p.factory.Create(ctx)
	}
}

// Return passivates the session and makes it available again.
func (p *Pool[I, R]) Return(ctx context.Context, s *Session[I, R]) error {
	if err := p.release(s); err != nil {
		return err
	}
	defer func() { <-p.slots }()

	if s.State() != domain.StatePassivated {
		s.Passivate(ctx)
	}

	p.mu.Lock()
	recycled := false
	if !p.closed {
		select {
		case p.idle <- s:
			recycled = true
		default:
		}
	}
	p.mu.Unlock()

	if !recycled {
		s.Destroy(ctx)
	}
	return nil
}

// Invalidate destroys a borrowed session instead of recycling it.
func (p *Pool[I, R]) Invalidate(ctx context.Context, s *Session[I, R]) error {
	if err := p.release(s); err != nil {
		return err
	}
	defer func() { <-p.slots }()
	s.Destroy(ctx)
	return nil
}

func (p *Pool[I, R]) release(s *Session[I, R]) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.borrowed[s]; !ok {
		return ErrNotBorrowed
	}
	delete(p.borrowed, s)
	return nil
}

// Close destroys idle sessions and rejects further borrows.
// Sessions still borrowed are destroyed when they are returned.
func (p *Pool[I, R]) Close(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	var idle []*Session[I, R]
drain:
	for {
		select {
		case s := <-p.idle:
			idle = append(idle, s)
		default:
			break drain
		}
	}
	p.mu.Unlock()

	for _, s := range idle {
		s.Destroy(ctx)
	}
}

// Size returns the maximum number of activated sessions.
func (p *Pool[I, R]) Size() int { return cap(p.slots) }

// Active returns the number of borrowed sessions.
func (p *Pool[I, R]) Active() int { return len(p.slots) }

// Idle returns the number of passivated sessions ready for reuse.
func (p *Pool[I, R]) Idle() int { return len(p.idle) }
