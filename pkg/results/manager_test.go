package results_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/rootcause/pkg/adapters/memory"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/ports"
	"github.com/aretw0/rootcause/pkg/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency and detects overlapping writes on one record.
type SlowStore struct {
	data    map[string]*domain.Record
	writing map[string]bool
	overlap bool
	mu      sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, record *domain.Record) error {
	s.mu.Lock()
	if s.writing == nil {
		s.writing = make(map[string]bool)
		s.data = make(map[string]*domain.Record)
	}
	if s.writing[record.ID] {
		s.overlap = true
	}
	s.writing[record.ID] = true
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond) // Simulate IO

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writing[record.ID] = false
	c := *record
	s.data[record.ID] = &c
	return nil
}

func (s *SlowStore) Load(ctx context.Context, id string) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.data[id]; ok {
		c := *r
		return &c, nil
	}
	return nil, domain.ErrResultNotFound
}

func (s *SlowStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestManager_SerialisesWrites(t *testing.T) {
	store := &SlowStore{}
	manager := results.NewManager(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := manager.Save(ctx, &domain.Record{ID: "same", Source: fmt.Sprint(n)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.False(t, store.overlap, "writes to one record must not overlap")
	rec, err := manager.Load(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, "same", rec.ID)
}

func TestManager_DeleteMissing(t *testing.T) {
	manager := results.NewManager(&SlowStore{})
	err := manager.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrResultNotFound)
}

type countingLocker struct {
	mu     sync.Mutex
	locks  int
	unlock int
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.locks++
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		l.unlock++
		l.mu.Unlock()
		return nil
	}, nil
}

func TestManager_UsesDistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	manager := results.NewManager(memory.NewStore(), results.WithLocker(locker, time.Second))
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, &domain.Record{ID: "r1"}))
	_, err := manager.Load(ctx, "r1")
	require.NoError(t, err)
	require.NoError(t, manager.Delete(ctx, "r1"))

	assert.Equal(t, 3, locker.locks)
	assert.Equal(t, 3, locker.unlock)
}
