package configstore

import (
	"context"
	"sync"

	"github.com/spherical/image-analyzer/internal/domain"
)

// MemoryStore keeps documents in process and broadcasts every save.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]domain.AppConfiguration
	subs   map[string]map[int]chan Snapshot
	nextID int
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]domain.AppConfiguration),
		subs: make(map[string]map[int]chan Snapshot),
	}
}

func (s *MemoryStore) Load(_ context.Context, path string) (domain.AppConfiguration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.docs[path]
	if !ok {
		return domain.AppConfiguration{}, false, nil
	}
	return cfg.Clone(), true, nil
}

func (s *MemoryStore) Save(_ context.Context, path string, cfg domain.AppConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.StoreError("store is closed", nil)
	}

	stored := cfg.Normalize().Clone()
	s.docs[path] = stored
	for _, ch := range s.subs[path] {
		offer(ch, Snapshot{Config: stored.Clone(), Exists: true})
	}
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, domain.StoreError("store is closed", nil)
	}

	ch := make(chan Snapshot, 1)
	id := s.nextID
	s.nextID++
	if s.subs[path] == nil {
		s.subs[path] = make(map[int]chan Snapshot)
	}
	s.subs[path][id] = ch

	if cfg, ok := s.docs[path]; ok {
		ch <- Snapshot{Config: cfg.Clone(), Exists: true}
	} else {
		ch <- Snapshot{Config: domain.AppConfiguration{}.Normalize()}
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[path][id]; ok {
				delete(s.subs[path], id)
				close(sub)
			}
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return ch, cancel, nil
}

// Close ends every subscription.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for path, subs := range s.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(s.subs, path)
	}
	return nil
}
