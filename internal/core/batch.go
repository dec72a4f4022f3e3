package core

// batch.go holds staged import batches between preview and commit.
//
// Batches are staging-only state: they are kept in memory with a TTL, never
// persisted, and never visible through canonical read paths. An abandoned
// preview simply ages out; only CommitBatch turns rows into canonical data,
// and committing writes the durable ImportLog before the batch is discarded.

import (
	"sync"
	"time"
)

// DefaultBatchTTL is how long an uncommitted batch survives after creation.
const DefaultBatchTTL = 30 * time.Minute

// BatchStore is an in-memory staging area for import batches.
type BatchStore struct {
	mu      sync.RWMutex
	batches map[string]*StagedBatch
	ttl     time.Duration

	stop chan struct{}
	once sync.Once
}

// NewBatchStore creates a staging store and starts its expiry janitor.
func NewBatchStore(ttl time.Duration) *BatchStore {
	if ttl <= 0 {
		ttl = DefaultBatchTTL
	}
	s := &BatchStore{
		batches: make(map[string]*StagedBatch),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Put stores a freshly previewed batch.
func (s *BatchStore) Put(b *StagedBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
}

// Get returns a staged batch by ID, or ErrNotFound if it never existed or
// has expired. The result is a snapshot; readers never observe a concurrent
// commit claim flipping Committed under them.
func (s *BatchStore) Get(id string) (*StagedBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *b
	return &snapshot, nil
}

// BeginCommit atomically claims a batch for committing. A second commit of
// the same batch gets ErrBatchCommitted rather than a silent re-execution.
func (s *BatchStore) BeginCommit(id string) (*StagedBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Committed {
		return nil, ErrBatchCommitted
	}
	b.Committed = true
	return b, nil
}

// ReleaseCommit returns a batch to the uncommitted state after a failed
// commit transaction, so the caller can retry.
func (s *BatchStore) ReleaseCommit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.batches[id]; ok {
		b.Committed = false
	}
}

// Discard drops a batch outright.
func (s *BatchStore) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, id)
}

// Len returns the number of staged batches.
func (s *BatchStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batches)
}

// Close stops the expiry janitor.
func (s *BatchStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// janitor evicts expired batches once a minute. Committed batches are evicted
// on the same schedule; their durable trace is the ImportLog row.
func (s *BatchStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.evictExpired(now)
		}
	}
}

func (s *BatchStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, b := range s.batches {
		if now.Sub(b.CreatedAt) > s.ttl {
			delete(s.batches, id)
		}
	}
}
