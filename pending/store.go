// Package pending keeps the records that let an interrupted token transfer
// resume at its reveal step instead of broadcasting a second commit.
package pending

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bitfsorg/libkaspa-go/internal/log"
)

// writeOp is one queued backend mutation. A nil params deletes; a non-nil
// done marks a flush barrier and carries no mutation.
type writeOp struct {
	key    Key
	params *Params
	done   chan struct{}
}

// Store is the in-memory cache of pending records, persisted write-behind to
// a Backend. Reads never touch the backend. Mutations are applied to the
// cache and appended to an unbounded backlog under one mutex, so they never
// wait on the backend. A single writer goroutine drains the backlog in
// order, so writes for a key reach the backend in the order they were made.
// Backend failures are logged and otherwise ignored.
type Store struct {
	mu      sync.Mutex
	cache   map[Key]Params
	closed  bool
	backlog []writeOp
	wake    chan struct{}
	backend Backend
	wg      sync.WaitGroup
	log     zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore starts a store persisting to backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		cache:   make(map[Key]Params),
		wake:    make(chan struct{}, 1),
		backend: backend,
		log:     log.Pending,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.writer()
	return s
}

// enqueueLocked appends op to the backlog and wakes the writer. s.mu must be
// held.
func (s *Store) enqueueLocked(op writeOp) {
	s.backlog = append(s.backlog, op)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) writer() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		ops, closed := s.backlog, s.closed
		s.backlog = nil
		s.mu.Unlock()

		for _, op := range ops {
			s.apply(op)
		}
		if len(ops) > 0 {
			continue
		}
		if closed {
			return
		}
		<-s.wake
	}
}

func (s *Store) apply(op writeOp) {
	if op.done != nil {
		close(op.done)
		return
	}
	var err error
	if op.params == nil {
		err = s.backend.Delete(op.key)
	} else {
		err = s.backend.Put(op.key, *op.params)
	}
	if err != nil {
		s.log.Error().Err(err).Str("key", op.key.String()).Bool("delete", op.params == nil).
			Msg("persist pending record")
	}
}

// Get returns the cached record for key.
func (s *Store) Get(key Key) (Params, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.cache[key]
	return p, ok
}

// Put stores p under key, replacing any previous record.
func (s *Store) Put(key Key, p Params) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cache[key] = p
	s.enqueueLocked(writeOp{key: key, params: &p})
	return nil
}

// Remove deletes the record for key. Removing a missing key is a no-op.
func (s *Store) Remove(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.cache[key]; !ok {
		return nil
	}
	delete(s.cache, key)
	s.enqueueLocked(writeOp{key: key})
	return nil
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// Load merges the backend's records into the cache. Entries already in the
// cache win. Queued writes are flushed first so a pending delete cannot be
// undone by the load. A backend failure is logged and returned; whatever
// was readable is still merged.
func (s *Store) Load(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	records, err := s.backend.LoadAll()
	if err != nil {
		s.log.Error().Err(err).Msg("load pending records")
	}

	s.mu.Lock()
	merged := 0
	for k, v := range records {
		if _, ok := s.cache[k]; ok {
			continue
		}
		s.cache[k] = v
		merged++
	}
	s.mu.Unlock()

	s.log.Debug().Int("loaded", merged).Msg("pending records loaded")
	return err
}

// Flush waits until every mutation made before the call has been handed to
// the backend, or ctx is done.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.enqueueLocked(writeOp{done: done})
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains queued writes and closes the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.mu.Unlock()

	s.wg.Wait()
	return s.backend.Close()
}
