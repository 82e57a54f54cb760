package pending

import (
	"sync"
)

// Backend persists pending records. Calls arrive from a single writer
// goroutine, apart from LoadAll.
type Backend interface {
	// Put stores p under key, replacing any existing record.
	Put(key Key, p Params) error

	// Delete removes the record for key. Deleting a missing key is not an error.
	Delete(key Key) error

	// LoadAll returns every stored record.
	LoadAll() (map[Key]Params, error)

	// Close releases the backend's resources.
	Close() error
}

// MemBackend is an in-memory Backend for tests. Setting Err makes every
// call fail with it.
type MemBackend struct {
	mu      sync.Mutex
	records map[Key]Params
	err     error
	writes  int
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{records: make(map[Key]Params)}
}

// Compile-time interface check.
var _ Backend = (*MemBackend)(nil)

// SetErr makes subsequent calls fail with err, or succeed again when nil.
func (m *MemBackend) SetErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Put stores p under key.
func (m *MemBackend) Put(key Key, p Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records[key] = p
	m.writes++
	return nil
}

// Delete removes key.
func (m *MemBackend) Delete(key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.records, key)
	m.writes++
	return nil
}

// LoadAll returns a copy of all records.
func (m *MemBackend) LoadAll() (map[Key]Params, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[Key]Params, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

// Close is a no-op.
func (m *MemBackend) Close() error { return nil }

// Writes reports how many Put and Delete calls succeeded.
func (m *MemBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
