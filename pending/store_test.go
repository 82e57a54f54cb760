package pending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libkaspa-go/tx"
)

func testKey(contract string) Key {
	return Key{WalletID: "wallet-1", ContractAddress: contract}
}

func testParams(seed byte) Params {
	var id tx.Hash
	id[0] = seed
	return Params{
		CommitTransactionID: id,
		TargetOutputAmount:  20_000_000 + uint64(seed),
		Envelope: Envelope{
			Protocol:  "krc-20",
			Operation: "transfer",
			Ticker:    "kasp",
			Amount:    decimal.NewFromInt(int64(seed) * 100),
			Recipient: "kaspa:qq",
		},
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func newTestStore(t *testing.T, b Backend) *Store {
	t.Helper()
	s := NewStore(b, WithLogger(zerolog.Nop()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetRemove(t *testing.T) {
	backend := NewMemBackend()
	s := newTestStore(t, backend)
	ctx := context.Background()

	_, ok := s.Get(testKey("kasp"))
	assert.False(t, ok)

	require.NoError(t, s.Put(testKey("kasp"), testParams(1)))
	got, ok := s.Get(testKey("kasp"))
	require.True(t, ok)
	assert.Equal(t, testParams(1), got)

	// Overwrite.
	require.NoError(t, s.Put(testKey("kasp"), testParams(2)))
	got, _ = s.Get(testKey("kasp"))
	assert.Equal(t, testParams(2), got)

	require.NoError(t, s.Flush(ctx))
	stored, err := backend.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, testParams(2), stored[testKey("kasp")])

	require.NoError(t, s.Remove(testKey("kasp")))
	_, ok = s.Get(testKey("kasp"))
	assert.False(t, ok)

	require.NoError(t, s.Flush(ctx))
	stored, err = backend.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, stored)

	// Removing a missing key is a no-op.
	writes := backend.Writes()
	require.NoError(t, s.Remove(testKey("other")))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, writes, backend.Writes())
}

func TestStore_KeysAreStructured(t *testing.T) {
	s := newTestStore(t, NewMemBackend())
	a := Key{WalletID: "w/1", ContractAddress: "c"}
	b := Key{WalletID: "w", ContractAddress: "1/c"}

	require.NoError(t, s.Put(a, testParams(1)))
	require.NoError(t, s.Put(b, testParams(2)))
	assert.Equal(t, 2, s.Len())

	got, _ := s.Get(a)
	assert.Equal(t, testParams(1), got)
}

func TestStore_InvalidKey(t *testing.T) {
	s := newTestStore(t, NewMemBackend())
	assert.ErrorIs(t, s.Put(Key{WalletID: "w"}, testParams(1)), ErrInvalidKey)
	assert.ErrorIs(t, s.Put(Key{ContractAddress: "c"}, testParams(1)), ErrInvalidKey)
}

func TestStore_WritesReachBackendInOrder(t *testing.T) {
	backend := NewMemBackend()
	s := newTestStore(t, backend)
	key := testKey("kasp")

	for i := 0; i < 200; i++ {
		require.NoError(t, s.Put(key, testParams(byte(i))))
		if i%3 == 0 {
			require.NoError(t, s.Remove(key))
		}
	}
	require.NoError(t, s.Flush(context.Background()))

	stored, err := backend.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, testParams(199), stored[key])
}

func TestStore_BackendFailureIsNotReturned(t *testing.T) {
	backend := NewMemBackend()
	backend.SetErr(errors.New("disk full"))
	s := newTestStore(t, backend)

	require.NoError(t, s.Put(testKey("kasp"), testParams(1)))
	require.NoError(t, s.Flush(context.Background()))

	got, ok := s.Get(testKey("kasp"))
	require.True(t, ok)
	assert.Equal(t, testParams(1), got)
	assert.Zero(t, backend.Writes())
}

func TestStore_LoadCacheWins(t *testing.T) {
	backend := NewMemBackend()
	require.NoError(t, backend.Put(testKey("a"), testParams(1)))
	require.NoError(t, backend.Put(testKey("b"), testParams(2)))

	s := NewStore(backend, WithLogger(zerolog.Nop()))
	t.Cleanup(func() { _ = s.Close() })

	// Write directly to the cache so the backend still holds the old value
	// when Load reads it.
	s.mu.Lock()
	s.cache[testKey("a")] = testParams(9)
	s.mu.Unlock()

	require.NoError(t, s.Load(context.Background()))
	a, _ := s.Get(testKey("a"))
	b, _ := s.Get(testKey("b"))
	assert.Equal(t, testParams(9), a)
	assert.Equal(t, testParams(2), b)
}

func TestStore_LoadDoesNotResurrectRemoved(t *testing.T) {
	backend := NewMemBackend()
	s := newTestStore(t, backend)
	require.NoError(t, s.Put(testKey("a"), testParams(1)))
	require.NoError(t, s.Remove(testKey("a")))

	require.NoError(t, s.Load(context.Background()))
	_, ok := s.Get(testKey("a"))
	assert.False(t, ok)
}

func TestStore_LoadBackendError(t *testing.T) {
	backend := NewMemBackend()
	backend.SetErr(errors.New("unreadable"))
	s := newTestStore(t, backend)

	err := s.Load(context.Background())
	assert.Error(t, err)
	assert.Zero(t, s.Len())
}

func TestStore_Close(t *testing.T) {
	backend := NewMemBackend()
	s := NewStore(backend, WithLogger(zerolog.Nop()))

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Put(testKey(fmt.Sprint(i)), testParams(byte(i))))
	}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	stored, err := backend.LoadAll()
	require.NoError(t, err)
	assert.Len(t, stored, 10)

	assert.ErrorIs(t, s.Put(testKey("x"), testParams(1)), ErrClosed)
	assert.ErrorIs(t, s.Remove(testKey("1")), ErrClosed)
	assert.ErrorIs(t, s.Flush(context.Background()), ErrClosed)
}

func TestStore_FlushHonorsContext(t *testing.T) {
	block := make(chan struct{})
	backend := &blockingBackend{MemBackend: NewMemBackend(), block: block}
	s := NewStore(backend, WithLogger(zerolog.Nop()))
	defer func() {
		close(block)
		_ = s.Close()
	}()

	require.NoError(t, s.Put(testKey("a"), testParams(1)))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)
}

func TestStore_StalledBackendDoesNotBlockCallers(t *testing.T) {
	block := make(chan struct{})
	backend := &blockingBackend{MemBackend: NewMemBackend(), block: block}
	s := NewStore(backend, WithLogger(zerolog.Nop()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = s.Put(testKey(fmt.Sprint(i%7)), testParams(byte(i)))
			if i%5 == 0 {
				_ = s.Remove(testKey(fmt.Sprint(i % 7)))
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("mutations blocked on a stalled backend")
	}

	got, ok := s.Get(testKey("2"))
	require.True(t, ok)
	assert.Equal(t, testParams(byte(499 % 256)), got)
	assert.Zero(t, backend.Writes())

	close(block)
	require.NoError(t, s.Flush(context.Background()))
	stored, err := backend.LoadAll()
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		want, ok := s.Get(testKey(fmt.Sprint(i)))
		have, persisted := stored[testKey(fmt.Sprint(i))]
		assert.Equal(t, ok, persisted, "key %d", i)
		assert.Equal(t, want, have, "key %d", i)
	}
	require.NoError(t, s.Close())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(t, NewMemBackend())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := testKey(fmt.Sprint(i % 5))
			_ = s.Put(key, testParams(byte(i)))
			_, _ = s.Get(key)
			if i%4 == 0 {
				_ = s.Remove(key)
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.Flush(context.Background()))
	assert.LessOrEqual(t, s.Len(), 5)
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, testParams(1).Validate())

	p := testParams(1)
	p.CommitTransactionID = tx.Hash{}
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)

	p = testParams(1)
	p.TargetOutputAmount = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)

	p = testParams(1)
	p.Envelope.Recipient = ""
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
}

// blockingBackend stalls every Put until block is closed.
type blockingBackend struct {
	*MemBackend
	block chan struct{}
}

func (b *blockingBackend) Put(key Key, p Params) error {
	<-b.block
	return b.MemBackend.Put(key, p)
}
