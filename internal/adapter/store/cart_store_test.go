package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/usecase"
)

type memSnapshot struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
}

func (m *memSnapshot) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, usecase.ErrNoSnapshot
	}
	return append([]byte(nil), m.data...), nil
}

func (m *memSnapshot) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("cart_%d", n)
	}
}

func TestLoadMissingSnapshotStartsEmpty(t *testing.T) {
	s := NewCartStore(&memSnapshot{})
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 0, s.Len())
}

func TestLoadCorruptSnapshot(t *testing.T) {
	for name, raw := range map[string]string{
		"truncated":    `{"alice": {"cart_id": "c1", "items": {`,
		"blank":        "   ",
		"bad item key": `{"alice": {"cart_id": "c1", "items": {"abc": {"product_id": 1, "quantity": 1}}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			s := NewCartStore(&memSnapshot{data: []byte(raw)})
			err := s.Load(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, usecase.ErrStorageCorrupt), "got %v", err)
		})
	}
}

func TestLoadRepairsLines(t *testing.T) {
	raw := `{
    "alice": {
        "cart_id": "cart_a",
        "items": {
            "1": {"product_id": 1, "quantity": 2},
            "2": {"product_id": 7, "quantity": 1},
            "3": {"product_id": 3, "quantity": 0}
        }
    },
    "bob": {"cart_id": ""}
}`
	s := NewCartStore(&memSnapshot{data: []byte(raw)}, WithIDGenerator(seqIDs()))
	require.NoError(t, s.Load(context.Background()))

	alice, ok := s.Cart("alice")
	require.True(t, ok)
	assert.Equal(t, "cart_a", alice.ID)
	assert.Equal(t, map[int64]domain.LineItem{
		1: {ProductID: 1, Quantity: 2},
		2: {ProductID: 2, Quantity: 1},
	}, alice.Items)

	bob, ok := s.Cart("bob")
	require.True(t, ok)
	assert.Equal(t, "cart_1", bob.ID)
	assert.NotNil(t, bob.Items)
}

func TestGetOrCreate(t *testing.T) {
	s := NewCartStore(&memSnapshot{}, WithIDGenerator(seqIDs()))

	c, created := s.GetOrCreate("alice")
	assert.True(t, created)
	assert.Equal(t, "cart_1", c.ID)
	assert.Empty(t, c.Items)

	again, created := s.GetOrCreate("alice")
	assert.False(t, created)
	assert.Equal(t, "cart_1", again.ID)

	other, _ := s.GetOrCreate("bob")
	assert.Equal(t, "cart_2", other.ID)
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewCartID()
		require.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestMutateKeepsCartOnError(t *testing.T) {
	s := NewCartStore(&memSnapshot{})
	_, err := s.Mutate("alice", func(c *domain.Cart) error { return c.Add(1, 2) })
	require.NoError(t, err)

	_, err = s.Mutate("alice", func(c *domain.Cart) error {
		_ = c.Add(5, 5)
		return c.SetQuantity(1, 0)
	})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	c, _ := s.Cart("alice")
	assert.Equal(t, map[int64]domain.LineItem{1: {ProductID: 1, Quantity: 2}}, c.Items)
}

func TestMutateFailureOnNewUserCreatesNothing(t *testing.T) {
	s := NewCartStore(&memSnapshot{})
	_, err := s.Mutate("alice", func(c *domain.Cart) error { return c.Remove(1) })
	require.ErrorIs(t, err, domain.ErrItemNotInCart)
	assert.Equal(t, 0, s.Len())
}

func TestReturnedCartsAreCopies(t *testing.T) {
	s := NewCartStore(&memSnapshot{})
	c, _ := s.GetOrCreate("alice")
	c.Items[1] = domain.LineItem{ProductID: 1, Quantity: 99}

	stored, _ := s.Cart("alice")
	assert.Empty(t, stored.Items)
}

func TestSaveLoadRoundTripFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "dummy_cart.json")
	ctx := context.Background()

	s := NewCartStore(NewFileSnapshot(path))
	require.NoError(t, s.Load(ctx))
	_, err := s.Mutate("alice", func(c *domain.Cart) error { return c.Add(12, 3) })
	require.NoError(t, err)
	_, err = s.Mutate("bob", func(c *domain.Cart) error { return c.Add(1, 1) })
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))

	reloaded := NewCartStore(NewFileSnapshot(path))
	require.NoError(t, reloaded.Load(ctx))
	for _, user := range []string{"alice", "bob"} {
		want, _ := s.Cart(user)
		got, ok := reloaded.Cart(user)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"12": {`)
	assert.Contains(t, string(raw), `"cart_id"`)
}

func TestSaveError(t *testing.T) {
	snap := &memSnapshot{saveErr: errors.New("disk full")}
	s := NewCartStore(snap)
	_, err := s.Mutate("alice", func(c *domain.Cart) error { return c.Add(1, 1) })
	require.NoError(t, err)

	require.Error(t, s.Save(context.Background()))
	c, ok := s.Cart("alice")
	require.True(t, ok, "in-memory state survives a failed flush")
	assert.Equal(t, int64(1), c.Quantity(1))
}

func TestConcurrentMutateAndSave(t *testing.T) {
	snap := &memSnapshot{}
	s := NewCartStore(snap)
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := 0; u < 8; u++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := s.Mutate(user, func(c *domain.Cart) error { return c.Add(int64(i%5), 1) })
				assert.NoError(t, err)
				assert.NoError(t, s.Save(ctx))
			}
		}(fmt.Sprintf("user-%d", u))
	}
	wg.Wait()

	reloaded := NewCartStore(snap)
	require.NoError(t, reloaded.Load(ctx))
	for u := 0; u < 8; u++ {
		c, ok := reloaded.Cart(fmt.Sprintf("user-%d", u))
		require.True(t, ok)
		var total int64
		for _, l := range c.Items {
			total += l.Quantity
		}
		assert.Equal(t, int64(50), total)
	}
}
