package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/usecase"
)

var (
	flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_store_flush_duration_ms",
		Help:    "Duration of cart snapshot writes in ms",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
	flushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_store_flush_failures_total",
		Help: "Total number of failed cart snapshot writes",
	})
	cartsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cart_store_carts",
		Help: "Number of carts held by the store",
	})
)

// CartStore keeps every user's cart in memory and mirrors the whole mapping
// to a SnapshotStore on Save. Stored carts are never mutated in place:
// Mutate swaps in a modified copy, so Save can encode under a read lock.
type CartStore struct {
	snap  usecase.SnapshotStore
	newID func() string
	log   *slog.Logger

	mu    sync.RWMutex
	carts map[string]domain.Cart

	// one flush at a time, so an older snapshot never lands after a newer one
	flushMu sync.Mutex
}

type Option func(*CartStore)

func WithIDGenerator(fn func() string) Option { return func(s *CartStore) { s.newID = fn } }
func WithLogger(l *slog.Logger) Option        { return func(s *CartStore) { s.log = l } }

func NewCartStore(snap usecase.SnapshotStore, opts ...Option) *CartStore {
	s := &CartStore{
		snap:  snap,
		newID: NewCartID,
		carts: map[string]domain.Cart{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.New("cart-store")
	}
	return s
}

// NewCartID returns a fresh random cart identifier.
func NewCartID() string {
	return "cart_" + uuid.NewString()
}

// Load replaces the in-memory mapping with the durable snapshot. A missing
// snapshot yields an empty store; an unparsable one is ErrStorageCorrupt.
func (s *CartStore) Load(ctx context.Context) error {
	raw, err := s.snap.Load(ctx)
	if errors.Is(err, usecase.ErrNoSnapshot) {
		s.log.Info("no cart snapshot found, starting empty")
		s.replace(map[string]domain.Cart{})
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "load cart snapshot")
	}

	carts, err := s.decode(raw)
	if err != nil {
		return err
	}
	s.replace(carts)
	s.log.Info("cart snapshot loaded", "carts", len(carts), "bytes", len(raw))
	return nil
}

func (s *CartStore) replace(carts map[string]domain.Cart) {
	s.mu.Lock()
	s.carts = carts
	s.mu.Unlock()
	cartsGauge.Set(float64(len(carts)))
}

func (s *CartStore) GetOrCreate(username string) (domain.Cart, bool) {
	s.mu.RLock()
	c, ok := s.carts[username]
	s.mu.RUnlock()
	if ok {
		return c.Clone(), false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[username]; ok {
		return c.Clone(), false
	}
	c = domain.NewCart(s.newID())
	s.carts[username] = c
	cartsGauge.Set(float64(len(s.carts)))
	return c.Clone(), true
}

func (s *CartStore) Mutate(username string, fn func(*domain.Cart) error) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.carts[username]
	if !ok {
		cur = domain.NewCart(s.newID())
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return domain.Cart{}, err
	}
	s.carts[username] = next
	cartsGauge.Set(float64(len(s.carts)))
	return next.Clone(), nil
}

func (s *CartStore) Save(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	start := time.Now()
	s.mu.RLock()
	raw, err := encodeSnapshot(s.carts)
	s.mu.RUnlock()
	if err != nil {
		flushFailures.Inc()
		return errors.Wrap(err, "encode cart snapshot")
	}

	err = s.snap.Save(ctx, raw)
	flushDuration.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		flushFailures.Inc()
		return errors.Wrap(err, "save cart snapshot")
	}
	return nil
}

// Cart returns a copy of the user's cart without creating one.
func (s *CartStore) Cart(username string) (domain.Cart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[username]
	if !ok {
		return domain.Cart{}, false
	}
	return c.Clone(), true
}

func (s *CartStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}

var _ usecase.CartStore = (*CartStore)(nil)
