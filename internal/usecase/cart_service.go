package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/logging"
)

var eventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cart_event_publish_failures_total",
	Help: "Cart change events that could not be published.",
}, []string{"action"})

type AddItemInput struct {
	ProductID      int64
	Quantity       int64
	IdempotencyKey string
}

// CartService runs every cart operation as lock(user) -> get-or-create ->
// mutate -> save -> price. Requests for one user are strictly ordered;
// different users only share the store's own short critical sections.
type CartService struct {
	store   CartStore
	catalog Catalog
	idem    IdempotencyStore // optional
	events  CartEvents       // optional
	locks   *userLocks
	log     *slog.Logger
	now     func() time.Time
}

type Option func(*CartService)

func WithIdempotency(s IdempotencyStore) Option { return func(c *CartService) { c.idem = s } }
func WithEvents(e CartEvents) Option            { return func(c *CartService) { c.events = e } }
func WithLogger(l *slog.Logger) Option          { return func(c *CartService) { c.log = l } }

func NewCartService(store CartStore, catalog Catalog, opts ...Option) *CartService {
	s := &CartService{
		store:   store,
		catalog: catalog,
		locks:   newUserLocks(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.New("cart-service")
	}
	return s
}

func (s *CartService) View(ctx context.Context, who domain.Identity) (domain.PricedCart, error) {
	if !who.Authenticated() {
		return domain.PricedCart{}, ErrUnauthenticated
	}
	unlock := s.locks.lock(who.Username)
	defer unlock()

	cart, created := s.store.GetOrCreate(who.Username)
	if created {
		// the new cart id must survive a restart; a failed flush is retried by the next mutation
		if err := s.store.Save(ctx); err != nil {
			s.logger(ctx).Warn("persist new cart failed", "user", who.Username, "cart_id", cart.ID, "err", err)
		}
	}
	return s.price(ctx, who, cart), nil
}

func (s *CartService) AddItem(ctx context.Context, who domain.Identity, in AddItemInput) (domain.PricedCart, error) {
	if !who.Authenticated() {
		return domain.PricedCart{}, ErrUnauthenticated
	}
	if in.Quantity <= 0 {
		return domain.PricedCart{}, ErrInvalidQuantity
	}
	if _, ok := s.catalog.Product(in.ProductID); !ok {
		return domain.PricedCart{}, ErrProductNotFound
	}

	unlock := s.locks.lock(who.Username)
	defer unlock()

	useIdem := s.idem != nil && in.IdempotencyKey != ""
	if useIdem {
		// replay: the first request with this key already applied
		_, ok, err := s.idem.Recall(ctx, who.Username, in.IdempotencyKey)
		if err != nil {
			return domain.PricedCart{}, errors.Wrap(err, "idempotency recall")
		}
		if ok {
			cart, _ := s.store.GetOrCreate(who.Username)
			return s.price(ctx, who, cart), nil
		}
		ok, err = s.idem.TryLock(ctx, who.Username, in.IdempotencyKey)
		if err != nil {
			return domain.PricedCart{}, errors.Wrap(err, "idempotency lock")
		}
		if !ok {
			return domain.PricedCart{}, ErrDuplicate
		}
	}

	cart, err := s.mutate(ctx, who, ActionAdd, in.ProductID, func(c *domain.Cart) error {
		return c.Add(in.ProductID, in.Quantity)
	})
	if err != nil && !errors.Is(err, ErrStorageWrite) {
		return domain.PricedCart{}, err
	}
	if useIdem {
		// remembered even when the flush failed: the line is applied in memory
		if rerr := s.idem.Remember(ctx, who.Username, in.IdempotencyKey, cart.ID); rerr != nil {
			// the key stays locked until its TTL, so retries get ErrDuplicate
			s.logger(ctx).Error("idempotency remember failed",
				"user", who.Username, "cart_id", cart.ID, "idempotency_key", in.IdempotencyKey, "err", rerr)
		}
	}
	if err != nil {
		return domain.PricedCart{}, err
	}
	return s.price(ctx, who, cart), nil
}

// SetItemQuantity replaces the quantity of a line already in the cart.
// quantity <= 0 is rejected; removal is RemoveItem.
func (s *CartService) SetItemQuantity(ctx context.Context, who domain.Identity, productID, quantity int64) (domain.PricedCart, error) {
	if !who.Authenticated() {
		return domain.PricedCart{}, ErrUnauthenticated
	}
	if quantity <= 0 {
		return domain.PricedCart{}, ErrInvalidQuantity
	}

	unlock := s.locks.lock(who.Username)
	defer unlock()

	cart, err := s.mutate(ctx, who, ActionSet, productID, func(c *domain.Cart) error {
		return c.SetQuantity(productID, quantity)
	})
	if err != nil {
		return domain.PricedCart{}, err
	}
	return s.price(ctx, who, cart), nil
}

func (s *CartService) RemoveItem(ctx context.Context, who domain.Identity, productID int64) (domain.PricedCart, error) {
	if !who.Authenticated() {
		return domain.PricedCart{}, ErrUnauthenticated
	}

	unlock := s.locks.lock(who.Username)
	defer unlock()

	cart, err := s.mutate(ctx, who, ActionRemove, productID, func(c *domain.Cart) error {
		return c.Remove(productID)
	})
	if err != nil {
		return domain.PricedCart{}, err
	}
	return s.price(ctx, who, cart), nil
}

// mutate must be called with the user's lock held. On ErrStorageWrite the
// returned cart is the applied in-memory state.
func (s *CartService) mutate(ctx context.Context, who domain.Identity, action string, productID int64, fn func(*domain.Cart) error) (domain.Cart, error) {
	cart, err := s.store.Mutate(who.Username, fn)
	if err != nil {
		return domain.Cart{}, err
	}

	if err := s.store.Save(ctx); err != nil {
		s.logger(ctx).Error("cart flush failed, mutation kept in memory",
			"user", who.Username, "cart_id", cart.ID, "action", action, "product_id", productID, "err", err)
		return cart, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	if s.events != nil {
		msg := CartChangedMsg{
			CartID:    cart.ID,
			Username:  who.Username,
			UserID:    who.UserID,
			Action:    action,
			ProductID: productID,
			Quantity:  cart.Quantity(productID),
			At:        s.now().UTC(),
		}
		// best-effort, the cart is already durable
		if err := s.events.PublishChanged(ctx, msg); err != nil {
			eventPublishFailures.WithLabelValues(action).Inc()
			s.logger(ctx).Warn("publish cart event failed", "cart_id", cart.ID, "action", action, "err", err)
		}
	}
	return cart, nil
}

func (s *CartService) price(ctx context.Context, who domain.Identity, cart domain.Cart) domain.PricedCart {
	view, missing := PriceCart(cart, s.catalog)
	if len(missing) > 0 {
		s.logger(ctx).Warn("cart references products missing from catalog",
			"user", who.Username, "cart_id", cart.ID, "product_ids", missing)
	}
	if who.UserID != 0 {
		id := who.UserID
		view.UserID = &id
	}
	return view
}

// request-scoped logger when the HTTP layer put one on ctx
func (s *CartService) logger(ctx context.Context) *slog.Logger {
	if l := logging.FromCtxOr(ctx, nil); l != nil {
		return l
	}
	return s.log
}
