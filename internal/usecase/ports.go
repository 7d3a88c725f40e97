package usecase

import (
	"context"

	domain "github.com/aq2208/gcart-api/internal/entity"
)

// Catalog is the read-only product lookup used for pricing.
type Catalog interface {
	Product(id int64) (domain.Product, bool)
}

// ProductQuery backs the public catalog endpoints.
type ProductQuery interface {
	Catalog
	List(skip, limit int) ([]domain.Product, int)
	Search(query string, skip, limit int) ([]domain.Product, int)
}

// UserDirectory resolves login names to accounts.
type UserDirectory interface {
	Lookup(username string) (domain.User, bool)
}

// CartStore owns the username -> cart mapping. Carts handed out are copies;
// changes only land through Mutate and only reach durable storage through Save.
type CartStore interface {
	// GetOrCreate returns the user's cart, creating an empty one with a fresh
	// id when absent. created reports whether that happened.
	GetOrCreate(username string) (cart domain.Cart, created bool)
	// Mutate applies fn to a copy of the user's cart (creating it if needed)
	// and stores the result only when fn returns nil.
	Mutate(username string, fn func(*domain.Cart) error) (domain.Cart, error)
	// Save writes the whole mapping to durable storage.
	Save(ctx context.Context) error
}

// SnapshotStore is the durable backend behind a CartStore: one opaque blob,
// overwritten atomically. Load returns ErrNoSnapshot when nothing was saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// CartEvents receives a notification after each persisted cart mutation.
type CartEvents interface {
	PublishChanged(ctx context.Context, msg CartChangedMsg) error
}
