package usecase

import (
	"github.com/go-faster/errors"

	domain "github.com/aq2208/gcart-api/internal/entity"
)

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidQuantity    = domain.ErrInvalidQuantity
	ErrItemNotInCart      = domain.ErrItemNotInCart
	ErrQuantityTooLarge   = domain.ErrQuantityTooLarge
	ErrProductNotFound    = errors.New("product not found")
	ErrDuplicate          = errors.New("duplicate idempotency key")

	// ErrStorageWrite means the mutation was applied in memory but the flush
	// to durable storage failed.
	ErrStorageWrite = errors.New("cart storage write failed")
	// ErrStorageCorrupt is returned by Load when the snapshot exists but
	// cannot be parsed. The process must not start serving.
	ErrStorageCorrupt = errors.New("cart storage corrupt")
	ErrNoSnapshot     = errors.New("no cart snapshot")
)
