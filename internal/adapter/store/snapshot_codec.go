package store

import (
	"encoding/json"
	"fmt"

	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/usecase"
)

// Snapshot layout, shared with the previous file-based store:
//
//	{ "<username>": { "cart_id": "cart_...", "items": { "<pid>": {"product_id": 1, "quantity": 2} } } }
func encodeSnapshot(carts map[string]domain.Cart) ([]byte, error) {
	return json.MarshalIndent(carts, "", "    ")
}

// decode parses a snapshot and repairs line-level inconsistencies it can
// fix without guessing: product_id is taken from its key, non-positive
// quantities are dropped and a missing cart_id is regenerated.
func (s *CartStore) decode(raw []byte) (map[string]domain.Cart, error) {
	var carts map[string]domain.Cart
	if err := json.Unmarshal(raw, &carts); err != nil {
		return nil, fmt.Errorf("%w: %w", usecase.ErrStorageCorrupt, err)
	}
	if carts == nil {
		carts = map[string]domain.Cart{}
	}

	for user, c := range carts {
		if c.ID == "" {
			c.ID = s.newID()
			s.log.Warn("cart without cart_id, assigned a new one", "user", user, "cart_id", c.ID)
		}
		if c.Items == nil {
			c.Items = map[int64]domain.LineItem{}
		}
		for pid, line := range c.Items {
			if line.Quantity <= 0 {
				s.log.Warn("dropping cart line with non-positive quantity", "user", user, "product_id", pid, "quantity", line.Quantity)
				delete(c.Items, pid)
				continue
			}
			if line.ProductID != pid {
				s.log.Warn("cart line product_id disagrees with its key", "user", user, "key", pid, "product_id", line.ProductID)
				line.ProductID = pid
				c.Items[pid] = line
			}
		}
		carts[user] = c
	}
	return carts, nil
}
