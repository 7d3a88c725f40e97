package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-faster/errors"

	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/usecase"
)

// JSONCatalog is the static product catalog, loaded once and read-only
// afterwards, so it needs no locking.
type JSONCatalog struct {
	products []domain.Product
	byID     map[int64]int
}

// LoadJSONCatalog reads a JSON array of products, or an object with a
// "products" array (the dummyjson export format).
func LoadJSONCatalog(path string) (*JSONCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}

	var products []domain.Product
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Products []domain.Product `json:"products"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, errors.Wrap(err, "parse products file")
		}
		products = env.Products
	} else if err := json.Unmarshal(raw, &products); err != nil {
		return nil, errors.Wrap(err, "parse products file")
	}
	return NewJSONCatalog(products)
}

func NewJSONCatalog(products []domain.Product) (*JSONCatalog, error) {
	c := &JSONCatalog{
		products: make([]domain.Product, 0, len(products)),
		byID:     make(map[int64]int, len(products)),
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %d", p.ID)
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

func (c *JSONCatalog) Product(id int64) (domain.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[i], true
}

// List returns products[skip:skip+limit] in file order plus the total count.
func (c *JSONCatalog) List(skip, limit int) ([]domain.Product, int) {
	return page(c.products, skip, limit), len(c.products)
}

// Search matches query case-insensitively against title, description and
// tags; total is the number of matches before paging.
func (c *JSONCatalog) Search(query string, skip, limit int) ([]domain.Product, int) {
	q := strings.ToLower(query)
	var hits []domain.Product
	for _, p := range c.products {
		if matches(p, q) {
			hits = append(hits, p)
		}
	}
	return page(hits, skip, limit), len(hits)
}

func (c *JSONCatalog) Len() int { return len(c.products) }

func matches(p domain.Product, q string) bool {
	if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func page(ps []domain.Product, skip, limit int) []domain.Product {
	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}
	if skip >= len(ps) {
		return []domain.Product{}
	}
	if limit > len(ps)-skip {
		return ps[skip:]
	}
	return ps[skip : skip+limit]
}

var _ usecase.ProductQuery = (*JSONCatalog)(nil)
