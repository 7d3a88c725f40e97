package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/usecase"
)

const (
	defaultListLimit   = 30
	defaultSearchLimit = 10
)

type productResp struct {
	ID                 int64       `json:"id"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	Category           string      `json:"category,omitempty"`
	Brand              string      `json:"brand,omitempty"`
	Price              json.Number `json:"price"`
	DiscountPercentage json.Number `json:"discountPercentage"`
	Rating             float64     `json:"rating,omitempty"`
	Stock              int64       `json:"stock"`
	Tags               []string    `json:"tags"`
	Thumbnail          string      `json:"thumbnail,omitempty"`
	Images             []string    `json:"images,omitempty"`
}

type productPageResp struct {
	Products []productResp `json:"products"`
	Total    int           `json:"total"`
	Skip     int           `json:"skip"`
	Limit    int           `json:"limit"`
}

func toProductResp(p domain.Product) productResp {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return productResp{
		ID:                 p.ID,
		Title:              p.Title,
		Description:        p.Description,
		Category:           p.Category,
		Brand:              p.Brand,
		Price:              json.Number(p.Price.String()),
		DiscountPercentage: json.Number(p.DiscountPercentage.String()),
		Rating:             p.Rating,
		Stock:              p.Stock,
		Tags:               tags,
		Thumbnail:          p.Thumbnail,
		Images:             p.Images,
	}
}

func toPageResp(ps []domain.Product, total, skip, limit int) productPageResp {
	out := productPageResp{Products: make([]productResp, 0, len(ps)), Total: total, Skip: skip, Limit: limit}
	for _, p := range ps {
		out.Products = append(out.Products, toProductResp(p))
	}
	return out
}

type ProductHandler struct {
	products usecase.ProductQuery
}

func NewProductHandler(products usecase.ProductQuery) *ProductHandler {
	return &ProductHandler{products: products}
}

// GET /products?limit=30&skip=0
func (h *ProductHandler) List(c *gin.Context) {
	skip, limit := paging(c, defaultListLimit)
	ps, total := h.products.List(skip, limit)
	c.JSON(http.StatusOK, toPageResp(ps, total, skip, limit))
}

// GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, fmt.Sprintf("Invalid product id '%s'", raw))
		return
	}
	p, ok := h.products.Product(id)
	if !ok {
		notFound(c, fmt.Sprintf("Product with id '%d' not found", id))
		return
	}
	c.JSON(http.StatusOK, toProductResp(p))
}

// GET /products/search?q=phone&limit=10&skip=0
func (h *ProductHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		badRequest(c, "Search query 'q' is required")
		return
	}
	skip, limit := paging(c, defaultSearchLimit)
	ps, total := h.products.Search(q, skip, limit)
	c.JSON(http.StatusOK, toPageResp(ps, total, skip, limit))
}

// paging reads skip/limit. Malformed or negative values fall back to the
// defaults. There is no upper bound on limit.
func paging(c *gin.Context, defLimit int) (skip, limit int) {
	skip = queryInt(c, "skip", 0)
	limit = queryInt(c, "limit", defLimit)
	return skip, limit
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}
