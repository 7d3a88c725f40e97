package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/aq2208/gcart-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/usecase"
)

const (
	msgMissingFields    = "Missing product_id or quantity"
	msgInvalidProductID = "Invalid product_id, must be an integer"
	msgInvalidQuantity  = "Invalid quantity, must be a positive integer"
	msgNotInCart        = "Product not found in cart"
	msgQuantityTooLarge = "Quantity too large, a cart holds at most 9223372036854775807 items"
)

var (
	errInvalidProductID = errors.New("invalid product_id")
	errInvalidQuantity  = errors.New("invalid quantity")
	errQuantityTooLarge = errors.New("quantity too large")
)

// productRef accepts 5 or "5". Fractions, floats and other strings are
// rejected.
type productRef int64

func (p *productRef) UnmarshalJSON(b []byte) error {
	s := string(b)
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return errInvalidProductID
		}
		s = strings.TrimSpace(str)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errInvalidProductID
	}
	*p = productRef(n)
	return nil
}

// quantityField is a JSON integer literal. Integers beyond int64 are told
// apart from non-integers so the client learns about the cap.
type quantityField int64

func (q *quantityField) UnmarshalJSON(b []byte) error {
	s := string(b)
	n, err := strconv.ParseInt(s, 10, 64)
	switch {
	case err == nil:
		*q = quantityField(n)
		return nil
	case errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(s, "-"):
		return errQuantityTooLarge
	default:
		return errInvalidQuantity
	}
}

type addItemReq struct {
	ProductID *productRef    `json:"product_id"`
	Quantity  *quantityField `json:"quantity"`
}

type setQuantityReq struct {
	Quantity *quantityField `json:"quantity"`
}

type cartProductResp struct {
	ID                 int64       `json:"id"`
	Title              string      `json:"title"`
	Price              json.Number `json:"price"`
	Quantity           int64       `json:"quantity"`
	Total              json.Number `json:"total"`
	DiscountPercentage json.Number `json:"discountPercentage"`
	DiscountedPrice    json.Number `json:"discountedPrice"`
}

type cartResp struct {
	ID              string            `json:"id"`
	Products        []cartProductResp `json:"products"`
	Total           json.Number       `json:"total"`
	DiscountedTotal json.Number       `json:"discountedTotal"`
	UserID          *int64            `json:"userId"`
	TotalProducts   int               `json:"totalProducts"`
	TotalQuantity   int64             `json:"totalQuantity"`
}

func toCartResp(v domain.PricedCart) cartResp {
	out := cartResp{
		ID:              v.CartID,
		Products:        make([]cartProductResp, 0, len(v.Lines)),
		Total:           json.Number(v.Total.StringFixed(2)),
		DiscountedTotal: json.Number(v.DiscountedTotal.StringFixed(2)),
		UserID:          v.UserID,
		TotalProducts:   v.TotalProducts,
		TotalQuantity:   v.TotalQuantity,
	}
	for _, l := range v.Lines {
		out.Products = append(out.Products, cartProductResp{
			ID:                 l.ProductID,
			Title:              l.Title,
			Price:              json.Number(l.Price.String()),
			Quantity:           l.Quantity,
			Total:              json.Number(l.Total.StringFixed(2)),
			DiscountPercentage: json.Number(l.DiscountPercentage.String()),
			DiscountedPrice:    json.Number(l.DiscountedTotal.StringFixed(2)),
		})
	}
	return out
}

type CartHandler struct {
	carts   *usecase.CartService
	timeout time.Duration
}

func NewCartHandler(carts *usecase.CartService, timeout time.Duration) *CartHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &CartHandler{carts: carts, timeout: timeout}
}

// GET /cart
func (h *CartHandler) View(c *gin.Context) {
	who, _ := middleware.IdentityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.View(ctx, who)
	if err != nil {
		writeError(c, err)
		return
	}
	h.ok(c, view)
}

// POST /cart/add {"product_id": 5, "quantity": 2}
// Optional X-Idempotency-Key makes retries of the same add safe.
func (h *CartHandler) AddItem(c *gin.Context) {
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.CountCartMutation(usecase.ActionAdd, "bad_request")
		badRequest(c, bodyErrMessage(err))
		return
	}
	if req.ProductID == nil || req.Quantity == nil {
		middleware.CountCartMutation(usecase.ActionAdd, "bad_request")
		badRequest(c, msgMissingFields)
		return
	}

	who, _ := middleware.IdentityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.AddItem(ctx, who, usecase.AddItemInput{
		ProductID:      int64(*req.ProductID),
		Quantity:       int64(*req.Quantity),
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"),
	})
	h.finish(c, usecase.ActionAdd, view, err)
}

// PUT /cart/item/:productId {"quantity": 3}
func (h *CartHandler) SetItemQuantity(c *gin.Context) {
	productID, ok := pathProductID(c)
	if !ok {
		middleware.CountCartMutation(usecase.ActionSet, "not_found")
		notFound(c, msgNotInCart)
		return
	}

	var req setQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.CountCartMutation(usecase.ActionSet, "bad_request")
		badRequest(c, bodyErrMessage(err))
		return
	}
	if req.Quantity == nil {
		middleware.CountCartMutation(usecase.ActionSet, "bad_request")
		badRequest(c, msgInvalidQuantity)
		return
	}

	who, _ := middleware.IdentityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.SetItemQuantity(ctx, who, productID, int64(*req.Quantity))
	h.finish(c, usecase.ActionSet, view, err)
}

// DELETE /cart/item/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID, ok := pathProductID(c)
	if !ok {
		middleware.CountCartMutation(usecase.ActionRemove, "not_found")
		notFound(c, msgNotInCart)
		return
	}

	who, _ := middleware.IdentityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.RemoveItem(ctx, who, productID)
	h.finish(c, usecase.ActionRemove, view, err)
}

func (h *CartHandler) finish(c *gin.Context, action string, view domain.PricedCart, err error) {
	if err != nil {
		_, code, _ := apiError(err)
		middleware.CountCartMutation(action, code)
		writeError(c, err)
		return
	}
	middleware.CountCartMutation(action, "ok")
	h.ok(c, view)
}

func (h *CartHandler) ok(c *gin.Context, view domain.PricedCart) {
	logging.With(c, logging.From(c).With("cart_id", view.CartID))
	c.JSON(http.StatusOK, toCartResp(view))
}

// A non-integer id can't be in any cart, so it reads as "not in cart".
func pathProductID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	return id, err == nil
}

func bodyErrMessage(err error) string {
	switch {
	case errors.Is(err, errInvalidProductID):
		return msgInvalidProductID
	case errors.Is(err, errInvalidQuantity):
		return msgInvalidQuantity
	case errors.Is(err, errQuantityTooLarge):
		return msgQuantityTooLarge
	case errors.Is(err, io.EOF):
		return msgMissingFields
	default:
		return "Request body must be a JSON object"
	}
}
