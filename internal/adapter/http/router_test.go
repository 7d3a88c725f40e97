package http

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aq2208/gcart-api/internal/adapter/cache"
	"github.com/aq2208/gcart-api/internal/adapter/catalog"
	"github.com/aq2208/gcart-api/internal/adapter/http/middleware"
	"github.com/aq2208/gcart-api/internal/adapter/store"
	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/security"
	"github.com/aq2208/gcart-api/internal/usecase"
)

const (
	testSecret   = "test-secret"
	testIssuer   = "cart-api"
	testAudience = "cart-web"
)

func init() { gin.SetMode(gin.TestMode) }

type memSnapshot struct {
	mu   sync.Mutex
	data []byte
	fail bool
}

func (m *memSnapshot) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, usecase.ErrNoSnapshot
	}
	return m.data, nil
}

func (m *memSnapshot) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memSnapshot) setFail(v bool) {
	m.mu.Lock()
	m.fail = v
	m.mu.Unlock()
}

type testAPI struct {
	router *gin.Engine
	snap   *memSnapshot
	tokens *security.Tokens
	token  string
}

func newTestAPI(t *testing.T, opts ...usecase.Option) *testAPI {
	t.Helper()
	products, err := catalog.NewJSONCatalog([]domain.Product{
		{ID: 1, Title: "Mascara", Description: "lash princess", Price: decimal.RequireFromString("10.00"), DiscountPercentage: decimal.NewFromInt(10), Tags: []string{"beauty"}},
		{ID: 2, Title: "Palette", Description: "eyeshadow", Price: decimal.RequireFromString("19.99"), DiscountPercentage: decimal.RequireFromString("12.5"), Tags: []string{"beauty"}},
		{ID: 3, Title: "Apple", Description: "fresh fruit", Price: decimal.RequireFromString("1.99")},
	})
	require.NoError(t, err)
	users := catalog.NewJSONUsers([]domain.User{
		{ID: 1, Username: "emilys", Password: "emilyspass", FirstName: "Emily"},
		{ID: 2, Username: "michaelw", Password: "michaelwpass"},
	})

	snap := &memSnapshot{}
	carts := store.NewCartStore(snap)
	require.NoError(t, carts.Load(context.Background()))

	tokens := security.NewTokens(testSecret, testIssuer, testAudience, time.Hour)
	h := Handlers{
		Cart:    NewCartHandler(usecase.NewCartService(carts, products, opts...), time.Second),
		Product: NewProductHandler(products),
		Auth:    NewAuthHandler(usecase.NewLogin(users), tokens),
		Health:  NewHealthHandler(carts),
	}
	api := &testAPI{
		router: NewRouter(h, middleware.NewAuthz(tokens), RouterOptions{}),
		snap:   snap,
		tokens: tokens,
	}
	api.token, err = tokens.Issue(domain.User{ID: 1, Username: "emilys"})
	require.NoError(t, err)
	return api
}

func (a *testAPI) do(method, path, body, token string, headers ...string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, r)
	return w
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) cartResp {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out cartResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) errorResp {
	t.Helper()
	var out errorResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCartRequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/cart", ""},
		{http.MethodPost, "/cart/add", `{"product_id": "bad"}`},
		{http.MethodPut, "/cart/item/1", `{"quantity": 1}`},
		{http.MethodDelete, "/cart/item/1", ""},
	} {
		w := api.do(tc.method, tc.path, tc.body, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)

		w = api.do(tc.method, tc.path, tc.body, "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}
}

func TestCartMissingPermission(t *testing.T) {
	api := newTestAPI(t)
	readOnly, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": testIssuer, "aud": testAudience, "sub": "emilys", "uid": "1",
		"exp": time.Now().Add(time.Hour).Unix(), "perms": []string{security.PermCartRead},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/cart", "", readOnly).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/cart/add", `{"product_id":1,"quantity":1}`, readOnly).Code)
}

func TestLoginAndMe(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/auth/login", `{"username":"emilys","password":"emilyspass"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login loginResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, "emilys", login.Username)
	assert.Equal(t, int64(3600), login.ExpiresIn)
	assert.NotContains(t, w.Body.String(), "emilyspass")

	w = api.do(http.MethodGet, "/auth/me", "", login.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"firstName":"Emily"`)

	w = api.do(http.MethodPost, "/auth/login", `{"username":"emilys","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", decodeErr(t, w).Error)

	w = api.do(http.MethodPost, "/auth/login", `{"username":"emilys"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/auth/me", "", "").Code)
}

func TestMeUnknownSubject(t *testing.T) {
	api := newTestAPI(t)
	ghost, err := api.tokens.Issue(domain.User{ID: 9, Username: "ghost"})
	require.NoError(t, err)

	w := api.do(http.MethodGet, "/auth/me", "", ghost)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestViewEmptyCart(t *testing.T) {
	api := newTestAPI(t)

	first := decodeCart(t, api.do(http.MethodGet, "/cart", "", api.token))
	assert.NotEmpty(t, first.ID)
	assert.Empty(t, first.Products)
	assert.Equal(t, json.Number("0.00"), first.Total)
	assert.Equal(t, 0, first.TotalProducts)
	require.NotNil(t, first.UserID)
	assert.Equal(t, int64(1), *first.UserID)

	again := decodeCart(t, api.do(http.MethodGet, "/cart", "", api.token))
	assert.Equal(t, first.ID, again.ID)
	assert.Contains(t, string(api.snap.data), first.ID)
}

func TestAddItemPricing(t *testing.T) {
	api := newTestAPI(t)

	got := decodeCart(t, api.do(http.MethodPost, "/cart/add", `{"product_id": 1, "quantity": 3}`, api.token))
	require.Len(t, got.Products, 1)
	line := got.Products[0]
	assert.Equal(t, int64(1), line.ID)
	assert.Equal(t, "Mascara", line.Title)
	assert.Equal(t, int64(3), line.Quantity)
	assert.Equal(t, json.Number("30.00"), line.Total)
	assert.Equal(t, json.Number("27.00"), line.DiscountedPrice)
	assert.Equal(t, json.Number("30.00"), got.Total)
	assert.Equal(t, json.Number("27.00"), got.DiscountedTotal)

	// string ids are accepted and quantities accumulate
	got = decodeCart(t, api.do(http.MethodPost, "/cart/add", `{"product_id": "2", "quantity": 3}`, api.token))
	require.Len(t, got.Products, 2)
	assert.Equal(t, int64(1), got.Products[0].ID)
	assert.Equal(t, json.Number("59.97"), got.Products[1].Total)
	assert.Equal(t, json.Number("52.47"), got.Products[1].DiscountedPrice)
	assert.Equal(t, json.Number("89.97"), got.Total)
	assert.Equal(t, json.Number("79.47"), got.DiscountedTotal)
	assert.Equal(t, 2, got.TotalProducts)
	assert.Equal(t, int64(6), got.TotalQuantity)
}

func TestAddItemRejects(t *testing.T) {
	api := newTestAPI(t)

	for name, tc := range map[string]struct {
		body   string
		status int
		msg    string
	}{
		"empty body":        {"", http.StatusBadRequest, msgMissingFields},
		"missing quantity":  {`{"product_id": 1}`, http.StatusBadRequest, msgMissingFields},
		"missing product":   {`{"quantity": 1}`, http.StatusBadRequest, msgMissingFields},
		"null quantity":     {`{"product_id": 1, "quantity": null}`, http.StatusBadRequest, msgMissingFields},
		"fraction id":       {`{"product_id": 1.5, "quantity": 1}`, http.StatusBadRequest, msgInvalidProductID},
		"word id":           {`{"product_id": "abc", "quantity": 1}`, http.StatusBadRequest, msgInvalidProductID},
		"zero quantity":     {`{"product_id": 1, "quantity": 0}`, http.StatusBadRequest, msgInvalidQuantity},
		"negative quantity": {`{"product_id": 1, "quantity": -2}`, http.StatusBadRequest, msgInvalidQuantity},
		"fraction quantity": {`{"product_id": 1, "quantity": 2.5}`, http.StatusBadRequest, msgInvalidQuantity},
		"string quantity":   {`{"product_id": 1, "quantity": "2"}`, http.StatusBadRequest, msgInvalidQuantity},
		"int64 overflow":    {`{"product_id": 1, "quantity": 9223372036854775808}`, http.StatusBadRequest, msgQuantityTooLarge},
		"negative overflow": {`{"product_id": 1, "quantity": -9223372036854775809}`, http.StatusBadRequest, msgInvalidQuantity},
		"not an object":     {`[1, 2]`, http.StatusBadRequest, "Request body must be a JSON object"},
		"unknown product":   {`{"product_id": 99, "quantity": 1}`, http.StatusNotFound, "Product not found"},
	} {
		t.Run(name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/cart/add", tc.body, api.token)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.msg, decodeErr(t, w).Message)
		})
	}

	got := decodeCart(t, api.do(http.MethodGet, "/cart", "", api.token))
	assert.Empty(t, got.Products, "rejected requests must not touch the cart")
}

func TestAddItemQuantityCap(t *testing.T) {
	api := newTestAPI(t)
	got := decodeCart(t, api.do(http.MethodPost, "/cart/add", `{"product_id": 3, "quantity": 9223372036854775807}`, api.token))
	require.Len(t, got.Products, 1)
	assert.Equal(t, int64(math.MaxInt64), got.TotalQuantity)

	w := api.do(http.MethodPost, "/cart/add", `{"product_id": 3, "quantity": 1}`, api.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgQuantityTooLarge, decodeErr(t, w).Message)

	w = api.do(http.MethodPost, "/cart/add", `{"product_id": 1, "quantity": 1}`, api.token)
	assert.Equal(t, http.StatusBadRequest, w.Code, "the cap covers the whole cart")

	got = decodeCart(t, api.do(http.MethodGet, "/cart", "", api.token))
	require.Len(t, got.Products, 1)
	assert.Equal(t, int64(math.MaxInt64), got.Products[0].Quantity)
}

func TestSetItemQuantity(t *testing.T) {
	api := newTestAPI(t)
	decodeCart(t, api.do(http.MethodPost, "/cart/add", `{"product_id": 1, "quantity": 2}`, api.token))

	got := decodeCart(t, api.do(http.MethodPut, "/cart/item/1", `{"quantity": 5}`, api.token))
	require.Len(t, got.Products, 1)
	assert.Equal(t, int64(5), got.Products[0].Quantity)

	w := api.do(http.MethodPut, "/cart/item/1", `{"quantity": 0}`, api.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPut, "/cart/item/1", `{}`, api.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPut, "/cart/item/2", `{"quantity": 1}`, api.token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, msgNotInCart, decodeErr(t, w).Message)
	w = api.do(http.MethodPut, "/cart/item/abc", `{"quantity": 1}`, api.token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	got = decodeCart(t, api.do(http.MethodGet, "/cart", "", api.token))
	assert.Equal(t, int64(5), got.Products[0].Quantity)
}

func TestRemoveItem(t *testing.T) {
	api := newTestAPI(t)
	decodeCart(t, api.do(http.MethodPost, "/cart/add", `{"product_id": 1, "quantity": 2}`, api.token))

	got := decodeCart(t, api.do(http.MethodDelete, "/cart/item/1", "", api.token))
	assert.Empty(t, got.Products)
	assert.Equal(t, json.Number("0.00"), got.Total)

	w := api.do(http.MethodDelete, "/cart/item/1", "", api.token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	api := newTestAPI(t)
	other, err := api.tokens.Issue(domain.User{ID: 2, Username: "michaelw"})
	require.NoError(t, err)

	mine := decodeCart(t, api.do(http.MethodPost, "/cart/add", `{"product_id": 1, "quantity": 1}`, api.token))
	theirs := decodeCart(t, api.do(http.MethodGet, "/cart", "", other))
	assert.NotEqual(t, mine.ID, theirs.ID)
	assert.Empty(t, theirs.Products)
}

func TestStorageWriteFailure(t *testing.T) {
	api := newTestAPI(t)
	decodeCart(t, api.do(http.MethodGet, "/cart", "", api.token))
	api.snap.setFail(true)

	w := api.do(http.MethodPost, "/cart/add", `{"product_id": 1, "quantity": 1}`, api.token)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "storage_write_failed", decodeErr(t, w).Error)

	// applied in memory, persisted by the next successful flush
	api.snap.setFail(false)
	got := decodeCart(t, api.do(http.MethodPost, "/cart/add", `{"product_id": 1, "quantity": 1}`, api.token))
	assert.Equal(t, int64(2), got.Products[0].Quantity)
	assert.Contains(t, string(api.snap.data), `"quantity": 2`)
}

func TestIdempotentAdd(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	api := newTestAPI(t, usecase.WithIdempotency(cache.NewRedisIdempotencyStore(rdb, time.Minute)))

	body := `{"product_id": 1, "quantity": 2}`
	first := decodeCart(t, api.do(http.MethodPost, "/cart/add", body, api.token, "X-Idempotency-Key", "k-1"))
	replay := decodeCart(t, api.do(http.MethodPost, "/cart/add", body, api.token, "X-Idempotency-Key", "k-1"))
	assert.Equal(t, first, replay)
	assert.Equal(t, int64(2), replay.Products[0].Quantity)

	next := decodeCart(t, api.do(http.MethodPost, "/cart/add", body, api.token, "X-Idempotency-Key", "k-2"))
	assert.Equal(t, int64(4), next.Products[0].Quantity)
}

func TestProducts(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/products?limit=2&skip=1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page productPageResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Skip)
	require.Len(t, page.Products, 2)
	assert.Equal(t, int64(2), page.Products[0].ID)
	assert.Equal(t, json.Number("19.99"), page.Products[0].Price)

	w = api.do(http.MethodGet, "/products/3", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Apple"`)

	w = api.do(http.MethodGet, "/products/42", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product with id '42' not found", decodeErr(t, w).Message)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/products/abc", "", "").Code)

	w = api.do(http.MethodGet, "/products?limit=x&skip=-1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, defaultListLimit, page.Limit)
	assert.Equal(t, 0, page.Skip)
	assert.Len(t, page.Products, 3)
	w = api.do(http.MethodGet, "/products?limit=500", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 500, page.Limit, "limit is echoed as requested")
	assert.Len(t, page.Products, 3)

	w = api.do(http.MethodGet, "/products?limit=9223372036854775807&skip=2", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Products, 1)
}

func TestProductSearch(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/products/search?q=BEAUTY", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page productPageResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, defaultSearchLimit, page.Limit)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/products/search?q=", "", "").Code)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	decodeCart(t, api.do(http.MethodGet, "/cart", "", api.token))

	w := api.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": true, "carts": 1}`, w.Body.String())
}
