package http

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aq2208/gcart-api/internal/adapter/http/middleware"
	"github.com/aq2208/gcart-api/internal/security"
)

type Handlers struct {
	Cart    *CartHandler
	Product *ProductHandler
	Auth    *AuthHandler
	Health  *HealthHandler
}

// RouterOptions are the non-handler knobs of the HTTP surface.
type RouterOptions struct {
	CORSOrigins []string
	Logger      *slog.Logger
}

func NewRouter(h Handlers, authz *middleware.Authz, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotency-Key", "X-Request-Id"},
			ExposeHeaders:    []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if opts.Logger != nil {
		r.Use(middleware.Logging(opts.Logger))
	}

	r.GET("/healthz", h.Health.Healthz)
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.GET("/me", authz.Require(), h.Auth.Me)
	}

	products := r.Group("/products")
	{
		products.GET("", h.Product.List)
		products.GET("/search", h.Product.Search)
		products.GET("/:id", h.Product.Get)
	}

	cart := r.Group("/cart")
	{
		cart.GET("", authz.Require(security.PermCartRead), h.Cart.View)
		cart.POST("/add", authz.Require(security.PermCartWrite), h.Cart.AddItem)
		cart.PUT("/item/:productId", authz.Require(security.PermCartWrite), h.Cart.SetItemQuantity)
		cart.DELETE("/item/:productId", authz.Require(security.PermCartWrite), h.Cart.RemoveItem)
	}

	return r
}
