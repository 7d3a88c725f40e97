package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aq2208/gcart-api/internal/logging"
)

// CartCounter is satisfied by store.CartStore.
type CartCounter interface {
	Len() int
}

type HealthHandler struct {
	carts CartCounter
}

func NewHealthHandler(carts CartCounter) *HealthHandler {
	return &HealthHandler{carts: carts}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	n := h.carts.Len()
	logging.From(c).Debug("health check", "carts", n)
	c.JSON(http.StatusOK, gin.H{"ok": true, "carts": n})
}
