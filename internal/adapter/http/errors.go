package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/aq2208/gcart-api/internal/usecase"
)

type errorResp struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// apiError maps use case errors to status, code and a client-facing message.
// Anything unrecognized is a 500 without details.
func apiError(err error) (int, string, string) {
	switch {
	case errors.Is(err, usecase.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "Authentication required"
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "Invalid credentials"
	case errors.Is(err, usecase.ErrInvalidQuantity):
		return http.StatusBadRequest, "bad_request", "Invalid quantity, must be a positive integer"
	case errors.Is(err, usecase.ErrQuantityTooLarge):
		return http.StatusBadRequest, "bad_request", msgQuantityTooLarge
	case errors.Is(err, usecase.ErrProductNotFound):
		return http.StatusNotFound, "not_found", "Product not found"
	case errors.Is(err, usecase.ErrItemNotInCart):
		return http.StatusNotFound, "not_found", "Product not found in cart"
	case errors.Is(err, usecase.ErrDuplicate):
		return http.StatusConflict, "conflict", "A request with this idempotency key is in progress"
	case errors.Is(err, usecase.ErrStorageWrite):
		return http.StatusInternalServerError, "storage_write_failed", "Cart could not be saved"
	default:
		return http.StatusInternalServerError, "server_error", "Internal server error"
	}
}

func writeError(c *gin.Context, err error) {
	status, code, msg := apiError(err)
	_ = c.Error(err)
	c.JSON(status, errorResp{Error: code, Message: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResp{Error: "bad_request", Message: msg})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, errorResp{Error: "not_found", Message: msg})
}
