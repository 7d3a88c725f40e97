package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/security"
)

const identityKey = "identity"

type Authz struct {
	tokens *security.Tokens
}

func NewAuthz(tokens *security.Tokens) *Authz {
	return &Authz{tokens: tokens}
}

// Require checks the bearer JWT, ensures all required permissions are present
// and puts the caller's Identity on the context.
func (a *Authz) Require(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}

		claims, err := a.tokens.Verify(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			unauth(c, "invalid_token", "invalid jwt")
			return
		}
		if !claims.HasAll(requiredPerms...) {
			forbidden(c, "insufficient_scope", "missing required permissions")
			return
		}

		c.Set(identityKey, claims.Identity)
		logging.With(c, logging.From(c).With("user", claims.Identity.Username))
		c.Next()
	}
}

// IdentityFrom returns the identity placed by Require.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok && id.Authenticated()
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc, "message": "Authentication required"})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code, "error_description": desc})
}
