package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aq2208/gcart-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/security"
	"github.com/aq2208/gcart-api/internal/usecase"
)

type AuthHandler struct {
	login  *usecase.Login
	tokens *security.Tokens
}

func NewAuthHandler(login *usecase.Login, tokens *security.Tokens) *AuthHandler {
	return &AuthHandler{login: login, tokens: tokens}
}

type loginReq struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type profileResp struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Image     string `json:"image,omitempty"`
}

type loginResp struct {
	profileResp
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

func toProfile(u domain.User) profileResp {
	return profileResp{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Gender:    u.Gender,
		Image:     u.Image,
	}
}

// POST /auth/login (JSON or form)
// Accepts: username, password
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBind(&req); err != nil || req.Username == "" || req.Password == "" {
		badRequest(c, "Username and password required")
		return
	}

	u, err := h.login.Authenticate(req.Username, req.Password)
	if err != nil {
		logging.From(c).Warn("login rejected", "user", req.Username)
		writeError(c, err)
		return
	}

	signed, err := h.tokens.Issue(u)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResp{
		profileResp: toProfile(u),
		Token:       signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokens.TTL().Seconds()),
	})
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	who, ok := middleware.IdentityFrom(c)
	if !ok {
		writeError(c, usecase.ErrUnauthenticated)
		return
	}
	u, ok := h.login.Profile(who)
	if !ok {
		// valid token for an account that is gone from the directory
		logging.From(c).Error("token subject not in user directory", "user", who.Username)
		c.JSON(http.StatusInternalServerError, errorResp{Error: "server_error", Message: "User not found"})
		return
	}
	c.JSON(http.StatusOK, toProfile(u))
}
