package security

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	domain "github.com/aq2208/gcart-api/internal/entity"
)

// Permissions granted to every logged-in shopper.
const (
	PermCartRead  = "cart.read"
	PermCartWrite = "cart.write"
)

var DefaultPerms = []string{PermCartRead, PermCartWrite}

var ErrInvalidToken = errors.New("invalid token")

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokens(secret, issuer, audience string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokens{secret: []byte(secret), issuer: issuer, audience: audience, ttl: ttl, now: time.Now}
}

func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for u carrying DefaultPerms.
func (t *Tokens) Issue(u domain.User) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"iss":   t.issuer,              // issuer
		"aud":   t.audience,            // audience
		"iat":   now.Unix(),            // issued at
		"nbf":   now.Unix(),            // not before
		"exp":   now.Add(t.ttl).Unix(), // expire
		"sub":   u.Username,
		"uid":   strconv.FormatInt(u.ID, 10),
		"perms": DefaultPerms,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Claims is what a verified token carries.
type Claims struct {
	Identity domain.Identity
	Perms    map[string]struct{}
}

func (c Claims) HasAll(req ...string) bool {
	for _, r := range req {
		if _, ok := c.Perms[r]; !ok {
			return false
		}
	}
	return true
}

// Verify checks signature, expiry (30s leeway), issuer and audience.
func (t *Tokens) Verify(raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	},
		jwt.WithLeeway(30*time.Second), // small clock skew
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return Claims{}, errors.Wrap(ErrInvalidToken, errMsg(err))
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.Wrap(ErrInvalidToken, "claims parsing error")
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, errors.Wrap(ErrInvalidToken, "missing subject")
	}
	var uid int64
	if s, ok := mc["uid"].(string); ok {
		uid, _ = strconv.ParseInt(s, 10, 64)
	}

	return Claims{
		Identity: domain.Identity{UserID: uid, Username: sub},
		Perms:    extractPerms(mc),
	}, nil
}

func extractPerms(claims jwt.MapClaims) map[string]struct{} {
	out := map[string]struct{}{}
	if arr, ok := claims["perms"].([]any); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok && s != "" {
				out[s] = struct{}{}
			}
		}
	}
	return out
}

func errMsg(err error) string {
	if err == nil {
		return "token not valid"
	}
	return err.Error()
}
