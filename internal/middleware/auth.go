package middleware

import (
	"net/http"
	"strings"
	"time"

	"printhub/internal/apperr"
	"printhub/internal/auth"
	"printhub/internal/config"
	"printhub/internal/rbac"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const accessTokenCookie = "access_token"

// TokenVerifier turns a bearer token into a caller identity
type TokenVerifier interface {
	Verify(token string) (*rbac.Identity, error)
}

// Authorizer adapts the permission gate to gin. Both handlers abort before
// the route handler runs when the caller is unknown or not allowed.
type Authorizer struct {
	tokens TokenVerifier
	gate   *rbac.Gate
	log    *zap.Logger
}

func NewAuthorizer(tokens *auth.TokenManager, gate *rbac.Gate, log *zap.Logger) *Authorizer {
	return NewAuthorizerWith(tokens, gate, log)
}

// NewAuthorizerWith builds an authorizer over any token verifier
func NewAuthorizerWith(tokens TokenVerifier, gate *rbac.Gate, log *zap.Logger) *Authorizer {
	return &Authorizer{tokens: tokens, gate: gate, log: log}
}

// Authenticate verifies the token and stores the identity on the request
func (a *Authorizer) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// Require authenticates, then asks the gate for the permission
func (a *Authorizer) Require(required rbac.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := a.authenticate(c)
		if !ok {
			return
		}
		if err := a.gate.Authorize(c.Request.Context(), id, required); err != nil {
			response.Abort(c, a.log, err)
			return
		}
		c.Next()
	}
}

// Allows asks the gate whether the authenticated caller also holds p.
// Forbidden is reported as false; other gate errors are returned.
func (a *Authorizer) Allows(c *gin.Context, p rbac.Permission) (bool, error) {
	err := a.gate.Authorize(c.Request.Context(), CurrentIdentity(c), p)
	switch {
	case err == nil:
		return true, nil
	case apperr.Is(err, apperr.KindForbidden):
		return false, nil
	default:
		return false, err
	}
}

func (a *Authorizer) authenticate(c *gin.Context) (*rbac.Identity, bool) {
	// An earlier middleware in the chain may already have done the work.
	if id := rbac.IdentityFrom(c.Request.Context()); id != nil {
		return id, true
	}

	tokenString, err := BearerToken(c)
	if err != nil {
		response.Abort(c, a.log, err)
		return nil, false
	}

	id, err := a.tokens.Verify(tokenString)
	if err != nil {
		response.Abort(c, a.log, apperr.Unauthenticated("invalid token"))
		return nil, false
	}

	c.Request = c.Request.WithContext(rbac.WithIdentity(c.Request.Context(), id))
	c.Set("userID", id.UserID.String())
	c.Set("userRole", id.Role)
	return id, true
}

// BearerToken reads the access token from the cookie first, then the Authorization header
func BearerToken(c *gin.Context) (string, error) {
	if tokenString, err := c.Cookie(accessTokenCookie); err == nil && tokenString != "" {
		return tokenString, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", apperr.Unauthenticated("authorization is missing")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", apperr.Unauthenticated("invalid authorization format, expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// CurrentIdentity returns the caller stored by Authenticate or Require
func CurrentIdentity(c *gin.Context) *rbac.Identity {
	return rbac.IdentityFrom(c.Request.Context())
}

// CookieSettings decides the access_token cookie attributes
type CookieSettings struct {
	Secure   bool
	SameSite http.SameSite
}

func NewCookieSettings(cfg *config.Config) CookieSettings {
	// Production is served cross-origin behind TLS.
	if cfg.IsProduction() {
		return CookieSettings{Secure: true, SameSite: http.SameSiteNoneMode}
	}
	return CookieSettings{Secure: false, SameSite: http.SameSiteLaxMode}
}

// SetTokenCookie sets access_token as an HttpOnly cookie living as long as the token
func (s CookieSettings) SetTokenCookie(c *gin.Context, token string, ttl time.Duration) {
	c.SetSameSite(s.SameSite)
	c.SetCookie(accessTokenCookie, token, int(ttl.Seconds()), "/", "", s.Secure, true)
}

// ClearTokenCookie removes the access_token cookie
func (s CookieSettings) ClearTokenCookie(c *gin.Context) {
	c.SetSameSite(s.SameSite)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", s.Secure, true)
}
