package middleware

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/store"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

const currentUserKey = "currentUser"

var (
	ErrNoToken     = apperr.Unauthenticated("Not authorized, no token")
	ErrTokenFailed = apperr.Unauthenticated("Not authorized, token failed")
)

type TokenVerifier interface {
	Verify(raw string) (*utils.Claims, error)
}

type UserResolver interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Guard runs the access pipeline: Authenticate resolves the caller, Authorize
// checks the caller's role. A failed step aborts the chain.
type Guard struct {
	tokens  TokenVerifier
	users   UserResolver
	metrics *metrics.Collector
	log     zerolog.Logger
}

func NewGuard(tokens TokenVerifier, users UserResolver, m *metrics.Collector, log zerolog.Logger) *Guard {
	return &Guard{tokens: tokens, users: users, metrics: m, log: log}
}

// Authenticate requires a valid bearer token whose subject still exists and
// stores that user, without password, on the context.
func (g *Guard) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			g.reject(c, "no_token", ErrNoToken)
			return
		}

		claims, err := g.tokens.Verify(raw)
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, utils.ErrTokenExpired) {
				reason = "expired_token"
			}
			g.reject(c, reason, ErrTokenFailed)
			return
		}

		u, err := g.users.FindByID(c.Request.Context(), claims.SubjectID)
		if errors.Is(err, store.ErrUserNotFound) {
			g.reject(c, "unknown_user", ErrTokenFailed)
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(currentUserKey, u.Sanitized())
		c.Next()
	}
}

// Authorize lets the request through only if the authenticated user holds
// one of roles.
func (g *Guard) Authorize(roles ...models.Role) gin.HandlerFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	denied := apperr.Forbidden(fmt.Sprintf("required role: %s", strings.Join(names, " or ")))

	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			g.reject(c, "no_token", ErrNoToken)
			return
		}
		if !slices.Contains(roles, u.Role) {
			g.log.Debug().Str("user_id", u.ID.Hex()).Str("role", string(u.Role)).Str("path", c.FullPath()).Msg("role check failed")
			g.reject(c, "forbidden_role", denied)
			return
		}
		c.Next()
	}
}

func (g *Guard) reject(c *gin.Context, reason string, err error) {
	g.metrics.AuthRejected(reason)
	_ = c.Error(err)
	c.Abort()
}

// CurrentUser returns the user set by Authenticate, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}
