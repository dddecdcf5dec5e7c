package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/community-service/internal/directory"
	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/pkg/util"
)

const principalKey = "auth_principal"

// Middleware validates bearer tokens and resolves the caller against
// the user directory. Admin status comes from the directory, not the
// token, so revoking an admin takes effect on the next request.
type Middleware struct {
	tokens *TokenManager
	users  directory.Directory
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, users directory.Directory) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return util.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetUser(c.Context(), claims.UserID)
	if err != nil {
		return util.NewUnauthorized("unknown user")
	}

	c.Locals(principalKey, user)
	return c.Next()
}

// RequireAdmin rejects non-admin callers. Must run after Handle.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return util.NewUnauthorized("authentication required")
		}
		if !user.IsAdmin {
			return util.NewForbidden("admin access required", nil)
		}
		return c.Next()
	}
}

// UserFromContext retrieves the authenticated user.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok
}
