package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/community-service/internal/auth"
	"github.com/spec-kit/community-service/internal/directory"
	"github.com/spec-kit/community-service/pkg/util"
)

// TokensHandler exchanges the shared service secret for a bearer token.
// The reporting surface is internal-only; callers that hold the secret
// mint tokens for the user they operate as.
type TokensHandler struct {
	tokens *auth.TokenManager
	users  directory.Directory
	secret string
}

// NewTokensHandler returns a new handler instance.
func NewTokensHandler(tokens *auth.TokenManager, users directory.Directory, secret string) *TokensHandler {
	return &TokensHandler{tokens: tokens, users: users, secret: secret}
}

type tokenRequest struct {
	UserID int64  `json:"user_id"`
	Secret string `json:"secret"`
}

// Issue mints a token for the given user.
func (h *TokensHandler) Issue(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid request body", nil)
	}
	if req.UserID <= 0 {
		return util.NewValidationError("user_id is required", nil)
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.secret)) != 1 {
		return util.NewUnauthorized("invalid service secret")
	}

	user, err := h.users.GetUser(c.UserContext(), req.UserID)
	if err != nil {
		return err
	}
	token, expiresAt, err := h.tokens.GenerateToken(user.ID, user.IsAdmin)
	if err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expiresAt,
	})
}
