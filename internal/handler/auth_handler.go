package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hanifmaliki/subledger/internal/service"
)

// AuthHandler issues identity tokens. Only mounted when the dev issuer is
// enabled in config; production deployments receive tokens from the
// upstream identity provider sharing the JWT secret.
type AuthHandler struct {
	tokens *service.TokenService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(tokens *service.TokenService) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// DevTokenRequest represents the request body for a dev token
type DevTokenRequest struct {
	Identity string `json:"identity"`
}

// IssueDevToken handles POST /v1/auth/dev-token
func (h *AuthHandler) IssueDevToken(c *fiber.Ctx) error {
	var req DevTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	token, err := h.tokens.GenerateAccessToken(req.Identity)
	if err != nil {
		return respondLedgerError(c, "IssueDevToken", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    token,
	})
}
