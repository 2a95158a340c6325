package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hanifmaliki/subledger/internal/domain"
)

// IdentityKey is the locals key holding the authenticated caller identity.
// The token only identifies the caller; whether that identity may perform
// an administrative operation is decided by the ledger itself.
const IdentityKey = "identity"

// VerifyIdentityToken validates the bearer JWT and stores the caller
// identity in locals for the handlers.
func VerifyIdentityToken(jwtSecret string) fiber.Handler {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(jwtSecret), nil
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Missing authorization token")
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.ParseWithClaims(tokenString, &domain.LedgerClaims{}, keyFunc)
		if err != nil || !token.Valid {
			return unauthorized(c, "Invalid or expired token")
		}
		claims, ok := token.Claims.(*domain.LedgerClaims)
		if !ok {
			return unauthorized(c, "Invalid token claims")
		}

		// Older issuers put the identity in the subject claim only.
		identity := claims.Identity
		if identity == "" {
			identity = claims.Subject
		}
		if !domain.IsValidIdentity(identity) {
			return unauthorized(c, "Token carries no identity")
		}

		c.Locals(IdentityKey, identity)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
	})
}
