package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hanifmaliki/subledger/internal/middleware"
	"github.com/hanifmaliki/subledger/internal/service"
)

// AdminHandler handles the administrative control surface. All routes
// require an authenticated identity; whether that identity is the
// administrator is decided by the ledger on every call.
type AdminHandler struct {
	ledger *service.LedgerService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(ledger *service.LedgerService) *AdminHandler {
	return &AdminHandler{ledger: ledger}
}

// SetPriceRequest represents the request body for a price update
type SetPriceRequest struct {
	Price uint64 `json:"price"`
}

// SetPeriodRequest represents the request body for a period update
type SetPeriodRequest struct {
	PeriodSeconds uint64 `json:"period_seconds"`
}

// SetTreasuryRequest represents the request body for a treasury update
type SetTreasuryRequest struct {
	Treasury string `json:"treasury"`
}

// TransferAdminRequest represents the request body for an administrator handoff
type TransferAdminRequest struct {
	Administrator string `json:"administrator"`
}

func callerIdentity(c *fiber.Ctx) (string, bool) {
	identity, ok := c.Locals(middleware.IdentityKey).(string)
	return identity, ok && identity != ""
}

// SetPrice handles PUT /v1/admin/price
func (h *AdminHandler) SetPrice(c *fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	var req SetPriceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	if err := h.ledger.SetPrice(c.UserContext(), identity, req.Price); err != nil {
		return respondLedgerError(c, "SetPrice", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// SetPeriod handles PUT /v1/admin/period
func (h *AdminHandler) SetPeriod(c *fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	var req SetPeriodRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	if err := h.ledger.SetPeriod(c.UserContext(), identity, req.PeriodSeconds); err != nil {
		return respondLedgerError(c, "SetPeriod", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// SetTreasury handles PUT /v1/admin/treasury
func (h *AdminHandler) SetTreasury(c *fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	var req SetTreasuryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	if err := h.ledger.SetTreasury(c.UserContext(), identity, req.Treasury); err != nil {
		return respondLedgerError(c, "SetTreasury", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Pause handles POST /v1/admin/pause
func (h *AdminHandler) Pause(c *fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	if err := h.ledger.Pause(c.UserContext(), identity); err != nil {
		return respondLedgerError(c, "Pause", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Unpause handles POST /v1/admin/unpause
func (h *AdminHandler) Unpause(c *fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	if err := h.ledger.Unpause(c.UserContext(), identity); err != nil {
		return respondLedgerError(c, "Unpause", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Cancel handles POST /v1/admin/cancel/:identity
// Hard revoke: the target account's expiry resets to zero.
func (h *AdminHandler) Cancel(c *fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	target := c.Params("identity")
	event, err := h.ledger.Cancel(c.UserContext(), identity, target)
	if err != nil {
		return respondLedgerError(c, "Cancel", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"identity":   event.Identity,
			"old_expiry": event.OldExpiry,
		},
	})
}

// TransferAdmin handles POST /v1/admin/transfer
func (h *AdminHandler) TransferAdmin(c *fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	var req TransferAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	if err := h.ledger.TransferAdmin(c.UserContext(), identity, req.Administrator); err != nil {
		return respondLedgerError(c, "TransferAdmin", err)
	}
	return c.JSON(fiber.Map{"success": true})
}
