package handler

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/hanifmaliki/subledger/internal/domain"
	"github.com/hanifmaliki/subledger/internal/middleware"
	"github.com/hanifmaliki/subledger/internal/service"
)

// LedgerHandler handles purchase endpoints
type LedgerHandler struct {
	ledger *service.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// SubscribeRequest represents the request body for a purchase
type SubscribeRequest struct {
	Periods uint64 `json:"periods"`
}

// GiftRequest represents the request body for a gifted purchase
type GiftRequest struct {
	Beneficiary string `json:"beneficiary"`
	Periods     uint64 `json:"periods"`
}

// SubscribeResponse returns the committed purchase
type SubscribeResponse struct {
	Payer       string `json:"payer"`
	Beneficiary string `json:"beneficiary"`
	Periods     uint64 `json:"periods"`
	NewExpiry   uint64 `json:"new_expiry"`
	Amount      uint64 `json:"amount"`
}

// Subscribe handles POST /v1/subscriptions
// The caller pays and receives the periods.
func (h *LedgerHandler) Subscribe(c *fiber.Ctx) error {
	identity, ok := c.Locals(middleware.IdentityKey).(string)
	if !ok || identity == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	var req SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	event, err := h.ledger.Subscribe(c.UserContext(), identity, req.Periods)
	if err != nil {
		return respondLedgerError(c, "Subscribe", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": SubscribeResponse{
			Payer:       event.Payer,
			Beneficiary: event.Beneficiary,
			Periods:     event.Periods,
			NewExpiry:   event.NewExpiry,
			Amount:      event.Amount,
		},
	})
}

// Gift handles POST /v1/subscriptions/gift
// The caller pays, the beneficiary receives the periods.
func (h *LedgerHandler) Gift(c *fiber.Ctx) error {
	identity, ok := c.Locals(middleware.IdentityKey).(string)
	if !ok || identity == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	var req GiftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	event, err := h.ledger.Gift(c.UserContext(), identity, req.Beneficiary, req.Periods)
	if err != nil {
		return respondLedgerError(c, "Gift", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": SubscribeResponse{
			Payer:       event.Payer,
			Beneficiary: event.Beneficiary,
			Periods:     event.Periods,
			NewExpiry:   event.NewExpiry,
			Amount:      event.Amount,
		},
	})
}

// respondLedgerError maps the ledger error taxonomy onto HTTP statuses.
// Every kind stays distinguishable for the presentation layer.
func respondLedgerError(c *fiber.Ctx, op string, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, domain.ErrZeroPeriods),
		errors.Is(err, domain.ErrTooManyPeriods),
		errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrInvalidRecipient),
		errors.Is(err, domain.ErrPriceOverflow):
		status = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrPaymentFailed):
		status = fiber.StatusPaymentRequired
	case errors.Is(err, domain.ErrPaused),
		errors.Is(err, domain.ErrInvalidStateToggle):
		status = fiber.StatusConflict
	}

	if status == fiber.StatusInternalServerError {
		log.Printf("[%s] Internal error: %v", op, err)
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   "internal error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
		"kind":    errorKind(err),
	})
}

// errorKind returns the machine-readable name of a ledger error.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInvalidPeriod):
		return "invalid_period"
	case errors.Is(err, domain.ErrZeroPeriods):
		return "zero_periods"
	case errors.Is(err, domain.ErrTooManyPeriods):
		return "too_many_periods"
	case errors.Is(err, domain.ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, domain.ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, domain.ErrPaused):
		return "paused"
	case errors.Is(err, domain.ErrInvalidStateToggle):
		return "invalid_state_toggle"
	case errors.Is(err, domain.ErrPriceOverflow):
		return "price_overflow"
	}
	return "internal"
}
