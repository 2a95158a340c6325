package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hanifmaliki/subledger/internal/domain"
	"github.com/hanifmaliki/subledger/internal/service"
	"golang.org/x/sync/errgroup"
)

// StatusHandler serves the read-only status surface. These endpoints are
// public: activation state is what a gated resource checks before serving
// content, and it never mutates ledger state.
type StatusHandler struct {
	ledger    *service.LedgerService
	eventRepo domain.EventRepository
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(ledger *service.LedgerService, eventRepo domain.EventRepository) *StatusHandler {
	return &StatusHandler{ledger: ledger, eventRepo: eventRepo}
}

// StatusResponse is the polled account status
type StatusResponse struct {
	Identity  string          `json:"identity"`
	Active    bool            `json:"active"`
	TimeLeft  uint64          `json:"time_left"`
	ExpiresAt uint64          `json:"expires_at"`
	Events    []*domain.Event `json:"events,omitempty"`
}

// ParamsResponse is the public view of the global parameters. The
// administrator identity is deliberately not exposed here.
type ParamsResponse struct {
	Token         string `json:"token"`
	Treasury      string `json:"treasury"`
	UnitPrice     uint64 `json:"unit_price"`
	PeriodSeconds uint64 `json:"period_seconds"`
	Paused        bool   `json:"paused"`
}

// GetStatus handles GET /v1/status/:identity
// With ?include_events=true the identity's recent ledger events are
// fetched alongside the status.
func (h *StatusHandler) GetStatus(c *fiber.Ctx) error {
	identity := c.Params("identity")
	if !domain.IsValidIdentity(identity) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "identity is required",
		})
	}

	ctx := c.UserContext()
	resp := StatusResponse{Identity: identity}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		expiresAt, err := h.ledger.ExpiresAt(gctx, identity)
		if err != nil {
			return err
		}
		active, err := h.ledger.IsActive(gctx, identity)
		if err != nil {
			return err
		}
		timeLeft, err := h.ledger.TimeLeft(gctx, identity)
		if err != nil {
			return err
		}
		resp.ExpiresAt = expiresAt
		resp.Active = active
		resp.TimeLeft = timeLeft
		return nil
	})
	if c.QueryBool("include_events") {
		g.Go(func() error {
			events, err := h.eventRepo.ListByIdentity(gctx, identity, 50)
			if err != nil {
				return err
			}
			resp.Events = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return respondLedgerError(c, "GetStatus", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    resp,
	})
}

// GetParams handles GET /v1/params
func (h *StatusHandler) GetParams(c *fiber.Ctx) error {
	params := h.ledger.Params()
	return c.JSON(fiber.Map{
		"success": true,
		"data": ParamsResponse{
			Token:         params.Token,
			Treasury:      params.Treasury,
			UnitPrice:     params.UnitPrice,
			PeriodSeconds: params.PeriodSeconds,
			Paused:        params.Paused,
		},
	})
}
