package handler

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/hanifmaliki/subledger/internal/domain"
)

const maxEventPageSize = 200

// EventHandler serves the queryable event log consumed by the
// presentation layer's polling UI.
type EventHandler struct {
	eventRepo domain.EventRepository
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(eventRepo domain.EventRepository) *EventHandler {
	return &EventHandler{eventRepo: eventRepo}
}

// ListEvents handles GET /v1/events?identity=&limit=
// Events come back newest first, optionally filtered to those naming the
// identity as payer, beneficiary or cancellation subject.
func (h *EventHandler) ListEvents(c *fiber.Ctx) error {
	limit := int64(c.QueryInt("limit", 50))
	if limit <= 0 || limit > maxEventPageSize {
		limit = maxEventPageSize
	}

	var (
		events []*domain.Event
		err    error
	)
	if identity := c.Query("identity"); identity != "" {
		events, err = h.eventRepo.ListByIdentity(c.UserContext(), identity, limit)
	} else {
		events, err = h.eventRepo.List(c.UserContext(), limit)
	}
	if err != nil {
		log.Printf("[Events] Failed to list events: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to list events",
		})
	}

	if events == nil {
		events = []*domain.Event{}
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    events,
	})
}
