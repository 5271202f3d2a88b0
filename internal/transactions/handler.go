package transactions

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes transaction endpoints for the signed-in user.
type Handler struct {
	service *Service
}

// NewHandler constructs a transaction handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

// List returns recent transactions, or every one in ?status= when given.
func (h *Handler) List(c *fiber.Ctx) error {
	var (
		out []Transaction
		err error
	)
	if status := c.Query("status"); status != "" {
		out, err = h.service.ByStatus(c.UserContext(), userID(c), status)
	} else {
		out, err = h.service.List(c.UserContext(), userID(c), c.QueryInt("limit", DefaultLimit))
	}
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Create records a payment.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req NewTransaction
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body.")
	}
	tx, err := h.service.Create(c.UserContext(), userID(c), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// Get returns one transaction.
func (h *Handler) Get(c *fiber.Ctx) error {
	tx, err := h.service.ByID(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(tx)
}

// UpdateStatus moves a transaction forward.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	var req StatusChange
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body.")
	}
	tx, err := h.service.UpdateStatus(c.UserContext(), userID(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(tx)
}

// Stats returns totals for the user.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
