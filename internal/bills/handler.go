package bills

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes catalog and bill endpoints. Routes that touch user bills
// expect the signed-in user id in the "user_id" local.
type Handler struct {
	service *Service
}

// NewHandler constructs a bills handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

// Categories lists bill categories. ?with=providers nests the providers.
func (h *Handler) Categories(c *fiber.Ctx) error {
	if c.Query("with") == "providers" {
		out, err := h.service.CategoriesWithProviders(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
	out, err := h.service.Categories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Providers lists active providers, optionally filtered by category_id.
func (h *Handler) Providers(c *fiber.Ctx) error {
	out, err := h.service.Providers(c.UserContext(), c.Query("category_id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// List returns the user's bills.
func (h *Handler) List(c *fiber.Ctx) error {
	out, err := h.service.MyBills(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Create saves a bill.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req NewBill
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body.")
	}
	bill, err := h.service.AddBill(c.UserContext(), userID(c), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(bill)
}

// Get returns one bill.
func (h *Handler) Get(c *fiber.Ctx) error {
	bill, err := h.service.BillByID(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(bill)
}

// Update patches one bill.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req BillUpdate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body.")
	}
	bill, err := h.service.UpdateBill(c.UserContext(), userID(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(bill)
}

// Delete removes one bill.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.DeleteBill(c.UserContext(), userID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
