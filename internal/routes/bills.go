package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/onebills/onebills/internal/bills"
)

// RegisterCatalogRoutes wires the public bill catalog.
func RegisterCatalogRoutes(r fiber.Router, h *bills.Handler) {
	r.Get("/bills/categories", h.Categories)
	r.Get("/bills/providers", h.Providers)
}

// RegisterBillRoutes wires the signed-in user's saved bills.
func RegisterBillRoutes(r fiber.Router, h *bills.Handler) {
	r.Get("/bills", h.List)
	r.Post("/bills", h.Create)
	r.Get("/bills/:id", h.Get)
	r.Patch("/bills/:id", h.Update)
	r.Delete("/bills/:id", h.Delete)
}
