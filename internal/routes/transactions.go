package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/onebills/onebills/internal/transactions"
)

// RegisterTransactionRoutes wires payment history endpoints. Creation goes
// through idempotency when it is available.
func RegisterTransactionRoutes(r fiber.Router, h *transactions.Handler, idempotency fiber.Handler) {
	r.Get("/transactions", h.List)
	r.Get("/transactions/stats", h.Stats)
	r.Get("/transactions/:id", h.Get)
	r.Patch("/transactions/:id", h.UpdateStatus)
	if idempotency != nil {
		r.Post("/transactions", idempotency, h.Create)
	} else {
		r.Post("/transactions", h.Create)
	}
}
