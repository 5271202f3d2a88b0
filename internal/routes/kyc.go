package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/onebills/onebills/internal/profile"
	"github.com/onebills/onebills/internal/store"
)

// kycSecretHeader carries the shared secret of the verification provider.
const kycSecretHeader = "X-KYC-Secret"

type kycOutcomeRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=pending verified rejected"`
}

// kycHandler records identity verification outcomes.
type kycHandler struct {
	profiles *profile.Service
	store    *store.Store
	logger   *slog.Logger
}

// RegisterKYCRoutes wires the verification outcome callback behind guard.
func RegisterKYCRoutes(r fiber.Router, h *kycHandler, guard fiber.Handler) {
	r.Post("/kyc/outcome", guard, h.Outcome)
}

// Outcome stores the verification result. When it concerns the signed-in
// user the store reloads the profile so the new status is visible at once.
func (h *kycHandler) Outcome(c *fiber.Ctx) error {
	var req kycOutcomeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.profiles.UpdateKYCStatus(c.UserContext(), req.UserID, req.Status)
	if err != nil {
		return err
	}
	h.logger.Info("kyc.outcome", slog.String("user_id", req.UserID), slog.String("status", p.KYCStatus))
	if h.store.CurrentUserID() == req.UserID {
		h.store.LoadProfile(c.UserContext())
	}
	return c.JSON(p)
}
