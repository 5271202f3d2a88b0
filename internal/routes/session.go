package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/onebills/onebills/internal/guard"
	"github.com/onebills/onebills/internal/profile"
	"github.com/onebills/onebills/internal/store"
	"github.com/onebills/onebills/internal/validation"
)

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type stateView struct {
	User              *userView        `json:"user"`
	Profile           *profile.Profile `json:"profile"`
	IsLoading         bool             `json:"is_loading"`
	IsAuthenticated   bool             `json:"is_authenticated"`
	NeedsProfileSetup bool             `json:"needs_profile_setup"`
	Redirect          string           `json:"redirect,omitempty"`
}

func viewOf(st store.State) stateView {
	v := stateView{
		Profile:           st.Profile,
		IsLoading:         st.IsLoading,
		IsAuthenticated:   st.IsAuthenticated(),
		NeedsProfileSetup: st.NeedsProfileSetup(),
	}
	if st.User != nil {
		v.User = &userView{ID: st.User.ID, Email: st.User.Email, Phone: st.User.Phone}
	}
	return v
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	FullName string `json:"full_name" validate:"omitempty,max=120"`
	// Contact metadata; only phone sign-in enforces the E.164 length rule.
	Phone string `json:"phone" validate:"omitempty,max=20"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type otpRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
}

type verifyRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type navigationRequest struct {
	Location string `json:"location"`
}

// sessionHandler drives the store on behalf of the UI shell.
type sessionHandler struct {
	store   *store.Store
	watcher *guard.Watcher
	mailbox *guard.Mailbox
}

func newSessionHandler(s *store.Store, w *guard.Watcher, m *guard.Mailbox) *sessionHandler {
	return &sessionHandler{store: s, watcher: w, mailbox: m}
}

// RegisterSessionRoutes wires state, auth, profile and navigation endpoints.
// limiter guards the credential exchanges.
func RegisterSessionRoutes(r fiber.Router, h *sessionHandler, limiter fiber.Handler) {
	r.Get("/state", h.State)
	group := r.Group("/auth")
	group.Post("/sign-up", limiter, h.SignUp)
	group.Post("/sign-in", limiter, h.SignIn)
	group.Post("/otp", limiter, h.SendOTP)
	group.Post("/otp/verify", limiter, h.VerifyOTP)
	group.Post("/sign-out", h.SignOut)
	r.Put("/profile", h.UpdateProfile)
	r.Post("/navigation", h.Navigate)
}

// State returns the current snapshot and any redirect the guards issued
// since the last call.
func (h *sessionHandler) State(c *fiber.Ctx) error {
	v := viewOf(h.store.State())
	if h.mailbox != nil {
		v.Redirect, _ = h.mailbox.Take()
	}
	return c.JSON(v)
}

func (h *sessionHandler) SignUp(c *fiber.Ctx) error {
	var req signUpRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.store.SignUp(c.UserContext(), req.Email, req.Password, req.FullName, req.Phone); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(viewOf(h.store.State()))
}

func (h *sessionHandler) SignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.store.SignIn(c.UserContext(), req.Email, req.Password); err != nil {
		return err
	}
	return c.JSON(viewOf(h.store.State()))
}

func (h *sessionHandler) SendOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.store.SignInWithPhone(c.UserContext(), req.Phone); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"status": "sent"})
}

func (h *sessionHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.store.VerifyOTP(c.UserContext(), req.Phone, req.Code); err != nil {
		return err
	}
	return c.JSON(viewOf(h.store.State()))
}

func (h *sessionHandler) SignOut(c *fiber.Ctx) error {
	if err := h.store.SignOut(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(viewOf(h.store.State()))
}

func (h *sessionHandler) UpdateProfile(c *fiber.Ctx) error {
	var req store.ProfileInput
	if err := c.BodyParser(&req); err != nil {
		return badBody()
	}
	if err := h.store.UpdateProfile(c.UserContext(), req); err != nil {
		return err
	}
	return c.JSON(viewOf(h.store.State()))
}

// Navigate records the UI location and answers with the redirect to follow.
func (h *sessionHandler) Navigate(c *fiber.Ctx) error {
	var req navigationRequest
	if err := c.BodyParser(&req); err != nil || req.Location == "" {
		return fiber.NewError(http.StatusBadRequest, "A location is required.")
	}
	target, ok := h.watcher.SetLocation(req.Location)
	if !ok {
		return c.JSON(fiber.Map{"redirect": nil})
	}
	if h.mailbox != nil {
		// The answer carries the redirect; it must not be replayed by State.
		h.mailbox.Take()
	}
	return c.JSON(fiber.Map{"redirect": target})
}

// bind decodes the body into req and checks its validate tags.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return badBody()
	}
	return validation.Struct(req)
}

func badBody() error {
	return fiber.NewError(http.StatusBadRequest, "Invalid request body.")
}
