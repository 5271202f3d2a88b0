package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/onebills/onebills/internal/config"
	"github.com/onebills/onebills/internal/guard"
	"github.com/onebills/onebills/internal/logging"
)

func testConfig() config.Config {
	return config.Config{
		AppName:         "OneBills",
		AppEnv:          "test",
		Port:            "0",
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		OTPTTL:          5 * time.Minute,
		OTPMaxPerWindow: 3,
		SignInPerMinute: 5,
		BcryptCost:      4,
		IdempotencyTTL:  time.Hour,
		CatalogCacheTTL: time.Minute,
		DeviceID:        "test-device",
	}
}

func newTestServer(t *testing.T, cache *redis.Client) *Server {
	t.Helper()
	return newTestServerWith(t, testConfig(), cache)
}

func newTestServerWith(t *testing.T, cfg config.Config, cache *redis.Client) *Server {
	t.Helper()
	srv, err := New(cfg, nil, cache, logging.Discard(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.Start(context.Background())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func call(t *testing.T, app *fiber.App, method, path, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestBridgeSessionFlow(t *testing.T) {
	app := newTestServer(t, nil).App()

	status, body := call(t, app, fiber.MethodGet, "/healthz", "")
	if status != fiber.StatusOK {
		t.Fatalf("healthz: expected 200, got %d %v", status, body)
	}

	_, body = call(t, app, fiber.MethodPost, "/api/v1/navigation", `{"location":"/(tabs)"}`)
	if body["redirect"] != guard.Welcome {
		t.Fatalf("expected welcome redirect, got %v", body["redirect"])
	}

	status, body = call(t, app, fiber.MethodGet, "/api/v1/bills", "")
	if status != fiber.StatusUnauthorized || body["code"] != "AUTH_NOT_AUTHENTICATED" {
		t.Fatalf("expected 401 without a user, got %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodPost, "/api/v1/auth/sign-up",
		`{"email":"a@b.com","password":"Passw0rd!","full_name":"Ann","phone":"+15550001"}`)
	if status != fiber.StatusCreated || body["is_authenticated"] != true || body["needs_profile_setup"] != true {
		t.Fatalf("sign up: unexpected %d %v", status, body)
	}

	_, body = call(t, app, fiber.MethodPost, "/api/v1/navigation", `{"location":"/(auth)/sign-up"}`)
	if body["redirect"] != guard.ProfileSetup {
		t.Fatalf("expected profile setup redirect, got %v", body["redirect"])
	}

	status, body = call(t, app, fiber.MethodPut, "/api/v1/profile", `{"full_name":"Ann Lee","phone":"+15550001"}`)
	if status != fiber.StatusOK || body["needs_profile_setup"] != false {
		t.Fatalf("profile: unexpected %d %v", status, body)
	}

	_, body = call(t, app, fiber.MethodPost, "/api/v1/navigation", `{"location":"/(auth)/profile-setup"}`)
	if body["redirect"] != guard.Tabs {
		t.Fatalf("expected tabs redirect, got %v", body["redirect"])
	}

	status, body = call(t, app, fiber.MethodPost, "/api/v1/transactions", `{"amount":1500,"payment_method":"card"}`)
	if status != fiber.StatusCreated || body["status"] != "pending" {
		t.Fatalf("transaction: unexpected %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodPost, "/api/v1/auth/sign-out", "")
	if status != fiber.StatusOK || body["is_authenticated"] != false {
		t.Fatalf("sign out: unexpected %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodPost, "/api/v1/auth/sign-in", `{"email":"a@b.com","password":"nope"}`)
	if status != fiber.StatusUnauthorized || body["code"] != "AUTH_INVALID_CREDENTIALS" {
		t.Fatalf("bad sign in: unexpected %d %v", status, body)
	}
	if msg, _ := body["user_message"].(string); !strings.HasPrefix(msg, "Invalid email or password") {
		t.Fatalf("expected the friendly message, got %q", msg)
	}
}

func TestBridgeProfileIgnoresKYCStatus(t *testing.T) {
	app := newTestServer(t, nil).App()

	status, body := call(t, app, fiber.MethodPost, "/api/v1/auth/sign-up", `{"email":"k@b.com","password":"Passw0rd!"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("sign up: unexpected %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodPut, "/api/v1/profile",
		`{"full_name":"Ann","phone":"+15550001","kyc_status":"verified"}`)
	if status != fiber.StatusOK {
		t.Fatalf("profile: unexpected %d %v", status, body)
	}
	p, _ := body["profile"].(map[string]any)
	if p == nil || p["kyc_status"] != "pending" || p["full_name"] != "Ann" {
		t.Fatalf("expected name saved and kyc left pending, got %v", body["profile"])
	}
}

func TestBridgeKYCOutcome(t *testing.T) {
	cfg := testConfig()
	cfg.KYCWebhookSecret = "hook"
	app := newTestServerWith(t, cfg, nil).App()

	status, body := call(t, app, fiber.MethodPost, "/api/v1/auth/sign-up", `{"email":"v@b.com","password":"Passw0rd!"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("sign up: unexpected %d %v", status, body)
	}
	user, _ := body["user"].(map[string]any)
	id, _ := user["id"].(string)
	if id == "" {
		t.Fatalf("expected a user id, got %v", body)
	}
	if status, body = call(t, app, fiber.MethodPut, "/api/v1/profile", `{"full_name":"Vi","phone":"+15550002"}`); status != fiber.StatusOK {
		t.Fatalf("profile: unexpected %d %v", status, body)
	}

	outcome := `{"user_id":"` + id + `","status":"verified"}`
	status, body = call(t, app, fiber.MethodPost, "/api/v1/kyc/outcome", outcome)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected the secret to be required, got %d %v", status, body)
	}
	status, body = call(t, app, fiber.MethodPost, "/api/v1/kyc/outcome", `{"user_id":"`+id+`","status":"approved"}`, "X-KYC-Secret", "hook")
	if status != fiber.StatusBadRequest || body["code"] != "VALIDATION_INVALID_FORMAT" {
		t.Fatalf("expected unknown status rejected, got %d %v", status, body)
	}
	status, body = call(t, app, fiber.MethodPost, "/api/v1/kyc/outcome", outcome, "X-KYC-Secret", "hook")
	if status != fiber.StatusOK || body["kyc_status"] != "verified" {
		t.Fatalf("outcome: unexpected %d %v", status, body)
	}

	_, body = call(t, app, fiber.MethodGet, "/api/v1/state", "")
	p, _ := body["profile"].(map[string]any)
	if p == nil || p["kyc_status"] != "verified" {
		t.Fatalf("expected the store to see the new status, got %v", body["profile"])
	}
}

func TestBridgeKYCOutcomeDisabledWithoutSecret(t *testing.T) {
	app := newTestServer(t, nil).App()
	if status, body := call(t, app, fiber.MethodPost, "/api/v1/auth/sign-up", `{"email":"n@b.com","password":"Passw0rd!"}`); status != fiber.StatusCreated {
		t.Fatalf("sign up: unexpected %d %v", status, body)
	}
	status, _ := call(t, app, fiber.MethodPost, "/api/v1/kyc/outcome", `{"user_id":"u1","status":"verified"}`)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected no callback route without a secret, got %d", status)
	}
}

func TestBridgeRejectsInvalidForms(t *testing.T) {
	app := newTestServer(t, nil).App()

	cases := []struct {
		path string
		body string
		code string
	}{
		{"/api/v1/auth/sign-up", `{"email":"nope","password":"Passw0rd!"}`, "VALIDATION_INVALID_FORMAT"},
		{"/api/v1/auth/sign-up", `{"email":"a@b.com","password":"password1"}`, "VALIDATION_ERROR"},
		{"/api/v1/auth/sign-in", `{"email":"a@b.com"}`, "VALIDATION_REQUIRED"},
		{"/api/v1/auth/otp", `{"phone":"+15550001"}`, "VALIDATION_INVALID_FORMAT"},
		{"/api/v1/auth/otp/verify", `{"phone":"+15550001234","code":"12ab"}`, "VALIDATION_INVALID_FORMAT"},
	}
	for _, tc := range cases {
		status, body := call(t, app, fiber.MethodPost, tc.path, tc.body)
		if status != fiber.StatusBadRequest || body["code"] != tc.code {
			t.Fatalf("%s %s: expected 400 %s, got %d %v", tc.path, tc.body, tc.code, status, body)
		}
	}

	status, body := call(t, app, fiber.MethodGet, "/api/v1/state", "")
	if status != fiber.StatusOK || body["is_authenticated"] != false {
		t.Fatalf("rejected forms must not sign anyone in, got %d %v", status, body)
	}
}

func TestBridgeCatalogAndMetrics(t *testing.T) {
	app := newTestServer(t, nil).App()

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/bills/categories?with=providers", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	var categories []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&categories); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	resp.Body.Close()
	if len(categories) != 3 {
		t.Fatalf("expected seeded categories, got %d", len(categories))
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(raw), "onebills_bridge_request_duration_seconds") {
		t.Fatalf("expected bridge latency in metrics output")
	}
}

func TestBridgeWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	app := newTestServer(t, client).App()

	status, body := call(t, app, fiber.MethodPost, "/api/v1/auth/sign-up",
		`{"email":"r@b.com","password":"Passw0rd!","full_name":"Rae"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("sign up: unexpected %d %v", status, body)
	}

	status, _ = call(t, app, fiber.MethodPost, "/api/v1/transactions", `{"amount":100,"payment_method":"card"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected idempotency key to be required, got %d", status)
	}

	headers := []string{"Idempotency-Key", "k-1"}
	status, first := call(t, app, fiber.MethodPost, "/api/v1/transactions", `{"amount":100,"payment_method":"card"}`, headers...)
	if status != fiber.StatusCreated {
		t.Fatalf("create: unexpected %d %v", status, first)
	}
	status, second := call(t, app, fiber.MethodPost, "/api/v1/transactions", `{"amount":100,"payment_method":"card"}`, headers...)
	if status != fiber.StatusCreated || second["id"] != first["id"] {
		t.Fatalf("expected replayed response, got %d %v", status, second)
	}

	status, body = call(t, app, fiber.MethodGet, "/healthz", "")
	if status != fiber.StatusOK {
		t.Fatalf("healthz: unexpected %d %v", status, body)
	}
}
