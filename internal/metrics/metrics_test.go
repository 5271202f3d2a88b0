package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAuthOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthOperation("sign_in", "")
	c.RecordAuthOperation("sign_in", "")
	c.RecordAuthOperation("sign_in", "AUTH_INVALID_CREDENTIALS")

	if v := testutil.ToFloat64(c.authOps.WithLabelValues("sign_in", "ok")); v != 2 {
		t.Fatalf("ok count = %v, want 2", v)
	}
	if v := testutil.ToFloat64(c.authOps.WithLabelValues("sign_in", "AUTH_INVALID_CREDENTIALS")); v != 1 {
		t.Fatalf("failure count = %v, want 1", v)
	}
	if n := testutil.CollectAndCount(c.authOps, "onebills_auth_operations_total"); n != 2 {
		t.Fatalf("expected 2 series, got %d", n)
	}
}

func TestRecordProfileAndGuard(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProfileLoad(ProfileMissing)
	c.RecordGuardRedirect("/(auth)/welcome")
	c.RecordHTTPRequest("/api/v1/state", 200, 5*time.Millisecond)

	if v := testutil.ToFloat64(c.profileLoads.WithLabelValues(ProfileMissing)); v != 1 {
		t.Fatalf("profile loads = %v, want 1", v)
	}
	if v := testutil.ToFloat64(c.guardRedirects.WithLabelValues("/(auth)/welcome")); v != 1 {
		t.Fatalf("redirects = %v, want 1", v)
	}
	if n := testutil.CollectAndCount(c.requestDuration); n != 1 {
		t.Fatalf("histogram series = %d, want 1", n)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordGuardRedirect("/(tabs)")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `onebills_guard_redirects_total{route="/(tabs)"} 1`) {
		t.Fatalf("expected redirect counter in output, got:\n%s", body)
	}
}
