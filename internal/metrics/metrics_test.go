package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCollectorsAreIndependent(t *testing.T) {
	// A second collector must not panic on duplicate registration.
	a := NewCollector("mortaudit")
	b := NewCollector("mortaudit")

	a.UploadsTotal.WithLabelValues("current", "stored").Inc()
	b.ActiveSessions.Set(3)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `mortaudit_audit_uploads_total{result="stored",slot="current"} 1`) {
		t.Fatalf("upload counter missing from output:\n%s", body)
	}
	if !strings.Contains(body, "mortaudit_session_active 0") {
		t.Fatalf("collector a should not see b's gauge")
	}
}
