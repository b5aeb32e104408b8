package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestCounters verifies outcome labels are derived from the error value.
func TestCounters(t *testing.T) {
	Rollback("finish")
	if got := testutil.ToFloat64(rollbacksTotal.WithLabelValues("finish")); got < 1 {
		t.Errorf("rollbacks{finish} = %v, want >= 1", got)
	}

	before := testutil.ToFloat64(suggestionFetchesTotal.WithLabelValues("error"))
	SuggestionFetch(errors.New("boom"))
	if got := testutil.ToFloat64(suggestionFetchesTotal.WithLabelValues("error")); got != before+1 {
		t.Errorf("suggestion errors = %v, want %v", got, before+1)
	}

	ObserveRemote("start", time.Now(), nil)
	if got := testutil.ToFloat64(remoteRequestsTotal.WithLabelValues("start", "ok")); got < 1 {
		t.Errorf("remote{start,ok} = %v, want >= 1", got)
	}
}

// TestHandlerExposesCollectors verifies the scrape endpoint lists our metrics.
func TestHandlerExposesCollectors(t *testing.T) {
	DebouncedSave(nil)
	ObserveHTTP(http.MethodGet, "/api/v1/session", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	for _, name := range []string{"workoutsync_debounced_saves_total", "workoutsync_http_requests_total"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("scrape output missing %s", name)
		}
	}
}
