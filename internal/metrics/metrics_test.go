package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordStaleDiscard()
	RecordFetch("remote", 15*time.Millisecond, false)
	RecordPartialRemoteFailure("s3")
	RecordDrop(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`duopane_cache_lookups_total{result="hit"}`,
		`duopane_cache_lookups_total{result="miss"}`,
		`duopane_stale_results_discarded_total`,
		`duopane_fetches_total{kind="remote",status="error"}`,
		`duopane_fetch_duration_seconds_bucket{kind="remote"`,
		`duopane_remote_partial_failures_total{remote="s3"}`,
		`duopane_drops_total{result="routed"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
