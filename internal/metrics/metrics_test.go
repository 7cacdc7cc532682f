package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestHandlerExposesCollectors tests that recorded values reach the scrape output
func TestHandlerExposesCollectors(t *testing.T) {
	RecordApply(time.Millisecond, 2, 3, 1)
	UpdateScene(4, 1, 0, 40)
	RecordInputSent()
	RecordInputDropped("throttled")
	SetConnected(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		"arena_entity_changes_total",
		"arena_entities 4",
		"arena_gpu_resources_live 40",
		"arena_input_sent_total",
		`arena_input_dropped_total{reason="throttled"}`,
		"arena_connected 1",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("Expected %q in scrape output", name)
		}
	}
}
