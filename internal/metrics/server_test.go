package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRerouteMetricsWithRegistry(reg)
	m.Decisions.WithLabelValues(DecisionLocalHit).Inc()

	srv := NewServerWithRegistry("127.0.0.1:0", reg)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/metrics", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "strato_reroute_decisions_total") {
		t.Error("metrics output missing reroute decision counter")
	}
}
