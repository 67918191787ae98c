package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/medallion/internal/domain"
)

func TestPush(t *testing.T) {
	var method, path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)
	m.ObserveNotification(domain.LayerBronze)

	err := Push(context.Background(), srv.URL, "medallion_stage", reg, map[string]string{"stage": "bronze_to_silver"})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if method != http.MethodPut {
		t.Errorf("expected PUT, got %s", method)
	}
	if path != "/metrics/job/medallion_stage/stage/bronze_to_silver" {
		t.Errorf("unexpected path %s", path)
	}
	if !strings.Contains(body, "medallion_trigger_notifications_total") {
		t.Error("expected the notification counter in the pushed body")
	}
}

func TestPush_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	NewPipelineMetrics(reg).ObserveNotification(domain.LayerSilver)

	if err := Push(context.Background(), srv.URL, "medallion_stage", reg, nil); err == nil {
		t.Error("expected an error from a failing gateway")
	}
}
