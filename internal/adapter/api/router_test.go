package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/domain/mocks"
	"github.com/V4T54L/medallion/internal/usecase"
)

const testKey = "secret-key"

func newTestRouter(launcher *mocks.MockStageLauncher, admin *mocks.MockQueueAdminRepository) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trigger := usecase.NewTriggerUseCase(launcher, nil, usecase.TriggerOptions{Bucket: "lake", Database: "db", Environment: "test"}, logger)
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "medallion_test_total", Help: "test"}))
	return NewRouter(RouterDeps{
		Logger:   logger,
		APIKeys:  []string{testKey},
		Notifier: trigger,
		Admin:    usecase.NewAdminUseCase(admin, nil),
		Gatherer: reg,
	})
}

func TestRouter(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		apiKey         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Health needs no key",
			method:         http.MethodGet,
			path:           "/health",
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"ok"`,
		},
		{
			name:           "Metrics needs no key",
			method:         http.MethodGet,
			path:           "/metrics",
			expectedStatus: http.StatusOK,
			expectedBody:   "medallion_test_total",
		},
		{
			name:           "Notify without key",
			method:         http.MethodPost,
			path:           "/notify",
			body:           `{"bucket":"lake","key":"bronze/logs_20240315_103000.json"}`,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Notify bronze upload",
			method:         http.MethodPost,
			path:           "/notify",
			body:           `{"bucket":"lake","key":"bronze/logs_20240315_103000.json","size":10}`,
			apiKey:         testKey,
			expectedStatus: http.StatusOK,
			expectedBody:   `"stage":"bronze_to_silver"`,
		},
		{
			name:           "Notify invalid body",
			method:         http.MethodPost,
			path:           "/notify",
			body:           `not json`,
			apiKey:         testKey,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Notify wrong method",
			method:         http.MethodGet,
			path:           "/notify",
			apiKey:         testKey,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "Admin queue without key",
			method:         http.MethodGet,
			path:           "/admin/queue",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Admin queue",
			method:         http.MethodGet,
			path:           "/admin/queue",
			apiKey:         testKey,
			expectedStatus: http.StatusOK,
			expectedBody:   `"length":3`,
		},
		{
			name:           "Runs without ledger",
			method:         http.MethodGet,
			path:           "/admin/runs",
			apiKey:         testKey,
			expectedStatus: http.StatusNotImplemented,
		},
		{
			name:           "Unknown route",
			method:         http.MethodGet,
			path:           "/ingest",
			apiKey:         testKey,
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := &mocks.MockStageLauncher{RunID: "run-1"}
			admin := &mocks.MockQueueAdminRepository{StatusResult: domain.QueueStatus{Stream: "stage_invocations", Length: 3}}
			router := newTestRouter(launcher, admin)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d (body %q)", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if tt.expectedBody != "" && !strings.Contains(rr.Body.String(), tt.expectedBody) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedBody, rr.Body.String())
			}
		})
	}
}

func TestRouter_NotifyLaunchesStage(t *testing.T) {
	launcher := &mocks.MockStageLauncher{RunID: "jr_1"}
	router := newTestRouter(launcher, &mocks.MockQueueAdminRepository{})

	body := `{"Records":[{"s3":{"bucket":{"name":"lake"},"object":{"key":"silver/year%3D2024/part-1.parquet","size":42}}}]}`
	req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testKey)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Results []usecase.TriggerResult `json:"results"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Stage != domain.StageSilverToGold || resp.Results[0].LaunchID != "jr_1" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
	if len(launcher.Launched) != 1 || launcher.Launched[0].Key != "silver/year=2024/part-1.parquet" {
		t.Errorf("unexpected launches: %+v", launcher.Launched)
	}
}
