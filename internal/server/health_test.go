package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestPipelineHealth_Readiness(t *testing.T) {
	health := NewPipelineHealth()

	if health.Readiness(context.Background()) {
		t.Error("pipeline should not be ready before components report in")
	}

	health.SetConsumerReady(true)
	if health.Readiness(context.Background()) {
		t.Error("pipeline should not be ready without storage")
	}

	health.SetStorageReady(true)
	if !health.Readiness(context.Background()) {
		t.Error("pipeline should be ready with consumer and storage up")
	}

	health.SetConsumerReady(false)
	if health.Readiness(context.Background()) {
		t.Error("pipeline should drop readiness when consumer disconnects")
	}
}

func TestPipelineHealth_Liveness(t *testing.T) {
	health := NewPipelineHealth()
	if !health.Liveness() {
		t.Error("pipeline should always report live")
	}
}

func TestPipelineHealth_GetStatus(t *testing.T) {
	health := NewPipelineHealth()
	health.SetConsumerReady(true)
	health.RecordConsume()
	health.RecordDelivery()

	status := health.GetStatus()
	if status["consumer"] != "ready" {
		t.Errorf("consumer status = %s, want ready", status["consumer"])
	}
	if status["storage"] != "not ready" {
		t.Errorf("storage status = %s, want not ready", status["storage"])
	}
	if status["last_consume"] == "" {
		t.Error("expected last_consume timestamp")
	}
	if status["last_delivery"] == "" {
		t.Error("expected last_delivery timestamp")
	}
}

func TestLivenessHandler(t *testing.T) {
	health := NewPipelineHealth()
	handler := LivenessHandler(health, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Status != "alive" {
		t.Errorf("status = %s, want alive", response.Status)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*PipelineHealth)
		wantCode   int
		wantStatus string
	}{
		{
			name:       "not ready at startup",
			setup:      func(h *PipelineHealth) {},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not ready",
		},
		{
			name: "ready when components are up",
			setup: func(h *PipelineHealth) {
				h.SetConsumerReady(true)
				h.SetStorageReady(true)
			},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := NewPipelineHealth()
			tt.setup(health)

			handler := ReadinessHandler(health, testLogger())
			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}

			var response HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if response.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", response.Status, tt.wantStatus)
			}
			if len(response.Checks) == 0 {
				t.Error("expected component checks in readiness response")
			}
		})
	}
}
