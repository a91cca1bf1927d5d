// Package server implements health check handlers.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Error("failed to encode liveness response", "error", err)
		}
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
// Readiness probes indicate if the application can handle traffic.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Error("failed to encode readiness response", "error", err)
		}
	}
}

// Ensure implementation satisfies interface at compile time.
var _ HealthChecker = (*PipelineHealth)(nil)

// PipelineHealth tracks the delivery pipeline's health for probes.
// The pipeline is live once constructed and ready when the Kafka consumer
// has joined its group and the storage writer has been initialized.
type PipelineHealth struct {
	mu             sync.RWMutex
	consumerReady  bool
	storageReady   bool
	lastConsumeAt  time.Time
	lastDeliveryAt time.Time
}

// NewPipelineHealth creates a new pipeline health tracker.
func NewPipelineHealth() *PipelineHealth {
	return &PipelineHealth{}
}

// SetConsumerReady marks the Kafka consumer as ready or not ready.
func (h *PipelineHealth) SetConsumerReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consumerReady = ready
}

// SetStorageReady marks the storage writer as ready or not ready.
func (h *PipelineHealth) SetStorageReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.storageReady = ready
}

// RecordConsume records the time of the most recent consumed record.
func (h *PipelineHealth) RecordConsume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastConsumeAt = time.Now()
}

// RecordDelivery records the time of the most recent storage flush.
func (h *PipelineHealth) RecordDelivery() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastDeliveryAt = time.Now()
}

// Liveness reports whether the process is alive.
func (h *PipelineHealth) Liveness() bool {
	return true
}

// Readiness reports whether the pipeline can handle traffic.
func (h *PipelineHealth) Readiness(ctx context.Context) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.consumerReady && h.storageReady
}

// GetStatus returns per-component status for the readiness response body.
func (h *PipelineHealth) GetStatus() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := map[string]string{
		"consumer": readyString(h.consumerReady),
		"storage":  readyString(h.storageReady),
	}
	if !h.lastConsumeAt.IsZero() {
		status["last_consume"] = h.lastConsumeAt.UTC().Format(time.RFC3339)
	}
	if !h.lastDeliveryAt.IsZero() {
		status["last_delivery"] = h.lastDeliveryAt.UTC().Format(time.RFC3339)
	}
	return status
}

func readyString(ready bool) string {
	if ready {
		return "ready"
	}
	return "not ready"
}
