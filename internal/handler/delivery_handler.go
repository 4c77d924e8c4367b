// internal/handler/delivery_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/loxys/loxys-backend/internal/service"
)

// DeliveryHandler exposes the batch dispatcher over HTTP so queued
// deliveries can be drained by a scheduler or by hand.
type DeliveryHandler struct {
	Dispatcher *service.Dispatcher
}

func NewDeliveryHandler(d *service.Dispatcher) *DeliveryHandler {
	return &DeliveryHandler{Dispatcher: d}
}

// ProcessQueuedHandler drains one batch of queued deliveries
func (h *DeliveryHandler) ProcessQueuedHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		BatchSize int `json:"batch_size"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	result, err := h.Dispatcher.ProcessQueued(r.Context(), payload.BatchSize)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"processed": result.Processed,
		"success":   result.Success,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
