// internal/handler/unsubscribe_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/loxys/loxys-backend/internal/service"
)

// UnsubscribeHandler serves the public one-click unsubscribe endpoint
// linked from every outbound email.
type UnsubscribeHandler struct {
	Service *service.UnsubscribeService
}

func NewUnsubscribeHandler(svc *service.UnsubscribeService) *UnsubscribeHandler {
	return &UnsubscribeHandler{Service: svc}
}

// UnsubscribeRequestHandler suppresses a contact for an account. The
// endpoint is idempotent; unsubscribing twice succeeds.
func (h *UnsubscribeHandler) UnsubscribeRequestHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccountID string `json:"account_id"`
		Channel   string `json:"channel"`
		Contact   string `json:"contact"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := h.Service.Unsubscribe(payload.AccountID, payload.Channel, payload.Contact, payload.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}
