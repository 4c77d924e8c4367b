// internal/handler/join_token_handler.go
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/loxys/loxys-backend/internal/service"
)

// JoinTokenHandler manages the join tokens an account hands out for
// self-service signup.
type JoinTokenHandler struct {
	Service *service.JoinService

	// AppBaseURL is the public origin the QR code points at.
	AppBaseURL string
}

func NewJoinTokenHandler(svc *service.JoinService, appBaseURL string) *JoinTokenHandler {
	return &JoinTokenHandler{Service: svc, AppBaseURL: appBaseURL}
}

// CreateJoinTokenHandler mints a new join token
func (h *JoinTokenHandler) CreateJoinTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Slug        string `json:"slug"`
		ChannelHint string `json:"channel_hint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.Service.CreateToken(accountID(r), payload.Slug, payload.ChannelHint)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

// ListJoinTokensHandler lists the account's join tokens
func (h *JoinTokenHandler) ListJoinTokensHandler(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.Service.ListTokens(accountID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": tokens})
}

// ActivateJoinTokenHandler re-enables a deactivated token
func (h *JoinTokenHandler) ActivateJoinTokenHandler(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// DeactivateJoinTokenHandler turns a token off without deleting it
func (h *JoinTokenHandler) DeactivateJoinTokenHandler(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *JoinTokenHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")

	if err := h.Service.SetTokenActive(accountID(r), id, active); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

// RegenerateJoinTokenHandler deactivates a token and issues a
// replacement with a fresh random value
func (h *JoinTokenHandler) RegenerateJoinTokenHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	token, err := h.Service.RegenerateToken(accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

// JoinTokenQRHandler renders the token's public join URL as a PNG QR
// code, suitable for printing
func (h *JoinTokenHandler) JoinTokenQRHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	token, err := h.Service.GetToken(accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	ref := token.Token
	if token.Slug != nil {
		ref = *token.Slug
	}
	joinURL := fmt.Sprintf("%s/join/%s", h.AppBaseURL, ref)

	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
