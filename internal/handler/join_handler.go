// internal/handler/join_handler.go
package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/loxys/loxys-backend/internal/service"
)

// JoinHandler serves the public, unauthenticated join surface.
type JoinHandler struct {
	Service *service.JoinService
}

func NewJoinHandler(svc *service.JoinService) *JoinHandler {
	return &JoinHandler{Service: svc}
}

// ResolveJoinTokenHandler lets the join page look up a token or slug
// before rendering the form. Only safe fields are exposed.
func (h *JoinHandler) ResolveJoinTokenHandler(w http.ResponseWriter, r *http.Request) {
	token, err := h.Service.ResolveToken(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":        token.Token,
		"slug":         token.Slug,
		"channel_hint": token.ChannelHint,
	})
}

// JoinHandler accepts a public self-service signup
func (h *JoinHandler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	var req service.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	customer, err := h.Service.Join(req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, customer)
}

// clientIP prefers forwarding headers since the service is expected to
// sit behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
