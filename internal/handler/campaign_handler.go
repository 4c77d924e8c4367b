// internal/handler/campaign_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loxys/loxys-backend/internal/service"
)

// CampaignHandler holds the dependencies for campaign-related HTTP handlers
type CampaignHandler struct {
	Service *service.CampaignService
}

func NewCampaignHandler(svc *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{Service: svc}
}

// CreateCampaignHandler handles creating a new draft campaign
func (h *CampaignHandler) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Channel string `json:"channel"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	campaign, err := h.Service.CreateCampaign(accountID(r), payload.Channel, payload.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, campaign)
}

// ListCampaignsHandler returns the account's campaigns, optionally
// filtered by status
func (h *CampaignHandler) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	campaigns, err := h.Service.ListCampaigns(accountID(r), status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": campaigns})
}

// GetCampaignHandler returns a single campaign with delivery stats
func (h *CampaignHandler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	details, err := h.Service.GetCampaignDetails(accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// ListCampaignDeliveriesHandler returns a campaign's delivery rows
func (h *CampaignHandler) ListCampaignDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deliveries, err := h.Service.ListDeliveries(accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": deliveries})
}

// StartCampaignHandler transitions a draft campaign to sending and
// queues one delivery per eligible customer
func (h *CampaignHandler) StartCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.Service.StartCampaign(accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CancelCampaignHandler cancels a draft or sending campaign
func (h *CampaignHandler) CancelCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Service.CancelCampaign(accountID(r), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// RequeueFailedHandler puts a sending campaign's failed deliveries back
// in the queue
func (h *CampaignHandler) RequeueFailedHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	requeued, err := h.Service.RequeueFailed(accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"requeued": requeued})
}
