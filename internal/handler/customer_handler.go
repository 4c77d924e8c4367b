// internal/handler/customer_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/loxys/loxys-backend/internal/errors"
	"github.com/loxys/loxys-backend/internal/model"
	"github.com/loxys/loxys-backend/internal/repository"
	"github.com/loxys/loxys-backend/internal/service"
)

// CustomerHandler holds the dependencies for customer CRUD handlers
type CustomerHandler struct {
	Repo     repository.CustomerRepositoryInterface
	Consents repository.ConsentRepositoryInterface
	Filter   *service.EligibilityFilter
}

func NewCustomerHandler(repo repository.CustomerRepositoryInterface, consents repository.ConsentRepositoryInterface, filter *service.EligibilityFilter) *CustomerHandler {
	return &CustomerHandler{Repo: repo, Consents: consents, Filter: filter}
}

type customerPayload struct {
	Name        string     `json:"name"`
	PhoneE164   string     `json:"phone_e164"`
	Email       string     `json:"email"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Notes       string     `json:"notes"`
}

func (p *customerPayload) apply(c *model.Customer) error {
	if p.Name == "" {
		return apperrors.NewValidation("name is required")
	}
	if p.PhoneE164 == "" && p.Email == "" {
		return apperrors.NewValidation("at least one of phone or email is required")
	}

	c.Name = p.Name
	c.PhoneE164 = nil
	c.Email = nil
	if p.PhoneE164 != "" {
		phone := service.NormalizePhone(p.PhoneE164)
		if phone == "" {
			return apperrors.NewValidation("invalid phone number")
		}
		c.PhoneE164 = &phone
	}
	if p.Email != "" {
		email := service.NormalizeEmail(p.Email)
		c.Email = &email
	}
	c.DateOfBirth = p.DateOfBirth
	c.Notes = nil
	if p.Notes != "" {
		notes := p.Notes
		c.Notes = &notes
	}
	return nil
}

// CreateCustomerHandler creates an active customer
func (h *CustomerHandler) CreateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var payload customerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	customer := &model.Customer{
		AccountID: accountID(r),
		Status:    model.CustomerActive,
	}
	if err := payload.apply(customer); err != nil {
		writeError(w, err)
		return
	}

	if err := h.Repo.Create(customer); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, customer)
}

// ListCustomersHandler lists the account's customers with optional
// status and name-search filters
func (h *CustomerHandler) ListCustomersHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	search := r.URL.Query().Get("search")

	customers, err := h.Repo.List(accountID(r), status, search)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": customers})
}

// GetCustomerHandler returns a single customer by ID
func (h *CustomerHandler) GetCustomerHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	customer, err := h.Repo.GetByID(accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if customer == nil {
		writeError(w, apperrors.NewCustomerNotFound(id))
		return
	}

	writeJSON(w, http.StatusOK, customer)
}

// UpdateCustomerHandler replaces a customer's editable fields
func (h *CustomerHandler) UpdateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	customer, err := h.Repo.GetByID(accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if customer == nil {
		writeError(w, apperrors.NewCustomerNotFound(id))
		return
	}

	var payload customerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := payload.apply(customer); err != nil {
		writeError(w, err)
		return
	}

	if err := h.Repo.Update(customer); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, customer)
}

// ListCustomerConsentsHandler returns the customer's full consent
// ledger, oldest first
func (h *CustomerHandler) ListCustomerConsentsHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	customer, err := h.Repo.GetByID(accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if customer == nil {
		writeError(w, apperrors.NewCustomerNotFound(id))
		return
	}

	consents, err := h.Consents.ListByCustomer(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": consents})
}

// CustomerEligibilityHandler reports whether the customer would
// receive a campaign on the given channel right now
func (h *CustomerHandler) CustomerEligibilityHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	channel := r.URL.Query().Get("channel")
	if !model.ValidChannel(channel) {
		writeError(w, apperrors.NewValidation("channel query parameter must be sms or email"))
		return
	}

	customer, err := h.Repo.GetByID(accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if customer == nil {
		writeError(w, apperrors.NewCustomerNotFound(id))
		return
	}

	eligible, err := h.Filter.IsEligible(accountID(r), channel, customer)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customer_id": id,
		"channel":     channel,
		"eligible":    eligible,
	})
}

// ArchiveCustomerHandler removes a customer from campaign audiences
// without deleting their history
func (h *CustomerHandler) ArchiveCustomerHandler(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.CustomerArchived)
}

// RestoreCustomerHandler makes an archived customer active again
func (h *CustomerHandler) RestoreCustomerHandler(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.CustomerActive)
}

func (h *CustomerHandler) setStatus(w http.ResponseWriter, r *http.Request, status string) {
	id := chi.URLParam(r, "id")

	if err := h.Repo.SetStatus(accountID(r), id, status); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
