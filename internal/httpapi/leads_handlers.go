package httpapi

import (
	"net/http"
	"strconv"

	"leadgen-engine/internal/domain"
)

type LeadsHandler struct {
	Store Store
}

// List pages through leads of one status: /leads?status=new&after=120&limit=50
func (h LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.LeadStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.LeadNew
	}
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)

	leads, err := h.Store.ListLeadsByStatus(r.Context(), status, after, intParam(r, "limit", 50))
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	WriteJSON(w, http.StatusOK, leads)
}

func (h LeadsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Store.CountLeadsByStatus(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, counts)
}

func (h LeadsHandler) Campaigns(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListActiveCampaigns(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

func (h LeadsHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Checkpoint(r.Context()); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
