package api

import (
	"net/http"

	"github.com/opensource-finance/brokerage/internal/catalog"
)

// SavePlan handles POST /plans.
func (h *Handler) SavePlan(w http.ResponseWriter, r *http.Request) {
	var req catalog.PlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	plan, err := h.catalog.SavePlan(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, savedStatus(req.ID), plan)
}

// GetPlan handles GET /plans/{id}.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	plan, err := h.catalog.Plan(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// SaveCompany handles POST /companies.
func (h *Handler) SaveCompany(w http.ResponseWriter, r *http.Request) {
	var req catalog.CompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	company, err := h.catalog.SaveCompany(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, savedStatus(req.ID), company)
}

// GetCompany handles GET /companies/{id}.
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	company, err := h.catalog.Company(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

// SetCompanyFeatures handles PUT /companies/{id}/plans/{planId}/features.
func (h *Handler) SetCompanyFeatures(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	planID, err := pathID(r, "planId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req catalog.FeaturesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cp, err := h.catalog.SetFeatures(r.Context(), companyID, planID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

// savedStatus is 201 for a create and 200 for a replace.
func savedStatus(id int64) int {
	if id == 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}
