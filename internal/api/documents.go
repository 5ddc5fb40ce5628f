package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/brokerage/internal/domain"
	"github.com/opensource-finance/brokerage/internal/issuance"
)

// IssueCarDocument handles POST /documents/car.
func (h *Handler) IssueCarDocument(w http.ResponseWriter, r *http.Request) {
	var req issuance.CarDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.documents.IssueCarDocument(r.Context(), GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// IssueLifeDocument handles POST /documents/life.
func (h *Handler) IssueLifeDocument(w http.ResponseWriter, r *http.Request) {
	var req issuance.LifeDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.documents.IssueLifeDocument(r.Context(), GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// IssueHealthDocument handles POST /documents/health.
func (h *Handler) IssueHealthDocument(w http.ResponseWriter, r *http.Request) {
	var req issuance.HealthDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.documents.IssueHealthDocument(r.Context(), GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// IssueGroupHealthDocument handles POST /documents/health/group.
func (h *Handler) IssueGroupHealthDocument(w http.ResponseWriter, r *http.Request) {
	var req issuance.GroupHealthDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.documents.IssueGroupHealthDocument(r.Context(), GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// UpdateDocument handles PUT /documents/{id} with a tagged body:
// {"kind":"CAR","car":{...}}.
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var env issuance.UpdateEnvelope
	if err := decodeJSON(r, &env); err != nil {
		writeError(w, r, err)
		return
	}
	upd, err := env.Update()
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.documents.UpdateDocument(r.Context(), id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetDocument handles GET /documents/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.documents.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetDocumentByNumber handles GET /documents/by-number/{number}.
func (h *Handler) GetDocumentByNumber(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.GetDocumentByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ListDocuments handles GET /documents with optional userId, companyId,
// planId, insuranceType, paid, page and size query parameters.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var filter domain.DocumentFilter
	var err error
	if filter.UserID, err = queryID(r, "userId"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.CompanyID, err = queryID(r, "companyId"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.PlanID, err = queryID(r, "planId"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Paid, err = queryBool(r, "paid"); err != nil {
		writeError(w, r, err)
		return
	}
	filter.InsuranceType = domain.InsuranceType(r.URL.Query().Get("insuranceType"))

	page, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.documents.ListDocuments(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateRenewal handles POST /documents/renewals.
func (h *Handler) CreateRenewal(w http.ResponseWriter, r *http.Request) {
	var in issuance.RenewalInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	renewal, err := h.documents.CreateRenewal(r.Context(), GetUserID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renewal)
}

// UpdateRenewal handles PATCH /documents/renewals/{id}.
func (h *Handler) UpdateRenewal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var patch issuance.RenewalPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	renewal, err := h.documents.UpdateRenewal(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renewal)
}

// ListRenewals handles GET /documents/renewals with optional userId,
// documentId, confirmed, paid, page and size query parameters.
func (h *Handler) ListRenewals(w http.ResponseWriter, r *http.Request) {
	var filter domain.RenewalFilter
	var err error
	if filter.UserID, err = queryID(r, "userId"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.DocumentID, err = queryID(r, "documentId"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Confirmed, err = queryBool(r, "confirmed"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Paid, err = queryBool(r, "paid"); err != nil {
		writeError(w, r, err)
		return
	}

	page, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.documents.ListRenewals(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateRefund handles POST /documents/refunds.
func (h *Handler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var in issuance.RefundInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	refund, err := h.documents.CreateRefund(r.Context(), GetUserID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, refund)
}

// UpdateRefund handles PATCH /documents/refunds/{id}.
func (h *Handler) UpdateRefund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var patch issuance.RefundPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	refund, err := h.documents.UpdateRefund(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refund)
}

// ListRefunds handles GET /documents/refunds with optional userId,
// documentId, status, page and size query parameters.
func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	var filter domain.RefundFilter
	var err error
	if filter.UserID, err = queryID(r, "userId"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.DocumentID, err = queryID(r, "documentId"); err != nil {
		writeError(w, r, err)
		return
	}
	filter.Status = domain.RefundStatus(r.URL.Query().Get("status"))

	page, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.documents.ListRefunds(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
