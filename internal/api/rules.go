package api

import (
	"context"
	"net/http"

	"github.com/opensource-finance/brokerage/internal/domain"
	"github.com/opensource-finance/brokerage/internal/ruleset"
)

// UpsertHealthRules handles POST /rules/health.
func (h *Handler) UpsertHealthRules(w http.ResponseWriter, r *http.Request) {
	var req ruleset.UpsertHealthRulesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	stored, err := h.rules.UpsertHealthRules(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": stored})
}

// UpsertLifeRules handles POST /rules/life.
func (h *Handler) UpsertLifeRules(w http.ResponseWriter, r *http.Request) {
	var req ruleset.UpsertLifeRulesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	stored, err := h.rules.UpsertLifeRules(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": stored})
}

// UpsertCarRule handles POST /rules/car (create, or update when the body
// carries an id) and PUT /rules/car/{id}.
func (h *Handler) UpsertCarRule(w http.ResponseWriter, r *http.Request) {
	var req ruleset.CarRuleInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if r.Method == http.MethodPut {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.ID = &id
	}

	result, err := h.rules.UpsertCarRule(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Mode == domain.ModeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// DeleteHealthRules handles POST /rules/health/delete.
func (h *Handler) DeleteHealthRules(w http.ResponseWriter, r *http.Request) {
	h.deleteWith(w, r, h.rules.DeleteHealthRules)
}

// DeleteLifeRules handles POST /rules/life/delete.
func (h *Handler) DeleteLifeRules(w http.ResponseWriter, r *http.Request) {
	h.deleteWith(w, r, h.rules.DeleteLifeRules)
}

// DeleteCarRules handles POST /rules/car/delete.
func (h *Handler) DeleteCarRules(w http.ResponseWriter, r *http.Request) {
	h.deleteWith(w, r, h.rules.DeleteCarRules)
}

// DeleteCarRuleGroupEntries handles POST /rules/car/groups/delete.
func (h *Handler) DeleteCarRuleGroupEntries(w http.ResponseWriter, r *http.Request) {
	h.deleteWith(w, r, h.rules.DeleteCarRuleGroupEntries)
}

// GetAllRules handles GET /rules?planId=&companyId=.
func (h *Handler) GetAllRules(w http.ResponseWriter, r *http.Request) {
	planID, err := queryID(r, "planId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	companyID, err := queryID(r, "companyId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.rules.GetAllRules(r.Context(), domain.RuleFilter{PlanID: planID, CompanyID: companyID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type deleteFunc func(ctx context.Context, req ruleset.DeleteRequest) (*ruleset.DeleteResult, error)

func (h *Handler) deleteWith(w http.ResponseWriter, r *http.Request, del deleteFunc) {
	var req ruleset.DeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := del(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
