package api

import (
	"net/http"

	"github.com/opensource-finance/brokerage/internal/quote"
)

// HealthOffers handles POST /offers/health.
func (h *Handler) HealthOffers(w http.ResponseWriter, r *http.Request) {
	var req quote.PersonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	offers, err := h.quotes.HealthOffers(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers, "count": len(offers)})
}

// LifeOffers handles POST /offers/life.
func (h *Handler) LifeOffers(w http.ResponseWriter, r *http.Request) {
	var req quote.PersonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	offers, err := h.quotes.LifeOffers(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers, "count": len(offers)})
}

// CarOffers handles POST /offers/car.
func (h *Handler) CarOffers(w http.ResponseWriter, r *http.Request) {
	var req quote.CarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	offers, err := h.quotes.CarOffers(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers, "count": len(offers)})
}

// FamilyHealthOffers handles POST /offers/family/health.
func (h *Handler) FamilyHealthOffers(w http.ResponseWriter, r *http.Request) {
	var req quote.FamilyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	offers, err := h.quotes.FamilyHealthOffers(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers, "count": len(offers)})
}
