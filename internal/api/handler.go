package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/brokerage/internal/catalog"
	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/issuance"
	"github.com/opensource-finance/brokerage/internal/quote"
	"github.com/opensource-finance/brokerage/internal/ruleset"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	rules     *ruleset.Service
	quotes    *quote.Service
	documents *issuance.Service
	catalog   *catalog.Catalog
	version   string
}

// Services groups the domain services the handlers call.
type Services struct {
	Rules     *ruleset.Service
	Quotes    *quote.Service
	Documents *issuance.Service
	Catalog   *catalog.Catalog
}

// NewHandler creates a new API handler. repo, cache and bus are only used
// for health checks and may be nil.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, svc Services, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		rules:     svc.Rules,
		quotes:    svc.Quotes,
		documents: svc.Documents,
		catalog:   svc.Catalog,
		version:   version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error       string         `json:"error"`
	Code        string         `json:"code"`
	Hint        string         `json:"hint,omitempty"`
	NotFoundIDs []int64        `json:"notFoundIds,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// writeError maps err to a status and body. Server-side failures are logged
// and their message is not echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := ierr.HTTPStatus(err)
	resp := errorResponse{
		Error: err.Error(),
		Code:  ierr.Code(err),
		Hint:  ierr.Hint(err),
	}
	if ids, ok := ierr.UnknownIDs(err); ok {
		resp.NotFoundIDs = ids
	}
	if details := ierr.Details(err); len(details) > 0 {
		resp.Details = details
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", resp.Code,
			"error", err,
		)
		resp.Error = "internal server error"
		resp.Hint = ""
		resp.Details = nil
	}

	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return ierr.WithError(err).
			WithMessage("invalid JSON request body").
			WithHint("the request body must be a valid JSON object").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ierr.NewErrorf("invalid %s %q", name, raw).
			WithHintf("%s must be a positive integer", name).
			Mark(ierr.ErrValidation)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ierr.NewErrorf("invalid %s %q", name, raw).
			WithHintf("query parameter %s must be a positive integer", name).
			Mark(ierr.ErrValidation)
	}
	return id, nil
}

// queryBool reads an optional true/false query parameter.
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, ierr.NewErrorf("invalid %s %q", name, raw).
			WithHintf("query parameter %s must be true or false", name).
			Mark(ierr.ErrValidation)
	}
	return &v, nil
}

// pageQuery reads the page and size query parameters. Absent values are
// left zero for the service defaults.
func pageQuery(r *http.Request) (domain.PageRequest, error) {
	var req domain.PageRequest
	params := []struct {
		name string
		dst  *int
	}{{"page", &req.Page}, {"size", &req.Size}}
	for _, p := range params {
		name, dst := p.name, p.dst
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return req, ierr.NewErrorf("invalid %s %q", name, raw).
				WithHintf("query parameter %s must be a positive integer", name).
				Mark(ierr.ErrValidation)
		}
		*dst = v
	}
	return req, nil
}
