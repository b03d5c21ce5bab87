// Package handler exposes donor searches over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"donormatch/internal/matching/models"
	dErrors "donormatch/pkg/domain-errors"
	"donormatch/pkg/platform/httputil"
	"donormatch/pkg/platform/sentinel"
	"donormatch/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

// Service is the search entry point the handler needs.
type Service interface {
	Search(ctx context.Context, criteria models.AlleleLevelMatchCriteria) ([]*models.MatchResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the matching routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/matching/searches", h.handleSearch)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid search request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	criteria, err := req.ToCriteria()
	if err != nil {
		h.logger.WarnContext(ctx, "invalid search criteria",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	results, err := h.service.Search(ctx, criteria)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			httputil.WriteError(w, err)
			return
		}
		if errors.Is(err, sentinel.ErrUnavailable) {
			h.logger.WarnContext(ctx, "donor store unavailable",
				"request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "donor store unavailable"))
			return
		}
		h.logger.ErrorContext(ctx, "search failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "search failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSearchResponse(results))
}
