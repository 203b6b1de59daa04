// internal/handlers/admin_verifications.go
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"intesters-backend/internal/middleware"
	"intesters-backend/internal/models"
	"intesters-backend/internal/services"
	apperrors "intesters-backend/pkg/errors"
	"intesters-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

type AdminVerificationHandler struct {
	submissions services.SubmissionService
}

func NewAdminVerificationHandler(submissions services.SubmissionService) *AdminVerificationHandler {
	return &AdminVerificationHandler{
		submissions: submissions,
	}
}

func (h *AdminVerificationHandler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.VerificationFilter{
		UserID:       q.Get("user_id"),
		ReviewStatus: models.ReviewStatus(strings.ToLower(q.Get("status"))),
	}
	if raw := q.Get("valid"); raw != "" {
		valid, err := strconv.ParseBool(raw)
		if err != nil {
			utils.SendErrorResponse(w, apperrors.NewValidationError("valid must be true or false"))
			return
		}
		filter.IsValid = &valid
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}
	filter.From, filter.To = from, to

	records, page, err := h.submissions.ListRecords(r.Context(), filter, parseIntQuery(r, "limit", 50), parseIntQuery(r, "skip", 0))
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, models.VerificationListResponse{
		Records:    records,
		Total:      len(records),
		Pagination: page,
	})
}

func (h *AdminVerificationHandler) GetVerification(w http.ResponseWriter, r *http.Request) {
	detail, err := h.submissions.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, detail)
}

func (h *AdminVerificationHandler) ReviewVerification(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrUnauthorized,
			http.StatusUnauthorized,
			"principal not found in context",
		))
		return
	}

	var req models.ReviewRequest
	if err := utils.BindJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, err)
		return
	}

	reviewer := principal.Email
	if reviewer == "" {
		reviewer = principal.UserID
	}

	record, err := h.submissions.Review(r.Context(), chi.URLParam(r, "id"), reviewer, req)
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, record)
}

func (h *AdminVerificationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}

	stats, err := h.submissions.Stats(r.Context(), from, to)
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"stats": stats,
		"date_range": map[string]interface{}{
			"from": from,
			"to":   to,
		},
	})
}

// parseDateRange reads from/to as RFC3339 or YYYY-MM-DD. A bare "to" date
// covers the whole day.
func parseDateRange(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := parseDateQuery(r, "from", false)
	if err != nil {
		return nil, nil, err
	}
	to, err := parseDateQuery(r, "to", true)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func parseDateQuery(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperrors.NewValidationError(key + " must be RFC3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// parseIntQuery falls back to defaultValue when key is absent or not a number.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	if str := r.URL.Query().Get(key); str != "" {
		if val, err := strconv.Atoi(str); err == nil {
			return val
		}
	}
	return defaultValue
}
