// internal/handlers/screenshot.go
package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"intesters-backend/internal/middleware"
	"intesters-backend/internal/models"
	"intesters-backend/internal/services"
	apperrors "intesters-backend/pkg/errors"
	"intesters-backend/pkg/utils"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	screenshotField   = "screenshot"
	lastModifiedField = "lastModified"

	// Room for multipart boundaries and the other form fields.
	multipartOverhead = 1 << 20
)

type ScreenshotHandler struct {
	submissions    services.SubmissionService
	maxUploadBytes int64
}

func NewScreenshotHandler(submissions services.SubmissionService, maxUploadBytes int64) *ScreenshotHandler {
	return &ScreenshotHandler{
		submissions:    submissions,
		maxUploadBytes: maxUploadBytes,
	}
}

// VerifyScreenshot accepts a multipart upload and answers with the generic
// verification outcome only.
func (h *ScreenshotHandler) VerifyScreenshot(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrUnauthorized,
			http.StatusUnauthorized,
			"principal not found in context",
		))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		utils.SendErrorResponse(w, h.formError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(screenshotField)
	if err != nil {
		utils.SendErrorResponse(w, apperrors.NewValidationError("screenshot file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrBadRequest,
			http.StatusBadRequest,
			"failed to read screenshot",
		))
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		utils.SendErrorResponse(w, h.tooLarge())
		return
	}

	lastModified, err := parseLastModified(r.FormValue(lastModifiedField))
	if err != nil {
		utils.SendErrorResponse(w, apperrors.NewValidationError("lastModified must be milliseconds since the epoch"))
		return
	}

	outcome, err := h.submissions.Submit(r.Context(), services.Submission{
		UserID:       principal.UserID,
		Email:        principal.Email,
		Filename:     filepath.Base(header.Filename),
		ContentType:  header.Header.Get("Content-Type"),
		Data:         data,
		LastModified: lastModified,
		RequestID:    chimiddleware.GetReqID(r.Context()),
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}

	status := http.StatusOK
	if !outcome.Result.IsValid {
		status = http.StatusUnprocessableEntity
	}
	utils.SendJSONResponse(w, status, models.VerifyScreenshotResponse{
		SubmissionID: outcome.SubmissionID,
		IsValid:      outcome.Result.IsValid,
		Errors:       outcome.Result.Errors,
	})
}

func (h *ScreenshotHandler) formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return h.tooLarge()
	}
	return apperrors.NewAppError(apperrors.ErrBadRequest, http.StatusBadRequest, "invalid multipart form")
}

func (h *ScreenshotHandler) tooLarge() error {
	return apperrors.NewAppError(
		apperrors.ErrPayloadTooLarge,
		http.StatusRequestEntityTooLarge,
		"screenshot exceeds the upload limit",
		strconv.FormatInt(h.maxUploadBytes, 10)+" bytes",
	)
}

// parseLastModified reads the browser File.lastModified value. Empty means
// the client did not send one.
func parseLastModified(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, errors.New("invalid lastModified")
	}
	return time.UnixMilli(ms), nil
}
