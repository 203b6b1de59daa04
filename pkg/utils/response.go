// pkg/utils/response.go
package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"intesters-backend/internal/models"
	apperrors "intesters-backend/pkg/errors"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// SendJSONResponse sends a JSON response with proper error handling
func SendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	// Marshal the data first to catch any encoding errors
	jsonData, err := json.Marshal(data)
	if err != nil {
		zap.L().Error("Error marshaling JSON response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error: failed to encode response"}`))
		return
	}

	w.WriteHeader(statusCode)

	if _, writeErr := w.Write(jsonData); writeErr != nil {
		zap.L().Warn("Error writing response", zap.Error(writeErr))
	}
}

// SendErrorResponse maps err onto a status code and a JSON error body.
// Errors that are not AppErrors are reported as a bare internal error so that
// no infrastructure detail leaks to the client.
func SendErrorResponse(w http.ResponseWriter, err error) {
	statusCode := apperrors.GetStatusCode(err)

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		zap.L().Error("Unhandled error", zap.Error(err))
		SendJSONResponse(w, statusCode, models.ErrorResponse{
			Error: "internal server error",
			Type:  apperrors.ErrInternalServer,
		})
		return
	}

	if statusCode >= http.StatusInternalServerError {
		zap.L().Error("Sending error response",
			zap.String("type", appErr.Type),
			zap.Int("status", statusCode),
			zap.Error(err))
	} else {
		zap.L().Debug("Sending error response",
			zap.String("type", appErr.Type),
			zap.Int("status", statusCode),
			zap.String("message", appErr.Message))
	}

	SendJSONResponse(w, statusCode, models.ErrorResponse{
		Error:   appErr.Message,
		Type:    appErr.Type,
		Details: appErr.Details,
	})
}

func DecodeJSONBody(r *http.Request, dst interface{}) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return apperrors.NewAppError(apperrors.ErrBadRequest, http.StatusBadRequest, "invalid JSON format")
	}
	return nil
}

// BindJSON decodes the body into dst and runs its Bind hook.
func BindJSON(r *http.Request, dst render.Binder) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return apperrors.NewAppError(apperrors.ErrBadRequest, http.StatusBadRequest, "invalid JSON format")
	}
	if err := dst.Bind(r); err != nil {
		return apperrors.NewValidationError("validation failed: " + err.Error())
	}
	return nil
}
