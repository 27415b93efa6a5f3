package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"adaptive-backend/internal/adaptive"
	"adaptive-backend/internal/middleware"
	"adaptive-backend/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func requestID(r *http.Request) string {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(middleware.RequestIDHeader)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: requestID(r),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: requestID(r),
		},
	}
}

// decodeJSON rejects unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *adaptive.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", verr.Fields, r))
	case errors.Is(err, adaptive.ErrInvalidAttempt):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
	case errors.Is(err, adaptive.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_ENROLLED", "Student is not enrolled in this course", r))
	case errors.Is(err, adaptive.ErrNoCatalogAvailable):
		writeJSON(w, http.StatusConflict, errorResp("NO_CATALOG", "No topics are published for this course yet", r))
	case errors.Is(err, adaptive.ErrDuplicateAttempt):
		writeJSON(w, http.StatusConflict, errorResp("DUPLICATE_ATTEMPT", "This attempt was already recorded", r))
	case errors.Is(err, adaptive.ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorResp("STORAGE_UNAVAILABLE", "Storage is temporarily unavailable, please retry", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
