package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"adaptive-backend/internal/middleware"
	"adaptive-backend/internal/models"
)

type performanceService interface {
	RecordAttempt(ctx context.Context, a models.AttemptRecord) (*models.AttemptResult, error)
	Enroll(ctx context.Context, studentID, courseID string) (*models.DifficultyState, error)
	GetCourseProgress(ctx context.Context, studentID, courseID string) (*models.CourseProgress, error)
	GetOverallProgress(ctx context.Context, studentID string) (*models.OverallProgress, error)
	Recommend(ctx context.Context, studentID, courseID string) (*models.Recommendation, error)
	TopicHistory(ctx context.Context, studentID, courseID, topic string, limit int) ([]models.AttemptRecord, error)
}

type PerformanceHandler struct {
	svc performanceService
}

func NewPerformanceHandler(svc performanceService) *PerformanceHandler {
	return &PerformanceHandler{svc: svc}
}

func (h *PerformanceHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitAttemptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	studentID := middleware.GetStudentID(r.Context())
	result, err := h.svc.RecordAttempt(r.Context(), req.ToRecord(studentID))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *PerformanceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req models.EnrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	state, err := h.svc.Enroll(r.Context(), middleware.GetStudentID(r.Context()), req.CourseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, state)
}

func (h *PerformanceHandler) CourseProgress(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathParam(w, r, "courseId")
	if !ok {
		return
	}

	progress, err := h.svc.GetCourseProgress(r.Context(), middleware.GetStudentID(r.Context()), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, progress)
}

func (h *PerformanceHandler) OverallProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.GetOverallProgress(r.Context(), middleware.GetStudentID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, progress)
}

func (h *PerformanceHandler) Recommendation(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathParam(w, r, "courseId")
	if !ok {
		return
	}

	rec, err := h.svc.Recommend(r.Context(), middleware.GetStudentID(r.Context()), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *PerformanceHandler) TopicHistory(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathParam(w, r, "courseId")
	if !ok {
		return
	}
	topic, ok := pathParam(w, r, "topic")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"limit": "Limit must be a positive integer"}, r))
			return
		}
		limit = n
	}

	attempts, err := h.svc.TopicHistory(r.Context(), middleware.GetStudentID(r.Context()), courseID, topic, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"course_id": courseID,
		"topic":     topic,
		"attempts":  attempts,
	})
}

// pathParam reads a chi URL parameter, answering 400 when it is blank. chi matches against
// RawPath when the request has one, and only then is the parameter still escaped.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	val := chi.URLParam(r, name)
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(val)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{name: "Invalid escape"}, r))
			return "", false
		}
		val = unescaped
	}
	val = strings.TrimSpace(val)
	if val == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{name: "Required"}, r))
		return "", false
	}
	return val, true
}
