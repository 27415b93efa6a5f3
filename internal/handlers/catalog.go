package handlers

import (
	"context"
	"net/http"

	"adaptive-backend/internal/models"
)

type catalogService interface {
	PutCatalog(ctx context.Context, courseID string, topics []models.CatalogTopic) ([]models.CatalogTopic, error)
	GetCatalog(ctx context.Context, courseID string) ([]models.CatalogTopic, error)
}

// CatalogHandler receives topic lists from the course service.
type CatalogHandler struct {
	svc catalogService
}

func NewCatalogHandler(svc catalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

func (h *CatalogHandler) Put(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathParam(w, r, "courseId")
	if !ok {
		return
	}

	var req models.PutCatalogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	topics, err := h.svc.PutCatalog(r.Context(), courseID, req.Topics)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"course_id": courseID, "topics": topics})
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathParam(w, r, "courseId")
	if !ok {
		return
	}

	topics, err := h.svc.GetCatalog(r.Context(), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"course_id": courseID, "topics": topics})
}
