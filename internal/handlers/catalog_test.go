package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"adaptive-backend/internal/adaptive"
	"adaptive-backend/internal/models"
)

type stubCatalogService struct {
	topics  map[string][]models.CatalogTopic
	putErr  error
	lastPut string
	pingErr error
}

func (s *stubCatalogService) PutCatalog(ctx context.Context, courseID string, topics []models.CatalogTopic) ([]models.CatalogTopic, error) {
	s.lastPut = courseID
	if s.putErr != nil {
		return nil, s.putErr
	}
	if s.topics == nil {
		s.topics = make(map[string][]models.CatalogTopic)
	}
	s.topics[courseID] = topics
	return topics, nil
}

func (s *stubCatalogService) GetCatalog(ctx context.Context, courseID string) ([]models.CatalogTopic, error) {
	return append([]models.CatalogTopic{}, s.topics[courseID]...), nil
}

func (s *stubCatalogService) Ping(ctx context.Context) error {
	return s.pingErr
}

func TestCatalogHandler_PutThenGet(t *testing.T) {
	svc := &stubCatalogService{}
	h := NewCatalogHandler(svc)

	body := []byte(`{"topics":[{"name":"Loops","position":1,"content_count":4},{"name":"Functions","position":2}]}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/catalog/go-101", bytes.NewReader(body))
	req = withParams(req, map[string]string{"courseId": "go-101"})
	rr := httptest.NewRecorder()

	h.Put(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if svc.lastPut != "go-101" {
		t.Fatalf("expected course go-101, got %q", svc.lastPut)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalog/go-101", nil)
	req = withParams(req, map[string]string{"courseId": "go-101"})
	rr = httptest.NewRecorder()
	h.Get(rr, req)

	var got struct {
		CourseID string                `json:"course_id"`
		Topics   []models.CatalogTopic `json:"topics"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Topics) != 2 || got.Topics[0].ContentCount != 4 {
		t.Fatalf("unexpected catalog %+v", got)
	}
}

func TestCatalogHandler_PutValidation(t *testing.T) {
	svc := &stubCatalogService{putErr: &adaptive.ValidationError{Fields: map[string]string{"topics[0]": "Topic name is required"}}}
	h := NewCatalogHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/catalog/go-101", bytes.NewReader([]byte(`{"topics":[{"name":""}]}`)))
	req = withParams(req, map[string]string{"courseId": "go-101"})
	rr := httptest.NewRecorder()

	h.Put(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if _, ok := decodeError(t, rr).Fields["topics[0]"]; !ok {
		t.Fatal("expected per-topic field error")
	}
}

func TestCatalogHandler_MissingCourse(t *testing.T) {
	h := NewCatalogHandler(&stubCatalogService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/", nil)
	req = withParams(req, map[string]string{"courseId": " "})
	rr := httptest.NewRecorder()

	h.Get(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	svc := &stubCatalogService{}
	h := NewHealthHandler(svc)

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	svc.pingErr = errors.New("down")
	rr = httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}
