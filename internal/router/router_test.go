package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adaptive-backend/internal/adaptive"
	"adaptive-backend/internal/handlers"
	"adaptive-backend/internal/logger"
	"adaptive-backend/internal/middleware"
	"adaptive-backend/internal/models"
	"adaptive-backend/internal/repository"
	"adaptive-backend/internal/services"
)

const testSecret = "router-test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *middleware.JWTAuth) {
	t.Helper()
	log := logger.NewNop()
	svc := services.NewPerformanceService(repository.NewMemoryStore(),
		adaptive.NewEngine(adaptive.DefaultPolicy()), services.PerformanceOptions{Log: log})
	jwtAuth := middleware.NewJWTAuth(testSecret)

	h := New(Deps{
		JWTAuth:            jwtAuth,
		PerformanceHandler: handlers.NewPerformanceHandler(svc),
		CatalogHandler:     handlers.NewCatalogHandler(svc),
		HealthHandler:      handlers.NewHealthHandler(svc),
		FrontendURL:        "http://localhost:5173",
		Log:                log,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, jwtAuth
}

func token(t *testing.T, j *middleware.JWTAuth, studentID, role string) string {
	t.Helper()
	tok, err := j.GenerateAccessToken(studentID, role, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tok
}

func do(t *testing.T, method, url, tok string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_HealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/overall-progress", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestRouter_CatalogWriteNeedsInstructor(t *testing.T) {
	srv, j := newTestServer(t)
	catalog := models.PutCatalogRequest{Topics: []models.CatalogTopic{{Name: "Loops", Position: 1, ContentCount: 2}}}

	resp := do(t, http.MethodPut, srv.URL+"/api/v1/catalog/go-101", token(t, j, "student-1", middleware.RoleStudent), catalog)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, resp.StatusCode)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/v1/catalog/go-101", token(t, j, "instructor-1", middleware.RoleInstructor), catalog)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestRouter_AttemptFlow(t *testing.T) {
	srv, j := newTestServer(t)
	instructor := token(t, j, "instructor-1", middleware.RoleInstructor)
	student := token(t, j, "student-1", middleware.RoleStudent)

	catalog := models.PutCatalogRequest{Topics: []models.CatalogTopic{
		{Name: "Loops", Position: 1, ContentCount: 3},
		{Name: "Functions", Position: 2, ContentCount: 2},
	}}
	if resp := do(t, http.MethodPut, srv.URL+"/api/v1/catalog/go-101", instructor, catalog); resp.StatusCode != http.StatusOK {
		t.Fatalf("put catalog: status %d", resp.StatusCode)
	}

	if resp := do(t, http.MethodGet, srv.URL+"/api/v1/performance/go-101", student, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before enrollment, got %d", resp.StatusCode)
	}

	attempt := map[string]interface{}{
		"course_id":             "go-101",
		"topic_name":            "Loops",
		"quiz_kind":             "NORMAL",
		"score":                 4,
		"total_questions":       10,
		"difficulty_at_attempt": "BEGINNER",
		"time_spent_seconds":    90,
	}
	resp := do(t, http.MethodPost, srv.URL+"/api/v1/quiz-attempts", student, attempt)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit attempt: status %d", resp.StatusCode)
	}
	var result models.AttemptResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Recommendation == nil || result.Recommendation.RecommendedTopic != "Loops" {
		t.Fatalf("expected Loops to be recommended, got %+v", result.Recommendation)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/courses/go-101/recommendation", student, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recommendation: status %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/courses/go-101/topics/Loops/attempts?limit=10", student, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: status %d", resp.StatusCode)
	}
	var history struct {
		Attempts []models.AttemptRecord `json:"attempts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Attempts) != 1 || history.Attempts[0].StudentID != "student-1" {
		t.Fatalf("unexpected history %+v", history.Attempts)
	}

	// Another student sees nothing of student-1's course.
	other := token(t, j, "student-2", middleware.RoleStudent)
	if resp := do(t, http.MethodGet, srv.URL+"/api/v1/performance/go-101", other, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for another student, got %d", resp.StatusCode)
	}
}
