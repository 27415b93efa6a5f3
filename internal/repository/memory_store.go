package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"adaptive-backend/internal/adaptive"
	"adaptive-backend/internal/models"
)

type enrollmentKey struct {
	student string
	course  string
}

type topicKey struct {
	student string
	course  string
	topic   string
}

// MemoryStore keeps everything in process. It backs tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu       sync.RWMutex
	states   map[enrollmentKey]models.DifficultyState
	mastery  map[topicKey]models.TopicMastery
	attempts []models.AttemptRecord
	seen     map[uuid.UUID]struct{}
	catalogs map[string][]models.CatalogTopic
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[enrollmentKey]models.DifficultyState),
		mastery:  make(map[topicKey]models.TopicMastery),
		seen:     make(map[uuid.UUID]struct{}),
		catalogs: make(map[string][]models.CatalogTopic),
	}
}

func (s *MemoryStore) RecordAttempt(ctx context.Context, a models.AttemptRecord, fold FoldFunc) (models.TopicMastery, models.DifficultyState, error) {
	if err := ctx.Err(); err != nil {
		return models.TopicMastery{}, models.DifficultyState{}, unavailable("record attempt", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[a.ID]; dup {
		return models.TopicMastery{}, models.DifficultyState{}, adaptive.ErrDuplicateAttempt
	}

	ek := enrollmentKey{a.StudentID, a.CourseID}
	tk := topicKey{a.StudentID, a.CourseID, a.TopicName}

	state, ok := s.states[ek]
	if !ok {
		state = models.NewDifficultyState(a.StudentID, a.CourseID)
		state.UpdatedAt = time.Now().UTC()
	}
	m, state := fold(s.mastery[tk], state)

	s.seen[a.ID] = struct{}{}
	a.WeakAreas = append([]string(nil), a.WeakAreas...)
	s.attempts = append(s.attempts, a)
	s.mastery[tk] = m
	s.states[ek] = state
	return copyMastery(m), state, nil
}

func (s *MemoryStore) Enroll(ctx context.Context, studentID, courseID string) (models.DifficultyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ek := enrollmentKey{studentID, courseID}
	if state, ok := s.states[ek]; ok {
		return state, nil
	}
	state := models.NewDifficultyState(studentID, courseID)
	state.UpdatedAt = time.Now().UTC()
	s.states[ek] = state
	return state, nil
}

func (s *MemoryStore) GetCourse(ctx context.Context, studentID, courseID string) (*CourseSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[enrollmentKey{studentID, courseID}]
	if !ok {
		return nil, adaptive.ErrNotFound
	}

	snap := &CourseSnapshot{State: state, Topics: []models.TopicMastery{}}
	for k, m := range s.mastery {
		if k.student == studentID && k.course == courseID {
			snap.Topics = append(snap.Topics, copyMastery(m))
		}
	}
	sort.Slice(snap.Topics, func(i, j int) bool { return snap.Topics[i].TopicName < snap.Topics[j].TopicName })
	return snap, nil
}

func (s *MemoryStore) ListEnrollments(ctx context.Context, studentID string) ([]models.DifficultyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DifficultyState
	for k, state := range s.states {
		if k.student == studentID {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

func (s *MemoryStore) ListAttempts(ctx context.Context, studentID, courseID, topic string, limit int) ([]models.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = clampLimit(limit)
	out := []models.AttemptRecord{}
	for i := len(s.attempts) - 1; i >= 0; i-- {
		a := s.attempts[i]
		if a.StudentID != studentID || a.CourseID != courseID {
			continue
		}
		if topic != "" && a.TopicName != topic {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AttemptedAt.After(out[j].AttemptedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) QuizKindTotals(ctx context.Context, studentID string) (map[models.QuizKind]KindTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[models.QuizKind]KindTotals)
	for _, a := range s.attempts {
		if a.StudentID != studentID {
			continue
		}
		t := totals[a.QuizKind]
		t.Attempts++
		t.Correct += a.Score
		t.Questions += a.TotalQuestions
		t.TimeSpentSeconds += a.TimeSpentSeconds
		totals[a.QuizKind] = t
	}
	return totals, nil
}

func (s *MemoryStore) PutCatalog(ctx context.Context, courseID string, topics []models.CatalogTopic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.catalogs[courseID] = append([]models.CatalogTopic(nil), topics...)
	return nil
}

func (s *MemoryStore) GetCatalog(ctx context.Context, courseID string) ([]models.CatalogTopic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]models.CatalogTopic{}, s.catalogs[courseID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func copyMastery(m models.TopicMastery) models.TopicMastery {
	m.WeakAreas = append([]string{}, m.WeakAreas...)
	return m
}
