package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"adaptive-backend/internal/adaptive"
	"adaptive-backend/internal/cache"
	"adaptive-backend/internal/logger"
	"adaptive-backend/internal/models"
	"adaptive-backend/internal/repository"
	"adaptive-backend/internal/worker"
)

const (
	lockTimeout       = 5 * time.Second
	overallFanOut     = 4
	defaultHistoryCap = 50
)

type progressNotifier interface {
	Enqueue(job worker.Job) bool
}

// PerformanceService records attempts and answers progress queries.
//
// Writes for one (student, course) are serialized by the locker and committed by the store
// in one transaction, so readers never see a mastery update without its state transition.
type PerformanceService struct {
	store     repository.Store
	engine    *adaptive.Engine
	locker    cache.Locker
	recs      cache.RecommendationCache
	publisher cache.Publisher
	notifier  progressNotifier
	log       *logger.Logger
	now       func() time.Time
}

type PerformanceOptions struct {
	Locker    cache.Locker
	Cache     cache.RecommendationCache
	Publisher cache.Publisher
	Log       *logger.Logger
}

func NewPerformanceService(store repository.Store, engine *adaptive.Engine, opts PerformanceOptions) *PerformanceService {
	s := &PerformanceService{
		store:     store,
		engine:    engine,
		locker:    opts.Locker,
		recs:      opts.Cache,
		publisher: opts.Publisher,
		log:       opts.Log,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if s.locker == nil {
		s.locker = cache.NewLocalLocker()
	}
	if s.recs == nil {
		s.recs = cache.NopRecommendationCache{}
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	return s
}

// UseNotifier routes progress pushes through n after each recorded attempt.
func (s *PerformanceService) UseNotifier(n progressNotifier) {
	s.notifier = n
}

func (s *PerformanceService) RecordAttempt(ctx context.Context, a models.AttemptRecord) (*models.AttemptResult, error) {
	a.StudentID = strings.TrimSpace(a.StudentID)
	a.CourseID = strings.TrimSpace(a.CourseID)
	a.TopicName = strings.TrimSpace(a.TopicName)
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = s.now()
	}
	a.AttemptedAt = a.AttemptedAt.UTC()

	if err := s.engine.Validate(a); err != nil {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, cache.ProgressLockKey(a.StudentID, a.CourseID))
	if err != nil {
		return nil, fmt.Errorf("lock progress: %w: %w", adaptive.ErrStorageUnavailable, err)
	}

	mastery, state, err := s.store.RecordAttempt(ctx, a, func(m models.TopicMastery, st models.DifficultyState) (models.TopicMastery, models.DifficultyState) {
		return s.engine.Fold(m, a), s.engine.Advance(st, a)
	})
	unlock()
	if err != nil {
		return nil, err
	}
	s.recs.Invalidate(ctx, a.StudentID, a.CourseID)

	result := &models.AttemptResult{
		Attempt:         a,
		TopicMastery:    mastery,
		DifficultyState: state,
	}

	snap, err := s.store.GetCourse(ctx, a.StudentID, a.CourseID)
	if err == nil {
		result.Recommendation, result.RecommendationStatus, err = s.recommendationFor(ctx, snap)
	}
	if err != nil {
		// The attempt is committed; only the follow-up recommendation is missing.
		s.log.Warn("Recommendation after attempt failed", "student_id", a.StudentID, "course_id", a.CourseID, "error", err)
		result.Recommendation = nil
		result.RecommendationStatus = models.RecommendationStatusNone
	}

	if s.notifier != nil {
		s.notifier.Enqueue(worker.Job{StudentID: a.StudentID, CourseID: a.CourseID})
	}

	s.log.Info("Recorded quiz attempt",
		"attempt_id", a.ID,
		"student_id", a.StudentID,
		"course_id", a.CourseID,
		"topic", a.TopicName,
		"quiz_kind", a.QuizKind,
		"percent", a.Percent(),
		"level", state.CurrentLevel,
	)
	return result, nil
}

func (s *PerformanceService) Enroll(ctx context.Context, studentID, courseID string) (*models.DifficultyState, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, &adaptive.ValidationError{Fields: map[string]string{"course_id": "Course ID is required"}}
	}
	state, err := s.store.Enroll(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *PerformanceService) GetCourseProgress(ctx context.Context, studentID, courseID string) (*models.CourseProgress, error) {
	snap, err := s.store.GetCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.store.GetCatalog(ctx, courseID)
	if err != nil {
		return nil, err
	}

	p := &models.CourseProgress{
		StudentID:       studentID,
		CourseID:        courseID,
		OverallScore:    adaptive.CourseScore(snap.Topics),
		TopicScores:     make(map[string]float64, len(snap.Topics)),
		Topics:          snap.Topics,
		TopicCompletion: adaptive.Completion(snap.Topics, catalog),
		DifficultyState: snap.State,
	}
	for _, t := range snap.Topics {
		p.TopicScores[t.TopicName] = t.AverageScorePercent
		p.AttemptCount += t.AttemptCount
		p.TimeSpentSeconds += t.TimeSpentSecondsTotal
	}

	p.Recommendation, p.RecommendationStatus, err = s.recommend(ctx, snap, catalog)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Recommend returns adaptive.ErrNoCatalogAvailable when the course has no catalog yet.
func (s *PerformanceService) Recommend(ctx context.Context, studentID, courseID string) (*models.Recommendation, error) {
	snap, err := s.store.GetCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.store.GetCatalog(ctx, courseID)
	if err != nil {
		return nil, err
	}

	version := inputsVersion(snap, catalog)
	if rec, ok := s.recs.Get(ctx, studentID, courseID, version); ok {
		return rec, nil
	}
	rec, err := s.engine.Recommend(masteryMap(snap.Topics), snap.State, catalog)
	if err != nil {
		return nil, err
	}
	s.recs.Set(ctx, studentID, courseID, version, rec)
	return &rec, nil
}

func (s *PerformanceService) GetOverallProgress(ctx context.Context, studentID string) (*models.OverallProgress, error) {
	enrollments, err := s.store.ListEnrollments(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(enrollments) == 0 {
		return nil, adaptive.ErrNotFound
	}

	courses := make([]models.CourseSummary, len(enrollments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overallFanOut)
	for i, e := range enrollments {
		i, e := i, e
		g.Go(func() error {
			snap, err := s.store.GetCourse(gctx, studentID, e.CourseID)
			if err != nil {
				return err
			}
			summary := models.CourseSummary{
				CourseID:     e.CourseID,
				OverallScore: adaptive.CourseScore(snap.Topics),
				CurrentLevel: snap.State.CurrentLevel,
			}
			for _, t := range snap.Topics {
				summary.AttemptCount += t.AttemptCount
			}
			courses[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totals, err := s.store.QuizKindTotals(ctx, studentID)
	if err != nil {
		return nil, err
	}

	normal := totals[models.QuizKindNormal]
	ai := totals[models.QuizKindAI]
	return &models.OverallProgress{
		StudentID:        studentID,
		OverallScore:     adaptive.OverallScore(courses),
		Courses:          courses,
		NormalQuizzes:    adaptive.KindSummary(models.QuizKindNormal, normal.Attempts, normal.Correct, normal.Questions),
		AIQuizzes:        adaptive.KindSummary(models.QuizKindAI, ai.Attempts, ai.Correct, ai.Questions),
		AttemptCount:     normal.Attempts + ai.Attempts,
		TimeSpentSeconds: normal.TimeSpentSeconds + ai.TimeSpentSeconds,
	}, nil
}

// TopicHistory lists a topic's attempts newest first.
func (s *PerformanceService) TopicHistory(ctx context.Context, studentID, courseID, topic string, limit int) ([]models.AttemptRecord, error) {
	if _, err := s.store.GetCourse(ctx, studentID, courseID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryCap
	}
	return s.store.ListAttempts(ctx, studentID, courseID, topic, limit)
}

func (s *PerformanceService) PutCatalog(ctx context.Context, courseID string, topics []models.CatalogTopic) ([]models.CatalogTopic, error) {
	fields := make(map[string]string)
	if strings.TrimSpace(courseID) == "" {
		fields["course_id"] = "Course ID is required"
	}
	seen := make(map[string]bool, len(topics))
	for i := range topics {
		topics[i].Name = strings.TrimSpace(topics[i].Name)
		t := topics[i]
		key := fmt.Sprintf("topics[%d]", i)
		switch {
		case t.Name == "":
			fields[key] = "Topic name is required"
		case seen[t.Name]:
			fields[key] = fmt.Sprintf("Duplicate topic %q", t.Name)
		case t.Position < 0:
			fields[key] = "Position must not be negative"
		case t.ContentCount < 0:
			fields[key] = "Content count must not be negative"
		}
		seen[t.Name] = true
	}
	if len(fields) > 0 {
		return nil, &adaptive.ValidationError{Fields: fields}
	}

	if err := s.store.PutCatalog(ctx, courseID, topics); err != nil {
		return nil, err
	}
	s.recs.InvalidateCourse(ctx, courseID)
	s.log.Info("Catalog updated", "course_id", courseID, "topics", len(topics))
	return s.store.GetCatalog(ctx, courseID)
}

func (s *PerformanceService) GetCatalog(ctx context.Context, courseID string) ([]models.CatalogTopic, error) {
	return s.store.GetCatalog(ctx, courseID)
}

// PushProgress publishes the current course progress to the student's live connections.
func (s *PerformanceService) PushProgress(ctx context.Context, studentID, courseID string) error {
	if s.publisher == nil {
		return nil
	}
	progress, err := s.GetCourseProgress(ctx, studentID, courseID)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, studentID, models.WSMessage{
		Type:    models.WSTypeProgressUpdate,
		Payload: progress,
	})
}

func (s *PerformanceService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *PerformanceService) recommendationFor(ctx context.Context, snap *repository.CourseSnapshot) (*models.Recommendation, string, error) {
	catalog, err := s.store.GetCatalog(ctx, snap.State.CourseID)
	if err != nil {
		return nil, "", err
	}
	return s.recommend(ctx, snap, catalog)
}

// recommend maps a missing catalog to the "no recommendation yet" status instead of an error.
func (s *PerformanceService) recommend(ctx context.Context, snap *repository.CourseSnapshot, catalog []models.CatalogTopic) (*models.Recommendation, string, error) {
	student, course := snap.State.StudentID, snap.State.CourseID
	version := inputsVersion(snap, catalog)
	if rec, ok := s.recs.Get(ctx, student, course, version); ok {
		return rec, models.RecommendationStatusReady, nil
	}

	rec, err := s.engine.Recommend(masteryMap(snap.Topics), snap.State, catalog)
	if errors.Is(err, adaptive.ErrNoCatalogAvailable) {
		return nil, models.RecommendationStatusNone, nil
	}
	if err != nil {
		return nil, "", err
	}
	s.recs.Set(ctx, student, course, version, rec)
	return &rec, models.RecommendationStatusReady, nil
}

// inputsVersion fingerprints everything a recommendation is computed from. Each recorded
// attempt raises a topic's attempt count, so any committed attempt changes the version.
func inputsVersion(snap *repository.CourseSnapshot, catalog []models.CatalogTopic) string {
	h := fnv.New64a()
	st := snap.State
	fmt.Fprintf(h, "%s|%d|%d|%d\n", st.CurrentLevel, st.ConsecutiveHighScores, st.ConsecutiveLowScores, st.UpdatedAt.UnixNano())

	topics := make([]models.TopicMastery, len(snap.Topics))
	copy(topics, snap.Topics)
	sort.Slice(topics, func(i, j int) bool { return topics[i].TopicName < topics[j].TopicName })
	for _, t := range topics {
		fmt.Fprintf(h, "t|%q|%d|%d|%d\n", t.TopicName, t.AttemptCount, t.CorrectTotal, t.QuestionTotal)
	}
	for _, c := range catalog {
		fmt.Fprintf(h, "c|%q|%d|%d\n", c.Name, c.Position, c.ContentCount)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func masteryMap(topics []models.TopicMastery) map[string]models.TopicMastery {
	out := make(map[string]models.TopicMastery, len(topics))
	for _, t := range topics {
		out[t.TopicName] = t
	}
	return out
}
