package repository

import (
	"context"
	"fmt"

	"adaptive-backend/internal/adaptive"
	"adaptive-backend/internal/models"
)

// FoldFunc computes the new topic mastery and difficulty state for one attempt.
// Stores call it inside the same transaction that persists the result.
type FoldFunc func(models.TopicMastery, models.DifficultyState) (models.TopicMastery, models.DifficultyState)

// CourseSnapshot is a consistent read of one enrollment.
type CourseSnapshot struct {
	State  models.DifficultyState
	Topics []models.TopicMastery
}

// KindTotals are the running sums for one quiz family of one student.
type KindTotals struct {
	Attempts         int
	Correct          int
	Questions        int
	TimeSpentSeconds int
}

// Store persists attempts and the aggregates derived from them.
//
// Missing enrollments surface as adaptive.ErrNotFound, reused attempt ids as
// adaptive.ErrDuplicateAttempt, and driver failures wrap adaptive.ErrStorageUnavailable.
type Store interface {
	// RecordAttempt appends a, creating the enrollment if needed, and stores the result of fold
	// atomically with it. Nothing is written when fold's inputs cannot be read.
	RecordAttempt(ctx context.Context, a models.AttemptRecord, fold FoldFunc) (models.TopicMastery, models.DifficultyState, error)
	// Enroll creates a BEGINNER state for the pair, or returns the existing one.
	Enroll(ctx context.Context, studentID, courseID string) (models.DifficultyState, error)
	GetCourse(ctx context.Context, studentID, courseID string) (*CourseSnapshot, error)
	ListEnrollments(ctx context.Context, studentID string) ([]models.DifficultyState, error)
	// ListAttempts returns attempts newest first. An empty topic matches every topic.
	ListAttempts(ctx context.Context, studentID, courseID, topic string, limit int) ([]models.AttemptRecord, error)
	QuizKindTotals(ctx context.Context, studentID string) (map[models.QuizKind]KindTotals, error)
	PutCatalog(ctx context.Context, courseID string, topics []models.CatalogTopic) error
	// GetCatalog returns an empty slice for unknown courses.
	GetCatalog(ctx context.Context, courseID string) ([]models.CatalogTopic, error)
	Ping(ctx context.Context) error
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, adaptive.ErrStorageUnavailable, err)
}

const defaultAttemptLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultAttemptLimit
	}
	return limit
}
