package models

import (
	"time"

	"github.com/google/uuid"
)

// AttemptRecord is one submitted quiz attempt. Records are append-only.
type AttemptRecord struct {
	ID                  uuid.UUID  `json:"id"`
	StudentID           string     `json:"student_id"`
	CourseID            string     `json:"course_id"`
	TopicName           string     `json:"topic_name"`
	QuizKind            QuizKind   `json:"quiz_kind"`
	Score               int        `json:"score"`
	TotalQuestions      int        `json:"total_questions"`
	DifficultyAtAttempt Difficulty `json:"difficulty_at_attempt"`
	TimeSpentSeconds    int        `json:"time_spent_seconds"`
	AttemptedAt         time.Time  `json:"attempted_at"`
	WeakAreas           []string   `json:"weak_areas,omitempty"`
}

// Percent is the attempt score as 0-100. Zero when TotalQuestions is not positive.
func (a AttemptRecord) Percent() float64 {
	if a.TotalQuestions <= 0 {
		return 0
	}
	return 100 * float64(a.Score) / float64(a.TotalQuestions)
}

type TopicMastery struct {
	StudentID             string    `json:"student_id"`
	CourseID              string    `json:"course_id"`
	TopicName             string    `json:"topic_name"`
	AttemptCount          int       `json:"attempt_count"`
	CorrectTotal          int       `json:"correct_total"`
	QuestionTotal         int       `json:"question_total"`
	AverageScorePercent   float64   `json:"average_score_percent"`
	TimeSpentSecondsTotal int       `json:"time_spent_seconds_total"`
	Trend                 Trend     `json:"trend"`
	WeakAreas             []string  `json:"weak_areas"`
	LastAttemptAt         time.Time `json:"last_attempt_at"`
}

// DifficultyState exists once a student is enrolled in a course.
type DifficultyState struct {
	StudentID             string     `json:"student_id"`
	CourseID              string     `json:"course_id"`
	CurrentLevel          Difficulty `json:"current_level"`
	ConsecutiveHighScores int        `json:"consecutive_high_scores"`
	ConsecutiveLowScores  int        `json:"consecutive_low_scores"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func NewDifficultyState(studentID, courseID string) DifficultyState {
	return DifficultyState{
		StudentID:    studentID,
		CourseID:     courseID,
		CurrentLevel: DifficultyBeginner,
	}
}

type Recommendation struct {
	CourseID              string     `json:"course_id"`
	RecommendedTopic      string     `json:"recommended_topic"`
	RecommendedDifficulty Difficulty `json:"recommended_difficulty"`
	Reason                string     `json:"reason"`
	AverageScorePercent   *float64   `json:"average_score_percent,omitempty"`
	AvailableContent      int        `json:"available_content"`
}

// CatalogTopic is owned by the course/content service and only read here.
type CatalogTopic struct {
	Name         string `json:"name"`
	Position     int    `json:"position"`
	ContentCount int    `json:"content_count"`
}

// SubmitAttemptRequest is the POST /quiz-attempts body. The student comes from the token.
type SubmitAttemptRequest struct {
	ID                  *uuid.UUID `json:"id,omitempty"`
	CourseID            string     `json:"course_id"`
	TopicName           string     `json:"topic_name"`
	QuizKind            QuizKind   `json:"quiz_kind"`
	Score               int        `json:"score"`
	TotalQuestions      int        `json:"total_questions"`
	DifficultyAtAttempt Difficulty `json:"difficulty_at_attempt"`
	TimeSpentSeconds    int        `json:"time_spent_seconds"`
	AttemptedAt         *time.Time `json:"attempted_at,omitempty"`
	WeakAreas           []string   `json:"weak_areas,omitempty"`
}

func (req SubmitAttemptRequest) ToRecord(studentID string) AttemptRecord {
	a := AttemptRecord{
		StudentID:           studentID,
		CourseID:            req.CourseID,
		TopicName:           req.TopicName,
		QuizKind:            req.QuizKind,
		Score:               req.Score,
		TotalQuestions:      req.TotalQuestions,
		DifficultyAtAttempt: req.DifficultyAtAttempt,
		TimeSpentSeconds:    req.TimeSpentSeconds,
		WeakAreas:           req.WeakAreas,
	}
	if req.ID != nil {
		a.ID = *req.ID
	}
	if req.AttemptedAt != nil {
		a.AttemptedAt = *req.AttemptedAt
	}
	return a
}

type PutCatalogRequest struct {
	Topics []CatalogTopic `json:"topics"`
}

type EnrollRequest struct {
	CourseID string `json:"course_id"`
}

const (
	RecommendationStatusReady = "ready"
	RecommendationStatusNone  = "no recommendation yet"
)

// AttemptResult is returned after an attempt has been folded in.
type AttemptResult struct {
	Attempt              AttemptRecord   `json:"attempt"`
	TopicMastery         TopicMastery    `json:"topic_mastery"`
	DifficultyState      DifficultyState `json:"difficulty_state"`
	Recommendation       *Recommendation `json:"recommendation"`
	RecommendationStatus string          `json:"recommendation_status"`
}
