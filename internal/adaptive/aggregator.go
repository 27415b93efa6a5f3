package adaptive

import (
	"fmt"
	"sort"
	"strings"

	"adaptive-backend/internal/models"
)

// Validate rejects malformed attempts before anything is mutated.
func (e *Engine) Validate(a models.AttemptRecord) error {
	fields := make(map[string]string)

	if strings.TrimSpace(a.StudentID) == "" {
		fields["student_id"] = "Student ID is required"
	}
	if strings.TrimSpace(a.CourseID) == "" {
		fields["course_id"] = "Course ID is required"
	}
	if strings.TrimSpace(a.TopicName) == "" {
		fields["topic_name"] = "Topic name is required"
	}
	if !a.QuizKind.Valid() {
		if a.QuizKind == "" {
			fields["quiz_kind"] = "Quiz kind is required (NORMAL or AI)"
		} else {
			fields["quiz_kind"] = fmt.Sprintf("Unknown quiz kind %q", string(a.QuizKind))
		}
	}
	if !a.DifficultyAtAttempt.Valid() {
		fields["difficulty_at_attempt"] = "Difficulty must be BEGINNER, INTERMEDIATE or ADVANCED"
	}
	switch {
	case a.TotalQuestions <= 0:
		fields["total_questions"] = "Total questions must be greater than 0"
		if a.Score < 0 {
			fields["score"] = "Score must not be negative"
		}
	case a.Score < 0 || a.Score > a.TotalQuestions:
		fields["score"] = fmt.Sprintf("Score must be between 0 and %d", a.TotalQuestions)
	}
	if a.TimeSpentSeconds < 0 {
		fields["time_spent_seconds"] = "Time spent must not be negative"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Fold returns m updated with attempt a. A zero TopicMastery stands for a topic never attempted.
// The average is question-weighted: 100 * correctTotal / questionTotal.
func (e *Engine) Fold(m models.TopicMastery, a models.AttemptRecord) models.TopicMastery {
	trend := models.TrendStable
	if m.AttemptCount > 0 && m.QuestionTotal > 0 && a.TotalQuestions > 0 {
		trend = e.trend(m.CorrectTotal, m.QuestionTotal, a.Score, a.TotalQuestions)
	}

	m.StudentID = a.StudentID
	m.CourseID = a.CourseID
	m.TopicName = a.TopicName
	m.AttemptCount++
	m.CorrectTotal += a.Score
	m.QuestionTotal += a.TotalQuestions
	m.AverageScorePercent = weightedPercent(m.CorrectTotal, m.QuestionTotal)
	m.TimeSpentSecondsTotal += a.TimeSpentSeconds
	m.Trend = trend
	m.WeakAreas = mergeTags(m.WeakAreas, a.WeakAreas)
	if a.AttemptedAt.After(m.LastAttemptAt) {
		m.LastAttemptAt = a.AttemptedAt
	}
	return m
}

// trend compares score/total against the prior average priorC/priorQ on a common denominator,
// so a difference of exactly TrendBand points stays STABLE regardless of float rounding.
func (e *Engine) trend(priorC, priorQ, score, total int) models.Trend {
	diff := 100 * (int64(score)*int64(priorQ) - int64(priorC)*int64(total))
	limit := e.policy.TrendBand * float64(int64(total)*int64(priorQ))
	switch {
	case float64(diff) > limit:
		return models.TrendImproving
	case float64(diff) < -limit:
		return models.TrendDeclining
	}
	return models.TrendStable
}

func weightedPercent(correct, questions int) float64 {
	if questions <= 0 {
		return 0
	}
	return 100 * float64(correct) / float64(questions)
}

// mergeTags returns the sorted union of both tag sets, ignoring blanks.
func mergeTags(existing, incoming []string) []string {
	set := make(map[string]struct{}, len(existing)+len(incoming))
	for _, t := range existing {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}
	for _, t := range incoming {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
