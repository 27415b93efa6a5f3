package adaptive

import "adaptive-backend/internal/models"

// CourseScore is the plain mean of topic averages over attempted topics, 0 when there are none.
// Unlike the per-topic average it is not weighted by question count.
func CourseScore(topics []models.TopicMastery) float64 {
	var sum float64
	var n int
	for _, t := range topics {
		if t.AttemptCount == 0 {
			continue
		}
		sum += t.AverageScorePercent
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// OverallScore is the unweighted mean of course scores for courses with at least one attempt.
func OverallScore(courses []models.CourseSummary) float64 {
	var sum float64
	var n int
	for _, c := range courses {
		if c.AttemptCount == 0 {
			continue
		}
		sum += c.OverallScore
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Completion compares attempted topics with the catalog. Topics outside the catalog still count
// as attempted; the denominator never drops below the attempted count.
func Completion(topics []models.TopicMastery, catalog []models.CatalogTopic) models.TopicCompletion {
	attempted := 0
	for _, t := range topics {
		if t.AttemptCount > 0 {
			attempted++
		}
	}
	total := len(catalog)
	if total < attempted {
		total = attempted
	}

	c := models.TopicCompletion{AttemptedTopics: attempted, CatalogTopics: len(catalog)}
	if total > 0 {
		c.Percent = 100 * float64(attempted) / float64(total)
	}
	return c
}

// KindSummary builds the average of one quiz family from its running totals.
func KindSummary(kind models.QuizKind, attempts, correct, questions int) models.QuizKindSummary {
	return models.QuizKindSummary{
		QuizKind:            kind,
		AttemptCount:        attempts,
		CorrectTotal:        correct,
		QuestionTotal:       questions,
		AverageScorePercent: weightedPercent(correct, questions),
	}
}
