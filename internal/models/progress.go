package models

type TopicCompletion struct {
	AttemptedTopics int     `json:"attempted_topics"`
	CatalogTopics   int     `json:"catalog_topics"`
	Percent         float64 `json:"percent"`
}

type CourseProgress struct {
	StudentID            string             `json:"student_id"`
	CourseID             string             `json:"course_id"`
	OverallScore         float64            `json:"overall_score"`
	TopicScores          map[string]float64 `json:"topic_scores"`
	Topics               []TopicMastery     `json:"topics"`
	TopicCompletion      TopicCompletion    `json:"topic_completion"`
	DifficultyState      DifficultyState    `json:"difficulty_state"`
	Recommendation       *Recommendation    `json:"recommendation"`
	RecommendationStatus string             `json:"recommendation_status"`
	AttemptCount         int                `json:"attempt_count"`
	TimeSpentSeconds     int                `json:"time_spent_seconds"`
}

// QuizKindSummary is computed per quiz family and never blended with the other family.
type QuizKindSummary struct {
	QuizKind            QuizKind `json:"quiz_kind"`
	AttemptCount        int      `json:"attempt_count"`
	CorrectTotal        int      `json:"correct_total"`
	QuestionTotal       int      `json:"question_total"`
	AverageScorePercent float64  `json:"average_score_percent"`
}

type CourseSummary struct {
	CourseID     string     `json:"course_id"`
	OverallScore float64    `json:"overall_score"`
	AttemptCount int        `json:"attempt_count"`
	CurrentLevel Difficulty `json:"current_level"`
}

type OverallProgress struct {
	StudentID        string          `json:"student_id"`
	OverallScore     float64         `json:"overall_score"`
	Courses          []CourseSummary `json:"courses"`
	NormalQuizzes    QuizKindSummary `json:"normal_quizzes"`
	AIQuizzes        QuizKindSummary `json:"ai_quizzes"`
	AttemptCount     int             `json:"attempt_count"`
	TimeSpentSeconds int             `json:"time_spent_seconds"`
}
