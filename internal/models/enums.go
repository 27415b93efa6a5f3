package models

import "strings"

// Difficulty is the level a quiz was taken at, and the level a student is tracked at per course.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "BEGINNER"
	DifficultyIntermediate Difficulty = "INTERMEDIATE"
	DifficultyAdvanced     Difficulty = "ADVANCED"
)

// UnmarshalText upper-cases the value so "beginner" and "BEGINNER" decode alike.
// Unknown values are kept as-is and rejected by Valid.
func (d *Difficulty) UnmarshalText(b []byte) error {
	*d = Difficulty(strings.ToUpper(strings.TrimSpace(string(b))))
	return nil
}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Rank orders levels BEGINNER < INTERMEDIATE < ADVANCED. Invalid levels rank -1.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyBeginner:
		return 0
	case DifficultyIntermediate:
		return 1
	case DifficultyAdvanced:
		return 2
	}
	return -1
}

// Next returns the level one step harder, staying at ADVANCED.
func (d Difficulty) Next() Difficulty {
	switch d {
	case DifficultyBeginner:
		return DifficultyIntermediate
	case DifficultyIntermediate, DifficultyAdvanced:
		return DifficultyAdvanced
	}
	return d
}

// Prev returns the level one step easier, staying at BEGINNER.
func (d Difficulty) Prev() Difficulty {
	switch d {
	case DifficultyAdvanced:
		return DifficultyIntermediate
	case DifficultyIntermediate, DifficultyBeginner:
		return DifficultyBeginner
	}
	return d
}

// MinDifficulty returns the easier of a and b.
func MinDifficulty(a, b Difficulty) Difficulty {
	if b.Rank() < a.Rank() {
		return b
	}
	return a
}

// QuizKind separates instructor-authored MCQs from generated quizzes.
type QuizKind string

const (
	QuizKindNormal QuizKind = "NORMAL"
	QuizKindAI     QuizKind = "AI"
)

func (k *QuizKind) UnmarshalText(b []byte) error {
	*k = QuizKind(strings.ToUpper(strings.TrimSpace(string(b))))
	return nil
}

func (k QuizKind) Valid() bool {
	switch k {
	case QuizKindNormal, QuizKindAI:
		return true
	}
	return false
}

// Trend compares the latest attempt of a topic with the average before it.
type Trend string

const (
	TrendImproving Trend = "IMPROVING"
	TrendDeclining Trend = "DECLINING"
	TrendStable    Trend = "STABLE"
)

func (t Trend) Valid() bool {
	switch t {
	case TrendImproving, TrendDeclining, TrendStable:
		return true
	}
	return false
}
