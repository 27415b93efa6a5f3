package adaptive

import (
	"math"
	"testing"

	"adaptive-backend/internal/models"
)

func advanceAll(e *Engine, s models.DifficultyState, scores ...int) models.DifficultyState {
	for _, score := range scores {
		s = e.Advance(s, attempt("Loops", score, 100))
	}
	return s
}

func TestClassify(t *testing.T) {
	e := NewEngine(DefaultPolicy())

	tests := []struct {
		percent float64
		want    ScoreBand
	}{
		{100, BandHigh},
		{80, BandHigh},
		{79.99, BandMid},
		{50, BandMid},
		{49.99, BandLow},
		{0, BandLow},
	}
	for _, tc := range tests {
		if got := e.Classify(tc.percent); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.percent, got, tc.want)
		}
	}
}

func TestAdvance_PromotesAfterThreeHighScores(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	s := models.NewDifficultyState("student-1", "course-1")

	s = advanceAll(e, s, 90, 85, 82)

	if s.CurrentLevel != models.DifficultyIntermediate {
		t.Fatalf("expected INTERMEDIATE, got %s", s.CurrentLevel)
	}
	if s.ConsecutiveHighScores != 0 || s.ConsecutiveLowScores != 0 {
		t.Fatalf("expected counters reset, got high=%d low=%d", s.ConsecutiveHighScores, s.ConsecutiveLowScores)
	}
}

func TestAdvance_NoPromotionBeforeThreshold(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	s := advanceAll(e, models.NewDifficultyState("student-1", "course-1"), 95, 95)

	if s.CurrentLevel != models.DifficultyBeginner {
		t.Fatalf("expected BEGINNER, got %s", s.CurrentLevel)
	}
	if s.ConsecutiveHighScores != 2 {
		t.Fatalf("expected 2 high scores, got %d", s.ConsecutiveHighScores)
	}
}

func TestAdvance_DemotesAfterThreeLowScores(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	s := models.NewDifficultyState("student-1", "course-1")
	s.CurrentLevel = models.DifficultyAdvanced

	s = advanceAll(e, s, 10, 20, 49)

	if s.CurrentLevel != models.DifficultyIntermediate {
		t.Fatalf("expected INTERMEDIATE, got %s", s.CurrentLevel)
	}
	if s.ConsecutiveLowScores != 0 {
		t.Fatalf("expected low counter reset, got %d", s.ConsecutiveLowScores)
	}
}

func TestAdvance_MidScoreLeavesCounters(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	s := advanceAll(e, models.NewDifficultyState("student-1", "course-1"), 90, 90, 65)

	if s.ConsecutiveHighScores != 2 {
		t.Fatalf("expected high streak kept at 2, got %d", s.ConsecutiveHighScores)
	}
	s = advanceAll(e, s, 90)
	if s.CurrentLevel != models.DifficultyIntermediate {
		t.Fatalf("expected promotion on third high score, got %s", s.CurrentLevel)
	}
}

func TestAdvance_CountersAreExclusive(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	s := models.NewDifficultyState("student-1", "course-1")

	for _, score := range []int{90, 10, 90, 90, 30, 60, 10, 85, 20, 20} {
		s = e.Advance(s, attempt("Loops", score, 100))
		if s.ConsecutiveHighScores > 0 && s.ConsecutiveLowScores > 0 {
			t.Fatalf("both counters positive after %d: %+v", score, s)
		}
	}
}

func TestAdvance_ClampedAtBoundaries(t *testing.T) {
	e := NewEngine(DefaultPolicy())

	top := models.NewDifficultyState("student-1", "course-1")
	top.CurrentLevel = models.DifficultyAdvanced
	top = advanceAll(e, top, 95, 95, 95, 95)
	if top.CurrentLevel != models.DifficultyAdvanced {
		t.Fatalf("expected ADVANCED to stay, got %s", top.CurrentLevel)
	}
	if top.ConsecutiveHighScores != 4 {
		t.Fatalf("expected high counter to keep growing, got %d", top.ConsecutiveHighScores)
	}

	bottom := advanceAll(e, models.NewDifficultyState("student-1", "course-1"), 5, 5, 5, 5)
	if bottom.CurrentLevel != models.DifficultyBeginner {
		t.Fatalf("expected BEGINNER to stay, got %s", bottom.CurrentLevel)
	}
	if bottom.ConsecutiveLowScores != 4 {
		t.Fatalf("expected low counter to keep growing, got %d", bottom.ConsecutiveLowScores)
	}
}

func TestAdvance_InvalidLevelStartsAtBeginner(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	s := e.Advance(models.DifficultyState{}, attempt("Loops", 70, 100))

	if s.CurrentLevel != models.DifficultyBeginner {
		t.Fatalf("expected BEGINNER, got %s", s.CurrentLevel)
	}
	if s.StudentID != "student-1" || s.CourseID != "course-1" {
		t.Fatalf("expected keys copied from the attempt, got %+v", s)
	}
}

func TestAdvance_CustomStreakLength(t *testing.T) {
	p := DefaultPolicy()
	p.StreakLength = 1
	e := NewEngine(p)

	s := advanceAll(e, models.NewDifficultyState("student-1", "course-1"), 90)
	if s.CurrentLevel != models.DifficultyIntermediate {
		t.Fatalf("expected promotion after one high score, got %s", s.CurrentLevel)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy should be valid: %v", err)
	}

	bad := []Policy{
		{HighScorePercent: 40, LowScorePercent: 50, StreakLength: 3, TrendBand: 5, BeginnerCeiling: 40},
		{HighScorePercent: 80, LowScorePercent: 50, StreakLength: 0, TrendBand: 5, BeginnerCeiling: 40},
		{HighScorePercent: 80, LowScorePercent: 50, StreakLength: 3, TrendBand: -1, BeginnerCeiling: 40},
		{HighScorePercent: 120, LowScorePercent: 50, StreakLength: 3, TrendBand: 5, BeginnerCeiling: 40},
		{HighScorePercent: 80, LowScorePercent: 50, StreakLength: 3, TrendBand: 5, BeginnerCeiling: 101},
		{HighScorePercent: 80, LowScorePercent: 50, StreakLength: 3, TrendBand: math.NaN(), BeginnerCeiling: 40},
		{HighScorePercent: math.NaN(), LowScorePercent: 50, StreakLength: 3, TrendBand: 5, BeginnerCeiling: 40},
		{HighScorePercent: 80, LowScorePercent: math.Inf(-1), StreakLength: 3, TrendBand: 5, BeginnerCeiling: 40},
		{HighScorePercent: 80, LowScorePercent: 50, StreakLength: 3, TrendBand: math.Inf(1), BeginnerCeiling: 40},
		{HighScorePercent: 80, LowScorePercent: 50, StreakLength: 3, TrendBand: 5, BeginnerCeiling: math.NaN()},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: expected error for %+v", i, p)
		}
	}
}
