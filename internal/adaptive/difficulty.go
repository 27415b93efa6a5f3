package adaptive

import "adaptive-backend/internal/models"

// ScoreBand classifies a single attempt for the level state machine.
type ScoreBand int

const (
	BandMid ScoreBand = iota
	BandHigh
	BandLow
)

func (b ScoreBand) String() string {
	switch b {
	case BandHigh:
		return "high"
	case BandLow:
		return "low"
	default:
		return "mid"
	}
}

func (e *Engine) Classify(percent float64) ScoreBand {
	switch {
	case percent >= e.policy.HighScorePercent:
		return BandHigh
	case percent < e.policy.LowScorePercent:
		return BandLow
	default:
		return BandMid
	}
}

// Advance applies attempt a to state s.
//
// A high score extends the high streak and clears the low one, a low score does the
// opposite, and a mid-range score leaves both counters untouched. Reaching the streak
// length moves the level one step and clears that counter. At ADVANCED (or BEGINNER) the
// matching counter keeps growing with no transition: the level stays, it never wraps.
func (e *Engine) Advance(s models.DifficultyState, a models.AttemptRecord) models.DifficultyState {
	if !s.CurrentLevel.Valid() {
		s.CurrentLevel = models.DifficultyBeginner
	}
	s.StudentID = a.StudentID
	s.CourseID = a.CourseID

	switch e.Classify(a.Percent()) {
	case BandHigh:
		s.ConsecutiveHighScores++
		s.ConsecutiveLowScores = 0
		if s.ConsecutiveHighScores >= e.policy.StreakLength && s.CurrentLevel != models.DifficultyAdvanced {
			s.CurrentLevel = s.CurrentLevel.Next()
			s.ConsecutiveHighScores = 0
		}
	case BandLow:
		s.ConsecutiveLowScores++
		s.ConsecutiveHighScores = 0
		if s.ConsecutiveLowScores >= e.policy.StreakLength && s.CurrentLevel != models.DifficultyBeginner {
			s.CurrentLevel = s.CurrentLevel.Prev()
			s.ConsecutiveLowScores = 0
		}
	case BandMid:
	}

	if a.AttemptedAt.After(s.UpdatedAt) {
		s.UpdatedAt = a.AttemptedAt
	}
	return s
}
