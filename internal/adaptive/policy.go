package adaptive

import (
	"fmt"
	"math"
)

// Policy holds the thresholds that drive aggregation, level changes and recommendations.
type Policy struct {
	// HighScorePercent and above counts toward promotion.
	HighScorePercent float64
	// Below LowScorePercent counts toward demotion.
	LowScorePercent float64
	// StreakLength consecutive high (or low) attempts move the level one step.
	StreakLength int
	// TrendBand is the noise filter, in percentage points, around the prior topic average.
	TrendBand float64
	// Topics averaging below BeginnerCeiling are recommended at BEGINNER.
	BeginnerCeiling float64
}

func DefaultPolicy() Policy {
	return Policy{
		HighScorePercent: 80,
		LowScorePercent:  50,
		StreakLength:     3,
		TrendBand:        5,
		BeginnerCeiling:  40,
	}
}

func (p Policy) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"high score threshold", p.HighScorePercent},
		{"low score threshold", p.LowScorePercent},
		{"trend band", p.TrendBand},
		{"beginner ceiling", p.BeginnerCeiling},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", f.name, f.v)
		}
	}
	if p.LowScorePercent < 0 || p.HighScorePercent > 100 {
		return fmt.Errorf("score thresholds must lie within 0-100 (low=%v high=%v)", p.LowScorePercent, p.HighScorePercent)
	}
	if p.LowScorePercent > p.HighScorePercent {
		return fmt.Errorf("low score threshold %v exceeds high score threshold %v", p.LowScorePercent, p.HighScorePercent)
	}
	if p.StreakLength < 1 {
		return fmt.Errorf("streak length must be at least 1, got %d", p.StreakLength)
	}
	if p.TrendBand < 0 {
		return fmt.Errorf("trend band must not be negative, got %v", p.TrendBand)
	}
	if p.BeginnerCeiling < 0 || p.BeginnerCeiling > 100 {
		return fmt.Errorf("beginner ceiling must lie within 0-100, got %v", p.BeginnerCeiling)
	}
	return nil
}

// Engine applies a Policy. All methods are pure; callers persist the results.
type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

func (e *Engine) Policy() Policy { return e.policy }
