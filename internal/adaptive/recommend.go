package adaptive

import (
	"fmt"
	"sort"

	"adaptive-backend/internal/models"
)

// Recommend picks the next topic and level for one (student, course).
//
// With no attempts the first catalog topic is suggested at BEGINNER. Otherwise the weakest
// attempted topic wins; ties go to the topic with fewer attempts, then to catalog order.
// The suggested level never exceeds the student's current level.
func (e *Engine) Recommend(mastery map[string]models.TopicMastery, state models.DifficultyState, catalog []models.CatalogTopic) (models.Recommendation, error) {
	if len(catalog) == 0 {
		return models.Recommendation{}, ErrNoCatalogAvailable
	}

	ordered := sortCatalog(catalog)
	rec := models.Recommendation{CourseID: state.CourseID}

	candidates := make([]models.TopicMastery, 0, len(mastery))
	for _, m := range mastery {
		if m.AttemptCount > 0 {
			candidates = append(candidates, m)
		}
	}

	if len(candidates) == 0 {
		first := ordered[0]
		rec.RecommendedTopic = first.Name
		rec.RecommendedDifficulty = models.DifficultyBeginner
		rec.AvailableContent = first.ContentCount
		rec.Reason = fmt.Sprintf("Start your learning journey with %s.", first.Name)
		return rec, nil
	}

	position := make(map[string]int, len(ordered))
	content := make(map[string]int, len(ordered))
	for i, t := range ordered {
		if _, dup := position[t.Name]; !dup {
			position[t.Name] = i
			content[t.Name] = t.ContentCount
		}
	}
	rank := func(name string) int {
		if p, ok := position[name]; ok {
			return p
		}
		return len(ordered)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.AverageScorePercent != b.AverageScorePercent {
			return a.AverageScorePercent < b.AverageScorePercent
		}
		if a.AttemptCount != b.AttemptCount {
			return a.AttemptCount < b.AttemptCount
		}
		if ra, rb := rank(a.TopicName), rank(b.TopicName); ra != rb {
			return ra < rb
		}
		return a.TopicName < b.TopicName
	})
	weakest := candidates[0]

	level := models.DifficultyIntermediate
	if weakest.AverageScorePercent < e.policy.BeginnerCeiling {
		level = models.DifficultyBeginner
	}
	current := state.CurrentLevel
	if !current.Valid() {
		current = models.DifficultyBeginner
	}
	level = models.MinDifficulty(level, current)

	avg := weakest.AverageScorePercent
	rec.RecommendedTopic = weakest.TopicName
	rec.RecommendedDifficulty = level
	rec.AverageScorePercent = &avg
	rec.AvailableContent = content[weakest.TopicName]
	rec.Reason = fmt.Sprintf("Your average in %s is %.1f%%, the lowest in this course. Review it at %s level.",
		weakest.TopicName, avg, level)
	return rec, nil
}

// sortCatalog orders topics by position, keeping the given order for equal positions.
func sortCatalog(catalog []models.CatalogTopic) []models.CatalogTopic {
	ordered := make([]models.CatalogTopic, len(catalog))
	copy(ordered, catalog)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	return ordered
}
