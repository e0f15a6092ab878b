package exam

import (
	"github.com/talentgate/assessment-backend/internal/model"
)

// Scorer grades an attempt's answer map against the question snapshot
// embedded in the attempt. It never re-fetches live question data: edits or
// deactivation of a bank question after composition must not affect scoring.
type Scorer struct {
	passingScore int
}

// NewScorer creates a Scorer with the configured passing score (percent).
func NewScorer(passingScore int) *Scorer {
	return &Scorer{passingScore: passingScore}
}

// Score computes correctness counts, the round-half-up percentage and
// pass/fail. Unanswered questions count as incorrect, never as an error.
// An empty question list scores 0 and does not pass.
func (s *Scorer) Score(questions []model.QuestionSnapshot, answers map[string]int) model.ScoreResult {
	result := model.ScoreResult{TotalQuestions: len(questions)}

	if len(questions) == 0 {
		return result
	}

	for _, q := range questions {
		selected, ok := answers[q.ID.String()]
		if ok && selected == q.CorrectOption {
			result.CorrectCount++
		}
	}

	result.ScorePercent = roundHalfUp(float64(result.CorrectCount) / float64(result.TotalQuestions) * 100)
	result.Passed = result.ScorePercent >= s.passingScore
	return result
}
