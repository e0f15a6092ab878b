package exam

import (
	"testing"

	"github.com/google/uuid"
	"github.com/talentgate/assessment-backend/internal/model"
)

func snapshotSet(corrects ...int) []model.QuestionSnapshot {
	questions := make([]model.QuestionSnapshot, len(corrects))
	for i, correct := range corrects {
		questions[i] = model.QuestionSnapshot{
			ID:            uuid.New(),
			Text:          "q",
			Options:       []string{"A", "B", "C", "D"},
			CorrectOption: correct,
			Difficulty:    model.DifficultyEasy,
			Category:      "go",
		}
	}
	return questions
}

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		corrects    []int
		answerAt    map[int]int // question position → selected option
		wantCorrect int
		wantPercent int
		wantPassed  bool
	}{
		{
			// One of two correct: 50%, below the 60 mark.
			name:        "half correct fails",
			corrects:    []int{1, 2},
			answerAt:    map[int]int{0: 1, 1: 0},
			wantCorrect: 1,
			wantPercent: 50,
			wantPassed:  false,
		},
		{
			name:        "all correct",
			corrects:    []int{0, 1, 2, 3},
			answerAt:    map[int]int{0: 0, 1: 1, 2: 2, 3: 3},
			wantCorrect: 4,
			wantPercent: 100,
			wantPassed:  true,
		},
		{
			name:        "unanswered counts as incorrect",
			corrects:    []int{0, 0, 0},
			answerAt:    map[int]int{0: 0},
			wantCorrect: 1,
			wantPercent: 33,
			wantPassed:  false,
		},
		{
			name:        "two thirds rounds up to 67",
			corrects:    []int{0, 0, 0},
			answerAt:    map[int]int{0: 0, 1: 0},
			wantCorrect: 2,
			wantPercent: 67,
			wantPassed:  true,
		},
		{
			// 7/8 = 87.5 → 88 under round-half-up.
			name:        "half rounds up",
			corrects:    []int{0, 0, 0, 0, 0, 0, 0, 0},
			answerAt:    map[int]int{0: 0, 1: 0, 2: 0, 3: 0, 4: 0, 5: 0, 6: 0},
			wantCorrect: 7,
			wantPercent: 88,
			wantPassed:  true,
		},
		{
			// 5/8 = 62.5 → 63.
			name:        "just above passing",
			corrects:    []int{0, 0, 0, 0, 0, 0, 0, 0},
			answerAt:    map[int]int{0: 0, 1: 0, 2: 0, 3: 0, 4: 0},
			wantCorrect: 5,
			wantPercent: 63,
			wantPassed:  true,
		},
		{
			name:        "exactly at passing mark",
			corrects:    []int{0, 0, 0, 0, 0},
			answerAt:    map[int]int{0: 0, 1: 0, 2: 0},
			wantCorrect: 3,
			wantPercent: 60,
			wantPassed:  true,
		},
		{
			name:        "nothing answered",
			corrects:    []int{0, 1},
			answerAt:    nil,
			wantCorrect: 0,
			wantPercent: 0,
			wantPassed:  false,
		},
	}

	scorer := NewScorer(60)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			questions := snapshotSet(tc.corrects...)
			answers := make(map[string]int)
			for pos, selected := range tc.answerAt {
				answers[questions[pos].ID.String()] = selected
			}

			got := scorer.Score(questions, answers)
			if got.CorrectCount != tc.wantCorrect {
				t.Errorf("correct = %d, want %d", got.CorrectCount, tc.wantCorrect)
			}
			if got.ScorePercent != tc.wantPercent {
				t.Errorf("percent = %d, want %d", got.ScorePercent, tc.wantPercent)
			}
			if got.Passed != tc.wantPassed {
				t.Errorf("passed = %v, want %v", got.Passed, tc.wantPassed)
			}
			if got.TotalQuestions != len(questions) {
				t.Errorf("total = %d, want %d", got.TotalQuestions, len(questions))
			}
		})
	}
}

func TestScore_EmptyQuestionSet(t *testing.T) {
	got := NewScorer(60).Score(nil, map[string]int{"x": 1})
	if got.ScorePercent != 0 || got.Passed || got.CorrectCount != 0 || got.TotalQuestions != 0 {
		t.Fatalf("empty set scored %+v, want all-zero fail", got)
	}
}

func TestScore_AnswersToUnknownQuestionsIgnored(t *testing.T) {
	questions := snapshotSet(1)
	answers := map[string]int{
		uuid.NewString():         1, // not part of the set
		questions[0].ID.String(): 1,
	}

	got := NewScorer(60).Score(questions, answers)
	if got.CorrectCount != 1 || got.ScorePercent != 100 {
		t.Fatalf("got %+v, want 1 correct / 100%%", got)
	}
}
