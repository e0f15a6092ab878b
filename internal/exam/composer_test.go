package exam

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/talentgate/assessment-backend/internal/model"
)

// fakeSource serves in-memory pools per difficulty, honoring the category
// filter the way the repository does.
type fakeSource struct {
	pools map[model.Difficulty][]model.Question
	err   error
}

func (f *fakeSource) ListActive(_ context.Context, difficulty model.Difficulty, categories []string) ([]model.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	pool := f.pools[difficulty]
	if len(categories) == 0 {
		return pool, nil
	}
	var filtered []model.Question
	for _, q := range pool {
		for _, cat := range categories {
			if q.Category == cat {
				filtered = append(filtered, q)
				break
			}
		}
	}
	return filtered, nil
}

func makeQuestions(n int, difficulty model.Difficulty, category string) []model.Question {
	questions := make([]model.Question, n)
	for i := range questions {
		questions[i] = model.Question{
			ID:            uuid.New(),
			Text:          fmt.Sprintf("%s question %d", difficulty, i),
			Options:       []string{"A", "B", "C", "D"},
			CorrectOption: i % 4,
			Difficulty:    difficulty,
			Category:      category,
			Active:        true,
		}
	}
	return questions
}

func seededComposer(src QuestionSource, seed int64) *Composer {
	c := NewComposer(src)
	c.rng = rand.New(rand.NewSource(seed))
	return c
}

func richSource() *fakeSource {
	return &fakeSource{pools: map[model.Difficulty][]model.Question{
		model.DifficultyEasy:     makeQuestions(40, model.DifficultyEasy, "go"),
		model.DifficultyModerate: makeQuestions(40, model.DifficultyModerate, "go"),
		model.DifficultyExpert:   makeQuestions(40, model.DifficultyExpert, "go"),
	}}
}

func tierCounts(questions []model.QuestionSnapshot) map[model.Difficulty]int {
	counts := make(map[model.Difficulty]int)
	for _, q := range questions {
		counts[q.Difficulty]++
	}
	return counts
}

func TestCompose_DefaultDistributionSplit(t *testing.T) {
	// 35 at 50/30/20: easy round(17.5) = 18, moderate round(10.5) = 11,
	// expert is the remainder 6.
	c := seededComposer(richSource(), 1)

	comp, err := c.Compose(context.Background(), model.CompositionRequest{
		TotalQuestions: 35, EasyPct: 50, ModeratePct: 30, ExpertPct: 20,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	if got := len(comp.Questions); got != 35 {
		t.Fatalf("total = %d, want 35", got)
	}
	counts := tierCounts(comp.Questions)
	if counts[model.DifficultyEasy] != 18 || counts[model.DifficultyModerate] != 11 || counts[model.DifficultyExpert] != 6 {
		t.Fatalf("split = %v, want easy=18 moderate=11 expert=6", counts)
	}
	if comp.Shortfall != nil {
		t.Fatalf("unexpected shortfall: %v", comp.Shortfall)
	}
}

func TestCompose_CountsAlwaysSumToTotal(t *testing.T) {
	tests := []struct {
		total                 int
		easy, moderate, expert int
	}{
		{35, 50, 30, 20},
		{35, 52, 31, 17}, // 18/11/6 variant of 35
		{1, 50, 30, 20},
		{1, 50, 50, 0}, // both tiers round up, remainder would go negative
		{2, 33, 33, 34},
		{7, 60, 25, 15},
		{100, 1, 1, 98},
		{53, 50, 30, 20},
	}

	for _, tc := range tests {
		name := fmt.Sprintf("%d@%d-%d-%d", tc.total, tc.easy, tc.moderate, tc.expert)
		t.Run(name, func(t *testing.T) {
			c := seededComposer(richSource(), 7)
			comp, err := c.Compose(context.Background(), model.CompositionRequest{
				TotalQuestions: tc.total, EasyPct: tc.easy, ModeratePct: tc.moderate, ExpertPct: tc.expert,
			})
			if err != nil {
				t.Fatalf("compose: %v", err)
			}
			if len(comp.Questions) != tc.total {
				t.Fatalf("total = %d, want %d", len(comp.Questions), tc.total)
			}

			seen := make(map[uuid.UUID]bool, len(comp.Questions))
			for _, q := range comp.Questions {
				if seen[q.ID] {
					t.Fatalf("duplicate question %s in composition", q.ID)
				}
				seen[q.ID] = true
			}
		})
	}
}

func TestCompose_InvalidDistribution(t *testing.T) {
	tests := []struct {
		name string
		req  model.CompositionRequest
	}{
		{"weights under 100", model.CompositionRequest{TotalQuestions: 10, EasyPct: 50, ModeratePct: 30, ExpertPct: 10}},
		{"weights over 100", model.CompositionRequest{TotalQuestions: 10, EasyPct: 50, ModeratePct: 40, ExpertPct: 20}},
		{"zero total", model.CompositionRequest{TotalQuestions: 0, EasyPct: 50, ModeratePct: 30, ExpertPct: 20}},
		{"negative total", model.CompositionRequest{TotalQuestions: -5, EasyPct: 50, ModeratePct: 30, ExpertPct: 20}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := seededComposer(richSource(), 1)
			if _, err := c.Compose(context.Background(), tc.req); !errors.Is(err, ErrInvalidDistribution) {
				t.Fatalf("err = %v, want ErrInvalidDistribution", err)
			}
		})
	}
}

func TestCompose_ShortfallIsSoft(t *testing.T) {
	src := &fakeSource{pools: map[model.Difficulty][]model.Question{
		model.DifficultyEasy:     makeQuestions(40, model.DifficultyEasy, "go"),
		model.DifficultyModerate: makeQuestions(40, model.DifficultyModerate, "go"),
		model.DifficultyExpert:   makeQuestions(2, model.DifficultyExpert, "go"),
	}}
	c := seededComposer(src, 3)

	comp, err := c.Compose(context.Background(), model.CompositionRequest{
		TotalQuestions: 35, EasyPct: 50, ModeratePct: 30, ExpertPct: 20,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	// Expert target is 6 but only 2 exist: draw all 2, report deficit 4.
	if got := len(comp.Questions); got != 31 {
		t.Fatalf("total = %d, want 31", got)
	}
	if comp.Shortfall[model.DifficultyExpert] != 4 {
		t.Fatalf("shortfall = %v, want expert deficit 4", comp.Shortfall)
	}
}

func TestCompose_CategoryFilter(t *testing.T) {
	src := &fakeSource{pools: map[model.Difficulty][]model.Question{
		model.DifficultyEasy: append(
			makeQuestions(10, model.DifficultyEasy, "go"),
			makeQuestions(10, model.DifficultyEasy, "sql")...,
		),
	}}
	c := seededComposer(src, 5)

	comp, err := c.Compose(context.Background(), model.CompositionRequest{
		TotalQuestions: 8, EasyPct: 100, ModeratePct: 0, ExpertPct: 0,
		Categories: []string{"sql"},
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, q := range comp.Questions {
		if q.Category != "sql" {
			t.Fatalf("question %s has category %q, want sql", q.ID, q.Category)
		}
	}
}

func TestCompose_SnapshotKeepsOptionOrderAndAnswerKey(t *testing.T) {
	question := model.Question{
		ID:            uuid.New(),
		Text:          "pick C",
		Options:       []string{"alpha", "beta", "gamma", "delta"},
		CorrectOption: 2,
		Difficulty:    model.DifficultyEasy,
		Category:      "go",
		Active:        true,
	}
	src := &fakeSource{pools: map[model.Difficulty][]model.Question{
		model.DifficultyEasy: {question},
	}}
	c := seededComposer(src, 9)

	comp, err := c.Compose(context.Background(), model.CompositionRequest{
		TotalQuestions: 1, EasyPct: 100, ModeratePct: 0, ExpertPct: 0,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	snap := comp.Questions[0]
	for i, opt := range question.Options {
		if snap.Options[i] != opt {
			t.Fatalf("option %d = %q, want %q (original order must be preserved)", i, snap.Options[i], opt)
		}
	}
	if snap.CorrectOption != 2 {
		t.Fatalf("snapshot correct option = %d, want 2", snap.CorrectOption)
	}

	// The candidate projection must withhold the answer key entirely.
	candidate := snap.ForCandidate()
	if candidate.ID != question.ID || len(candidate.Options) != 4 {
		t.Fatalf("candidate view lost question data: %+v", candidate)
	}
}

func TestCompose_DeterministicUnderSeed(t *testing.T) {
	req := model.CompositionRequest{TotalQuestions: 20, EasyPct: 50, ModeratePct: 30, ExpertPct: 20}

	first, err := seededComposer(richSource(), 42).Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	second, err := seededComposer(richSource(), 42).Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	// Same seed over distinct-but-identically-shaped pools must draw the
	// same positions: compare the difficulty sequence.
	for i := range first.Questions {
		if first.Questions[i].Difficulty != second.Questions[i].Difficulty {
			t.Fatalf("position %d differs: %s vs %s", i, first.Questions[i].Difficulty, second.Questions[i].Difficulty)
		}
	}
}

func TestCompose_SourceErrorPropagates(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	c := seededComposer(src, 1)

	if _, err := c.Compose(context.Background(), model.CompositionRequest{
		TotalQuestions: 5, EasyPct: 100, ModeratePct: 0, ExpertPct: 0,
	}); err == nil {
		t.Fatal("expected error from source, got nil")
	}
}
