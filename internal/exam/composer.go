package exam

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/talentgate/assessment-backend/internal/model"
)

// QuestionSource supplies the active, category-filtered question pool for a
// difficulty tier. Implemented by repository.QuestionRepository.
type QuestionSource interface {
	ListActive(ctx context.Context, difficulty model.Difficulty, categories []string) ([]model.Question, error)
}

// Composer draws a non-repeating, shuffled question set satisfying a
// difficulty distribution. Composition is pure over the repository snapshot
// at call time; it has no side effects.
type Composer struct {
	source QuestionSource

	mu  sync.Mutex
	rng *rand.Rand
}

// NewComposer creates a Composer with a time-seeded random source.
func NewComposer(source QuestionSource) *Composer {
	return &Composer{
		source: source,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Compose builds an ordered snapshot list for the request.
//
// Per-tier counts use round-half-up for easy and moderate; the expert count
// is the remainder, so the three always sum exactly to the requested total.
// A tier pool smaller than its count is a soft shortfall: all available
// questions are drawn and the deficit is reported on the Composition.
func (c *Composer) Compose(ctx context.Context, req model.CompositionRequest) (*model.Composition, error) {
	if req.TotalQuestions <= 0 {
		return nil, ErrInvalidDistribution
	}
	if req.EasyPct+req.ModeratePct+req.ExpertPct != 100 {
		return nil, ErrInvalidDistribution
	}

	easyCount := roundHalfUp(float64(req.TotalQuestions) * float64(req.EasyPct) / 100)
	moderateCount := roundHalfUp(float64(req.TotalQuestions) * float64(req.ModeratePct) / 100)
	expertCount := req.TotalQuestions - easyCount - moderateCount
	if expertCount < 0 {
		// Both roundings went up; take the overshoot out of moderate so the
		// three counts still sum to the total.
		moderateCount += expertCount
		expertCount = 0
	}

	targets := map[model.Difficulty]int{
		model.DifficultyEasy:     easyCount,
		model.DifficultyModerate: moderateCount,
		model.DifficultyExpert:   expertCount,
	}

	combined := make([]model.QuestionSnapshot, 0, req.TotalQuestions)
	shortfall := make(map[model.Difficulty]int)

	for _, tier := range model.Difficulties {
		want := targets[tier]
		if want == 0 {
			continue
		}

		pool, err := c.source.ListActive(ctx, tier, req.Categories)
		if err != nil {
			return nil, fmt.Errorf("list %s pool: %w", tier, err)
		}

		drawn := c.draw(pool, want)
		if len(drawn) < want {
			shortfall[tier] = want - len(drawn)
		}
		combined = append(combined, drawn...)
	}

	c.shuffle(combined)

	comp := &model.Composition{Questions: combined}
	if len(shortfall) > 0 {
		comp.Shortfall = shortfall
	}
	return comp, nil
}

// draw samples up to n questions uniformly at random without replacement.
func (c *Composer) draw(pool []model.Question, n int) []model.QuestionSnapshot {
	if n > len(pool) {
		n = len(pool)
	}
	if n == 0 {
		return nil
	}

	c.mu.Lock()
	order := c.rng.Perm(len(pool))
	c.mu.Unlock()

	snapshots := make([]model.QuestionSnapshot, 0, n)
	for _, idx := range order[:n] {
		snapshots = append(snapshots, pool[idx].Snapshot())
	}
	return snapshots
}

// shuffle applies a uniform Fisher–Yates shuffle so difficulty tiers are not
// presented in blocks. Option order within each snapshot is left untouched.
func (c *Composer) shuffle(questions []model.QuestionSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(questions) - 1; i > 0; i-- {
		j := c.rng.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}

// roundHalfUp rounds to the nearest integer, with .5 rounding up.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
