package exam

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/talentgate/assessment-backend/internal/model"
)

// fixedClock returns a controllable clock anchored at a base instant.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSession(t *testing.T, questionCount int) (*Session, *fixedClock) {
	t.Helper()

	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	attempt := &model.Attempt{
		ID:             uuid.New(),
		CandidateID:    1,
		AttemptNumber:  1,
		Status:         model.AttemptStatusInProgress,
		StartedAt:      clock.now,
		Questions:      snapshotSet(make([]int, questionCount)...),
		Answers:        make(map[string]int),
		TotalQuestions: questionCount,
	}
	return NewSession(attempt, NewScorer(60), 3, clock.Now), clock
}

func TestSession_RecordAnswer(t *testing.T) {
	s, _ := newTestSession(t, 3)
	qid := s.Attempt().Questions[0].ID

	if err := s.RecordAnswer(qid, 2); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Re-answering overwrites, no history.
	if err := s.RecordAnswer(qid, 0); err != nil {
		t.Fatalf("re-record: %v", err)
	}
	if got := s.Attempt().Answers[qid.String()]; got != 0 {
		t.Fatalf("answer = %d, want 0 (last write wins)", got)
	}

	if err := s.RecordAnswer(qid, 4); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("out-of-range option err = %v, want ErrInvalidOption", err)
	}
	if err := s.RecordAnswer(qid, -1); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("negative option err = %v, want ErrInvalidOption", err)
	}
	if err := s.RecordAnswer(uuid.New(), 1); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("unknown question err = %v, want ErrUnknownQuestion", err)
	}
}

func TestSession_NavigateClamps(t *testing.T) {
	s, _ := newTestSession(t, 5)

	tests := []struct {
		to   int
		want int
	}{
		{2, 2},
		{-3, 0},
		{99, 4},
		{0, 0},
	}
	for _, tc := range tests {
		if got := s.Navigate(tc.to); got != tc.want {
			t.Errorf("Navigate(%d) = %d, want %d", tc.to, got, tc.want)
		}
	}
}

func TestSession_TickExpiryCompletesOnce(t *testing.T) {
	s, clock := newTestSession(t, 2)
	qid := s.Attempt().Questions[0].ID
	if err := s.RecordAnswer(qid, 0); err != nil {
		t.Fatalf("record: %v", err)
	}

	if finished := s.Tick(10); finished {
		t.Fatal("positive tick must not finish the attempt")
	}

	clock.Advance(30 * time.Minute)
	if finished := s.Tick(0); !finished {
		t.Fatal("zero tick must finish the attempt")
	}

	attempt := s.Attempt()
	if attempt.Status != model.AttemptStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", attempt.Status)
	}
	if attempt.Score == nil || *attempt.Score != 50 {
		t.Fatalf("score = %v, want 50", attempt.Score)
	}
	if attempt.DurationSeconds == nil || *attempt.DurationSeconds != 1800 {
		t.Fatalf("duration = %v, want 1800", attempt.DurationSeconds)
	}

	// A late negative tick is a no-op, not an error.
	finishedAt := *attempt.FinishedAt
	clock.Advance(time.Minute)
	if finished := s.Tick(-5); finished {
		t.Fatal("tick after completion must be a no-op")
	}
	if got := *s.Attempt().FinishedAt; !got.Equal(finishedAt) {
		t.Fatalf("FinishedAt moved from %v to %v on late tick", finishedAt, got)
	}
}

func TestSession_WarningsDisqualifyAtThreshold(t *testing.T) {
	s, _ := newTestSession(t, 2)

	for i := 1; i <= 2; i++ {
		count, terminated, err := s.RaiseWarning()
		if err != nil {
			t.Fatalf("warning %d: %v", i, err)
		}
		if count != i || terminated {
			t.Fatalf("warning %d: count=%d terminated=%v", i, count, terminated)
		}
	}

	count, terminated, err := s.RaiseWarning()
	if err != nil {
		t.Fatalf("third warning: %v", err)
	}
	if count != 3 || !terminated {
		t.Fatalf("third warning: count=%d terminated=%v, want 3/true", count, terminated)
	}

	attempt := s.Attempt()
	if attempt.Status != model.AttemptStatusDisqualified {
		t.Fatalf("status = %s, want DISQUALIFIED", attempt.Status)
	}
	if attempt.WarningCount != 3 {
		t.Fatalf("warning count = %d, want 3", attempt.WarningCount)
	}
	if attempt.Score == nil {
		t.Fatal("disqualified attempt must still carry a computed score")
	}

	if _, _, err := s.RaiseWarning(); !errors.Is(err, ErrAttemptNotActive) {
		t.Fatalf("warning on terminal attempt err = %v, want ErrAttemptNotActive", err)
	}
}

func TestSession_CompleteIsIdempotent(t *testing.T) {
	s, clock := newTestSession(t, 4)
	qid := s.Attempt().Questions[1].ID
	if err := s.RecordAnswer(qid, 0); err != nil {
		t.Fatalf("record: %v", err)
	}

	clock.Advance(5 * time.Minute)
	first, attempt1 := s.Complete(model.ReasonSubmitted)

	clock.Advance(10 * time.Minute)
	second, attempt2 := s.Complete(model.ReasonSubmitted)

	if first != second {
		t.Fatalf("second complete changed the result: %+v vs %+v", first, second)
	}
	if !attempt2.FinishedAt.Equal(*attempt1.FinishedAt) {
		t.Fatalf("second complete moved FinishedAt: %v vs %v", attempt1.FinishedAt, attempt2.FinishedAt)
	}
	if *attempt2.DurationSeconds != 300 {
		t.Fatalf("duration = %d, want 300", *attempt2.DurationSeconds)
	}
}

func TestSession_TerminalStatesAreAbsorbing(t *testing.T) {
	s, _ := newTestSession(t, 3)
	qid := s.Attempt().Questions[0].ID

	s.Complete(model.ReasonSubmitted)

	if err := s.RecordAnswer(qid, 1); !errors.Is(err, ErrAttemptNotActive) {
		t.Fatalf("record on terminal attempt err = %v, want ErrAttemptNotActive", err)
	}
	if got := s.Navigate(2); got != 0 {
		t.Fatalf("navigate on terminal attempt moved cursor to %d", got)
	}

	// A later integrity-reason complete must not flip COMPLETED to
	// DISQUALIFIED.
	_, attempt := s.Complete(model.ReasonIntegrityViolation)
	if attempt.Status != model.AttemptStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED to stick", attempt.Status)
	}
}

func TestSession_EmptySnapshotScoresZero(t *testing.T) {
	s, _ := newTestSession(t, 0)

	result, attempt := s.Complete(model.ReasonTimeExpired)
	if result.ScorePercent != 0 || result.Passed {
		t.Fatalf("empty attempt result = %+v, want 0/fail", result)
	}
	if attempt.Status != model.AttemptStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", attempt.Status)
	}
}
