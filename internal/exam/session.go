package exam

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/talentgate/assessment-backend/internal/model"
)

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// Session is the state machine for a single open attempt. All mutation goes
// through the session; callers are expected to hold exactly one session per
// attempt (single writer per attempt ID), which the session's own mutex
// backs up for safety.
//
// The session is purely reactive: the countdown advances only through Tick
// calls pushed by a collaborator, never through an internal sleep loop.
type Session struct {
	mu               sync.Mutex
	attempt          *model.Attempt
	cursor           int
	scorer           *Scorer
	warningThreshold int
	clock            Clock
}

// NewSession wraps an attempt (freshly started or resumed from the ledger)
// in a state machine.
func NewSession(attempt *model.Attempt, scorer *Scorer, warningThreshold int, clock Clock) *Session {
	if clock == nil {
		clock = time.Now
	}
	if attempt.Answers == nil {
		attempt.Answers = make(map[string]int)
	}
	return &Session{
		attempt:          attempt,
		scorer:           scorer,
		warningThreshold: warningThreshold,
		clock:            clock,
	}
}

// Attempt returns a copy of the underlying attempt record.
func (s *Session) Attempt() model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyAttempt()
}

// Status returns the current attempt status.
func (s *Session) Status() model.AttemptStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.Status
}

// RecordAnswer upserts the answer map entry for a question. Re-answering
// overwrites the prior selection; no history is kept.
func (s *Session) RecordAnswer(questionID uuid.UUID, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempt.Status.Terminal() {
		return ErrAttemptNotActive
	}

	question := s.findQuestion(questionID)
	if question == nil {
		return ErrUnknownQuestion
	}
	if optionIndex < 0 || optionIndex >= len(question.Options) {
		return ErrInvalidOption
	}

	s.attempt.Answers[questionID.String()] = optionIndex
	return nil
}

// Navigate moves the cursor, clamped to [0, len(questions)-1]. It never
// fails and does not affect scoring.
func (s *Session) Navigate(toIndex int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempt.Status.Terminal() {
		return s.cursor
	}

	max := len(s.attempt.Questions) - 1
	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex > max {
		toIndex = max
	}
	if toIndex < 0 {
		toIndex = 0
	}
	s.cursor = toIndex
	return s.cursor
}

// Cursor returns the current navigation position.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Tick feeds an externally-sourced countdown value. When the remaining time
// reaches zero the attempt completes with TIME_EXPIRED exactly once;
// repeated zero or negative ticks after completion are no-ops.
func (s *Session) Tick(remainingSeconds int) (finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempt.Status.Terminal() {
		return false
	}
	if remainingSeconds > 0 {
		return false
	}

	s.complete(model.ReasonTimeExpired)
	return true
}

// RaiseWarning increments the authoritative integrity counter. Reaching the
// threshold disqualifies the attempt. Returns the new count and whether the
// attempt was terminated by this call.
func (s *Session) RaiseWarning() (count int, terminated bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempt.Status.Terminal() {
		return s.attempt.WarningCount, false, ErrAttemptNotActive
	}

	s.attempt.WarningCount++
	if s.attempt.WarningCount >= s.warningThreshold {
		s.complete(model.ReasonIntegrityViolation)
		return s.attempt.WarningCount, true, nil
	}
	return s.attempt.WarningCount, false, nil
}

// NoteTabSwitch bumps the tab-switch tally kept for candidate-facing
// messaging ("2 of 3 tab switches"). The warning budget itself is the
// unified counter driven by RaiseWarning.
func (s *Session) NoteTabSwitch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt.TabSwitchCount++
	return s.attempt.TabSwitchCount
}

// WarningCount returns the current integrity warning count.
func (s *Session) WarningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.WarningCount
}

// Complete finalizes the attempt. Idempotent: a second call on a terminal
// attempt returns the stored result unchanged and does not move FinishedAt.
// Completion never fails; scoring degrades to zero on an empty snapshot.
func (s *Session) Complete(reason model.CompletionReason) (model.ScoreResult, model.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attempt.Status.Terminal() {
		s.complete(reason)
	}

	return model.ScoreResult{
		CorrectCount:   *s.attempt.CorrectCount,
		TotalQuestions: s.attempt.TotalQuestions,
		ScorePercent:   *s.attempt.Score,
		Passed:         *s.attempt.Score >= s.scorer.passingScore,
	}, s.copyAttempt()
}

// complete performs the terminal transition. Caller holds the lock and has
// verified the attempt is still in progress.
func (s *Session) complete(reason model.CompletionReason) {
	now := s.clock()
	duration := int(now.Sub(s.attempt.StartedAt).Seconds())

	result := s.scorer.Score(s.attempt.Questions, s.attempt.Answers)

	s.attempt.FinishedAt = &now
	s.attempt.DurationSeconds = &duration
	s.attempt.Score = &result.ScorePercent
	s.attempt.CorrectCount = &result.CorrectCount
	s.attempt.TotalQuestions = result.TotalQuestions

	if reason == model.ReasonIntegrityViolation {
		s.attempt.Status = model.AttemptStatusDisqualified
	} else {
		s.attempt.Status = model.AttemptStatusCompleted
	}
}

func (s *Session) findQuestion(id uuid.UUID) *model.QuestionSnapshot {
	for i := range s.attempt.Questions {
		if s.attempt.Questions[i].ID == id {
			return &s.attempt.Questions[i]
		}
	}
	return nil
}

func (s *Session) copyAttempt() model.Attempt {
	cp := *s.attempt
	cp.Questions = append([]model.QuestionSnapshot(nil), s.attempt.Questions...)
	cp.Answers = make(map[string]int, len(s.attempt.Answers))
	for k, v := range s.attempt.Answers {
		cp.Answers[k] = v
	}
	return cp
}
