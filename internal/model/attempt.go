package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states. All states other than
// IN_PROGRESS are terminal and absorbing.
type AttemptStatus string

const (
	AttemptStatusInProgress   AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted    AttemptStatus = "COMPLETED"
	AttemptStatusAbandoned    AttemptStatus = "ABANDONED"
	AttemptStatusDisqualified AttemptStatus = "DISQUALIFIED"
)

// Terminal reports whether the status is absorbing.
func (s AttemptStatus) Terminal() bool {
	return s != AttemptStatusInProgress
}

// CompletionReason records why an attempt reached a terminal state.
type CompletionReason string

const (
	ReasonSubmitted          CompletionReason = "SUBMITTED"
	ReasonTimeExpired        CompletionReason = "TIME_EXPIRED"
	ReasonIntegrityViolation CompletionReason = "INTEGRITY_VIOLATION"
)

// Attempt is one candidate attempt: the composed question snapshot, the
// answer map, integrity counters and, once terminal, the scored result.
// Identity is (candidate_id, attempt_number); attempt numbers are 1-based,
// monotonic per candidate, with no gaps and no reuse.
type Attempt struct {
	ID              uuid.UUID          `json:"id"`
	CandidateID     int                `json:"candidate_id"`
	AttemptNumber   int                `json:"attempt_number"`
	Status          AttemptStatus      `json:"status"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      *time.Time         `json:"finished_at,omitempty"`
	DurationSeconds *int               `json:"duration_seconds,omitempty"`
	Questions       []QuestionSnapshot `json:"-"`
	Answers         map[string]int     `json:"answers,omitempty"`
	WarningCount    int                `json:"warning_count"`
	TabSwitchCount  int                `json:"tab_switch_count"`
	Score           *int               `json:"score,omitempty"`
	CorrectCount    *int               `json:"correct_count,omitempty"`
	TotalQuestions  int                `json:"total_questions"`
}

// ScoreResult is the Scorer output.
type ScoreResult struct {
	CorrectCount   int  `json:"correct_count"`
	TotalQuestions int  `json:"total_questions"`
	ScorePercent   int  `json:"score"`
	Passed         bool `json:"passed"`
}

// AttemptResult is the candidate-facing terminal attempt record.
type AttemptResult struct {
	AttemptNumber   int           `json:"attempt_number"`
	Status          AttemptStatus `json:"status"`
	Score           int           `json:"score"`
	CorrectCount    int           `json:"correct_answers"`
	TotalQuestions  int           `json:"total_questions"`
	Passed          bool          `json:"passed"`
	DurationSeconds int           `json:"duration_seconds"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	WarningCount    int           `json:"warning_count"`
}

// Result projects a terminal attempt into its candidate-facing record.
// Returns false while the attempt is still open.
func (a *Attempt) Result(passingScore int) (AttemptResult, bool) {
	if !a.Status.Terminal() || a.FinishedAt == nil || a.Score == nil || a.CorrectCount == nil || a.DurationSeconds == nil {
		return AttemptResult{}, false
	}
	return AttemptResult{
		AttemptNumber:   a.AttemptNumber,
		Status:          a.Status,
		Score:           *a.Score,
		CorrectCount:    *a.CorrectCount,
		TotalQuestions:  a.TotalQuestions,
		Passed:          *a.Score >= passingScore,
		DurationSeconds: *a.DurationSeconds,
		StartedAt:       a.StartedAt,
		FinishedAt:      *a.FinishedAt,
		WarningCount:    a.WarningCount,
	}, true
}
