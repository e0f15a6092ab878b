package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Difficulty tags a question's tier. Composition draws per tier.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyExpert   Difficulty = "expert"
)

// Difficulties lists all tiers in composition order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyModerate, DifficultyExpert}

// OptionCount is the fixed number of options per question.
const OptionCount = 4

// Question represents a single bank question. Questions are authored by
// admins and read-only to the session engine; inactive questions are
// excluded from composition.
type Question struct {
	ID            uuid.UUID  `json:"id"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	CorrectOption int        `json:"correct_option"`
	Difficulty    Difficulty `json:"difficulty"`
	Category      string     `json:"category"`
	Explanation   string     `json:"explanation,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Validate checks the question invariants before persistence.
func (q *Question) Validate() error {
	if len(q.Options) != OptionCount {
		return fmt.Errorf("question must have exactly %d options, got %d", OptionCount, len(q.Options))
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return fmt.Errorf("correct option index %d out of range [0,%d)", q.CorrectOption, len(q.Options))
	}
	return nil
}

// Snapshot captures the question as shown to the candidate. The snapshot is
// embedded in the attempt record so that later edits or deletion of the bank
// question never affect scoring.
func (q *Question) Snapshot() QuestionSnapshot {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return QuestionSnapshot{
		ID:            q.ID,
		Text:          q.Text,
		Options:       options,
		CorrectOption: q.CorrectOption,
		Difficulty:    q.Difficulty,
		Category:      q.Category,
	}
}

// QuestionSnapshot is the point-in-time copy of a question stored on an
// attempt. It carries the correct option for scoring; it must never be sent
// to the candidate as-is.
type QuestionSnapshot struct {
	ID            uuid.UUID  `json:"id"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	CorrectOption int        `json:"correct_option"`
	Difficulty    Difficulty `json:"difficulty"`
	Category      string     `json:"category"`
}

// ForCandidate strips the answer key from a snapshot.
func (s QuestionSnapshot) ForCandidate() CandidateQuestion {
	return CandidateQuestion{
		ID:         s.ID,
		Text:       s.Text,
		Options:    s.Options,
		Difficulty: s.Difficulty,
		Category:   s.Category,
	}
}

// CandidateQuestion is the candidate-facing question payload, without the
// correct option index.
type CandidateQuestion struct {
	ID         uuid.UUID  `json:"id"`
	Text       string     `json:"text"`
	Options    []string   `json:"options"`
	Difficulty Difficulty `json:"difficulty"`
	Category   string     `json:"category"`
}

// CreateQuestionRequest is the payload for adding a bank question.
type CreateQuestionRequest struct {
	Text          string   `json:"text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,len=4,dive,required,max=500"`
	CorrectOption int      `json:"correct_option" binding:"min=0,max=3"`
	Difficulty    string   `json:"difficulty" binding:"required,oneof=easy moderate expert"`
	Category      string   `json:"category" binding:"required,min=1,max=100"`
	Explanation   string   `json:"explanation" binding:"omitempty,max=2000"`
}

// UpdateQuestionRequest is the payload for editing a bank question.
type UpdateQuestionRequest struct {
	Text          string   `json:"text" binding:"omitempty,min=1,max=2000"`
	Options       []string `json:"options" binding:"omitempty,len=4,dive,required,max=500"`
	CorrectOption *int     `json:"correct_option" binding:"omitempty,min=0,max=3"`
	Difficulty    string   `json:"difficulty" binding:"omitempty,oneof=easy moderate expert"`
	Category      string   `json:"category" binding:"omitempty,min=1,max=100"`
	Explanation   *string  `json:"explanation" binding:"omitempty,max=2000"`
}

// SetActiveRequest toggles a question's availability for composition.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}
