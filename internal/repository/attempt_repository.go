package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentgate/assessment-backend/internal/exam"
	"github.com/talentgate/assessment-backend/internal/model"
)

// Constraint names from the migrations; violations map to ledger errors.
const (
	constraintAttemptNumber = "uq_attempts_candidate_number"
	constraintOneInProgress = "uq_attempts_one_in_progress"
)

// AttemptRepository is the attempt ledger: one durable record per
// (candidate, attempt number), with the one-open-attempt invariant enforced
// by a partial unique index so two devices cannot race an insert.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// NextAttemptNumber returns max(existing)+1 for the candidate. The ceiling
// is the engine's job; the ledger only guarantees monotonic, gap-free
// allocation through the unique constraint at insert time.
func (r *AttemptRepository) NextAttemptNumber(ctx context.Context, candidateID int) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0) + 1 FROM attempts WHERE candidate_id = $1`,
		candidateID,
	).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Create inserts the attempt as IN_PROGRESS. Unique violations surface as
// exam.ErrDuplicateAttempt or exam.ErrAttemptAlreadyInProgress.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	questions, err := json.Marshal(a.Questions)
	if err != nil {
		return fmt.Errorf("marshal question snapshot: %w", err)
	}
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO attempts
		   (id, candidate_id, attempt_number, status, started_at, questions, answers,
		    warning_count, tab_switch_count, total_questions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING started_at`,
		a.ID, a.CandidateID, a.AttemptNumber, a.Status, a.StartedAt, questions, answers,
		a.WarningCount, a.TabSwitchCount, a.TotalQuestions,
	).Scan(&a.StartedAt)

	return mapConstraintError(err)
}

// Finalize writes the terminal state in place, conditional on the row still
// being IN_PROGRESS. Returns false when another writer already finalized it,
// which callers treat as an idempotent no-op.
func (r *AttemptRepository) Finalize(ctx context.Context, a *model.Attempt) (bool, error) {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, finished_at = $2, duration_seconds = $3, answers = $4,
		     warning_count = $5, tab_switch_count = $6, score = $7, correct_count = $8,
		     total_questions = $9
		 WHERE id = $10 AND status = $11`,
		a.Status, a.FinishedAt, a.DurationSeconds, answers,
		a.WarningCount, a.TabSwitchCount, a.Score, a.CorrectCount,
		a.TotalQuestions,
		a.ID, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetActiveByCandidate retrieves the candidate's open attempt, if any.
func (r *AttemptRepository) GetActiveByCandidate(ctx context.Context, candidateID int) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		selectAttempt+` WHERE candidate_id = $1 AND status = $2`,
		candidateID, model.AttemptStatusInProgress)
	return scanAttempt(row)
}

// Get retrieves one attempt by its ledger identity.
func (r *AttemptRepository) Get(ctx context.Context, candidateID, attemptNumber int) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		selectAttempt+` WHERE candidate_id = $1 AND attempt_number = $2`,
		candidateID, attemptNumber)
	return scanAttempt(row)
}

// GetByID retrieves one attempt by UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx, selectAttempt+` WHERE id = $1`, id)
	return scanAttempt(row)
}

// ListByCandidate retrieves all of a candidate's attempts, newest first.
func (r *AttemptRepository) ListByCandidate(ctx context.Context, candidateID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		selectAttempt+` WHERE candidate_id = $1 ORDER BY attempt_number DESC`,
		candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

const selectAttempt = `SELECT id, candidate_id, attempt_number, status, started_at, finished_at,
	duration_seconds, questions, answers, warning_count, tab_switch_count,
	score, correct_count, total_questions
 FROM attempts`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	var (
		a         model.Attempt
		questions []byte
		answers   []byte
	)
	err := row.Scan(
		&a.ID, &a.CandidateID, &a.AttemptNumber, &a.Status, &a.StartedAt, &a.FinishedAt,
		&a.DurationSeconds, &questions, &answers, &a.WarningCount, &a.TabSwitchCount,
		&a.Score, &a.CorrectCount, &a.TotalQuestions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exam.ErrAttemptNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(questions, &a.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal question snapshot: %w", err)
	}
	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if a.Answers == nil {
		a.Answers = make(map[string]int)
	}
	return &a, nil
}

func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case constraintOneInProgress:
			return exam.ErrAttemptAlreadyInProgress
		case constraintAttemptNumber:
			return exam.ErrDuplicateAttempt
		}
	}
	return err
}
