package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentgate/assessment-backend/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListActive retrieves the active question pool for one difficulty tier,
// optionally restricted to a category allow-list. This is the composer's
// QuestionSource.
func (r *QuestionRepository) ListActive(ctx context.Context, difficulty model.Difficulty, categories []string) ([]model.Question, error) {
	query := `SELECT id, question_text, options, correct_option, difficulty, category, explanation, active, created_at, updated_at
		 FROM questions
		 WHERE active = TRUE AND difficulty = $1`
	args := []any{difficulty}

	if len(categories) > 0 {
		args = append(args, categories)
		query += fmt.Sprintf(" AND category = ANY($%d)", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// List retrieves questions for the admin screens with pagination and
// optional difficulty/category filters.
func (r *QuestionRepository) List(ctx context.Context, page, perPage int, difficulty *model.Difficulty, category *string) ([]model.Question, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := ` FROM questions WHERE TRUE`
	args := []any{}

	if difficulty != nil && *difficulty != "" {
		args = append(args, *difficulty)
		baseQuery += fmt.Sprintf(" AND difficulty = $%d", len(args))
	}
	if category != nil && *category != "" {
		args = append(args, *category)
		baseQuery += fmt.Sprintf(" AND category = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, question_text, options, correct_option, difficulty, category, explanation, active, created_at, updated_at` +
		baseQuery +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, 0, err
	}
	return questions, total, nil
}

// GetByID retrieves a single question.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, question_text, options, correct_option, difficulty, category, explanation, active, created_at, updated_at
		 FROM questions WHERE id = $1`, id)

	q, err := scanQuestion(row)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (question_text, options, correct_option, difficulty, category, explanation, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		q.Text, options, q.CorrectOption, q.Difficulty, q.Category, q.Explanation, q.Active,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// Update replaces the editable fields of a question.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE questions
		 SET question_text = $1, options = $2, correct_option = $3, difficulty = $4,
		     category = $5, explanation = $6, updated_at = NOW()
		 WHERE id = $7`,
		q.Text, options, q.CorrectOption, q.Difficulty, q.Category, q.Explanation, q.ID)
	return err
}

// SetActive toggles whether a question may be drawn into compositions.
// Deactivation never touches attempts that already snapshot the question.
func (r *QuestionRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE questions SET active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	return err
}

// Delete removes a question from the bank.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	return err
}

// Categories returns the distinct categories present in the bank.
func (r *QuestionRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM questions ORDER BY category ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func scanQuestion(row pgx.Row) (*model.Question, error) {
	var (
		q       model.Question
		options []byte
	)
	if err := row.Scan(&q.ID, &q.Text, &options, &q.CorrectOption, &q.Difficulty, &q.Category, &q.Explanation, &q.Active, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
	}
	return &q, nil
}

func scanQuestions(rows pgx.Rows) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}
