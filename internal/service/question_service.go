package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/talentgate/assessment-backend/internal/model"
	"github.com/talentgate/assessment-backend/internal/repository"
)

// ErrQuestionNotFound is returned when a question ID does not exist.
var ErrQuestionNotFound = errors.New("question not found")

// QuestionService handles question bank business logic.
type QuestionService struct {
	questions *repository.QuestionRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions *repository.QuestionRepository) *QuestionService {
	return &QuestionService{questions: questions}
}

// List retrieves questions with pagination and optional filters.
func (s *QuestionService) List(ctx context.Context, page, perPage int, difficulty *model.Difficulty, category *string) ([]model.Question, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.questions.List(ctx, page, perPage, difficulty, category)
}

// Get retrieves one question by ID.
func (s *QuestionService) Get(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

// Create adds a question to the bank. New questions are active by default.
func (s *QuestionService) Create(ctx context.Context, req *model.CreateQuestionRequest) (*model.Question, error) {
	q := &model.Question{
		Text:          req.Text,
		Options:       req.Options,
		CorrectOption: req.CorrectOption,
		Difficulty:    model.Difficulty(req.Difficulty),
		Category:      req.Category,
		Explanation:   req.Explanation,
		Active:        true,
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// Update applies partial edits to a question. Attempts that already snapshot
// the question are unaffected.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateQuestionRequest) (*model.Question, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Text != "" {
		q.Text = req.Text
	}
	if req.Options != nil {
		q.Options = req.Options
	}
	if req.CorrectOption != nil {
		q.CorrectOption = *req.CorrectOption
	}
	if req.Difficulty != "" {
		q.Difficulty = model.Difficulty(req.Difficulty)
	}
	if req.Category != "" {
		q.Category = req.Category
	}
	if req.Explanation != nil {
		q.Explanation = *req.Explanation
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := s.questions.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	return q, nil
}

// SetActive toggles whether a question may be drawn into future attempts.
func (s *QuestionService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.Question, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.questions.SetActive(ctx, id, active); err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	q.Active = active
	return q, nil
}

// Delete removes a question from the bank. Existing attempt snapshots keep
// their embedded copy.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.questions.Delete(ctx, id)
}

// Categories lists the distinct categories present in the bank.
func (s *QuestionService) Categories(ctx context.Context) ([]string, error) {
	return s.questions.Categories(ctx)
}
