package service

import (
	"context"

	"github.com/talentgate/assessment-backend/internal/exam"
	"github.com/talentgate/assessment-backend/internal/model"
)

// CompositionPreview is the admin-facing dry run of the composer: the drawn
// set with answer keys visible, plus the per-tier breakdown.
type CompositionPreview struct {
	Questions []model.QuestionSnapshot `json:"questions"`
	Counts    map[model.Difficulty]int `json:"counts"`
	Shortfall map[model.Difficulty]int `json:"shortfall,omitempty"`
}

// CompositionService lets admins dry-run the composer against the current
// bank without opening an attempt.
type CompositionService struct {
	composer *exam.Composer
}

// NewCompositionService creates a new CompositionService.
func NewCompositionService(composer *exam.Composer) *CompositionService {
	return &CompositionService{composer: composer}
}

// Preview composes a set for the given request and reports the realized
// per-tier counts. Nothing is persisted.
func (s *CompositionService) Preview(ctx context.Context, req model.CompositionRequest) (*CompositionPreview, error) {
	comp, err := s.composer.Compose(ctx, req)
	if err != nil {
		return nil, err
	}

	counts := make(map[model.Difficulty]int)
	for _, q := range comp.Questions {
		counts[q.Difficulty]++
	}

	return &CompositionPreview{
		Questions: comp.Questions,
		Counts:    counts,
		Shortfall: comp.Shortfall,
	}, nil
}
