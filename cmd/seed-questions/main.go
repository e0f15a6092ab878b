package main

import (
	"context"
	"fmt"
	"time"

	"github.com/talentgate/assessment-backend/internal/config"
	"github.com/talentgate/assessment-backend/internal/database"
	"github.com/talentgate/assessment-backend/internal/logger"
	"github.com/talentgate/assessment-backend/internal/model"
	"github.com/talentgate/assessment-backend/internal/repository"
	"github.com/talentgate/assessment-backend/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// Seeds a demo question bank large enough for the default 35-question
// composition at 50/30/20, plus a couple of demo candidates.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)
	candidateRepo := repository.NewCandidateRepository(pool)
	questionService := service.NewQuestionService(questionRepo)

	fmt.Println("=== Seeding Question Bank ===")

	categories := []string{"networking", "databases", "algorithms", "security"}

	// Per-tier pool sizes: comfortably above the default 18/11/6 draw.
	tiers := []struct {
		difficulty string
		count      int
	}{
		{"easy", 40},
		{"moderate", 25},
		{"expert", 15},
	}

	seeded := 0
	for _, tier := range tiers {
		for i := 0; i < tier.count; i++ {
			category := categories[i%len(categories)]
			req := &model.CreateQuestionRequest{
				Text: fmt.Sprintf("[%s/%s #%d] Which of the following statements is correct?",
					category, tier.difficulty, i+1),
				Options: []string{
					"The first statement",
					"The second statement",
					"The third statement",
					"The fourth statement",
				},
				CorrectOption: i % model.OptionCount,
				Difficulty:    tier.difficulty,
				Category:      category,
				Explanation:   "Seeded demo question.",
			}

			if _, err := questionService.Create(ctx, req); err != nil {
				fmt.Printf("Error creating %s question #%d: %v\n", tier.difficulty, i+1, err)
				continue
			}
			seeded++
		}
		fmt.Printf("Seeded %d %s questions\n", tier.count, tier.difficulty)
	}

	fmt.Println("=== Seeding Demo Candidates ===")

	hash, err := bcrypt.GenerateFromPassword([]byte("candidate123"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}

	demoCandidates := []model.Candidate{
		{Email: "alice@example.com", Name: "Alice Carter", PasswordHash: string(hash)},
		{Email: "bob@example.com", Name: "Bob Nguyen", PasswordHash: string(hash)},
	}

	created := 0
	for i := range demoCandidates {
		if err := candidateRepo.Create(ctx, &demoCandidates[i]); err != nil {
			fmt.Printf("Error creating candidate %s: %v\n", demoCandidates[i].Email, err)
			continue
		}
		created++
	}

	fmt.Printf("\nSeed completed! %d questions, %d candidates.\n", seeded, created)
}
