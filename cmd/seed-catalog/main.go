package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/examhall-backend/internal/config"
	"github.com/stemsi/examhall-backend/internal/database"
	"github.com/stemsi/examhall-backend/internal/logger"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/repository"
	"github.com/stemsi/examhall-backend/internal/service"
)

// sample is a demo exam loaded into a fresh environment.
type sample struct {
	title     string
	duration  int
	questions []model.QuestionInput
}

func points(p float64) *float64 { return &p }

var samples = []sample{
	{
		title:    "Capitals of Europe",
		duration: 600,
		questions: []model.QuestionInput{
			{Answers: []string{"Paris", "Lyon", "Nice"}, CorrectAnswers: []string{"Paris"}},
			{Answers: []string{"Madrid", "Rome", "Lisbon"}, CorrectAnswers: []string{"Rome"}},
			{Answers: []string{"Bucharest", "Cluj", "Iasi"}, CorrectAnswers: []string{"Bucharest"}},
		},
	},
	{
		title:    "Prime Numbers",
		duration: 900,
		questions: []model.QuestionInput{
			{Answers: []string{"2", "4", "7", "9"}, CorrectAnswers: []string{"2", "7"}, Points: points(2)},
			{Answers: []string{"11", "15", "21"}, CorrectAnswers: []string{"11"}},
		},
	},
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	storage, err := service.NewStorageProvider(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	userRepo := repository.NewUserRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)

	mediaService := service.NewMediaService(cfg, storage, log)
	examService := service.NewExamService(repository.NewExamRepository(pool), repository.NewQuestionRepository(pool), categoryRepo, mediaService, rdb, log)
	categoryService := service.NewCategoryService(categoryRepo, examService, mediaService, log)

	if cfg.SeedEmail == "" {
		log.Fatal().Msg("SEED_EMAIL must name the admin that authors the demo exams")
	}
	author, err := userRepo.GetByLogin(ctx, cfg.SeedEmail)
	if err != nil {
		log.Fatal().Err(err).Str("email", cfg.SeedEmail).Msg("Seed admin not found, run create-admin first")
	}

	fmt.Println("=== Seeding demo catalog ===")

	category, err := categoryService.Create(ctx, model.CreateCategoryRequest{Title: "Demo"})
	if errors.Is(err, service.ErrCategoryExists) {
		category, err = categoryRepo.GetByTitle(ctx, service.Slugify("Demo"))
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare demo category")
	}

	created := 0
	for _, s := range samples {
		raw, err := json.Marshal(s.questions)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode questions")
		}
		exam, err := examService.Create(ctx, author.ID, model.CreateExamForm{
			Title:         s.title,
			CategoryID:    category.ID.String(),
			Duration:      s.duration,
			Plan:          model.PlanFree,
			QuestionsData: string(raw),
		}, nil)
		if err != nil {
			fmt.Printf("Skipping %q: %v\n", s.title, err)
			continue
		}
		created++
		fmt.Printf("Created exam %q (%s)\n", exam.Title, exam.Slug)
	}

	fmt.Printf("\nSeed completed! Added %d/%d exams to category %q.\n", created, len(samples), category.Title)
}
