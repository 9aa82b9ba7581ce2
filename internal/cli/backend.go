package cli

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quiz-editor/internal/app"
	"quiz-editor/internal/config"
	"quiz-editor/internal/domain"
	"quiz-editor/internal/infra/memory"
	"quiz-editor/internal/infra/postgres"
	"quiz-editor/internal/transport/api"
)

// NewBackendCmd serves the reference quiz catalog API.
func NewBackendCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Serve the reference quiz catalog API (Postgres or in-memory)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackend(cmd.Context(), *configPath, *port)
		},
	}
}

func runBackend(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	finalPort := firstNonEmpty(portFlag, cfg.Server.BackendPort, "5000")

	var store app.QuizStore
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewQuizStore(pool)
	} else {
		log.Printf("postgres url not configured, serving an in-memory catalog")
		store = memory.NewQuizStore(sampleQuizzes()...)
	}

	if cfg.Auth.JWTSecret == "" {
		log.Printf("auth.jwtSecret not configured, catalog routes are open")
	}
	router := api.NewRouter(store, []byte(cfg.Auth.JWTSecret), gin.Logger())

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}
	log.Printf("starting quiz backend on :%s", finalPort)
	return serve(ctx, server, nil, 0)
}

// sampleQuizzes seeds the in-memory catalog.
func sampleQuizzes() []domain.Quiz {
	return []domain.Quiz{{
		ID:          domain.DurableID(1),
		Title:       "Arithmetic",
		Description: "Warm-up sums",
		Difficulty:  domain.Easy,
		Questions: []domain.Question{{
			ID:     domain.DurableID(1),
			Text:   "What is 2 + 2?",
			QuizID: domain.DurableID(1),
			Answers: []domain.Answer{
				{ID: domain.DurableID(1), Text: "3", QuestionID: domain.DurableID(1)},
				{ID: domain.DurableID(2), Text: "4", IsCorrect: true, QuestionID: domain.DurableID(1)},
				{ID: domain.DurableID(3), Text: "5", QuestionID: domain.DurableID(1)},
			},
		}},
	}}
}
