package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-editor/internal/app"
	"quiz-editor/internal/auth"
	"quiz-editor/internal/domain"
	"quiz-editor/internal/infra/postgres"
	pgmigrations "quiz-editor/internal/infra/postgres/migrations"
	infraredis "quiz-editor/internal/infra/redis"
	"quiz-editor/internal/infra/remote"
	"quiz-editor/internal/transport/api"
)

func TestEditAndSaveEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)
	gin.SetMode(gin.TestMode)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	backend := postgres.NewQuizStore(pool)

	seeded, err := backend.CreateQuiz(ctx, sampleQuiz())
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	secret := []byte("integration-secret")
	srv := httptest.NewServer(api.NewRouter(backend, secret))
	defer srv.Close()
	token, err := auth.Mint(secret, "editor", auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()
	store := infraredis.NewCatalogCache(redisClient, remote.NewClient(srv.URL, token, 5*time.Second), time.Minute)
	editor := app.NewEditor(store, nil, nil)

	if err := editor.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := editor.BeginEdit(seeded.ID); err != nil {
		t.Fatalf("begin edit: %v", err)
	}

	existing := seeded.Questions[0]
	correct := existing.Answers[0]
	if err := editor.SetField(domain.AnswerPath(domain.FieldAnswerCorrect, existing.ID, correct.ID), true); err != nil {
		t.Fatalf("set correct: %v", err)
	}
	if err := editor.CommitAnswer(ctx, existing.ID, correct.ID); err != nil {
		t.Fatalf("commit answer: %v", err)
	}

	if err := editor.SetField(domain.QuizPath(domain.FieldTitle), "Arithmetic II"); err != nil {
		t.Fatalf("set title: %v", err)
	}
	added, err := editor.AddQuestion()
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if err := editor.SetField(domain.QuestionTextPath(added.ID), "5 * 5?"); err != nil {
		t.Fatalf("set text: %v", err)
	}
	if _, err := editor.AddAnswer(1); err != nil {
		t.Fatalf("add answer: %v", err)
	}

	result, err := editor.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(result.Created) != 1 {
		t.Fatalf("expected one created question, got %+v", result.Created)
	}

	st := editor.Snapshot()
	if st.Phase != app.PhaseIdle || st.Draft != nil {
		t.Fatalf("expected idle after save, got %+v", st)
	}
	quiz, ok := domain.FindQuiz(st.Canonical, seeded.ID)
	if !ok {
		t.Fatalf("saved quiz missing from canonical list")
	}
	if quiz.Title != "Arithmetic II" || len(quiz.Questions) != 2 {
		t.Fatalf("unexpected canonical quiz: %+v", quiz)
	}
	if !quiz.Questions[0].Answers[0].IsCorrect {
		t.Fatalf("committed answer flag lost: %+v", quiz.Questions[0].Answers)
	}
	if q := quiz.Questions[1]; q.Text != "5 * 5?" || !q.ID.IsDurable() || len(q.Answers) != 1 {
		t.Fatalf("created question not persisted: %+v", q)
	}
}

func TestCatalogListIsConsistentUnderWrites(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := postgres.NewQuizStore(pool)

	seeded, err := store.CreateQuiz(ctx, sampleQuiz())
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	// Questions with two answers are created and deleted while lists run;
	// a list must never see a question without its answers.
	stop := make(chan struct{})
	writerErr := make(chan error, 1)
	go func() {
		defer close(writerErr)
		for {
			select {
			case <-stop:
				return
			default:
			}
			q, err := store.CreateQuestion(ctx, domain.NewQuestion{
				QuizID:  seeded.ID,
				Text:    "7 - 3?",
				Answers: []domain.NewAnswer{{Text: "4", IsCorrect: true}, {Text: "3"}},
			})
			if err != nil {
				writerErr <- err
				return
			}
			if err := store.DeleteQuestion(ctx, q.ID); err != nil {
				writerErr <- err
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		quizzes, err := store.ListQuizzes(ctx)
		if err != nil {
			close(stop)
			t.Fatalf("list: %v", err)
		}
		for _, quiz := range quizzes {
			for _, q := range quiz.Questions {
				if len(q.Answers) != 2 {
					close(stop)
					t.Fatalf("question %s listed with %d answers", q.ID, len(q.Answers))
				}
			}
		}
	}
	close(stop)
	if err := <-writerErr; err != nil {
		t.Fatalf("writer: %v", err)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.NewQuiz {
	return domain.NewQuiz{
		QuizFields: domain.QuizFields{Title: "Arithmetic", Difficulty: domain.Easy},
		Questions: []domain.NewQuestion{{
			Text: "What is 2 + 2?",
			Answers: []domain.NewAnswer{
				{Text: "4"},
				{Text: "5"},
			},
		}},
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
