package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"learn-quiz-service/internal/app"
	"learn-quiz-service/internal/domain"
	pgstore "learn-quiz-service/internal/infra/postgres"
	pgmigrations "learn-quiz-service/internal/infra/postgres/migrations"
	infraredis "learn-quiz-service/internal/infra/redis"
)

func TestExamPaperEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgstore.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute, nil)
	anon := infraredis.NewSessionStore(redisClient, 72*time.Hour)
	sittings := pgstore.NewSittingStore(db)
	progress := pgstore.NewProgressStore(db)
	service := app.NewQuizService(quizRepo, sittings, progress, anon)
	marking := app.NewMarkingService(quizRepo, sittings, nil)

	alice := domain.Visitor{UserID: "u1", Username: "Alice"}
	step, err := service.Take(ctx, alice, "quiz-1")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	resumed, err := service.Take(ctx, alice, "quiz-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if step.SittingID == 0 || resumed.SittingID != step.SittingID {
		t.Fatalf("expected the same sitting, got %d and %d", step.SittingID, resumed.SittingID)
	}

	duplicate := domain.NewSitting("u1", "Alice", sampleQuiz(), nil, time.Now())
	if err := sittings.Create(ctx, &duplicate); err != domain.ErrDuplicateSitting {
		t.Fatalf("expected duplicate refusal, got %v", err)
	}

	outcome, err := service.Answer(ctx, alice, "quiz-1", domain.AnswerSubmission{QuestionID: 1, Guess: "1"})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if outcome.Correct || outcome.Result == nil || !outcome.Result.Retained {
		t.Fatalf("expected retained incorrect result, got %+v", outcome)
	}

	if _, err := service.Take(ctx, alice, "quiz-1"); !strings.Contains(fmt.Sprint(err), "already attempted") {
		t.Fatalf("expected refusal, got %v", err)
	}

	grader := domain.Visitor{UserID: "g1", Username: "Grace", Grader: true}
	list, err := marking.List(ctx, grader, domain.SittingFilter{QuizTitle: "sum", Username: "ali"})
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one paper, got %d err=%v", len(list), err)
	}
	marked, err := marking.Toggle(ctx, grader, outcome.Result.SittingID, 1)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if marked.Sitting.Score != 1 || len(marked.Sitting.Incorrect) != 0 {
		t.Fatalf("expected toggled score 1, got %+v", marked.Sitting)
	}

	stale := list[0]
	if err := sittings.Save(ctx, &stale); err != domain.ErrConcurrentUpdate {
		t.Fatalf("expected concurrent update, got %v", err)
	}

	ledger, err := progress.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got := ledger.Score("math"); got != (domain.CourseScore{Correct: 0, Attempted: 1}) {
		t.Fatalf("unexpected progress %+v", got)
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

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Slug:          "quiz-1",
		Title:         "Sums exam",
		Course:        "math",
		SingleAttempt: true,
		Questions: []domain.Question{
			{
				ID:      1,
				Content: "What is 2 + 2?",
				Course:  "math",
				Variant: domain.MultipleChoice{Options: []domain.Answer{
					{ID: 1, Content: "3"},
					{ID: 2, Content: "4", Correct: true},
					{ID: 3, Content: "5"},
				}},
			},
		},
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
