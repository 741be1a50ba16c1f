package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"learn-quiz-service/internal/app"
	"learn-quiz-service/internal/config"
	"learn-quiz-service/internal/domain"
	"learn-quiz-service/internal/infra/memory"
	pgstore "learn-quiz-service/internal/infra/postgres"
	redisstore "learn-quiz-service/internal/infra/redis"
	transport "learn-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = config.DefaultPort
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var (
		pool *pgxpool.Pool
		db   *bun.DB
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if db, err = openBunDB(cfg); err != nil {
			return err
		}
		defer db.Close()
	}

	loader, err := quizLoader(cfg, pool)
	if err != nil {
		return err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, config.DefaultQuizTTL)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL, log.Named("quiz-cache"))
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var (
		sittings app.SittingRepository
		progress app.ProgressRepository
	)
	if db != nil {
		sittings = pgstore.NewSittingStore(db)
		progress = pgstore.NewProgressStore(db)
	} else {
		sittings = memory.NewSittingStore()
		progress = memory.NewProgressStore()
	}

	sessionTTL := config.TTLDuration(cfg.Session.TTL, config.DefaultSessionTTL)
	var anon app.AnonSessionStore
	if redisClient != nil {
		anon = redisstore.NewSessionStore(redisClient, sessionTTL)
	} else {
		anon = memory.NewSessionStore(sessionTTL)
	}

	quizService := app.NewQuizService(quizRepo, sittings, progress, anon, app.WithLogger(log.Named("quiz")))
	markingService := app.NewMarkingService(quizRepo, sittings, log.Named("marking"))
	progressService := app.NewProgressService(quizRepo, progress, sittings)

	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwt_secret not set; signed-in requests will be rejected")
	}
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	identity := transport.NewIdentity(cfg.Auth.JWTSecret, cfg.Session.Cookie, sessionTTL)
	router := transport.NewRouter(
		transport.NewHandler(quizService, markingService, progressService, log.Named("http")),
		transport.NewWSHandler(quizService, log.Named("ws")),
		identity,
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// quizLoader picks the catalog source: Postgres when configured, then a YAML
// catalog file, then the built-in sample quiz.
func quizLoader(cfg config.Config, pool *pgxpool.Pool) (memory.QuizLoader, error) {
	if pool != nil {
		return pgstore.NewQuizLoader(pool), nil
	}
	if cfg.Quiz.CatalogFile != "" {
		return memory.NewFileQuizLoader(cfg.Quiz.CatalogFile)
	}
	return memory.NewStaticQuizLoader(sampleQuizzes()), nil
}

// sampleQuizzes provides a minimal catalog for running without Postgres or a catalog file.
func sampleQuizzes() map[string]domain.Quiz {
	quiz := domain.Quiz{
		Slug:     "arithmetic",
		Title:    "Arithmetic warm-up",
		Course:   "math",
		PassMark: 50,
		Questions: []domain.Question{
			{
				ID:      1,
				Content: "What is 2 + 2?",
				Variant: domain.MultipleChoice{Options: []domain.Answer{
					{ID: 1, Content: "3"},
					{ID: 2, Content: "4", Correct: true},
					{ID: 3, Content: "5"},
				}},
			},
			{
				ID:          2,
				Content:     "Zero is an even number.",
				Explanation: "Zero is divisible by two.",
				Variant:     domain.TrueFalse{Correct: true},
			},
		},
	}
	quiz.Normalize()
	return map[string]domain.Quiz{quiz.Slug: quiz}
}
