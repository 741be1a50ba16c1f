package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"learn-quiz-service/internal/config"
	"learn-quiz-service/internal/infra/memory"
	pgloader "learn-quiz-service/internal/infra/postgres"
	redisstore "learn-quiz-service/internal/infra/redis"
)

// NewSeedCmd loads a YAML catalog into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load quizzes from a YAML catalog file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/catalog.yaml", "path to the YAML quiz catalog")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	quizzes, err := memory.ReadCatalogFile(file)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	writer := pgloader.NewQuizLoader(pool)

	// Drop cached documents so running servers pick up the new catalog.
	var cache *redisstore.QuizRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = redisstore.NewQuizRepository(client, writer, 0, log.Named("quiz-cache"))
	}

	for _, quiz := range quizzes {
		if err := writer.SaveQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("seed %s: %w", quiz.Slug, err)
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, quiz.Slug); err != nil {
				log.Warn("cache invalidation failed", zap.String("quiz", quiz.Slug), zap.Error(err))
			}
		}
		log.Info("quiz seeded", zap.String("quiz", quiz.Slug), zap.Int("questions", len(quiz.Questions)))
	}
	log.Info("catalog seeded", zap.String("file", file), zap.Int("quizzes", len(quizzes)))
	return nil
}
