package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/file"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/postgres"
	redisinfra "quiz-attempt-service/internal/infra/redis"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the attempt server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
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
	stateTTL := config.Duration(cfg.Attempt.StateTTL, config.Duration(cfg.Redis.TTL, 24*time.Hour))

	pool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	loader := quizLoader(cfg, pool)
	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	var backend attempt.Backend
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
		backend = redisinfra.NewStateBackend(redisClient, stateTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		backend = memory.NewStateBackend()
	}

	service := app.NewAttemptService(
		memory.NewSessionStore(),
		quizRepo,
		attempt.NewStateStore(backend),
		submissionSink(pool),
		app.Options{SubmitTimeout: config.Duration(cfg.Attempt.SubmitTimeout, 10*time.Second)},
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting attempt service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// connectPostgres returns nil when no database is configured.
func connectPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.Postgres.URL == "" {
		return nil, nil
	}
	return pgxpool.Connect(ctx, cfg.Postgres.URL)
}

// quizLoader prefers Postgres, then a YAML directory, then the built-in sample.
func quizLoader(cfg config.Config, pool *pgxpool.Pool) memory.QuizLoader {
	switch {
	case pool != nil:
		return postgres.NewQuizLoader(pool)
	case cfg.Quiz.Dir != "":
		return file.NewQuizLoader(cfg.Quiz.Dir)
	default:
		return memory.NewStaticQuizLoader(memory.SampleQuizzes())
	}
}

func submissionSink(pool *pgxpool.Pool) app.SubmissionSink {
	if pool != nil {
		return postgres.NewSubmissionSink(pool)
	}
	return memory.NewSubmissionSink()
}
