package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/file"
	"quiz-attempt-service/internal/infra/postgres"
)

// NewImportCmd copies YAML quiz definitions into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate YAML quizzes and store them in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of {quizId}.yaml files (defaults to quiz.dir)")
	return cmd
}

func runImport(ctx context.Context, configPath, dir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.Quiz.Dir
	}
	if dir == "" {
		return fmt.Errorf("no quiz directory given")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	source := file.NewQuizLoader(dir)
	ids, err := source.List()
	if err != nil {
		return err
	}
	target := postgres.NewQuizLoader(pool)
	for _, id := range ids {
		quiz, err := source.LoadQuiz(ctx, id)
		if err != nil {
			return err
		}
		if err := quiz.Validate(); err != nil {
			return fmt.Errorf("quiz %s: %w", id, err)
		}
		if err := target.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
		log.Printf("import: stored quiz %s (%d questions)", quiz.ID, len(quiz.Questions))
	}
	log.Printf("import: %d quizzes from %s", len(ids), dir)
	return nil
}
