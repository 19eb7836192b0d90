package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/cobra"
	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/sqlite"
	"quiz-attempt-service/internal/transport/console"
)

type takeOptions struct {
	quizID    string
	studentID string
	dbPath    string
}

// NewTakeCmd runs one attempt in the terminal. State lives in a local SQLite
// file, so an interrupted attempt resumes on the next run.
func NewTakeCmd(configPath *string) *cobra.Command {
	opts := takeOptions{}
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Take a quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTake(cmd.Context(), *configPath, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.quizID, "quiz", "sample", "quiz id")
	cmd.Flags().StringVar(&opts.studentID, "student", "local", "student id")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite file holding attempt state")
	return cmd
}

func runTake(ctx context.Context, configPath string, opts takeOptions, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	dbPath := opts.dbPath
	if dbPath == "" {
		dbPath = cfg.SQLite.Path
	}
	if dbPath == "" {
		dbPath = "quiz-attempts.db"
	}
	backend, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	pool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	ctx, leave := context.WithCancel(ctx)
	defer leave()

	service := app.NewAttemptService(
		memory.NewSessionStore(),
		memory.NewQuizRepository(quizLoader(cfg, pool), config.Duration(cfg.Quiz.TTL, 10*time.Minute)),
		attempt.NewStateStore(backend),
		printingSink{next: submissionSink(pool), out: out},
		app.Options{SubmitTimeout: config.Duration(cfg.Attempt.SubmitTimeout, 10*time.Second)},
	)

	session, err := service.Open(ctx, opts.quizID, opts.studentID, console.NewSignalInterceptor(leave))
	if err != nil {
		return fmt.Errorf("open %s for %s: %w", opts.quizID, opts.studentID, err)
	}
	defer service.Release(session)

	err = console.NewRunner(session, out).Run(ctx, in)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "\nProgress saved. Run take again to resume.")
		return nil
	}
	return err
}

// printingSink echoes every accepted submission as JSON.
type printingSink struct {
	next app.SubmissionSink
	out  io.Writer
}

func (s printingSink) SaveSubmission(ctx context.Context, record domain.SubmissionRecord) error {
	if err := s.next.SaveSubmission(ctx, record); err != nil {
		return err
	}
	if data, err := json.MarshalIndent(record, "", "  "); err == nil {
		fmt.Fprintf(s.out, "%s\n", data)
	}
	return nil
}

func (s printingSink) CountSubmissions(ctx context.Context, quizID, studentID string) (int, error) {
	return s.next.CountSubmissions(ctx, quizID, studentID)
}
