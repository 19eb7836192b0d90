package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

const createSubmissionsSQL = `
CREATE TABLE IF NOT EXISTS quiz_submissions (
  id UUID PRIMARY KEY,
  session_id TEXT NOT NULL UNIQUE,
  quiz_id TEXT NOT NULL,
  student_id TEXT NOT NULL,
  payload JSONB NOT NULL,
  time_spent_seconds INTEGER NOT NULL,
  submitted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS quiz_submissions_quiz_id_idx ON quiz_submissions (quiz_id);
`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createSubmissionsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS quiz_submissions`)
			return err
		},
	)
}
