package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

const addAttemptNumberSQL = `
ALTER TABLE quiz_submissions ADD COLUMN IF NOT EXISTS attempt_number INTEGER NOT NULL DEFAULT 1;
CREATE INDEX IF NOT EXISTS quiz_submissions_student_idx ON quiz_submissions (quiz_id, student_id);
`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, addAttemptNumberSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
DROP INDEX IF EXISTS quiz_submissions_student_idx;
ALTER TABLE quiz_submissions DROP COLUMN IF EXISTS attempt_number;`)
			return err
		},
	)
}
