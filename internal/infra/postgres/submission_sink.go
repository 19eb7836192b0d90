package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-attempt-service/internal/domain"
)

// SubmissionSink stores terminal submissions for the grader. The unique
// session_id column makes a replayed submission a no-op, so a session resumed
// after a crash between the insert and the local clear is never scored twice.
type SubmissionSink struct {
	pool *pgxpool.Pool
}

func NewSubmissionSink(pool *pgxpool.Pool) *SubmissionSink {
	return &SubmissionSink{pool: pool}
}

func (s *SubmissionSink) SaveSubmission(ctx context.Context, record domain.SubmissionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(record.Submission)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO quiz_submissions (id, session_id, quiz_id, student_id, attempt_number, payload, time_spent_seconds, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
ON CONFLICT (session_id) DO NOTHING`,
		record.ID, record.SessionID, record.QuizID, record.StudentID, record.AttemptNumber, string(payload),
		record.Submission.TimeSpentSeconds, record.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// CountSubmissions returns how many attempts a student has submitted for a quiz.
func (s *SubmissionSink) CountSubmissions(ctx context.Context, quizID, studentID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM quiz_submissions WHERE quiz_id=$1 AND student_id=$2`, quizID, studentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// Submission returns the stored record for a session.
func (s *SubmissionSink) Submission(ctx context.Context, sessionID string) (domain.SubmissionRecord, error) {
	record := domain.SubmissionRecord{SessionID: sessionID}
	var payload []byte
	err := s.pool.QueryRow(ctx, `
SELECT id::text, quiz_id, student_id, attempt_number, payload, submitted_at
FROM quiz_submissions WHERE session_id=$1`, sessionID).
		Scan(&record.ID, &record.QuizID, &record.StudentID, &record.AttemptNumber, &payload, &record.SubmittedAt)
	if err != nil {
		return domain.SubmissionRecord{}, fmt.Errorf("load submission: %w", err)
	}
	if err := json.Unmarshal(payload, &record.Submission); err != nil {
		return domain.SubmissionRecord{}, fmt.Errorf("unmarshal submission: %w", err)
	}
	return record, nil
}
