package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// SubmissionSink records submissions in memory. A second write for the same
// session id is ignored, which keeps a resubmitted attempt from being scored
// twice.
type SubmissionSink struct {
	mu      sync.RWMutex
	records map[string]domain.SubmissionRecord
}

func NewSubmissionSink() *SubmissionSink {
	return &SubmissionSink{records: make(map[string]domain.SubmissionRecord)}
}

func (s *SubmissionSink) SaveSubmission(_ context.Context, record domain.SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.SessionID]; exists {
		return nil
	}
	s.records[record.SessionID] = record
	return nil
}

// CountSubmissions returns how many attempts a student has submitted for a quiz.
func (s *SubmissionSink) CountSubmissions(_ context.Context, quizID, studentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, record := range s.records {
		if record.QuizID == quizID && record.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

// Submission returns the stored record for a session.
func (s *SubmissionSink) Submission(sessionID string) (domain.SubmissionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[sessionID]
	return record, ok
}

// Len returns the number of stored submissions.
func (s *SubmissionSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
