package memory

import "quiz-attempt-service/internal/domain"

// SampleQuizzes is the built-in catalogue served when no quiz source is configured.
func SampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"sample": {
			ID:    "sample",
			Title: "General knowledge warm-up",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Type:   domain.QuestionSingleChoice,
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4"},
						{ID: "o3", Text: "5"},
						{ID: "o4", Text: "22"},
					},
					Marks: 1,
				},
				{
					ID:     "q2",
					Type:   domain.QuestionMultipleChoice,
					Prompt: "Which of these are prime numbers?",
					Options: []domain.Option{
						{ID: "o1", Text: "2"},
						{ID: "o2", Text: "9"},
						{ID: "o3", Text: "11"},
						{ID: "o4", Text: "15"},
					},
					Marks:         2,
					NegativeMarks: 0.5,
				},
				{
					ID:     "q3",
					Type:   domain.QuestionTrueFalse,
					Prompt: "The Pacific is the largest ocean.",
					Options: []domain.Option{
						{ID: "true", Text: "True"},
						{ID: "false", Text: "False"},
					},
					Marks: 1,
				},
				{
					ID:     "q4",
					Type:   domain.QuestionSingleChoice,
					Prompt: "Which planet is closest to the sun?",
					Options: []domain.Option{
						{ID: "o1", Text: "Venus"},
						{ID: "o2", Text: "Mercury"},
						{ID: "o3", Text: "Mars"},
					},
					Marks:         1,
					NegativeMarks: 0.25,
				},
			},
			Settings: domain.Settings{
				TotalDuration:    10,
				ShuffleQuestions: true,
				ShuffleOptions:   true,
				AllowReview:      true,
				AttemptLimit:     1,
			},
		},
		"practice": {
			ID:    "practice",
			Title: "Practice round",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Type:   domain.QuestionSingleChoice,
					Prompt: "How many minutes are in an hour?",
					Options: []domain.Option{
						{ID: "o1", Text: "60"},
						{ID: "o2", Text: "100"},
						{ID: "o3", Text: "24"},
					},
					Marks: 1,
				},
				{
					ID:     "q2",
					Type:   domain.QuestionTrueFalse,
					Prompt: "A week has seven days.",
					Options: []domain.Option{
						{ID: "true", Text: "True"},
						{ID: "false", Text: "False"},
					},
					Marks: 1,
				},
			},
			Settings: domain.Settings{TotalDuration: 5},
		},
	}
}
