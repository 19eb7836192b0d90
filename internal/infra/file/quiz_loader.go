package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"quiz-attempt-service/internal/domain"
)

// QuizLoader reads quiz definitions from a directory of YAML files named
// {quizID}.yaml or {quizID}.yml.
type QuizLoader struct {
	dir string
}

func NewQuizLoader(dir string) *QuizLoader {
	return &QuizLoader{dir: dir}
}

func (l *QuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quizID == "" || strings.ContainsAny(quizID, `/\`) || strings.Contains(quizID, "..") {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(l.dir, quizID+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("read quiz %s: %w", path, err)
		}
		var quiz domain.Quiz
		if err := yaml.Unmarshal(data, &quiz); err != nil {
			return domain.Quiz{}, fmt.Errorf("parse quiz %s: %w", path, err)
		}
		if quiz.ID == "" {
			quiz.ID = quizID
		}
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// List returns the ids of every quiz file in the directory.
func (l *QuizLoader) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext == ".yaml" || ext == ".yml" {
			ids = append(ids, strings.TrimSuffix(name, ext))
		}
	}
	return ids, nil
}
