package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// NewRouter mounts the websocket endpoint, the health check and the attempt
// summary API.
func NewRouter(service *app.AttemptService, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", NewWSHandler(service).ServeWS)

	r.Route("/api", func(ar chi.Router) {
		ar.Use(middleware.Timeout(15 * time.Second))
		ar.Get("/sessions/{quizID}/{studentID}", summaryHandler(service))
	})
	return r
}

func summaryHandler(service *app.AttemptService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		studentID := chi.URLParam(r, "studentID")
		summary, err := service.Summarize(r.Context(), quizID, studentID)
		if errors.Is(err, domain.ErrQuizNotFound) {
			http.Error(w, "quiz not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("summarize %s/%s: %v", quizID, studentID, err)
			http.Error(w, "summary failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(summary)
	}
}
