package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/domain"
)

type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	OptionID string `json:"optionId"`
}

type jumpPayload struct {
	Index *int `json:"index"`
}

type exitPayload struct {
	Kind attempt.ExitKind `json:"kind"`
}

type exitChoicePayload struct {
	Choice attempt.Choice `json:"choice"`
}

type exitResult struct {
	Decision attempt.Decision `json:"decision"`
	Dialog   bool             `json:"dialog"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		return "quiz_not_found"
	case errors.Is(err, domain.ErrInvalidQuiz):
		return "invalid_quiz"
	case errors.Is(err, domain.ErrTimeExpired):
		return "time_expired"
	case errors.Is(err, domain.ErrSubmitFailed):
		return "submit_failed"
	case errors.Is(err, domain.ErrAttemptLimitReached):
		return "attempt_limit_reached"
	case errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrNotReviewing),
		errors.Is(err, domain.ErrNothingToRetry):
		return "session_not_active"
	default:
		return "bad_request"
	}
}

// deliver queues msg for the writer goroutine and reports false once the
// writer has stopped.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// ServeWS upgrades HTTP requests to websockets and drives the current attempt
// engine of (quizId, studentId). Every change is pushed back as a state message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	studentID := r.URL.Query().Get("studentId")
	if quizID == "" || studentID == "" {
		http.Error(w, "missing quizId or studentId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Engine writes must outlive a dropped connection.
	ctx := context.WithoutCancel(r.Context())

	session, err := h.service.Open(ctx, quizID, studentID, nil)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer h.service.Release(session)

	views, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// Unblocks the read loop.
				conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-views:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: view}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply, err := h.dispatch(ctx, session, inbound)
		if err != nil {
			if !deliver(send, writerDone, errorMessage(err)) {
				break
			}
			continue
		}
		if reply != nil && !deliver(send, writerDone, *reply) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch applies one client message. State changes reach the client through
// the subscription; only exit decisions are answered directly.
func (h *WSHandler) dispatch(ctx context.Context, session *attempt.Session, msg inboundMessage) (*outboundMessage[any], error) {
	switch msg.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.OptionID == "" {
			return nil, errors.New("invalid select payload")
		}
		return nil, session.SelectOption(ctx, payload.OptionID)
	case "next":
		return nil, session.Next()
	case "previous":
		return nil, session.Previous()
	case "jump":
		var payload jumpPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Index == nil {
			return nil, errors.New("invalid jump payload")
		}
		return nil, session.JumpTo(*payload.Index)
	case "toggleReview":
		return nil, session.ToggleReview(ctx)
	case "submit":
		return nil, session.RequestSubmit(ctx)
	case "confirmSubmit":
		return nil, session.ConfirmSubmit(ctx)
	case "cancelReview":
		return nil, session.CancelReview()
	case "retrySubmit":
		return nil, session.Retry(ctx)
	case "exit":
		var payload exitPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, errors.New("invalid exit payload")
		}
		if payload.Kind != attempt.ExitBack && payload.Kind != attempt.ExitUnload {
			return nil, errors.New("unknown exit kind")
		}
		decision := session.AttemptExit(payload.Kind)
		return &outboundMessage[any]{Type: "exit", Payload: exitResult{Decision: decision, Dialog: decision == attempt.DecisionBlock}}, nil
	case "exitChoice":
		var payload exitChoicePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, errors.New("invalid exitChoice payload")
		}
		if payload.Choice != attempt.ChoiceContinue && payload.Choice != attempt.ChoiceLeave {
			return nil, errors.New("unknown exit choice")
		}
		decision := session.ResolveExit(payload.Choice)
		return &outboundMessage[any]{Type: "exit", Payload: exitResult{Decision: decision}}, nil
	default:
		return nil, errors.New("unsupported message type")
	}
}
