package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/infra/memory"
)

type testServer struct {
	server *httptest.Server
	sink   *memory.SubmissionSink
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	sink := memory.NewSubmissionSink()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(memory.SampleQuizzes()), time.Minute)
	state := attempt.NewStateStore(memory.NewStateBackend())
	service := app.NewAttemptService(memory.NewSessionStore(), quizzes, state, sink, app.Options{SubmitTimeout: time.Second})
	server := httptest.NewServer(NewRouter(service, nil))
	t.Cleanup(server.Close)
	return testServer{server: server, sink: sink}
}

func (s testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wireMessage) bool) wireMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func readState(t *testing.T, conn *websocket.Conn, match func(attempt.View) bool) attempt.View {
	t.Helper()
	var view attempt.View
	readUntil(t, conn, func(msg wireMessage) bool {
		if msg.Type != "state" {
			return false
		}
		if err := json.Unmarshal(msg.Payload, &view); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		return match(view)
	})
	return view
}

func anyState(attempt.View) bool { return true }

func TestWebSocketAttemptFlow(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "quizId=sample&studentId=u1")

	initial := readState(t, conn, anyState)
	if initial.Status != attempt.StatusInProgress || initial.TotalQuestions != 4 || initial.Question == nil {
		t.Fatalf("unexpected initial view %+v", initial)
	}
	if !initial.GuardArmed {
		t.Fatalf("guard should be armed while in progress")
	}

	optionID := initial.Question.Options[0].ID
	send(t, conn, "select", map[string]any{"optionId": optionID})
	selected := readState(t, conn, func(v attempt.View) bool { return v.Counts.Answered == 1 })
	if !selected.Question.Options[0].Selected || !selected.Palette[0].Answered {
		t.Fatalf("expected first option selected, got %+v", selected.Question.Options)
	}

	send(t, conn, "jump", map[string]any{"index": 2})
	readState(t, conn, func(v attempt.View) bool { return v.CurrentIndex == 2 })

	send(t, conn, "exit", map[string]any{"kind": "back"})
	exit := readUntil(t, conn, func(m wireMessage) bool { return m.Type == "exit" })
	var result exitResult
	if err := json.Unmarshal(exit.Payload, &result); err != nil {
		t.Fatalf("decode exit: %v", err)
	}
	if result.Decision != attempt.DecisionBlock || !result.Dialog {
		t.Fatalf("expected blocked back navigation with dialog, got %+v", result)
	}

	send(t, conn, "exitChoice", map[string]any{"choice": "continue"})
	readState(t, conn, func(v attempt.View) bool { return !v.ExitDialog })

	send(t, conn, "submit", nil)
	readState(t, conn, func(v attempt.View) bool { return v.Status == attempt.StatusReviewing })

	send(t, conn, "confirmSubmit", nil)
	done := readState(t, conn, func(v attempt.View) bool { return v.Status == attempt.StatusSubmitted })
	if done.GuardArmed {
		t.Fatalf("guard should be disarmed after submit")
	}

	record, ok := ts.sink.Submission("sample:u1:1")
	if !ok {
		t.Fatalf("expected submission recorded")
	}
	if len(record.Submission.Responses) != 4 {
		t.Fatalf("expected 4 responses, got %d", len(record.Submission.Responses))
	}

	again := ts.dial(t, "quizId=sample&studentId=u1")
	msg := readUntil(t, again, func(m wireMessage) bool { return true })
	var payload errorPayload
	if msg.Type != "error" || json.Unmarshal(msg.Payload, &payload) != nil || payload.Code != "attempt_limit_reached" {
		t.Fatalf("expected attempt_limit_reached, got %s %s", msg.Type, msg.Payload)
	}
}

func TestWebSocketRejectsEditsWithError(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "quizId=sample&studentId=u2")
	readState(t, conn, anyState)

	send(t, conn, "select", map[string]any{"optionId": "missing"})
	msg := readUntil(t, conn, func(m wireMessage) bool { return m.Type == "error" })
	var payload errorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Code != "bad_request" {
		t.Fatalf("expected bad_request, got %+v", payload)
	}

	send(t, conn, "cancelReview", nil)
	msg = readUntil(t, conn, func(m wireMessage) bool { return m.Type == "error" })
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Code != "session_not_active" {
		t.Fatalf("expected session_not_active, got %+v", payload)
	}
}

func TestWebSocketUnknownQuiz(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "quizId=missing&studentId=u1")

	msg := readUntil(t, conn, func(m wireMessage) bool { return true })
	if msg.Type != "error" {
		t.Fatalf("expected error, got %s", msg.Type)
	}
	var payload errorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Code != "quiz_not_found" {
		t.Fatalf("expected quiz_not_found, got %+v", payload)
	}
}

func TestWebSocketRequiresIdentifiers(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.server.URL + "/ws?quizId=sample")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSummaryAndHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected healthz %d %q", resp.StatusCode, body)
	}

	conn := ts.dial(t, "quizId=sample&studentId=u3")
	initial := readState(t, conn, anyState)
	send(t, conn, "select", map[string]any{"optionId": initial.Question.Options[1].ID})
	readState(t, conn, func(v attempt.View) bool { return v.Counts.Answered == 1 })

	resp, err = http.Get(ts.server.URL + "/api/sessions/sample/u3")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	defer resp.Body.Close()
	var summary app.Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if !summary.Live || !summary.Resumable || summary.Answered != 1 || summary.SessionID != "sample:u3:1" || summary.AttemptLimit != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	missing, err := http.Get(ts.server.URL + "/api/sessions/missing/u3")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quiz, got %d", missing.StatusCode)
	}
}

func TestDeliverStopsWhenWriterIsGone(t *testing.T) {
	queue := make(chan outboundMessage[any], 1)
	writerDone := make(chan struct{})
	if !deliver(queue, writerDone, outboundMessage[any]{Type: "state"}) {
		t.Fatalf("expected delivery while the writer runs")
	}

	close(writerDone)
	result := make(chan bool, 1)
	go func() {
		result <- deliver(queue, writerDone, errorMessage(errors.New("late")))
	}()
	select {
	case ok := <-result:
		if ok {
			t.Fatalf("full queue with no writer must not report delivery")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("deliver blocked after the writer stopped")
	}
}

func TestWebSocketHandlerReturnsWhenClientVanishes(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "quizId=practice&studentId=u4")
	readState(t, conn, anyState)

	// Flood the handler with failing commands, then drop the connection
	// without reading replies.
	for i := 0; i < 64; i++ {
		send(t, conn, "cancelReview", nil)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(ts.server.URL + "/api/sessions/practice/u4")
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		var summary app.Summary
		err = json.NewDecoder(resp.Body).Decode(&summary)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		if !summary.Live {
			if !summary.Resumable {
				t.Fatalf("released attempt should stay resumable, got %+v", summary)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("handler did not release the engine after the client left")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
