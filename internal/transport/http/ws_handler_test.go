package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-editor/internal/app"
	"quiz-editor/internal/domain"
	"quiz-editor/internal/infra/memory"
)

type wireState struct {
	SessionID string        `json:"sessionId"`
	Phase     app.Phase     `json:"phase"`
	Draft     *domain.Quiz  `json:"draft"`
	Canonical []domain.Quiz `json:"canonical"`
	Error     string        `json:"error"`
	Pending   int           `json:"pending"`
}

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type countingObserver struct {
	opened, closed chan struct{}
}

func (o *countingObserver) SessionOpened() { o.opened <- struct{}{} }
func (o *countingObserver) SessionClosed() { o.closed <- struct{}{} }

func newGateway(t *testing.T) (*memory.QuizStore, *memory.SessionStore, string) {
	t.Helper()
	store := memory.NewQuizStore(sampleQuiz())
	sessions := memory.NewSessionStore(func(string) *app.Editor {
		return app.NewEditor(store, nil, nil)
	}, time.Minute)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(sessions, nil).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return store, sessions, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// waitState reads until a state message satisfies ok.
func waitState(t *testing.T, conn *websocket.Conn, ok func(wireState) bool) wireState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if msg.Type != "state" {
			continue
		}
		var st wireState
		if err := json.Unmarshal(msg.Payload, &st); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		if ok(st) {
			return st
		}
	}
}

func waitError(t *testing.T, conn *websocket.Conn) errorPayload {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if msg.Type != "error" {
			continue
		}
		var p errorPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		return p
	}
}

func TestWebSocketEditAndSaveFlow(t *testing.T) {
	store, _, url := newGateway(t)
	conn := dial(t, url)
	defer conn.Close()

	first := waitState(t, conn, func(wireState) bool { return true })
	if first.SessionID == "" || first.Phase != app.PhaseIdle {
		t.Fatalf("unexpected initial state: %+v", first)
	}

	send(t, conn, "refresh", nil)
	waitState(t, conn, func(st wireState) bool { return len(st.Canonical) == 1 })

	send(t, conn, "beginEdit", map[string]any{"quizId": 1})
	waitState(t, conn, func(st wireState) bool { return st.Phase == app.PhaseEditing && st.Draft != nil })

	send(t, conn, "setField", map[string]any{"field": "title", "value": "Arithmetic II"})
	send(t, conn, "addQuestion", nil)
	st := waitState(t, conn, func(st wireState) bool {
		return st.Draft != nil && st.Draft.Title == "Arithmetic II" && len(st.Draft.Questions) == 2
	})
	newQuestion := st.Draft.Questions[1]
	if !newQuestion.ID.IsProvisional() {
		t.Fatalf("expected provisional id for new question, got %s", newQuestion.ID)
	}

	send(t, conn, "setField", map[string]any{"field": "questionText", "questionId": newQuestion.ID, "value": "5*5?"})
	send(t, conn, "addAnswer", map[string]any{"questionIndex": 1})
	waitState(t, conn, func(st wireState) bool {
		return st.Draft != nil && len(st.Draft.Questions) == 2 && len(st.Draft.Questions[1].Answers) == 1
	})

	send(t, conn, "save", nil)
	saved := waitState(t, conn, func(st wireState) bool { return st.Phase == app.PhaseIdle && st.Draft == nil })
	if saved.Canonical[0].Title != "Arithmetic II" || len(saved.Canonical[0].Questions) != 2 {
		t.Fatalf("canonical not refreshed after save: %+v", saved.Canonical)
	}

	quizzes, _ := store.ListQuizzes(context.Background())
	created := quizzes[0].Questions[1]
	if created.Text != "5*5?" || !created.ID.IsDurable() || len(created.Answers) != 1 {
		t.Fatalf("question not created remotely: %+v", created)
	}
}

func TestWebSocketCommitAnswerCorrect(t *testing.T) {
	store, _, url := newGateway(t)
	conn := dial(t, url)
	defer conn.Close()

	send(t, conn, "refresh", nil)
	waitState(t, conn, func(st wireState) bool { return len(st.Canonical) == 1 })
	send(t, conn, "beginEdit", map[string]any{"quizId": 1})
	send(t, conn, "setField", map[string]any{"field": "answerCorrect", "questionId": 10, "answerId": 100, "value": true})
	send(t, conn, "commitAnswer", map[string]any{"questionId": 10, "answerId": 100})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		quizzes, _ := store.ListQuizzes(context.Background())
		if quizzes[0].Questions[0].Answers[0].IsCorrect {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("answer flag was not committed")
}

func TestWebSocketResumesEditingSession(t *testing.T) {
	_, sessions, url := newGateway(t)
	conn := dial(t, url)

	first := waitState(t, conn, func(wireState) bool { return true })
	send(t, conn, "refresh", nil)
	waitState(t, conn, func(st wireState) bool { return len(st.Canonical) == 1 })
	send(t, conn, "beginEdit", map[string]any{"quizId": 1})
	waitState(t, conn, func(st wireState) bool { return st.Draft != nil })
	conn.Close()

	resumed := dial(t, url+"?session="+first.SessionID)
	defer resumed.Close()
	st := waitState(t, resumed, func(wireState) bool { return true })
	if st.SessionID != first.SessionID || st.Draft == nil || st.Draft.ID != domain.DurableID(1) {
		t.Fatalf("expected resumed draft, got %+v", st)
	}
	if _, ok := sessions.Get(first.SessionID); !ok {
		t.Fatalf("editing session should have survived disconnect")
	}
}

func TestWebSocketReportsCommandErrors(t *testing.T) {
	_, _, url := newGateway(t)
	conn := dial(t, url)
	defer conn.Close()

	send(t, conn, "setField", map[string]any{"field": "title", "value": "x"})
	if p := waitError(t, conn); p.Command != "setField" || p.Message != domain.ErrNotEditing.Error() {
		t.Fatalf("unexpected error payload: %+v", p)
	}

	send(t, conn, "answer", nil)
	if p := waitError(t, conn); p.Message != errUnsupported.Error() {
		t.Fatalf("unexpected error payload: %+v", p)
	}
}

func TestWebSocketRejectsMalformedSessionID(t *testing.T) {
	_, _, url := newGateway(t)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?session=not-a-uuid", nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func TestWebSocketObservesSessions(t *testing.T) {
	store := memory.NewQuizStore(sampleQuiz())
	sessions := memory.NewSessionStore(func(string) *app.Editor { return app.NewEditor(store, nil, nil) }, time.Minute)
	observer := &countingObserver{opened: make(chan struct{}, 1), closed: make(chan struct{}, 1)}
	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(sessions, observer).ServeWS))
	defer server.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(server.URL, "http"))
	select {
	case <-observer.opened:
	case <-time.After(5 * time.Second):
		t.Fatalf("session open not observed")
	}
	conn.Close()
	select {
	case <-observer.closed:
	case <-time.After(5 * time.Second):
		t.Fatalf("session close not observed")
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:         domain.DurableID(1),
		Title:      "Arithmetic",
		Difficulty: domain.Easy,
		Questions: []domain.Question{{
			ID:     domain.DurableID(10),
			Text:   "2+2?",
			QuizID: domain.DurableID(1),
			Answers: []domain.Answer{
				{ID: domain.DurableID(100), Text: "3", QuestionID: domain.DurableID(10)},
				{ID: domain.DurableID(101), Text: "4", IsCorrect: true, QuestionID: domain.DurableID(10)},
			},
		}},
	}
}
