package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quiz-editor/internal/app"
)

// SessionObserver is told when editor connections open and close.
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
}

type WSHandler struct {
	sessions app.SessionRepository
	observer SessionObserver
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions app.SessionRepository, observer SessionObserver) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		observer: observer,
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

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type statePayload struct {
	SessionID string `json:"sessionId"`
	app.State
}

type errorPayload struct {
	Command string `json:"command,omitempty"`
	Message string `json:"message"`
}

// ServeWS upgrades the request and binds the connection to an editor session.
// A ?session= id resumes an existing session; otherwise a new one is created.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if h.observer != nil {
		h.observer.SessionOpened()
		defer h.observer.SessionClosed()
	}

	editor := h.sessions.GetOrCreate(sessionID)
	defer h.sessions.DeleteIfIdle(sessionID)

	updates, cancel := editor.Subscribe()
	defer cancel()

	c := &client{
		editor: editor,
		send:   make(chan outboundMessage, 16),
		done:   make(chan struct{}),
		// Remote calls outlive the socket; the editor discards results
		// for drafts that were replaced in the meantime.
		ctx: context.WithoutCancel(r.Context()),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case st, ok := <-updates:
				if !ok {
					return
				}
				c.reply(outboundMessage{Type: "state", Payload: statePayload{SessionID: sessionID, State: st}})
			case <-c.done:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		c.dispatch(inbound)
	}

	close(c.done)
	<-writerDone
}

type client struct {
	editor *app.Editor
	send   chan outboundMessage
	done   chan struct{}
	ctx    context.Context
}

func (c *client) reply(msg outboundMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

func (c *client) fail(command string, err error) {
	c.reply(outboundMessage{Type: "error", Payload: errorPayload{Command: command, Message: err.Error()}})
}

// async runs a remote operation without blocking the read loop.
func (c *client) async(command string, fn func(ctx context.Context) error) {
	go func() {
		if err := fn(c.ctx); err != nil {
			c.fail(command, err)
		}
	}()
}

var errUnsupported = errors.New("unsupported message type")

func (c *client) dispatch(in inboundMessage) {
	var p commandPayload
	if len(in.Payload) > 0 {
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			c.fail(in.Type, errors.New("invalid payload"))
			return
		}
	}

	e := c.editor
	var err error
	switch in.Type {
	case "refresh":
		c.async(in.Type, e.Refresh)
	case "beginEdit":
		err = e.BeginEdit(p.QuizID)
	case "cancelEdit":
		err = e.CancelEdit()
	case "save":
		c.async(in.Type, func(ctx context.Context) error {
			_, err := e.Save(ctx)
			return err
		})
	case "setField":
		err = e.SetField(p.path(), p.Value)
	case "addQuestion":
		_, err = e.AddQuestion()
	case "addAnswer":
		_, err = e.AddAnswer(p.QuestionIndex)
	case "removeQuestion":
		err = e.RemoveQuestion(p.QuestionID)
	case "removeAnswer":
		err = e.RemoveAnswer(p.QuestionID, p.AnswerID)
	case "commitQuestion":
		c.async(in.Type, func(ctx context.Context) error {
			return e.CommitQuestion(ctx, p.QuestionID)
		})
	case "commitAnswer":
		c.async(in.Type, func(ctx context.Context) error {
			return e.CommitAnswer(ctx, p.QuestionID, p.AnswerID)
		})
	case "deleteQuestion":
		c.async(in.Type, func(ctx context.Context) error {
			return e.DeleteQuestion(ctx, p.QuestionID)
		})
	case "deleteAnswer":
		c.async(in.Type, func(ctx context.Context) error {
			return e.DeleteAnswer(ctx, p.QuestionID, p.AnswerID)
		})
	case "createQuiz":
		quiz := p.newQuiz()
		c.async(in.Type, func(ctx context.Context) error {
			_, err := e.CreateQuiz(ctx, quiz)
			return err
		})
	case "deleteQuiz":
		c.async(in.Type, func(ctx context.Context) error {
			return e.DeleteQuiz(ctx, p.QuizID)
		})
	default:
		err = errUnsupported
	}
	if err != nil {
		c.fail(in.Type, err)
	}
}
