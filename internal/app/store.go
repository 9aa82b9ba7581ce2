package app

import (
	"context"

	"quiz-editor/internal/domain"
)

// QuizStore is the remote quiz store the editor persists to (HTTP API, or a
// local backend in development and tests). Every id argument must be durable.
type QuizStore interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	CreateQuiz(ctx context.Context, quiz domain.NewQuiz) (domain.Quiz, error)
	UpdateQuiz(ctx context.Context, id domain.ID, fields domain.QuizFields) error
	DeleteQuiz(ctx context.Context, id domain.ID) error
	CreateQuestion(ctx context.Context, question domain.NewQuestion) (domain.Question, error)
	UpdateQuestion(ctx context.Context, id domain.ID, text string, quizID domain.ID) error
	DeleteQuestion(ctx context.Context, id domain.ID) error
	UpdateAnswer(ctx context.Context, id domain.ID, text string, isCorrect bool, questionID domain.ID) error
	DeleteAnswer(ctx context.Context, id domain.ID) error
}

// Reloader is implemented by stores that cache the quiz list. ReloadQuizzes
// reads past the cache so the result reflects every write that completed
// before the call.
type Reloader interface {
	ReloadQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// SessionRepository abstracts how editor sessions are kept (in-memory, Redis, etc).
// Each GetOrCreate by a connection is paired with one DeleteIfIdle when it closes.
type SessionRepository interface {
	GetOrCreate(sessionID string) *Editor
	Get(sessionID string) (*Editor, bool)
	DeleteIfIdle(sessionID string)
}

// SessionReaper is implemented by repositories that drop sessions left with
// an open draft after their connection went away.
type SessionReaper interface {
	Reap(ctx context.Context) int
}

// EditorFactory builds the editor for a new session.
type EditorFactory func(sessionID string) *Editor

// Recorder observes outcomes of remote calls issued by the editor.
type Recorder interface {
	Commit(entity string, err error)
	Delete(entity string, err error)
	Save(created int, err error)
}

type noopRecorder struct{}

func (noopRecorder) Commit(string, error) {}
func (noopRecorder) Delete(string, error) {}
func (noopRecorder) Save(int, error) {}
