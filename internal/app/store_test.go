package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"quiz-editor/internal/app"
	"quiz-editor/internal/domain"
	"quiz-editor/internal/infra/memory"
)

var errBoom = &domain.RemoteError{Op: "test", Status: 503, Kind: domain.ErrTransport, Message: "backend unavailable"}

// recordingStore wraps the in-memory store, records calls and injects failures.
type recordingStore struct {
	*memory.QuizStore

	mu            sync.Mutex
	calls         []string
	creates       []domain.NewQuestion
	questionEdits []string
	answerEdits   []answerEdit
	failures      map[string][]error

	// gate, when set, blocks UpdateQuestion until it is closed; entered is
	// signalled once the call is waiting.
	gate    chan struct{}
	entered chan struct{}
	// listGate and listEntered do the same for ListQuizzes.
	listGate    chan struct{}
	listEntered chan struct{}
}

type answerEdit struct {
	ID        domain.ID
	Text      string
	IsCorrect bool
}

func newRecordingStore(seed ...domain.Quiz) *recordingStore {
	return &recordingStore{
		QuizStore: memory.NewQuizStore(seed...),
		failures:  make(map[string][]error),
	}
}

// failNext queues outcomes for the next calls of op; nil entries succeed.
func (s *recordingStore) failNext(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
}

func (s *recordingStore) record(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	s.failures[op] = queue[1:]
	return queue[0]
}

func (s *recordingStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (s *recordingStore) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	if s.listEntered != nil {
		s.listEntered <- struct{}{}
	}
	if s.listGate != nil {
		<-s.listGate
	}
	if err := s.record("list"); err != nil {
		return nil, err
	}
	return s.QuizStore.ListQuizzes(ctx)
}

func (s *recordingStore) UpdateQuiz(ctx context.Context, id domain.ID, fields domain.QuizFields) error {
	if err := s.record("updateQuiz"); err != nil {
		return err
	}
	return s.QuizStore.UpdateQuiz(ctx, id, fields)
}

func (s *recordingStore) CreateQuestion(ctx context.Context, q domain.NewQuestion) (domain.Question, error) {
	if err := s.record("createQuestion"); err != nil {
		return domain.Question{}, err
	}
	s.mu.Lock()
	s.creates = append(s.creates, q)
	s.mu.Unlock()
	return s.QuizStore.CreateQuestion(ctx, q)
}

func (s *recordingStore) UpdateQuestion(ctx context.Context, id domain.ID, text string, quizID domain.ID) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	if err := s.record("updateQuestion"); err != nil {
		return err
	}
	s.mu.Lock()
	s.questionEdits = append(s.questionEdits, text)
	s.mu.Unlock()
	return s.QuizStore.UpdateQuestion(ctx, id, text, quizID)
}

func (s *recordingStore) DeleteQuestion(ctx context.Context, id domain.ID) error {
	if err := s.record("deleteQuestion"); err != nil {
		return err
	}
	return s.QuizStore.DeleteQuestion(ctx, id)
}

func (s *recordingStore) UpdateAnswer(ctx context.Context, id domain.ID, text string, isCorrect bool, questionID domain.ID) error {
	s.mu.Lock()
	s.answerEdits = append(s.answerEdits, answerEdit{ID: id, Text: text, IsCorrect: isCorrect})
	s.mu.Unlock()
	if err := s.record("updateAnswer"); err != nil {
		return err
	}
	return s.QuizStore.UpdateAnswer(ctx, id, text, isCorrect, questionID)
}

func (s *recordingStore) DeleteAnswer(ctx context.Context, id domain.ID) error {
	if err := s.record("deleteAnswer"); err != nil {
		return err
	}
	return s.QuizStore.DeleteAnswer(ctx, id)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:          domain.DurableID(1),
		Title:       "Arithmetic",
		Description: "Warm-up sums",
		Difficulty:  domain.Easy,
		Questions: []domain.Question{
			{
				ID:     domain.DurableID(10),
				Text:   "What is 2 + 2?",
				QuizID: domain.DurableID(1),
				Answers: []domain.Answer{
					{ID: domain.DurableID(100), Text: "3", IsCorrect: false, QuestionID: domain.DurableID(10)},
					{ID: domain.DurableID(101), Text: "4", IsCorrect: true, QuestionID: domain.DurableID(10)},
				},
			},
		},
	}
}

// newEditingSession returns an editor with quiz 1 open for editing.
func newEditingSession(store *recordingStore, ids *app.Allocator) *app.Editor {
	editor := app.NewEditor(store, ids, nil)
	if err := editor.Refresh(context.Background()); err != nil {
		panic(err)
	}
	if err := editor.BeginEdit(domain.DurableID(1)); err != nil {
		panic(err)
	}
	return editor
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func isTransport(err error) bool {
	return errors.Is(err, domain.ErrTransport)
}

// heldListStore holds the next ListQuizzes, after taking its snapshot, once
// holdNext arms it.
type heldListStore struct {
	*memory.QuizStore

	mu      sync.Mutex
	release chan struct{}
	held    chan struct{}
}

func (s *heldListStore) holdNext() (held <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release = make(chan struct{})
	s.held = make(chan struct{})
	return s.held, func() { close(s.release) }
}

func (s *heldListStore) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := s.QuizStore.ListQuizzes(ctx)
	s.mu.Lock()
	release, held := s.release, s.held
	s.release, s.held = nil, nil
	s.mu.Unlock()
	if release != nil {
		close(held)
		<-release
	}
	return quizzes, err
}
