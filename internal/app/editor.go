package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"quiz-editor/internal/domain"
)

// Phase is the editor's position in the edit/save cycle.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseEditing          Phase = "editing"
	PhaseSaving           Phase = "saving"
	PhaseEditingWithError Phase = "editingWithError"
)

// State is an observable snapshot of the editor.
type State struct {
	Phase     Phase         `json:"phase"`
	Draft     *domain.Quiz  `json:"draft,omitempty"`
	Canonical []domain.Quiz `json:"canonical"`
	Error     string        `json:"error,omitempty"`
	Pending   int           `json:"pending"`
}

// SaveResult summarizes a successful save.
type SaveResult struct {
	Created     []domain.Question
	Unpersisted []domain.Answer
}

// Editor owns one editing session: the canonical quiz list, at most one draft,
// and the remote calls that keep them in step.
type Editor struct {
	store    QuizStore
	ids      *Allocator
	recorder Recorder

	mu          sync.Mutex
	phase       Phase
	canonical   []domain.Quiz
	draft       *Draft
	generation  uint64
	lastErr     string
	pending     int
	subscribers map[chan State]struct{}
}

// NewEditor builds an idle editor. A nil recorder discards observations.
func NewEditor(store QuizStore, ids *Allocator, recorder Recorder) *Editor {
	if ids == nil {
		ids = NewAllocator()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Editor{
		store:       store,
		ids:         ids,
		recorder:    recorder,
		phase:       PhaseIdle,
		subscribers: make(map[chan State]struct{}),
	}
}

// Snapshot returns the current observable state.
func (e *Editor) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Phase returns the current phase.
func (e *Editor) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// IsIdle reports whether no draft is open.
func (e *Editor) IsIdle() bool {
	return e.Phase() == PhaseIdle
}

// Refresh replaces the canonical snapshot with the store's quiz list.
func (e *Editor) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.phase != PhaseIdle {
		e.mu.Unlock()
		return domain.ErrAlreadyEditing
	}
	e.mu.Unlock()

	quizzes, err := e.reloadQuizzes(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.reportLocked("fetch quizzes", err)
		e.broadcastLocked()
		return err
	}
	e.canonical = quizzes
	e.lastErr = ""
	e.broadcastLocked()
	return nil
}

// BeginEdit opens a draft of the canonical quiz with the given id, replacing
// any draft already open.
func (e *Editor) BeginEdit(quizID domain.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == PhaseSaving {
		return domain.ErrSaveInProgress
	}
	quiz, ok := domain.FindQuiz(e.canonical, quizID)
	if !ok {
		return fmt.Errorf("quiz %s: %w", quizID, domain.ErrQuizNotFound)
	}
	e.generation++
	e.draft = newDraft(e.generation, quiz, e.ids)
	e.phase = PhaseEditing
	e.lastErr = ""
	e.broadcastLocked()
	return nil
}

// CancelEdit discards the draft; the canonical snapshot is left untouched.
func (e *Editor) CancelEdit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == PhaseSaving {
		return domain.ErrSaveInProgress
	}
	e.discardLocked()
	e.broadcastLocked()
	return nil
}

// SetField applies a scalar edit to the draft.
func (e *Editor) SetField(path domain.Path, value any) error {
	return e.mutate(func(d *Draft) error {
		return d.SetField(path, value)
	})
}

// AddQuestion appends a new question to the draft.
func (e *Editor) AddQuestion() (domain.Question, error) {
	var q domain.Question
	err := e.mutate(func(d *Draft) error {
		q = d.AddQuestion()
		return nil
	})
	return q, err
}

// AddAnswer appends a new answer to the question at questionIndex.
func (e *Editor) AddAnswer(questionIndex int) (domain.Answer, error) {
	var a domain.Answer
	err := e.mutate(func(d *Draft) error {
		var err error
		a, err = d.AddAnswer(questionIndex)
		return err
	})
	return a, err
}

// RemoveQuestion drops a question from the draft only. Absent ids are a no-op.
func (e *Editor) RemoveQuestion(questionID domain.ID) error {
	return e.mutate(func(d *Draft) error {
		d.RemoveQuestion(questionID)
		return nil
	})
}

// RemoveAnswer drops an answer from the draft only. Absent ids are a no-op.
func (e *Editor) RemoveAnswer(questionID, answerID domain.ID) error {
	return e.mutate(func(d *Draft) error {
		d.RemoveAnswer(questionID, answerID)
		return nil
	})
}

func (e *Editor) mutate(fn func(*Draft) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.editableDraftLocked()
	if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		return err
	}
	e.broadcastLocked()
	return nil
}

// Save reconciles the draft with the store: the quiz fields are updated, every
// question unknown when editing began is created in draft order, and the
// canonical snapshot is refetched. On failure the draft stays open for retry;
// creates that already succeeded are kept.
func (e *Editor) Save(ctx context.Context) (SaveResult, error) {
	e.mu.Lock()
	d, err := e.editableDraftLocked()
	if err != nil {
		e.mu.Unlock()
		return SaveResult{}, err
	}
	gen := d.generation
	quizID := d.quiz.ID
	fields := d.quiz.Fields()
	fresh := d.NewQuestions()
	e.phase = PhaseSaving
	e.lastErr = ""
	e.broadcastLocked()
	e.mu.Unlock()

	var result SaveResult
	if err := e.store.UpdateQuiz(ctx, quizID, fields); err != nil {
		return result, e.failSave(gen, result, fmt.Errorf("update quiz %s: %w", quizID, err))
	}

	for _, q := range fresh {
		created, err := e.store.CreateQuestion(ctx, domain.NewQuestionFrom(quizID, q))
		if err != nil {
			return result, e.failSave(gen, result, fmt.Errorf("create question %s: %w", q.ID, err))
		}
		result.Created = append(result.Created, created)

		e.mu.Lock()
		if e.draft != nil && e.draft.generation == gen {
			e.draft.rebind(q.ID, created)
		}
		e.mu.Unlock()
	}

	quizzes, err := e.reloadQuizzes(ctx)
	if err != nil {
		return result, e.failSave(gen, result, fmt.Errorf("refetch quizzes: %w", err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft != nil && e.draft.generation == gen {
		result.Unpersisted = e.draft.UnpersistedAnswers()
		e.discardLocked()
	}
	e.canonical = quizzes
	e.recorder.Save(len(result.Created), nil)
	for _, a := range result.Unpersisted {
		log.Printf("answer %s on question %s was never persisted: no create route for answers", a.ID, a.QuestionID)
	}
	e.broadcastLocked()
	return result, nil
}

func (e *Editor) failSave(gen uint64, result SaveResult, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder.Save(len(result.Created), err)
	if e.draft != nil && e.draft.generation == gen {
		e.phase = PhaseEditingWithError
		e.reportLocked("save quiz", err)
	} else {
		log.Printf("save quiz (abandoned draft): %v", err)
	}
	e.broadcastLocked()
	return err
}

// CreateQuiz runs the quiz creation path and appends the result to the
// canonical snapshot.
func (e *Editor) CreateQuiz(ctx context.Context, quiz domain.NewQuiz) (domain.Quiz, error) {
	if !quiz.Difficulty.Valid() {
		return domain.Quiz{}, domain.ErrInvalidDifficulty
	}
	created, err := e.store.CreateQuiz(ctx, quiz)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.reportLocked("create quiz", err)
		e.broadcastLocked()
		return domain.Quiz{}, err
	}
	next := make([]domain.Quiz, 0, len(e.canonical)+1)
	next = append(next, e.canonical...)
	e.canonical = append(next, created)
	e.broadcastLocked()
	return created, nil
}

// DeleteQuiz removes a quiz remotely and from the canonical snapshot.
func (e *Editor) DeleteQuiz(ctx context.Context, quizID domain.ID) error {
	e.mu.Lock()
	if e.draft != nil && e.draft.quiz.ID == quizID {
		e.mu.Unlock()
		return domain.ErrQuizInUse
	}
	e.mu.Unlock()

	err := e.store.DeleteQuiz(ctx, quizID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder.Delete("quiz", err)
	if err != nil {
		e.reportLocked("delete quiz", err)
		e.broadcastLocked()
		return err
	}
	next := make([]domain.Quiz, 0, len(e.canonical))
	for _, q := range e.canonical {
		if q.ID != quizID {
			next = append(next, q)
		}
	}
	e.canonical = next
	e.broadcastLocked()
	return nil
}

// Subscribe returns a channel that receives state snapshots, starting with the
// current one. The caller must invoke the returned cancel function.
func (e *Editor) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	ch <- e.snapshotLocked()
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

// reloadQuizzes fetches the list the editor adopts as canonical, skipping any
// cache in front of the store.
func (e *Editor) reloadQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	if r, ok := e.store.(Reloader); ok {
		return r.ReloadQuizzes(ctx)
	}
	return e.store.ListQuizzes(ctx)
}

func (e *Editor) editableDraftLocked() (*Draft, error) {
	switch {
	case e.phase == PhaseSaving:
		return nil, domain.ErrSaveInProgress
	case e.draft == nil:
		return nil, domain.ErrNotEditing
	}
	return e.draft, nil
}

func (e *Editor) discardLocked() {
	e.draft = nil
	e.phase = PhaseIdle
	e.lastErr = ""
}

func (e *Editor) reportLocked(op string, err error) {
	log.Printf("%s failed: %v", op, err)
	e.lastErr = fmt.Sprintf("%s: %v", op, err)
}

func (e *Editor) broadcastLocked() {
	st := e.snapshotLocked()
	for ch := range e.subscribers {
		select {
		case ch <- st:
		default:
			// Drop the stale snapshot so slow readers only see the latest.
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

func (e *Editor) snapshotLocked() State {
	st := State{
		Phase:     e.phase,
		Canonical: domain.CloneQuizzes(e.canonical),
		Error:     e.lastErr,
		Pending:   e.pending,
	}
	if st.Canonical == nil {
		st.Canonical = []domain.Quiz{}
	}
	if e.draft != nil {
		q := e.draft.Quiz()
		st.Draft = &q
	}
	return st
}
