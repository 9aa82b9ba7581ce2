package app

import (
	"context"
	"fmt"
	"log"

	"quiz-editor/internal/domain"
)

// Entities reported to the Recorder.
const (
	entityQuestion = "question"
	entityAnswer   = "answer"
)

// remoteCall is a unit of field sync work captured under the lock and run
// without it.
type remoteCall struct {
	entity string
	gen    uint64
	run    func(ctx context.Context) error
}

// CommitQuestion persists the question's current text. Questions that only
// exist in the draft are skipped; Save creates them.
func (e *Editor) CommitQuestion(ctx context.Context, questionID domain.ID) error {
	e.mu.Lock()
	d, err := e.activeDraftLocked()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	qi := d.quiz.QuestionIndex(questionID)
	if qi < 0 {
		e.mu.Unlock()
		return fmt.Errorf("question %s: %w", questionID, domain.ErrQuestionNotFound)
	}
	q := d.quiz.Questions[qi]
	if !q.ID.IsDurable() {
		e.mu.Unlock()
		return nil
	}
	quizID := d.quiz.ID
	call := e.beginCallLocked(entityQuestion, d, func(ctx context.Context) error {
		return e.store.UpdateQuestion(ctx, q.ID, q.Text, quizID)
	})
	e.mu.Unlock()

	return e.runCommit(ctx, call)
}

// CommitAnswer persists the answer's current text and correctness. Answers
// under a question that only exists in the draft are skipped, as are answers
// with provisional ids, which the store has no record of.
func (e *Editor) CommitAnswer(ctx context.Context, questionID, answerID domain.ID) error {
	e.mu.Lock()
	d, err := e.activeDraftLocked()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	a, q, err := findAnswer(d, questionID, answerID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if !q.ID.IsDurable() || !a.ID.IsDurable() {
		e.mu.Unlock()
		return nil
	}
	call := e.beginCallLocked(entityAnswer, d, func(ctx context.Context) error {
		return e.store.UpdateAnswer(ctx, a.ID, a.Text, a.IsCorrect, q.ID)
	})
	e.mu.Unlock()

	return e.runCommit(ctx, call)
}

// DeleteQuestion removes a question. Durable questions are deleted remotely
// first and dropped from the draft only once that succeeds; provisional
// questions are dropped locally.
func (e *Editor) DeleteQuestion(ctx context.Context, questionID domain.ID) error {
	e.mu.Lock()
	d, err := e.editableDraftLocked()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if d.quiz.QuestionIndex(questionID) < 0 {
		e.mu.Unlock()
		return nil
	}
	if !questionID.IsDurable() {
		d.RemoveQuestion(questionID)
		e.broadcastLocked()
		e.mu.Unlock()
		return nil
	}
	call := e.beginCallLocked(entityQuestion, d, func(ctx context.Context) error {
		return e.store.DeleteQuestion(ctx, questionID)
	})
	e.mu.Unlock()

	return e.runDelete(ctx, call, func(d *Draft) {
		d.RemoveQuestion(questionID)
	})
}

// DeleteAnswer removes an answer, remotely only when its id is durable.
func (e *Editor) DeleteAnswer(ctx context.Context, questionID, answerID domain.ID) error {
	e.mu.Lock()
	d, err := e.editableDraftLocked()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if _, _, err := findAnswer(d, questionID, answerID); err != nil {
		e.mu.Unlock()
		return nil
	}
	if !answerID.IsDurable() {
		d.RemoveAnswer(questionID, answerID)
		e.broadcastLocked()
		e.mu.Unlock()
		return nil
	}
	call := e.beginCallLocked(entityAnswer, d, func(ctx context.Context) error {
		return e.store.DeleteAnswer(ctx, answerID)
	})
	e.mu.Unlock()

	return e.runDelete(ctx, call, func(d *Draft) {
		d.RemoveAnswer(questionID, answerID)
	})
}

// activeDraftLocked allows commits while a save is running; the save does not
// touch fields of known entities.
func (e *Editor) activeDraftLocked() (*Draft, error) {
	if e.draft == nil {
		return nil, domain.ErrNotEditing
	}
	return e.draft, nil
}

func (e *Editor) beginCallLocked(entity string, d *Draft, run func(ctx context.Context) error) remoteCall {
	e.pending++
	e.broadcastLocked()
	return remoteCall{entity: entity, gen: d.generation, run: run}
}

// runCommit issues the call. Failures are reported and the draft keeps its
// local value; there is no rollback.
func (e *Editor) runCommit(ctx context.Context, call remoteCall) error {
	err := call.run(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending--
	e.recorder.Commit(call.entity, err)
	if err != nil {
		e.reportCallLocked(call, fmt.Sprintf("%s commit", call.entity), err)
	}
	e.broadcastLocked()
	return err
}

func (e *Editor) runDelete(ctx context.Context, call remoteCall, apply func(*Draft)) error {
	err := call.run(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending--
	e.recorder.Delete(call.entity, err)
	switch {
	case err != nil:
		e.reportCallLocked(call, fmt.Sprintf("%s delete", call.entity), err)
	case e.draft != nil && e.draft.generation == call.gen:
		apply(e.draft)
	}
	e.broadcastLocked()
	return err
}

// reportCallLocked surfaces the error only if the draft that issued the call
// is still open.
func (e *Editor) reportCallLocked(call remoteCall, op string, err error) {
	if e.draft == nil || e.draft.generation != call.gen {
		log.Printf("%s failed after its draft was closed: %v", op, err)
		return
	}
	e.reportLocked(op, err)
}

func findAnswer(d *Draft, questionID, answerID domain.ID) (domain.Answer, domain.Question, error) {
	qi := d.quiz.QuestionIndex(questionID)
	if qi < 0 {
		return domain.Answer{}, domain.Question{}, fmt.Errorf("question %s: %w", questionID, domain.ErrQuestionNotFound)
	}
	q := d.quiz.Questions[qi]
	ai := q.AnswerIndex(answerID)
	if ai < 0 {
		return domain.Answer{}, domain.Question{}, fmt.Errorf("answer %s: %w", answerID, domain.ErrAnswerNotFound)
	}
	return q.Answers[ai], q, nil
}
