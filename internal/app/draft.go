package app

import (
	"fmt"
	"slices"

	"quiz-editor/internal/domain"
)

// Draft is the locally edited copy of one quiz. It is not safe for concurrent
// use; the owning Editor serializes access.
type Draft struct {
	generation uint64
	quiz       domain.Quiz
	known      map[domain.ID]struct{}
	ids        *Allocator
}

// NewDraft deep-copies quiz and records its question ids as the known set.
func NewDraft(quiz domain.Quiz, ids *Allocator) *Draft {
	return newDraft(0, quiz, ids)
}

func newDraft(generation uint64, quiz domain.Quiz, ids *Allocator) *Draft {
	d := &Draft{
		generation: generation,
		quiz:       quiz.Clone(),
		known:      make(map[domain.ID]struct{}, len(quiz.Questions)),
		ids:        ids,
	}
	if d.quiz.Questions == nil {
		d.quiz.Questions = []domain.Question{}
	}
	for _, q := range d.quiz.Questions {
		d.known[q.ID] = struct{}{}
	}
	return d
}

// Quiz returns a deep copy of the current draft contents.
func (d *Draft) Quiz() domain.Quiz {
	return d.quiz.Clone()
}

// SetField replaces a scalar field.
func (d *Draft) SetField(path domain.Path, value any) error {
	return path.Apply(&d.quiz, value)
}

// AddQuestion appends an empty question with a provisional id.
func (d *Draft) AddQuestion() domain.Question {
	q := domain.Question{
		ID:      d.ids.Allocate(),
		QuizID:  d.quiz.ID,
		Answers: []domain.Answer{},
	}
	d.quiz.Questions = append(d.quiz.Questions, q)
	return q.Clone()
}

// AddAnswer appends an incorrect, empty answer to the question at questionIndex.
func (d *Draft) AddAnswer(questionIndex int) (domain.Answer, error) {
	if questionIndex < 0 || questionIndex >= len(d.quiz.Questions) {
		return domain.Answer{}, fmt.Errorf("question index %d: %w", questionIndex, domain.ErrQuestionNotFound)
	}
	question := &d.quiz.Questions[questionIndex]
	a := domain.Answer{
		ID:         d.ids.Allocate(),
		IsCorrect:  false,
		QuestionID: question.ID,
	}
	question.Answers = append(question.Answers, a)
	return a, nil
}

// RemoveQuestion drops the question and reports whether it was present.
func (d *Draft) RemoveQuestion(id domain.ID) bool {
	n := len(d.quiz.Questions)
	d.quiz.Questions = slices.DeleteFunc(d.quiz.Questions, func(q domain.Question) bool {
		return q.ID == id
	})
	return len(d.quiz.Questions) != n
}

// RemoveAnswer drops the answer from its question and reports whether it was present.
func (d *Draft) RemoveAnswer(questionID, answerID domain.ID) bool {
	qi := d.quiz.QuestionIndex(questionID)
	if qi < 0 {
		return false
	}
	question := &d.quiz.Questions[qi]
	n := len(question.Answers)
	question.Answers = slices.DeleteFunc(question.Answers, func(a domain.Answer) bool {
		return a.ID == answerID
	})
	return len(question.Answers) != n
}

// IsKnown reports whether the question id was part of the quiz when editing began
// (or has since been created by a save).
func (d *Draft) IsKnown(questionID domain.ID) bool {
	_, ok := d.known[questionID]
	return ok
}

// NewQuestions returns, in draft order, the questions that need a create call.
func (d *Draft) NewQuestions() []domain.Question {
	var out []domain.Question
	for _, q := range d.quiz.Questions {
		if !d.IsKnown(q.ID) {
			out = append(out, q.Clone())
		}
	}
	return out
}

// UnpersistedAnswers lists provisional answers under known questions. No
// remote operation can create them.
func (d *Draft) UnpersistedAnswers() []domain.Answer {
	var out []domain.Answer
	for _, q := range d.quiz.Questions {
		if !d.IsKnown(q.ID) {
			continue
		}
		for _, a := range q.Answers {
			if a.ID.IsProvisional() {
				out = append(out, a)
			}
		}
	}
	return out
}

// rebind swaps a provisional question for the durable one returned by the store.
// Local edits made since the create was issued are kept; only identities change.
func (d *Draft) rebind(provisional domain.ID, created domain.Question) {
	d.known[created.ID] = struct{}{}
	qi := d.quiz.QuestionIndex(provisional)
	if qi < 0 {
		return
	}
	question := &d.quiz.Questions[qi]
	question.ID = created.ID
	for i := range question.Answers {
		question.Answers[i].QuestionID = created.ID
		if i < len(created.Answers) {
			question.Answers[i].ID = created.Answers[i].ID
		}
	}
}
