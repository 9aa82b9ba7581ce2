package domain

import (
	"fmt"
	"strings"
)

// Difficulty is the quiz difficulty level.
type Difficulty int

const (
	Easy   Difficulty = 1
	Medium Difficulty = 2
	Hard   Difficulty = 3
)

func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Hard
}

// Answer is one option of a multiple-choice question.
type Answer struct {
	ID         ID     `json:"id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
	QuestionID ID     `json:"questionId"`
}

// Question belongs to exactly one quiz and owns its answers.
type Question struct {
	ID      ID       `json:"id"`
	Text    string   `json:"text"`
	QuizID  ID       `json:"quizId"`
	Answers []Answer `json:"answers"`
}

// Quiz owns an ordered sequence of questions.
type Quiz struct {
	ID          ID         `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficultyLevel"`
	ImageRef    string     `json:"imageUrl,omitempty"`
	Questions   []Question `json:"questions"`
}

// QuizFields are the scalar fields of a quiz sent on create and update.
type QuizFields struct {
	Title       string
	Description string
	Difficulty  Difficulty
	ImageRef    string
}

// Fields extracts the scalar fields of q.
func (q Quiz) Fields() QuizFields {
	return QuizFields{
		Title:       q.Title,
		Description: q.Description,
		Difficulty:  q.Difficulty,
		ImageRef:    q.ImageRef,
	}
}

// Validate checks the fields the store requires on create and update.
func (f QuizFields) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("title is required: %w", ErrValidation)
	}
	if !f.Difficulty.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidDifficulty, ErrValidation)
	}
	return nil
}

// ImageUpload is a file attached to quiz creation.
type ImageUpload struct {
	Name string
	Data []byte
}

// NewAnswer is an answer payload for question or quiz creation.
type NewAnswer struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// NewQuestion is a question payload for creation.
type NewQuestion struct {
	QuizID  ID          `json:"quizId"`
	Text    string      `json:"text"`
	Answers []NewAnswer `json:"answers"`
}

// NewQuiz is the payload of the quiz creation path.
type NewQuiz struct {
	QuizFields
	Image     *ImageUpload
	Questions []NewQuestion
}

// NewQuestionFrom builds a creation payload carrying the question's current answers.
func NewQuestionFrom(quizID ID, q Question) NewQuestion {
	answers := make([]NewAnswer, 0, len(q.Answers))
	for _, a := range q.Answers {
		answers = append(answers, NewAnswer{Text: a.Text, IsCorrect: a.IsCorrect})
	}
	return NewQuestion{QuizID: quizID, Text: q.Text, Answers: answers}
}

// Clone returns a deep copy of the quiz.
func (q Quiz) Clone() Quiz {
	out := q
	if q.Questions != nil {
		out.Questions = make([]Question, len(q.Questions))
		for i, question := range q.Questions {
			out.Questions[i] = question.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the question.
func (q Question) Clone() Question {
	out := q
	if q.Answers != nil {
		out.Answers = make([]Answer, len(q.Answers))
		copy(out.Answers, q.Answers)
	}
	return out
}

// CloneQuizzes deep-copies a quiz list.
func CloneQuizzes(quizzes []Quiz) []Quiz {
	if quizzes == nil {
		return nil
	}
	out := make([]Quiz, len(quizzes))
	for i, q := range quizzes {
		out[i] = q.Clone()
	}
	return out
}

// FindQuiz returns the quiz with the given id.
func FindQuiz(quizzes []Quiz, id ID) (Quiz, bool) {
	for _, q := range quizzes {
		if q.ID == id {
			return q, true
		}
	}
	return Quiz{}, false
}

// QuestionIndex returns the position of the question or -1.
func (q Quiz) QuestionIndex(id ID) int {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return i
		}
	}
	return -1
}

// AnswerIndex returns the position of the answer or -1.
func (q Question) AnswerIndex(id ID) int {
	for i := range q.Answers {
		if q.Answers[i].ID == id {
			return i
		}
	}
	return -1
}
