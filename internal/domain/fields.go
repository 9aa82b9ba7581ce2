package domain

import "fmt"

// Field names a scalar field of the draft.
type Field string

const (
	FieldTitle         Field = "title"
	FieldDescription   Field = "description"
	FieldDifficulty    Field = "difficultyLevel"
	FieldImage         Field = "imageUrl"
	FieldQuestionText  Field = "questionText"
	FieldAnswerText    Field = "answerText"
	FieldAnswerCorrect Field = "answerCorrect"
)

// Path addresses one scalar field inside a quiz. Question is required for
// question and answer fields, Answer for answer fields.
type Path struct {
	Field    Field `json:"field"`
	Question ID    `json:"questionId,omitempty"`
	Answer   ID    `json:"answerId,omitempty"`
}

// QuizPath addresses a quiz-level field.
func QuizPath(f Field) Path {
	return Path{Field: f}
}

// QuestionTextPath addresses a question's text.
func QuestionTextPath(question ID) Path {
	return Path{Field: FieldQuestionText, Question: question}
}

// AnswerPath addresses an answer field.
func AnswerPath(f Field, question, answer ID) Path {
	return Path{Field: f, Question: question, Answer: answer}
}

// Apply writes value into the field of q addressed by p.
func (p Path) Apply(q *Quiz, value any) error {
	switch p.Field {
	case FieldTitle:
		return assignString(&q.Title, p.Field, value)
	case FieldDescription:
		return assignString(&q.Description, p.Field, value)
	case FieldImage:
		return assignString(&q.ImageRef, p.Field, value)
	case FieldDifficulty:
		d, err := toDifficulty(value)
		if err != nil {
			return err
		}
		q.Difficulty = d
		return nil
	case FieldQuestionText:
		qi := q.QuestionIndex(p.Question)
		if qi < 0 {
			return fmt.Errorf("question %s: %w", p.Question, ErrQuestionNotFound)
		}
		return assignString(&q.Questions[qi].Text, p.Field, value)
	case FieldAnswerText, FieldAnswerCorrect:
		qi := q.QuestionIndex(p.Question)
		if qi < 0 {
			return fmt.Errorf("question %s: %w", p.Question, ErrQuestionNotFound)
		}
		question := &q.Questions[qi]
		ai := question.AnswerIndex(p.Answer)
		if ai < 0 {
			return fmt.Errorf("answer %s: %w", p.Answer, ErrAnswerNotFound)
		}
		if p.Field == FieldAnswerText {
			return assignString(&question.Answers[ai].Text, p.Field, value)
		}
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%s expects a bool, got %T: %w", p.Field, value, ErrInvalidField)
		}
		question.Answers[ai].IsCorrect = b
		return nil
	default:
		return fmt.Errorf("unknown field %q: %w", p.Field, ErrInvalidField)
	}
}

func assignString(dst *string, f Field, value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%s expects a string, got %T: %w", f, value, ErrInvalidField)
	}
	*dst = s
	return nil
}

func toDifficulty(value any) (Difficulty, error) {
	var d Difficulty
	switch v := value.(type) {
	case Difficulty:
		d = v
	case int:
		d = Difficulty(v)
	case int64:
		d = Difficulty(v)
	case float64:
		if v != float64(int(v)) {
			return 0, ErrInvalidDifficulty
		}
		d = Difficulty(int(v))
	default:
		return 0, fmt.Errorf("%s expects a number, got %T: %w", FieldDifficulty, value, ErrInvalidField)
	}
	if !d.Valid() {
		return 0, ErrInvalidDifficulty
	}
	return d, nil
}
