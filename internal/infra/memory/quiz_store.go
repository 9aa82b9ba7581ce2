package memory

import (
	"context"
	"fmt"
	"sync"

	"quiz-editor/internal/domain"
)

// QuizStore is an in-process quiz store handing out durable ids from a counter.
// It backs the development server and tests.
type QuizStore struct {
	mu      sync.RWMutex
	nextID  int64
	quizzes []domain.Quiz
}

// NewQuizStore seeds the store. Seed ids must be durable.
func NewQuizStore(seed ...domain.Quiz) *QuizStore {
	s := &QuizStore{nextID: 1}
	for _, q := range seed {
		s.observe(q.ID)
		for _, question := range q.Questions {
			s.observe(question.ID)
			for _, a := range question.Answers {
				s.observe(a.ID)
			}
		}
		s.quizzes = append(s.quizzes, q.Clone())
	}
	return s
}

func (s *QuizStore) observe(id domain.ID) {
	if id.Value() >= s.nextID {
		s.nextID = id.Value() + 1
	}
}

func (s *QuizStore) allocate() domain.ID {
	id := domain.DurableID(s.nextID)
	s.nextID++
	return id
}

func (s *QuizStore) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := domain.CloneQuizzes(s.quizzes)
	if out == nil {
		out = []domain.Quiz{}
	}
	return out, nil
}

func (s *QuizStore) CreateQuiz(_ context.Context, in domain.NewQuiz) (domain.Quiz, error) {
	if err := in.QuizFields.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz := domain.Quiz{
		ID:          s.allocate(),
		Title:       in.Title,
		Description: in.Description,
		Difficulty:  in.Difficulty,
		ImageRef:    in.ImageRef,
		Questions:   []domain.Question{},
	}
	if in.Image != nil && quiz.ImageRef == "" {
		quiz.ImageRef = "/images/" + in.Image.Name
	}
	for _, nq := range in.Questions {
		quiz.Questions = append(quiz.Questions, s.buildQuestion(quiz.ID, nq))
	}
	s.quizzes = append(s.quizzes, quiz)
	return quiz.Clone(), nil
}

func (s *QuizStore) UpdateQuiz(_ context.Context, id domain.ID, fields domain.QuizFields) error {
	if err := fields.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	qi, err := s.quizIndex(id)
	if err != nil {
		return err
	}
	quiz := &s.quizzes[qi]
	quiz.Title = fields.Title
	quiz.Description = fields.Description
	quiz.Difficulty = fields.Difficulty
	if fields.ImageRef != "" {
		quiz.ImageRef = fields.ImageRef
	}
	return nil
}

func (s *QuizStore) DeleteQuiz(_ context.Context, id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	qi, err := s.quizIndex(id)
	if err != nil {
		return err
	}
	s.quizzes = append(s.quizzes[:qi:qi], s.quizzes[qi+1:]...)
	return nil
}

func (s *QuizStore) CreateQuestion(_ context.Context, in domain.NewQuestion) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qi, err := s.quizIndex(in.QuizID)
	if err != nil {
		return domain.Question{}, err
	}
	question := s.buildQuestion(in.QuizID, in)
	s.quizzes[qi].Questions = append(s.quizzes[qi].Questions, question)
	return question.Clone(), nil
}

func (s *QuizStore) UpdateQuestion(_ context.Context, id domain.ID, text string, quizID domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, err := s.findQuestion(id)
	if err != nil {
		return err
	}
	if question.QuizID != quizID {
		return fmt.Errorf("question %s does not belong to quiz %s: %w", id, quizID, domain.ErrValidation)
	}
	question.Text = text
	return nil
}

func (s *QuizStore) DeleteQuestion(_ context.Context, id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := durable(id); err != nil {
		return err
	}
	for i := range s.quizzes {
		quiz := &s.quizzes[i]
		if qi := quiz.QuestionIndex(id); qi >= 0 {
			quiz.Questions = append(quiz.Questions[:qi:qi], quiz.Questions[qi+1:]...)
			return nil
		}
	}
	return fmt.Errorf("question %s: %w", id, domain.ErrQuestionNotFound)
}

func (s *QuizStore) UpdateAnswer(_ context.Context, id domain.ID, text string, isCorrect bool, questionID domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, err := s.findQuestion(questionID)
	if err != nil {
		return err
	}
	if err := durable(id); err != nil {
		return err
	}
	ai := question.AnswerIndex(id)
	if ai < 0 {
		return fmt.Errorf("answer %s: %w", id, domain.ErrAnswerNotFound)
	}
	question.Answers[ai].Text = text
	question.Answers[ai].IsCorrect = isCorrect
	return nil
}

func (s *QuizStore) DeleteAnswer(_ context.Context, id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := durable(id); err != nil {
		return err
	}
	for i := range s.quizzes {
		for j := range s.quizzes[i].Questions {
			question := &s.quizzes[i].Questions[j]
			if ai := question.AnswerIndex(id); ai >= 0 {
				question.Answers = append(question.Answers[:ai:ai], question.Answers[ai+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("answer %s: %w", id, domain.ErrAnswerNotFound)
}

func (s *QuizStore) buildQuestion(quizID domain.ID, in domain.NewQuestion) domain.Question {
	question := domain.Question{
		ID:      s.allocate(),
		Text:    in.Text,
		QuizID:  quizID,
		Answers: make([]domain.Answer, 0, len(in.Answers)),
	}
	for _, na := range in.Answers {
		question.Answers = append(question.Answers, domain.Answer{
			ID:         s.allocate(),
			Text:       na.Text,
			IsCorrect:  na.IsCorrect,
			QuestionID: question.ID,
		})
	}
	return question
}

func (s *QuizStore) quizIndex(id domain.ID) (int, error) {
	if err := durable(id); err != nil {
		return -1, err
	}
	for i := range s.quizzes {
		if s.quizzes[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("quiz %s: %w", id, domain.ErrQuizNotFound)
}

func (s *QuizStore) findQuestion(id domain.ID) (*domain.Question, error) {
	if err := durable(id); err != nil {
		return nil, err
	}
	for i := range s.quizzes {
		if qi := s.quizzes[i].QuestionIndex(id); qi >= 0 {
			return &s.quizzes[i].Questions[qi], nil
		}
	}
	return nil, fmt.Errorf("question %s: %w", id, domain.ErrQuestionNotFound)
}

func durable(id domain.ID) error {
	if !id.IsDurable() {
		return fmt.Errorf("id %s: %w", id, domain.ErrProvisionalID)
	}
	return nil
}
