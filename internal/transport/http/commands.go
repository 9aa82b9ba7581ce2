package http

import "quiz-editor/internal/domain"

// commandPayload is the union of every command's arguments.
type commandPayload struct {
	QuizID        domain.ID    `json:"quizId"`
	QuestionID    domain.ID    `json:"questionId"`
	AnswerID      domain.ID    `json:"answerId"`
	QuestionIndex int          `json:"questionIndex"`
	Field         domain.Field `json:"field"`
	Value         any          `json:"value"`

	// createQuiz
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	DifficultyLevel domain.Difficulty    `json:"difficultyLevel"`
	Image           *imagePayload        `json:"image"`
	Questions       []domain.NewQuestion `json:"questions"`
}

// imagePayload carries an uploaded file; Data is base64 in JSON.
type imagePayload struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

func (p commandPayload) path() domain.Path {
	return domain.Path{Field: p.Field, Question: p.QuestionID, Answer: p.AnswerID}
}

func (p commandPayload) newQuiz() domain.NewQuiz {
	quiz := domain.NewQuiz{
		QuizFields: domain.QuizFields{
			Title:       p.Title,
			Description: p.Description,
			Difficulty:  p.DifficultyLevel,
		},
		Questions: p.Questions,
	}
	if p.Image != nil {
		quiz.Image = &domain.ImageUpload{Name: p.Image.Name, Data: p.Image.Data}
	}
	return quiz
}
