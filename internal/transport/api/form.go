package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"quiz-editor/internal/domain"
)

func quizFields(c *gin.Context) (domain.QuizFields, error) {
	level, err := strconv.Atoi(c.PostForm("DifficultyLevel"))
	if err != nil {
		return domain.QuizFields{}, fmt.Errorf("%w: DifficultyLevel must be an integer", domain.ErrValidation)
	}
	return domain.QuizFields{
		Title:       c.PostForm("Title"),
		Description: c.PostForm("Description"),
		Difficulty:  domain.Difficulty(level),
	}, nil
}

// questionsForm reads Questions[i].Text with nested answers until the first
// missing index.
func questionsForm(c *gin.Context, prefix string) []domain.NewQuestion {
	var out []domain.NewQuestion
	for i := 0; ; i++ {
		key := fmt.Sprintf("%s[%d]", prefix, i)
		text, ok := c.GetPostForm(key + ".Text")
		if !ok {
			return out
		}
		out = append(out, domain.NewQuestion{
			Text:    text,
			Answers: answersForm(c, key+".Answers"),
		})
	}
}

func answersForm(c *gin.Context, prefix string) []domain.NewAnswer {
	var out []domain.NewAnswer
	for i := 0; ; i++ {
		key := fmt.Sprintf("%s[%d]", prefix, i)
		text, ok := c.GetPostForm(key + ".Text")
		if !ok {
			return out
		}
		correct, _ := strconv.ParseBool(c.PostForm(key + ".IsCorrect"))
		out = append(out, domain.NewAnswer{Text: text, IsCorrect: correct})
	}
}
