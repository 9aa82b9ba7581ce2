package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quiz-editor/internal/domain"
)

type updateQuestionRequest struct {
	Text   string `json:"Text"`
	QuizID int64  `json:"QuizId" binding:"required,gt=0"`
}

type updateAnswerRequest struct {
	Text       string `json:"Text"`
	IsCorrect  bool   `json:"IsCorrect"`
	QuestionID int64  `json:"QuestionId" binding:"required,gt=0"`
}

func (h *Handler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.store.ListQuizzes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

func (h *Handler) CreateQuiz(c *gin.Context) {
	fields, err := quizFields(c)
	if err != nil {
		writeError(c, err)
		return
	}
	in := domain.NewQuiz{QuizFields: fields, Questions: questionsForm(c, "Questions")}
	if header, err := c.FormFile("Image"); err == nil {
		data, err := readFile(header)
		if err != nil {
			writeError(c, err)
			return
		}
		in.Image = &domain.ImageUpload{Name: header.Filename, Data: data}
	}

	quiz, err := h.store.CreateQuiz(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quiz)
}

func (h *Handler) UpdateQuiz(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	fields, err := quizFields(c)
	if err != nil {
		writeError(c, err)
		return
	}
	fields.ImageRef = c.PostForm("Image")
	if err := h.store.UpdateQuiz(c.Request.Context(), id, fields); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteQuiz(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteQuiz(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateQuestion(c *gin.Context) {
	quizID, err := strconv.ParseInt(c.PostForm("QuizId"), 10, 64)
	if err != nil || quizID <= 0 {
		writeError(c, fmt.Errorf("%w: QuizId must be a positive integer", domain.ErrValidation))
		return
	}
	in := domain.NewQuestion{
		QuizID:  domain.DurableID(quizID),
		Text:    c.PostForm("Text"),
		Answers: answersForm(c, "Answers"),
	}
	question, err := h.store.CreateQuestion(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

func (h *Handler) UpdateQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.UpdateQuestion(c.Request.Context(), id, req.Text, domain.DurableID(req.QuizID)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteQuestion(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UpdateAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.store.UpdateAnswer(c.Request.Context(), id, req.Text, req.IsCorrect, domain.DurableID(req.QuestionID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteAnswer(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context) (domain.ID, bool) {
	v, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return domain.ID{}, false
	}
	return domain.DurableID(v), true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrAnswerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidDifficulty),
		errors.Is(err, domain.ErrProvisionalID):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func readFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
