package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quiz-editor/internal/domain"
)

const maxErrorBody = 4 << 10

var (
	errEmptyResponse = errors.New("empty response body")
	errMissingID     = errors.New("response carries no id")
)

// Client talks to the remote quiz API. It implements app.QuizStore.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type answerDTO struct {
	ID         int64  `json:"id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
	QuestionID int64  `json:"questionId"`
}

type questionDTO struct {
	ID      int64       `json:"id"`
	Text    string      `json:"text"`
	QuizID  int64       `json:"quizId"`
	Answers []answerDTO `json:"answers"`
}

type quizDTO struct {
	ID              int64         `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	DifficultyLevel int           `json:"difficultyLevel"`
	ImageURL        string        `json:"imageUrl,omitempty"`
	Questions       []questionDTO `json:"questions"`
}

// checkIDs rejects created entities the server did not assign ids to; a zero
// id would otherwise be adopted as durable.
func (dto quizDTO) checkIDs() error {
	if dto.ID <= 0 {
		return fmt.Errorf("quiz: %w", errMissingID)
	}
	for _, q := range dto.Questions {
		if err := q.checkIDs(); err != nil {
			return err
		}
	}
	return nil
}

func (dto questionDTO) checkIDs() error {
	if dto.ID <= 0 {
		return fmt.Errorf("question: %w", errMissingID)
	}
	for _, a := range dto.Answers {
		if a.ID <= 0 {
			return fmt.Errorf("answer of question %d: %w", dto.ID, errMissingID)
		}
	}
	return nil
}

type updateQuestionRequest struct {
	Text   string `json:"Text"`
	QuizID int64  `json:"QuizId"`
}

type updateAnswerRequest struct {
	Text       string `json:"Text"`
	IsCorrect  bool   `json:"IsCorrect"`
	QuestionID int64  `json:"QuestionId"`
}

func (c *Client) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list quizzes", http.MethodGet, "/Quiz", nil, "", &raw); err != nil {
		return nil, err
	}
	// Anything other than an array is treated as an empty list.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return []domain.Quiz{}, nil
	}
	var dtos []quizDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, transportError("list quizzes", fmt.Errorf("decode quizzes: %w", err))
	}
	quizzes := make([]domain.Quiz, 0, len(dtos))
	for _, dto := range dtos {
		quizzes = append(quizzes, dto.toDomain())
	}
	return quizzes, nil
}

func (c *Client) CreateQuiz(ctx context.Context, quiz domain.NewQuiz) (domain.Quiz, error) {
	form := newForm()
	form.quizFields(quiz.QuizFields, false)
	if quiz.Image != nil {
		form.file("Image", quiz.Image.Name, quiz.Image.Data)
	}
	for i, q := range quiz.Questions {
		prefix := fmt.Sprintf("Questions[%d].", i)
		form.field(prefix+"Text", q.Text)
		form.answers(prefix, q.Answers)
	}
	body, contentType, err := form.close()
	if err != nil {
		return domain.Quiz{}, err
	}

	var dto quizDTO
	if err := c.do(ctx, "create quiz", http.MethodPost, "/Quiz", body, contentType, &dto); err != nil {
		return domain.Quiz{}, err
	}
	if err := dto.checkIDs(); err != nil {
		return domain.Quiz{}, transportError("create quiz", err)
	}
	return dto.toDomain(), nil
}

func (c *Client) UpdateQuiz(ctx context.Context, id domain.ID, fields domain.QuizFields) error {
	v, err := durable("update quiz", id)
	if err != nil {
		return err
	}
	form := newForm()
	form.quizFields(fields, true)
	body, contentType, err := form.close()
	if err != nil {
		return err
	}
	return c.do(ctx, "update quiz", http.MethodPut, "/Quiz/"+v, body, contentType, nil)
}

func (c *Client) DeleteQuiz(ctx context.Context, id domain.ID) error {
	v, err := durable("delete quiz", id)
	if err != nil {
		return err
	}
	return c.do(ctx, "delete quiz", http.MethodDelete, "/Quiz/"+v, nil, "", nil)
}

func (c *Client) CreateQuestion(ctx context.Context, question domain.NewQuestion) (domain.Question, error) {
	quizID, err := durable("create question", question.QuizID)
	if err != nil {
		return domain.Question{}, err
	}
	form := newForm()
	form.field("Text", question.Text)
	form.field("QuizId", quizID)
	form.answers("", question.Answers)
	body, contentType, err := form.close()
	if err != nil {
		return domain.Question{}, err
	}

	var dto questionDTO
	if err := c.do(ctx, "create question", http.MethodPost, "/Quiz/question", body, contentType, &dto); err != nil {
		return domain.Question{}, err
	}
	if err := dto.checkIDs(); err != nil {
		return domain.Question{}, transportError("create question", err)
	}
	return dto.toDomain(), nil
}

func (c *Client) UpdateQuestion(ctx context.Context, id domain.ID, text string, quizID domain.ID) error {
	v, err := durable("update question", id)
	if err != nil {
		return err
	}
	if _, err := durable("update question", quizID); err != nil {
		return err
	}
	return c.doJSON(ctx, "update question", http.MethodPut, "/Quiz/question/"+v, updateQuestionRequest{
		Text:   text,
		QuizID: quizID.Value(),
	})
}

func (c *Client) DeleteQuestion(ctx context.Context, id domain.ID) error {
	v, err := durable("delete question", id)
	if err != nil {
		return err
	}
	return c.do(ctx, "delete question", http.MethodDelete, "/Quiz/question/"+v, nil, "", nil)
}

func (c *Client) UpdateAnswer(ctx context.Context, id domain.ID, text string, isCorrect bool, questionID domain.ID) error {
	v, err := durable("update answer", id)
	if err != nil {
		return err
	}
	if _, err := durable("update answer", questionID); err != nil {
		return err
	}
	return c.doJSON(ctx, "update answer", http.MethodPut, "/Quiz/answer/"+v, updateAnswerRequest{
		Text:       text,
		IsCorrect:  isCorrect,
		QuestionID: questionID.Value(),
	})
}

func (c *Client) DeleteAnswer(ctx context.Context, id domain.ID) error {
	v, err := durable("delete answer", id)
	if err != nil {
		return err
	}
	return c.do(ctx, "delete answer", http.MethodDelete, "/Quiz/answer/"+v, nil, "", nil)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode body: %w", op, err)
	}
	return c.do(ctx, op, method, path, bytes.NewReader(data), "application/json", nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, fmt.Errorf("read response: %w", err))
	}
	// Raw callers decide what an empty body means.
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = data
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return transportError(op, errEmptyResponse)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return transportError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.RemoteError{
		Op:      op,
		Status:  resp.StatusCode,
		Message: errorMessage(data),
		Kind:    classify(resp.StatusCode),
	}
}

func classify(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrValidation
	case http.StatusNotFound, http.StatusGone:
		return domain.ErrStaleReference
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	default:
		return domain.ErrTransport
	}
}

// errorMessage pulls a message out of common error bodies.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		for _, msg := range []string{body.Error, body.Message, body.Title} {
			if msg != "" {
				return msg
			}
		}
	}
	return strings.TrimSpace(string(data))
}

func transportError(op string, err error) error {
	return &domain.RemoteError{Op: op, Kind: domain.ErrTransport, Err: err}
}

func durable(op string, id domain.ID) (string, error) {
	if !id.IsDurable() {
		return "", fmt.Errorf("%s %s: %w", op, id, domain.ErrProvisionalID)
	}
	return strconv.FormatInt(id.Value(), 10), nil
}

func (d answerDTO) toDomain() domain.Answer {
	return domain.Answer{
		ID:         domain.DurableID(d.ID),
		Text:       d.Text,
		IsCorrect:  d.IsCorrect,
		QuestionID: domain.DurableID(d.QuestionID),
	}
}

func (d questionDTO) toDomain() domain.Question {
	q := domain.Question{
		ID:      domain.DurableID(d.ID),
		Text:    d.Text,
		QuizID:  domain.DurableID(d.QuizID),
		Answers: make([]domain.Answer, 0, len(d.Answers)),
	}
	for _, a := range d.Answers {
		q.Answers = append(q.Answers, a.toDomain())
	}
	return q
}

func (d quizDTO) toDomain() domain.Quiz {
	q := domain.Quiz{
		ID:          domain.DurableID(d.ID),
		Title:       d.Title,
		Description: d.Description,
		Difficulty:  domain.Difficulty(d.DifficultyLevel),
		ImageRef:    d.ImageURL,
		Questions:   make([]domain.Question, 0, len(d.Questions)),
	}
	for _, question := range d.Questions {
		q.Questions = append(q.Questions, question.toDomain())
	}
	return q
}

func (c *Client) BaseURL() string {
	return c.baseURL
}
