package remote

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"quiz-editor/internal/domain"
)

// form accumulates a multipart body; the first write error sticks.
type form struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *form {
	f := &form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *form) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

func (f *form) file(name, filename string, data []byte) {
	if f.err != nil {
		return
	}
	part, err := f.w.CreateFormFile(name, filename)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = part.Write(data)
}

// quizFields writes the scalar quiz fields. On update the image travels as a
// plain reference field.
func (f *form) quizFields(q domain.QuizFields, imageRef bool) {
	f.field("Title", q.Title)
	f.field("Description", q.Description)
	f.field("DifficultyLevel", strconv.Itoa(int(q.Difficulty)))
	if imageRef && q.ImageRef != "" {
		f.field("Image", q.ImageRef)
	}
}

func (f *form) answers(prefix string, answers []domain.NewAnswer) {
	for i, a := range answers {
		key := fmt.Sprintf("%sAnswers[%d].", prefix, i)
		f.field(key+"Text", a.Text)
		f.field(key+"IsCorrect", strconv.FormatBool(a.IsCorrect))
	}
}

func (f *form) close() (io.Reader, string, error) {
	if f.err == nil {
		f.err = f.w.Close()
	}
	if f.err != nil {
		return nil, "", fmt.Errorf("build multipart form: %w", f.err)
	}
	return &f.buf, f.w.FormDataContentType(), nil
}
