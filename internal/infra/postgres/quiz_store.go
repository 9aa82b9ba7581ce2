package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-editor/internal/domain"
)

const foreignKeyViolation = "23503"

// QuizStore keeps the catalog in Postgres: one row per quiz, question and
// answer, with ids from BIGSERIAL columns. Children come back in id order.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

// ListQuizzes reads all three tables in one read-only REPEATABLE READ
// transaction so a concurrent create cannot show up half-written.
func (s *QuizStore) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	err := s.pool.BeginTxFunc(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		quizzes, err = listCatalog(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return quizzes, nil
}

func listCatalog(ctx context.Context, tx pgx.Tx) ([]domain.Quiz, error) {
	quizzes := []domain.Quiz{}
	index := map[int64]int{}

	rows, err := tx.Query(ctx, `SELECT id, title, description, difficulty_level, image_url FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	for rows.Next() {
		var (
			id    int64
			level int16
			quiz  domain.Quiz
		)
		if err := rows.Scan(&id, &quiz.Title, &quiz.Description, &level, &quiz.ImageRef); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quiz.ID = domain.DurableID(id)
		quiz.Difficulty = domain.Difficulty(level)
		quiz.Questions = []domain.Question{}
		index[id] = len(quizzes)
		quizzes = append(quizzes, quiz)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	// question id -> (quiz index, question index)
	type slot struct{ quiz, question int }
	questions := map[int64]slot{}

	rows, err = tx.Query(ctx, `SELECT id, quiz_id, text FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	for rows.Next() {
		var id, quizID int64
		var text string
		if err := rows.Scan(&id, &quizID, &text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan question: %w", err)
		}
		qi, ok := index[quizID]
		if !ok {
			continue
		}
		quizzes[qi].Questions = append(quizzes[qi].Questions, domain.Question{
			ID:      domain.DurableID(id),
			Text:    text,
			QuizID:  domain.DurableID(quizID),
			Answers: []domain.Answer{},
		})
		questions[id] = slot{quiz: qi, question: len(quizzes[qi].Questions) - 1}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	rows, err = tx.Query(ctx, `SELECT id, question_id, text, is_correct FROM answers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, questionID int64
		var answer domain.Answer
		if err := rows.Scan(&id, &questionID, &answer.Text, &answer.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		at, ok := questions[questionID]
		if !ok {
			continue
		}
		answer.ID = domain.DurableID(id)
		answer.QuestionID = domain.DurableID(questionID)
		q := &quizzes[at.quiz].Questions[at.question]
		q.Answers = append(q.Answers, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return quizzes, nil
}

func (s *QuizStore) CreateQuiz(ctx context.Context, in domain.NewQuiz) (domain.Quiz, error) {
	if err := in.QuizFields.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	quiz := domain.Quiz{
		Title:       in.Title,
		Description: in.Description,
		Difficulty:  in.Difficulty,
		ImageRef:    in.ImageRef,
		Questions:   []domain.Question{},
	}
	if in.Image != nil && quiz.ImageRef == "" {
		quiz.ImageRef = "/images/" + in.Image.Name
	}

	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO quizzes (title, description, difficulty_level, image_url) VALUES ($1, $2, $3, $4) RETURNING id`,
			quiz.Title, quiz.Description, int16(quiz.Difficulty), quiz.ImageRef,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		quiz.ID = domain.DurableID(id)
		for _, nq := range in.Questions {
			question, err := insertQuestion(ctx, tx, id, nq)
			if err != nil {
				return err
			}
			quiz.Questions = append(quiz.Questions, question)
		}
		return nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (s *QuizStore) UpdateQuiz(ctx context.Context, id domain.ID, fields domain.QuizFields) error {
	if err := fields.Validate(); err != nil {
		return err
	}
	if err := durable(id); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE quizzes SET title = $2, description = $3, difficulty_level = $4,
		 image_url = COALESCE(NULLIF($5, ''), image_url) WHERE id = $1`,
		id.Value(), fields.Title, fields.Description, int16(fields.Difficulty), fields.ImageRef,
	)
	if err != nil {
		return fmt.Errorf("update quiz %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quiz %s: %w", id, domain.ErrQuizNotFound)
	}
	return nil
}

func (s *QuizStore) DeleteQuiz(ctx context.Context, id domain.ID) error {
	return s.deleteRow(ctx, "quizzes", id, domain.ErrQuizNotFound)
}

func (s *QuizStore) CreateQuestion(ctx context.Context, in domain.NewQuestion) (domain.Question, error) {
	if err := durable(in.QuizID); err != nil {
		return domain.Question{}, err
	}
	var question domain.Question
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var err error
		question, err = insertQuestion(ctx, tx, in.QuizID.Value(), in)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.Question{}, fmt.Errorf("quiz %s: %w", in.QuizID, domain.ErrQuizNotFound)
		}
		return domain.Question{}, err
	}
	return question, nil
}

func (s *QuizStore) UpdateQuestion(ctx context.Context, id domain.ID, text string, quizID domain.ID) error {
	if err := durable(id); err != nil {
		return err
	}
	if err := durable(quizID); err != nil {
		return err
	}
	var owner int64
	err := s.pool.QueryRow(ctx,
		`UPDATE questions SET text = CASE WHEN quiz_id = $3 THEN $2 ELSE text END
		 WHERE id = $1 RETURNING quiz_id`,
		id.Value(), text, quizID.Value(),
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("question %s: %w", id, domain.ErrQuestionNotFound)
	}
	if err != nil {
		return fmt.Errorf("update question %s: %w", id, err)
	}
	if owner != quizID.Value() {
		return fmt.Errorf("question %s does not belong to quiz %s: %w", id, quizID, domain.ErrValidation)
	}
	return nil
}

func (s *QuizStore) DeleteQuestion(ctx context.Context, id domain.ID) error {
	return s.deleteRow(ctx, "questions", id, domain.ErrQuestionNotFound)
}

func (s *QuizStore) UpdateAnswer(ctx context.Context, id domain.ID, text string, isCorrect bool, questionID domain.ID) error {
	if err := durable(id); err != nil {
		return err
	}
	if err := durable(questionID); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE answers SET text = $2, is_correct = $3 WHERE id = $1 AND question_id = $4`,
		id.Value(), text, isCorrect, questionID.Value(),
	)
	if err != nil {
		return fmt.Errorf("update answer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("answer %s: %w", id, domain.ErrAnswerNotFound)
	}
	return nil
}

func (s *QuizStore) DeleteAnswer(ctx context.Context, id domain.ID) error {
	return s.deleteRow(ctx, "answers", id, domain.ErrAnswerNotFound)
}

// table is one of the literal names passed by the methods above.
func (s *QuizStore) deleteRow(ctx context.Context, table string, id domain.ID, notFound error) error {
	if err := durable(id); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id.Value())
	if err != nil {
		return fmt.Errorf("delete from %s %s: %w", table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", table, id, notFound)
	}
	return nil
}

func insertQuestion(ctx context.Context, tx pgx.Tx, quizID int64, in domain.NewQuestion) (domain.Question, error) {
	var id int64
	err := tx.QueryRow(ctx, `INSERT INTO questions (quiz_id, text) VALUES ($1, $2) RETURNING id`, quizID, in.Text).Scan(&id)
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	question := domain.Question{
		ID:      domain.DurableID(id),
		Text:    in.Text,
		QuizID:  domain.DurableID(quizID),
		Answers: make([]domain.Answer, 0, len(in.Answers)),
	}
	for _, na := range in.Answers {
		var answerID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO answers (question_id, text, is_correct) VALUES ($1, $2, $3) RETURNING id`,
			id, na.Text, na.IsCorrect,
		).Scan(&answerID)
		if err != nil {
			return domain.Question{}, fmt.Errorf("insert answer: %w", err)
		}
		question.Answers = append(question.Answers, domain.Answer{
			ID:         domain.DurableID(answerID),
			Text:       na.Text,
			IsCorrect:  na.IsCorrect,
			QuestionID: question.ID,
		})
	}
	return question, nil
}

func durable(id domain.ID) error {
	if !id.IsDurable() {
		return fmt.Errorf("id %s: %w", id, domain.ErrProvisionalID)
	}
	return nil
}
