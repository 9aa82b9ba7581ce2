package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-editor/internal/app"
	"quiz-editor/internal/domain"
)

const (
	catalogKey    = "quiz:catalog"
	generationKey = "quiz:catalog:gen"
)

// CatalogCache keeps the JSON-encoded quiz list in Redis and falls back to the
// wrapped store on a miss. Writes go straight to the store, then bump the
// generation key and drop the list. A fill only stores its list when the
// generation is unchanged since the fetch began.
type CatalogCache struct {
	app.QuizStore
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	// writes counts invalidations made by this process; it scopes flights.
	writes atomic.Uint64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCatalogCache(client *redis.Client, store app.QuizStore, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		QuizStore: store,
		client:    client,
		ttl:       ttl,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	if quizzes, ok := c.cached(ctx); ok {
		return quizzes, nil
	}

	key := catalogKey + ":" + strconv.FormatUint(c.writes.Load(), 10)
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another caller filled it.
		if quizzes, ok := c.cached(ctx); ok {
			return quizzes, nil
		}
		return c.fill(ctx)
	})
	if err != nil {
		return nil, err
	}
	return domain.CloneQuizzes(result.([]domain.Quiz)), nil
}

// ReloadQuizzes reads the wrapped store directly, skipping the cached list and
// any in-flight fill, then stores the result under the same generation check.
func (c *CatalogCache) ReloadQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := c.fill(ctx)
	if err != nil {
		return nil, err
	}
	return domain.CloneQuizzes(quizzes), nil
}

func (c *CatalogCache) fill(ctx context.Context) ([]domain.Quiz, error) {
	gen, genErr := readGeneration(ctx, c.client)
	if genErr != nil {
		log.Printf("catalog cache: generation: %v", genErr)
	}

	quizzes, err := c.QuizStore.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		c.store(ctx, gen, quizzes)
	}
	return quizzes, nil
}

// store writes the list if the generation still equals gen. WATCH aborts the
// SET when an invalidation lands between the check and EXEC.
func (c *CatalogCache) store(ctx context.Context, gen int64, quizzes []domain.Quiz) {
	data, err := json.Marshal(quizzes)
	if err != nil {
		log.Printf("catalog cache: encode: %v", err)
		return
	}
	ttl := c.ttlWithJitter()
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, catalogKey, data, ttl)
			return nil
		})
		return err
	}, generationKey)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		log.Printf("catalog cache: store: %v", err)
	}
}

// Invalidate bumps the generation and removes the cached list. Failures are
// logged; the TTL bounds staleness.
func (c *CatalogCache) Invalidate(ctx context.Context) {
	c.writes.Add(1)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, catalogKey)
		return nil
	})
	if err != nil {
		log.Printf("catalog cache: invalidate: %v", err)
	}
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, c stringGetter) (int64, error) {
	gen, err := c.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *CatalogCache) cached(ctx context.Context) ([]domain.Quiz, bool) {
	data, err := c.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("catalog cache: load: %v", err)
		}
		return nil, false
	}
	var quizzes []domain.Quiz
	if err := json.Unmarshal(data, &quizzes); err != nil {
		log.Printf("catalog cache: decode: %v", err)
		return nil, false
	}
	if quizzes == nil {
		quizzes = []domain.Quiz{}
	}
	return quizzes, true
}

func (c *CatalogCache) CreateQuiz(ctx context.Context, quiz domain.NewQuiz) (domain.Quiz, error) {
	defer c.Invalidate(ctx)
	return c.QuizStore.CreateQuiz(ctx, quiz)
}

func (c *CatalogCache) UpdateQuiz(ctx context.Context, id domain.ID, fields domain.QuizFields) error {
	defer c.Invalidate(ctx)
	return c.QuizStore.UpdateQuiz(ctx, id, fields)
}

func (c *CatalogCache) DeleteQuiz(ctx context.Context, id domain.ID) error {
	defer c.Invalidate(ctx)
	return c.QuizStore.DeleteQuiz(ctx, id)
}

func (c *CatalogCache) CreateQuestion(ctx context.Context, question domain.NewQuestion) (domain.Question, error) {
	defer c.Invalidate(ctx)
	return c.QuizStore.CreateQuestion(ctx, question)
}

func (c *CatalogCache) UpdateQuestion(ctx context.Context, id domain.ID, text string, quizID domain.ID) error {
	defer c.Invalidate(ctx)
	return c.QuizStore.UpdateQuestion(ctx, id, text, quizID)
}

func (c *CatalogCache) DeleteQuestion(ctx context.Context, id domain.ID) error {
	defer c.Invalidate(ctx)
	return c.QuizStore.DeleteQuestion(ctx, id)
}

func (c *CatalogCache) UpdateAnswer(ctx context.Context, id domain.ID, text string, isCorrect bool, questionID domain.ID) error {
	defer c.Invalidate(ctx)
	return c.QuizStore.UpdateAnswer(ctx, id, text, isCorrect, questionID)
}

func (c *CatalogCache) DeleteAnswer(ctx context.Context, id domain.ID) error {
	defer c.Invalidate(ctx)
	return c.QuizStore.DeleteAnswer(ctx, id)
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
