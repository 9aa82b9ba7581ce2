package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-editor/internal/app"
	"quiz-editor/internal/domain"
)

const catalogKey = "catalog"

// CatalogCache caches the quiz list of a store with a TTL. Concurrent misses
// share one fetch, and every write through the cache drops the cached list
// and bumps the version, so fills that raced the write are not stored.
type CatalogCache struct {
	app.QuizStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu        sync.RWMutex
	quizzes   []domain.Quiz
	expiresAt time.Time
	version   uint64
}

func NewCatalogCache(store app.QuizStore, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		QuizStore: store,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	if quizzes, ok := c.cached(); ok {
		return quizzes, nil
	}

	version := c.currentVersion()
	// Flights are keyed by version so a call made after a write never joins
	// a fetch that started before it.
	result, err, _ := c.sf.Do(catalogKey+":"+strconv.FormatUint(version, 10), func() (interface{}, error) {
		if quizzes, ok := c.cached(); ok {
			return quizzes, nil
		}
		return c.fill(ctx, version)
	})
	if err != nil {
		return nil, err
	}
	return domain.CloneQuizzes(result.([]domain.Quiz)), nil
}

// ReloadQuizzes fetches the list from the wrapped store without consulting
// the cache or joining an in-flight fetch, then refills the cache.
func (c *CatalogCache) ReloadQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := c.fill(ctx, c.currentVersion())
	if err != nil {
		return nil, err
	}
	return domain.CloneQuizzes(quizzes), nil
}

// fill fetches the list and stores it unless a write happened since version
// was read.
func (c *CatalogCache) fill(ctx context.Context, version uint64) ([]domain.Quiz, error) {
	quizzes, err := c.QuizStore.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.version == version {
		c.quizzes = domain.CloneQuizzes(quizzes)
		c.expiresAt = c.clock().Add(c.ttlWithJitter())
	}
	c.mu.Unlock()
	return quizzes, nil
}

func (c *CatalogCache) currentVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Invalidate drops the cached list.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	c.quizzes = nil
	c.expiresAt = time.Time{}
	c.version++
	c.mu.Unlock()
}

func (c *CatalogCache) cached() ([]domain.Quiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.quizzes == nil || !c.expiresAt.After(c.clock()) {
		return nil, false
	}
	return domain.CloneQuizzes(c.quizzes), true
}

func (c *CatalogCache) CreateQuiz(ctx context.Context, quiz domain.NewQuiz) (domain.Quiz, error) {
	defer c.Invalidate()
	return c.QuizStore.CreateQuiz(ctx, quiz)
}

func (c *CatalogCache) UpdateQuiz(ctx context.Context, id domain.ID, fields domain.QuizFields) error {
	defer c.Invalidate()
	return c.QuizStore.UpdateQuiz(ctx, id, fields)
}

func (c *CatalogCache) DeleteQuiz(ctx context.Context, id domain.ID) error {
	defer c.Invalidate()
	return c.QuizStore.DeleteQuiz(ctx, id)
}

func (c *CatalogCache) CreateQuestion(ctx context.Context, question domain.NewQuestion) (domain.Question, error) {
	defer c.Invalidate()
	return c.QuizStore.CreateQuestion(ctx, question)
}

func (c *CatalogCache) UpdateQuestion(ctx context.Context, id domain.ID, text string, quizID domain.ID) error {
	defer c.Invalidate()
	return c.QuizStore.UpdateQuestion(ctx, id, text, quizID)
}

func (c *CatalogCache) DeleteQuestion(ctx context.Context, id domain.ID) error {
	defer c.Invalidate()
	return c.QuizStore.DeleteQuestion(ctx, id)
}

func (c *CatalogCache) UpdateAnswer(ctx context.Context, id domain.ID, text string, isCorrect bool, questionID domain.ID) error {
	defer c.Invalidate()
	return c.QuizStore.UpdateAnswer(ctx, id, text, isCorrect, questionID)
}

func (c *CatalogCache) DeleteAnswer(ctx context.Context, id domain.ID) error {
	defer c.Invalidate()
	return c.QuizStore.DeleteAnswer(ctx, id)
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
