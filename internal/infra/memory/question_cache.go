package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-proctor/internal/domain"
)

// QuestionLoader fetches a question set from the external API.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, key domain.QuestionSetKey) ([]domain.Question, error)
}

// QuestionCache keeps each candidate's question set for a TTL so that a
// reconnect or a double-started session sees the same set the API drew.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[domain.QuestionSetKey]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.QuestionSetKey]cachedSet),
	}
}

func (c *QuestionCache) GetQuestions(ctx context.Context, key domain.QuestionSetKey) ([]domain.Question, error) {
	if qs, ok := c.lookup(key); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(key.String(), func() (interface{}, error) {
		if qs, ok := c.lookup(key); ok {
			return qs, nil
		}

		questions, err := c.loader.LoadQuestions(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return nil, domain.ErrNoQuestions
		}
		if c.ttl > 0 {
			expiresAt := c.clock().Add(c.ttlWithJitter())
			c.mu.Lock()
			c.cache[key] = cachedSet{questions: questions, expiresAt: expiresAt}
			c.mu.Unlock()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Forget drops a cached set, e.g. after the candidate submitted.
func (c *QuestionCache) Forget(_ context.Context, key domain.QuestionSetKey) error {
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()
	return nil
}

func (c *QuestionCache) lookup(key domain.QuestionSetKey) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves fixed question sets (useful for tests/demos).
type StaticQuestionLoader struct {
	sets map[int64][]domain.Question
}

func NewStaticQuestionLoader(sets map[int64][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{sets: sets}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, key domain.QuestionSetKey) ([]domain.Question, error) {
	if qs, ok := l.sets[key.TestID]; ok {
		return qs, nil
	}
	return nil, domain.ErrTestNotFound
}
