package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-proctor/internal/domain"
	"quiz-proctor/internal/infra/memory"
)

// QuestionCache keeps each drawn question set in Redis so that every
// instance hands a reconnecting candidate the same set.
// Sets are stored as: SET proctor:questions:{testID}:{telegramID}:{trial} <json>
type QuestionCache struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) GetQuestions(ctx context.Context, key domain.QuestionSetKey) ([]domain.Question, error) {
	if qs, ok := c.lookup(ctx, key); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(key.String(), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := c.lookup(ctx, key); ok {
			return qs, nil
		}

		questions, err := c.loader.LoadQuestions(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return nil, domain.ErrNoQuestions
		}

		if payload, err := json.Marshal(questions); err == nil {
			_ = c.client.Set(ctx, c.key(key), payload, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Forget drops a cached set.
func (c *QuestionCache) Forget(ctx context.Context, key domain.QuestionSetKey) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *QuestionCache) lookup(ctx context.Context, key domain.QuestionSetKey) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		// redis.Nil or a transient error: fall through to the loader
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil || len(questions) == 0 {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) key(key domain.QuestionSetKey) string {
	return "proctor:questions:" + key.String()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
