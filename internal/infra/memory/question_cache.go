package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"trivia-room-service/internal/domain"
)

// QuestionCache keeps accepted questions in-process with a TTL, so
// redelivering a slot returns the same question without another
// generator round-trip.
type QuestionCache struct {
	ttl   time.Duration
	clock func() time.Time
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionCache(ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedQuestion),
	}
}

func (c *QuestionCache) Get(_ context.Context, topic, difficulty string, slot int) (domain.Question, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[cacheKey(topic, difficulty, slot)]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Question{}, false, nil
	}
	return entry.question, true, nil
}

func (c *QuestionCache) Put(_ context.Context, q domain.Question) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[cacheKey(q.Topic, q.Difficulty, q.Slot)] = cachedQuestion{
		question:  q,
		expiresAt: c.clock().Add(c.ttlWithJitter()),
	}
	return nil
}

func cacheKey(topic, difficulty string, slot int) string {
	return fmt.Sprintf("%s|%s|%d", topic, difficulty, slot)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return time.Hour
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
