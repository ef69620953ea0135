package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-room-service/internal/domain"
)

// QuestionCache stores accepted questions as a hash per topic:
//
//	HSET questions:{topic} {difficulty}:{slot} {question JSON}
//
// so every instance serving the same game redelivers identical questions.
type QuestionCache struct {
	client *redis.Client
	ttl    time.Duration
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Get(ctx context.Context, topic, difficulty string, slot int) (domain.Question, bool, error) {
	raw, err := c.client.HGet(ctx, c.topicKey(topic), c.field(difficulty, slot)).Bytes()
	if err == redis.Nil {
		return domain.Question{}, false, nil
	}
	if err != nil {
		return domain.Question{}, false, fmt.Errorf("question cache get: %w", err)
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, false, fmt.Errorf("unmarshal cached question: %w", err)
	}
	return q, true, nil
}

func (c *QuestionCache) Put(ctx context.Context, q domain.Question) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	key := c.topicKey(q.Topic)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, c.field(q.Difficulty, q.Slot), data)
	if ttl := c.ttlWithJitter(); ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (c *QuestionCache) topicKey(topic string) string {
	return "questions:" + topic
}

func (c *QuestionCache) field(difficulty string, slot int) string {
	return fmt.Sprintf("%s:%d", difficulty, slot)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
