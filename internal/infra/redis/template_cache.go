package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TemplateCache stores code templates in a Redis hash per activity:
// HSET activity:{id}:templates {number}:{lang} {template}.
type TemplateCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTemplateCache(client *redis.Client, ttl time.Duration) *TemplateCache {
	return &TemplateCache{client: client, ttl: ttl}
}

func (c *TemplateCache) Put(ctx context.Context, activityID string, number int, lang, template string) error {
	key := c.key(activityID)
	if err := c.client.HSet(ctx, key, field(number, lang), template).Err(); err != nil {
		return fmt.Errorf("store template: %w", err)
	}
	if c.ttl > 0 {
		_ = c.client.Expire(ctx, key, c.ttl).Err()
	}
	return nil
}

func (c *TemplateCache) Template(ctx context.Context, activityID string, number int, lang string) (string, bool) {
	tpl, err := c.client.HGet(ctx, c.key(activityID), field(number, lang)).Result()
	if err != nil {
		return "", false
	}
	return tpl, true
}

func (c *TemplateCache) key(activityID string) string {
	return "activity:" + activityID + ":templates"
}

func field(number int, lang string) string {
	return fmt.Sprintf("%d:%s", number, lang)
}
