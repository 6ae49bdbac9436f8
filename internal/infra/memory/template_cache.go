package memory

import (
	"context"
	"fmt"
	"sync"
)

// TemplateCache keeps code templates for CodeInput/EmbeddedProblem questions in
// process memory, keyed by activity, question number, and language.
type TemplateCache struct {
	mu        sync.RWMutex
	templates map[string]string
}

func NewTemplateCache() *TemplateCache {
	return &TemplateCache{templates: make(map[string]string)}
}

func (c *TemplateCache) Put(activityID string, number int, lang, template string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[templateKey(activityID, number, lang)] = template
}

func (c *TemplateCache) Template(_ context.Context, activityID string, number int, lang string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tpl, ok := c.templates[templateKey(activityID, number, lang)]
	return tpl, ok
}

func templateKey(activityID string, number int, lang string) string {
	return fmt.Sprintf("%s:%d:%s", activityID, number, lang)
}
