package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"adaptive-backend/internal/models"
)

// RecommendationCache memoizes recommendations between attempts. Every entry carries the
// version of the inputs it was computed from; Get only returns an entry whose version matches,
// so a late Set from a reader that saw older data can never be served. Misses and backend
// errors look the same to callers; the recommendation is simply recomputed.
type RecommendationCache interface {
	Get(ctx context.Context, studentID, courseID, version string) (*models.Recommendation, bool)
	Set(ctx context.Context, studentID, courseID, version string, rec models.Recommendation)
	Invalidate(ctx context.Context, studentID, courseID string)
	// InvalidateCourse drops every student's entry for the course, e.g. after a catalog change.
	InvalidateCourse(ctx context.Context, courseID string)
}

type NopRecommendationCache struct{}

func (NopRecommendationCache) Get(context.Context, string, string, string) (*models.Recommendation, bool) {
	return nil, false
}
func (NopRecommendationCache) Set(context.Context, string, string, string, models.Recommendation) {}
func (NopRecommendationCache) Invalidate(context.Context, string, string)                          {}
func (NopRecommendationCache) InvalidateCourse(context.Context, string)                            {}

type cachedRecommendation struct {
	Version        string                `json:"version"`
	Recommendation models.Recommendation `json:"recommendation"`
}

// recommendationKey length-prefixes the course id so ids containing ':' cannot collide.
func recommendationKey(studentID, courseID string) string {
	return "rec:" + strconv.Itoa(len(courseID)) + ":" + courseID + ":" + studentID
}

// coursePattern matches all keys of one course. Glob metacharacters in the id are escaped.
func coursePattern(courseID string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return "rec:" + strconv.Itoa(len(courseID)) + ":" + r.Replace(courseID) + ":*"
}

type RedisRecommendationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRecommendationCache(client *redis.Client, ttl time.Duration) *RedisRecommendationCache {
	return &RedisRecommendationCache{client: client, ttl: ttl}
}

func (c *RedisRecommendationCache) Get(ctx context.Context, studentID, courseID, version string) (*models.Recommendation, bool) {
	raw, err := c.client.Get(ctx, recommendationKey(studentID, courseID)).Bytes()
	if err != nil {
		return nil, false
	}
	var entry cachedRecommendation
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Version != version {
		return nil, false
	}
	return &entry.Recommendation, true
}

func (c *RedisRecommendationCache) Set(ctx context.Context, studentID, courseID, version string, rec models.Recommendation) {
	raw, err := json.Marshal(cachedRecommendation{Version: version, Recommendation: rec})
	if err != nil {
		return
	}
	c.client.Set(ctx, recommendationKey(studentID, courseID), raw, c.ttl)
}

func (c *RedisRecommendationCache) Invalidate(ctx context.Context, studentID, courseID string) {
	c.client.Del(ctx, recommendationKey(studentID, courseID))
}

func (c *RedisRecommendationCache) InvalidateCourse(ctx context.Context, courseID string) {
	iter := c.client.Scan(ctx, 0, coursePattern(courseID), 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			c.client.Del(ctx, batch...)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		c.client.Del(ctx, batch...)
	}
}

type memoryEntry struct {
	cachedRecommendation
	expires time.Time
}

type courseStudent struct {
	courseID, studentID string
}

// MemoryRecommendationCache is the single-instance cache used when Redis is not configured.
type MemoryRecommendationCache struct {
	mu      sync.Mutex
	entries map[courseStudent]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryRecommendationCache(ttl time.Duration) *MemoryRecommendationCache {
	return &MemoryRecommendationCache{
		entries: make(map[courseStudent]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryRecommendationCache) Get(_ context.Context, studentID, courseID, version string) (*models.Recommendation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := courseStudent{courseID, studentID}
	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, k)
		return nil, false
	}
	if e.Version != version {
		return nil, false
	}
	rec := e.Recommendation
	return &rec, true
}

func (c *MemoryRecommendationCache) Set(_ context.Context, studentID, courseID, version string, rec models.Recommendation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[courseStudent{courseID, studentID}] = memoryEntry{
		cachedRecommendation: cachedRecommendation{Version: version, Recommendation: rec},
		expires:              c.now().Add(c.ttl),
	}
}

func (c *MemoryRecommendationCache) Invalidate(_ context.Context, studentID, courseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, courseStudent{courseID, studentID})
}

func (c *MemoryRecommendationCache) InvalidateCourse(_ context.Context, courseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.courseID == courseID {
			delete(c.entries, k)
		}
	}
}
