package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"adaptive-backend/internal/models"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRecommendationKeys(t *testing.T) {
	if got := recommendationKey("s-1", "go-101"); got != "rec:6:go-101:s-1" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := coursePattern("go-101"); got != "rec:6:go-101:*" {
		t.Fatalf("unexpected pattern %q", got)
	}
	if got := coursePattern("c*[1]"); got != `rec:5:c\*\[1\]:*` {
		t.Fatalf("unexpected escaped pattern %q", got)
	}
	// Student "b:c" in course "a" and student "c" in course "a:b" must not share a key.
	if recommendationKey("b:c", "a") == recommendationKey("c", "a:b") {
		t.Fatal("colon-bearing ids collide")
	}
}

func cacheImplementations(t *testing.T) map[string]RecommendationCache {
	_, client := newMiniredis(t)
	return map[string]RecommendationCache{
		"redis":  NewRedisRecommendationCache(client, time.Minute),
		"memory": NewMemoryRecommendationCache(time.Minute),
	}
}

func TestRecommendationCache_VersionedGetSet(t *testing.T) {
	ctx := context.Background()
	rec := models.Recommendation{CourseID: "go-101", RecommendedTopic: "Loops", RecommendedDifficulty: models.DifficultyBeginner}

	for name, c := range cacheImplementations(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok := c.Get(ctx, "s-1", "go-101", "v1"); ok {
				t.Fatal("expected miss on empty cache")
			}

			c.Set(ctx, "s-1", "go-101", "v1", rec)
			got, ok := c.Get(ctx, "s-1", "go-101", "v1")
			if !ok || got.RecommendedTopic != "Loops" {
				t.Fatalf("expected hit for Loops, got %+v ok=%v", got, ok)
			}
			if _, ok := c.Get(ctx, "s-1", "go-101", "v2"); ok {
				t.Fatal("an entry for older inputs must not be served")
			}

			c.Invalidate(ctx, "s-1", "go-101")
			if _, ok := c.Get(ctx, "s-1", "go-101", "v1"); ok {
				t.Fatal("expected miss after invalidate")
			}
		})
	}
}

func TestRecommendationCache_CollidingIDsStaySeparate(t *testing.T) {
	ctx := context.Background()

	for name, c := range cacheImplementations(t) {
		t.Run(name, func(t *testing.T) {
			c.Set(ctx, "b:c", "a", "v1", models.Recommendation{RecommendedTopic: "Mine"})
			if _, ok := c.Get(ctx, "c", "a:b", "v1"); ok {
				t.Fatal("another student's entry was served")
			}
		})
	}
}

func TestRecommendationCache_InvalidateCourse(t *testing.T) {
	ctx := context.Background()

	for name, c := range cacheImplementations(t) {
		t.Run(name, func(t *testing.T) {
			c.Set(ctx, "s-1", "go-101", "v", models.Recommendation{RecommendedTopic: "Loops"})
			c.Set(ctx, "s-2", "go-101", "v", models.Recommendation{RecommendedTopic: "Loops"})
			c.Set(ctx, "s-1", "go-101:advanced", "v", models.Recommendation{RecommendedTopic: "Generics"})
			c.Set(ctx, "s-1", "go", "v", models.Recommendation{RecommendedTopic: "Basics"})

			c.InvalidateCourse(ctx, "go-101")

			for _, student := range []string{"s-1", "s-2"} {
				if _, ok := c.Get(ctx, student, "go-101", "v"); ok {
					t.Fatalf("expected %s entry for go-101 to be dropped", student)
				}
			}
			if _, ok := c.Get(ctx, "s-1", "go-101:advanced", "v"); !ok {
				t.Fatal("entries of other courses must survive")
			}
			if _, ok := c.Get(ctx, "s-1", "go", "v"); !ok {
				t.Fatal("entries of other courses must survive")
			}
		})
	}
}

func TestRedisRecommendationCache_TTL(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewRedisRecommendationCache(client, 30*time.Second)
	ctx := context.Background()

	c.Set(ctx, "s-1", "go-101", "v", models.Recommendation{RecommendedTopic: "Loops"})
	if ttl := mr.TTL(recommendationKey("s-1", "go-101")); ttl != 30*time.Second {
		t.Fatalf("expected 30s ttl, got %v", ttl)
	}

	mr.FastForward(31 * time.Second)
	if _, ok := c.Get(ctx, "s-1", "go-101", "v"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestMemoryRecommendationCache_TTL(t *testing.T) {
	c := NewMemoryRecommendationCache(time.Minute)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "s-1", "go-101", "v", models.Recommendation{RecommendedTopic: "Loops"})
	now = now.Add(59 * time.Second)
	if _, ok := c.Get(ctx, "s-1", "go-101", "v"); !ok {
		t.Fatal("expected hit before expiry")
	}
	now = now.Add(2 * time.Second)
	if _, ok := c.Get(ctx, "s-1", "go-101", "v"); ok {
		t.Fatal("expected miss after expiry")
	}
}
