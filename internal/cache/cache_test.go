package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"crewplan/internal/cache"
	"crewplan/internal/domain"
)

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	c := cache.New(srv.Addr(), time.Minute, nil)
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func sampleResult() domain.ValidationResult {
	return domain.ValidationResult{
		IsValid:  false,
		Errors:   []domain.Finding{{ID: "duplicate_id-1", Type: domain.FindingDuplicateID, Severity: domain.SeverityError, Entity: domain.EntityClient, RecordID: "C1", Message: "dup"}},
		Warnings: []domain.Finding{},
		Summary:  domain.ValidationSummary{TotalFindings: 1, Errors: 1, ByType: map[string]int{domain.FindingDuplicateID: 1}},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	want := sampleResult()
	c.PutResult(ctx, "hash-1", want)
	got, hit := c.GetResult(ctx, "hash-1")
	if !hit {
		t.Fatalf("expected a hit")
	}
	if got.IsValid != want.IsValid || len(got.Errors) != 1 || got.Errors[0].ID != "duplicate_id-1" {
		t.Fatalf("got %+v", got)
	}
}

func TestMissOnUnknownHash(t *testing.T) {
	c, _ := newTestCache(t)
	if _, hit := c.GetResult(context.Background(), "nope"); hit {
		t.Fatalf("expected a miss")
	}
}

func TestMissOnExpiredEntry(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()
	c.PutResult(ctx, "hash-1", sampleResult())
	srv.FastForward(2 * time.Minute)
	if _, hit := c.GetResult(ctx, "hash-1"); hit {
		t.Fatalf("expected a miss after TTL")
	}
}

func TestMissOnUndecodableEntry(t *testing.T) {
	c, srv := newTestCache(t)
	srv.Set("crewplan:validation:hash-1", "{not json")
	if _, hit := c.GetResult(context.Background(), "hash-1"); hit {
		t.Fatalf("expected a miss for garbage payload")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *cache.Cache
	ctx := context.Background()
	if _, hit := c.GetResult(ctx, "x"); hit {
		t.Fatalf("nil cache reported a hit")
	}
	c.PutResult(ctx, "x", sampleResult())
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMissWhenServerDown(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()
	c.PutResult(ctx, "hash-1", sampleResult())
	srv.Close()
	if _, hit := c.GetResult(ctx, "hash-1"); hit {
		t.Fatalf("expected a miss with the server down")
	}
	c.PutResult(ctx, "hash-2", sampleResult())
}
