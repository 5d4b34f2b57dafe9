package cache

import (
	"context"
	"strings"
	"testing"
	"time"
)

type stubRedis struct {
	data map[string][]byte
	ttls map[string]time.Duration
}

func newStubRedis() *stubRedis {
	return &stubRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *stubRedis) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := s.data[key]
	return raw, ok, nil
}

func (s *stubRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.data[key] = value.([]byte)
	s.ttls[key] = ttl
	return nil
}

func (s *stubRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *stubRedis) DeletePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

func (s *stubRedis) CacheKey(parts ...string) string {
	return "of:cache:" + strings.Join(parts, ":")
}

func TestRedisRoundTripsJSONUnderNamespace(t *testing.T) {
	ctx := context.Background()
	store := newStubRedis()
	c, err := NewRedis(store)
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}

	if err := c.Set(ctx, "coupon:c1:SAVE10", quote{Total: "10"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := store.data["of:cache:coupon:c1:SAVE10"]; !ok {
		t.Fatalf("expected namespaced key, have %v", store.data)
	}
	if store.ttls["of:cache:coupon:c1:SAVE10"] != time.Minute {
		t.Fatalf("ttl not forwarded")
	}

	var got quote
	found, err := c.Get(ctx, "coupon:c1:SAVE10", &got)
	if err != nil || !found || got.Total != "10" {
		t.Fatalf("unexpected get result found=%v err=%v got=%+v", found, err, got)
	}

	if err := c.DeletePrefix(ctx, "coupon:c1:"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if found, _ := c.Get(ctx, "coupon:c1:SAVE10", &got); found {
		t.Fatalf("expected miss after prefix delete")
	}
}

func TestNewRedisRequiresStore(t *testing.T) {
	if _, err := NewRedis(nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}
