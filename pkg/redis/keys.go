package redis

import "strings"

const defaultNamespace = "of"

// Every key the services write lives under <namespace>:<kind>:...
const (
	kindIdempotency = "idempotency"
	kindCache       = "cache"
	kindLock        = "lock"
	kindCounter     = "counter"
)

func (c *Client) key(kind string, parts ...string) string {
	var b strings.Builder
	ns := defaultNamespace
	if c != nil && c.namespace != "" {
		ns = c.namespace
	}
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string { return c.key(kindIdempotency, scope, id) }

// CacheKey skips empty parts, so an absent coupon code does not leave "::".
func (c *Client) CacheKey(parts ...string) string { return c.key(kindCache, parts...) }

func (c *Client) LockKey(name string) string { return c.key(kindLock, name) }

func (c *Client) CounterKey(name string) string { return c.key(kindCounter, name) }
