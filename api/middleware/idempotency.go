package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/orderflow-backend/api/responses"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "Idempotent-Replayed"

	maxIdempotentBody = 1 << 20
)

// replayedHeaders are copied from the original response into the stored
// record.
var replayedHeaders = []string{"Content-Type", "Location"}

// IdempotencyPolicy names a group of mutating routes sharing one key space.
// TTL is how long a finished response is replayable; InFlight bounds the lock
// held while the first request is still running.
type IdempotencyPolicy struct {
	Name     string
	TTL      time.Duration
	InFlight time.Duration
}

type idempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// storedResponse is either a pending marker (Status 0) or a finished response.
type storedResponse struct {
	Fingerprint string            `json:"fingerprint"`
	Status      int               `json:"status,omitempty"`
	Header      map[string]string `json:"header,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

func (s storedResponse) pending() bool { return s.Status == 0 }

// Idempotency makes the wrapped route safe to retry. The first request with a
// given Idempotency-Key takes a lock, runs, and leaves its response behind;
// later requests with the same key and body get that response back with an
// Idempotent-Replayed header. A different body under the same key is
// IDEMPOTENCY_KEY_REUSED, and a retry racing the first request is CONFLICT.
// 5xx responses release the key. A nil store disables the check.
func Idempotency(policy IdempotencyPolicy, store idempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	if policy.InFlight <= 0 {
		policy.InFlight = 30 * time.Second
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := requestFingerprint(r, body)
			key := store.IdempotencyKey(policy.Name+":"+UserIDFromContext(ctx), clientKey)

			marker, err := json.Marshal(storedResponse{Fingerprint: fingerprint})
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency marker"))
				return
			}
			acquired, err := store.SetNX(ctx, key, string(marker), policy.InFlight)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key"))
				return
			}
			if !acquired {
				replay(ctx, w, store, key, fingerprint, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// detach from the request so a disconnecting client cannot strand the lock
			bg := context.WithoutCancel(ctx)
			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Del(bg, key); err != nil {
					logg.Error(bg, "release idempotency key", err)
				}
				return
			}

			record := storedResponse{
				Fingerprint: fingerprint,
				Status:      status,
				Body:        capture.body.Bytes(),
			}
			for _, name := range replayedHeaders {
				if v := capture.Header().Get(name); v != "" {
					if record.Header == nil {
						record.Header = make(map[string]string, len(replayedHeaders))
					}
					record.Header[name] = v
				}
			}
			payload, err := json.Marshal(record)
			if err == nil {
				err = store.Set(bg, key, string(payload), policy.TTL)
			}
			if err != nil {
				logg.Error(bg, "persist idempotent response", err)
			}
		})
	}
}

func replay(ctx context.Context, w http.ResponseWriter, store idempotencyStore, key, fingerprint string, logg *logger.Logger) {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency key"))
		return
	}
	if !found {
		// the lock expired or a 5xx released it between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key was interrupted, retry"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
	case stored.pending():
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
	default:
		for name, v := range stored.Header {
			w.Header().Set(name, v)
		}
		w.Header().Set(IdempotencyReplayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

// requestFingerprint covers the method and concrete path as well as the body
// so one key cannot be replayed against a different order.
func requestFingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
