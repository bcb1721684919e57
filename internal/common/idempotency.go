package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const idemInFlight = "locked"

// Idem provides an Idempotency-Key middleware backed by Redis. Completed responses are
// cached for TTL and replayed; concurrent duplicates get 409; server errors release the key.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

type idemRecord struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type idemRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *idemRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *idemRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.buf.Write(p)
	return r.ResponseWriter.Write(p)
}

func (i Idem) ttl() time.Duration {
	if i.TTL > 0 {
		return i.TTL
	}
	return 24 * time.Hour
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := idemKey(r.Method, r.URL.Path, header)
		ok, err := i.R.SetNX(ctx, key, idemInFlight, i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !ok {
			i.replay(ctx, w, key)
			return
		}

		rec := &idemRecorder{ResponseWriter: w}
		completed := false
		defer func() {
			bg := context.Background()
			if !completed || rec.status >= http.StatusInternalServerError {
				_ = i.R.Del(bg, key).Err()
				return
			}
			payload, err := json.Marshal(idemRecord{Status: rec.status, Body: json.RawMessage(rec.buf.Bytes())})
			if err != nil || !json.Valid(rec.buf.Bytes()) {
				payload, _ = json.Marshal(idemRecord{Status: rec.status, Body: json.RawMessage("null")})
			}
			_ = i.R.Set(bg, key, payload, i.ttl()).Err()
		}()
		next.ServeHTTP(rec, r)
		completed = true
	})
}

func (i Idem) replay(ctx context.Context, w http.ResponseWriter, key string) {
	raw, err := i.R.Get(ctx, key).Result()
	if err != nil || raw == idemInFlight {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request is still in progress", nil)
		return
	}
	var rec idemRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Status == 0 {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

// idemKey scopes a client key to the route it was sent to.
func idemKey(method, path, clientKey string) string {
	sum := sha256.Sum256([]byte(method + " " + path + " " + clientKey))
	return "idem:" + hex.EncodeToString(sum[:])
}
