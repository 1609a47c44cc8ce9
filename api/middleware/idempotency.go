package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/projectmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/projectmarket-backend/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	maxIdempotencyKeyLen   = 255
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotentWrites lists the offer writes that honor Idempotency-Key, keyed
// by method and chi route pattern. Zero falls back to the configured TTL.
var idempotentWrites = map[string]time.Duration{
	http.MethodPost + " /api/v1/offers": 0,
	// a decision may open a payment intent, so keep it replayable for a week
	http.MethodPut + " /api/v1/offers/{offerId}":   criticalIdempotencyTTL,
	http.MethodPatch + " /api/v1/offers/{offerId}": criticalIdempotencyTTL,
}

// storedResponse is what a replay writes back. Body is base64 on the wire.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first response to a repeated offer write carrying
// the same Idempotency-Key for the same caller. Reusing a key with a
// different body is rejected. 5xx responses are not kept, so the client can
// retry under the same key.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			routeTTL, guarded := idempotencyTTL(r.Method, routePattern(r))
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if !guarded || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}
			if routeTTL == 0 {
				routeTTL = ttl
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			raw, err := store.Get(ctx, key)
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			default:
				var prior storedResponse
				if err := json.Unmarshal([]byte(raw), &prior); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if prior.RequestHash != hash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				if prior.ContentType != "" {
					w.Header().Set("Content-Type", prior.ContentType)
				}
				w.WriteHeader(prior.Status)
				_, _ = w.Write(prior.Body)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= http.StatusInternalServerError {
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, key, string(payload), routeTTL)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

// idempotencyTTL reports whether method and pattern name a guarded write and
// the TTL it asks for.
func idempotencyTTL(method, pattern string) (time.Duration, bool) {
	ttl, ok := idempotentWrites[method+" "+strings.TrimSuffix(pattern, "/")]
	return ttl, ok
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *recordingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
