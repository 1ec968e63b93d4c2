package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/stockline-hq/stockline-backend/api/responses"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
	pkgredis "github.com/stockline-hq/stockline-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

type routeMatcher func(string) bool

type idempotencyRule struct {
	method  string
	matcher routeMatcher
	ttl     time.Duration
}

func post(matcher routeMatcher, ttl time.Duration) idempotencyRule {
	return idempotencyRule{method: http.MethodPost, matcher: matcher, ttl: ttl}
}

var idempotencyRules = []idempotencyRule{
	// 24h TTL endpoints
	post(matchExact("/api/v1/channels"), defaultIdempotencyTTL),
	post(matchPrefixSuffix("/api/v1/channels/", "/mappings"), defaultIdempotencyTTL),
	post(matchPrefixSuffix("/api/v1/channels/", "/push"), defaultIdempotencyTTL),
	post(matchExact("/api/v1/invoices"), defaultIdempotencyTTL),
	// 7d TTL endpoints: money and stock movements
	post(matchExact("/api/v1/inventory/adjustments"), criticalIdempotencyTTL),
	post(matchPrefixSuffix("/api/v1/invoices/", "/receive"), criticalIdempotencyTTL),
	post(matchPrefixSuffix("/api/v1/invoices/", "/payments"), criticalIdempotencyTTL),
	post(matchPrefixSuffix("/api/v1/agent-actions/", "/approve"), criticalIdempotencyTTL),
	post(matchPrefixSuffix("/api/v1/agent-actions/", "/dismiss"), criticalIdempotencyTTL),
}

// storedResponse is the replayable snapshot persisted per idempotency
// key. RequestHash guards against the same key arriving with a
// different body.
type storedResponse struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s == nil {
		return
	}
	if ct, ok := s.Headers["Content-Type"]; ok && ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(s.Status)
	if decoded, err := base64.StdEncoding.DecodeString(s.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

// Idempotency replays prior responses for mutation endpoints that carry
// an Idempotency-Key header. Endpoints outside the rule table pass
// through untouched, as does everything when the store is nil.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := &idempotencyHandler{store: store, logg: logg, next: next}
		return http.HandlerFunc(h.serve)
	}
}

type idempotencyHandler struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
	next  http.Handler
}

func (h *idempotencyHandler) serve(w http.ResponseWriter, r *http.Request) {
	ttl, ok := routeTTL(r.Method, routePattern(r))
	if !ok || h.store == nil {
		h.next.ServeHTTP(w, r)
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	requestHash := requestDigest(body)
	key := h.store.IdempotencyKey(requestScope(r), idempotencyKey)

	if done := h.tryReplay(w, r, key, requestHash); done {
		return
	}

	rec := &bufferingWriter{ResponseWriter: w}
	h.next.ServeHTTP(rec, r)
	h.persist(r, key, requestHash, rec, ttl)
}

// tryReplay serves the stored response when the key was seen before.
// Returns true when the request is fully handled, including error paths.
func (h *idempotencyHandler) tryReplay(w http.ResponseWriter, r *http.Request, key, requestHash string) bool {
	stored, err := h.store.Get(r.Context(), key)
	if err != nil && !errors.Is(err, redis.Nil) {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return true
	}
	if stored == "" {
		return false
	}

	var record storedResponse
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return true
	}
	if record.RequestHash != requestHash {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return true
	}
	record.replay(w)
	return true
}

func (h *idempotencyHandler) persist(r *http.Request, key, requestHash string, rec *bufferingWriter, ttl time.Duration) {
	record := storedResponse{
		Status:      rec.statusOrOK(),
		Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
		RequestHash: requestHash,
	}
	if ct := rec.Header().Get("Content-Type"); ct != "" {
		record.Headers = map[string]string{"Content-Type": ct}
	}

	payload, err := json.Marshal(record)
	if err != nil {
		h.logStoreError(r, "marshal idempotency record", err)
		return
	}
	if _, err := h.store.SetNX(r.Context(), key, string(payload), ttl); err != nil {
		h.logStoreError(r, "persist idempotency record", err)
	}
}

func (h *idempotencyHandler) logStoreError(r *http.Request, msg string, err error) {
	if h.logg == nil || err == nil {
		return
	}
	h.logg.Error(r.Context(), msg, err)
}

// requestScope keys records per user, method, and path so the same
// Idempotency-Key can safely appear on different endpoints.
func requestScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

func requestDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	// subrouter patterns like /api/v1/channels/ carry a trailing slash
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return 0, false
	}
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.matcher(pattern) {
			return rule.ttl, true
		}
	}
	return 0, false
}

func matchExact(path string) routeMatcher {
	return func(pattern string) bool {
		return pattern == path
	}
}

func matchPrefixSuffix(prefix, suffix string) routeMatcher {
	return func(pattern string) bool {
		return strings.HasPrefix(pattern, prefix) && strings.HasSuffix(pattern, suffix)
	}
}

type bufferingWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *bufferingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bufferingWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bufferingWriter) statusOrOK() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
