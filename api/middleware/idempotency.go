package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/packfinderz-orderdesk/api/responses"
	"github.com/angelmondragon/packfinderz-orderdesk/api/validators"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
	pkgredis "github.com/angelmondragon/packfinderz-orderdesk/pkg/redis"
)

const (
	// IdempotencyKeyHeader carries the client's retry key on dispatch routes.
	IdempotencyKeyHeader = "Idempotency-Key"

	// ReplayedHeader is set on responses served from a stored record.
	ReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLen  = 255
	reversibleReplayTTL   = 24 * time.Hour
	irreversibleReplayTTL = 7 * 24 * time.Hour
	pendingIdempotencyTTL = 2 * time.Minute
	dispatchRoutePrefix   = "/api/v1/orders/"
)

type dispatchRoute struct {
	suffix string
	op     enums.OperationKind
	ttl    time.Duration
}

// Cancels and payment confirmations cannot be undone on the backend, so their replays are
// kept longer than the status and tracking ones.
var dispatchRoutes = []dispatchRoute{
	{suffix: "/status", op: enums.OperationAdvanceStatus, ttl: reversibleReplayTTL},
	{suffix: "/tracking", op: enums.OperationAddTracking, ttl: reversibleReplayTTL},
	{suffix: "/cancel", op: enums.OperationCancelItem, ttl: irreversibleReplayTTL},
	{suffix: "/payment-collection", op: enums.OperationConfirmPaymentCollection, ttl: irreversibleReplayTTL},
}

// dispatchRecord is what the store holds per key: a pending marker while the first request
// runs, then the response it produced.
type dispatchRecord struct {
	Pending     bool                `json:"pending,omitempty"`
	Operation   enums.OperationKind `json:"operation"`
	Status      int                 `json:"status,omitempty"`
	ContentType string              `json:"content_type,omitempty"`
	Body        string              `json:"body,omitempty"`
	RequestHash string              `json:"request_hash"`
}

// Idempotency makes dispatch routes safe to retry. The first request with a key reserves
// it, runs, and stores its 2xx response; later requests with the same key and body get
// that response back without reaching the backend. Failed dispatches release the key so
// the seller can retry them.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := matchDispatchRoute(r.Method, r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if err := checkIdempotencyKey(clientKey); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
						WithDetails(map[string]any{"max_bytes": tooLarge.Limit}))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashDispatch(route.op, r.URL.Path, body)
			key := store.IdempotencyKey(actorScope(r), clientKey)

			pending, _ := json.Marshal(dispatchRecord{Pending: true, Operation: route.op, RequestHash: requestHash})
			reserved, err := store.SetNX(ctx, key, string(pending), pendingIdempotencyTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayStored(ctx, logg, store, w, key, requestHash)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			detached := context.WithoutCancel(ctx)
			status := defaultStatus(rec.status)
			if status < http.StatusOK || status >= http.StatusMultipleChoices {
				if delErr := store.Del(detached, key); delErr != nil {
					logError(ctx, logg, "release idempotency key", delErr)
				}
				return
			}

			payload, err := json.Marshal(dispatchRecord{
				Operation:   route.op,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: requestHash,
			})
			if err != nil {
				logError(ctx, logg, "marshal idempotency record", err)
				return
			}
			// one overwrite, so the key is never free between the pending marker and the record
			if err := store.Set(detached, key, string(payload), route.ttl); err != nil {
				logError(ctx, logg, "persist idempotency record", err)
			}
		})
	}
}

func replayStored(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, w http.ResponseWriter, key, requestHash string) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the first request released the key between our reserve and this read
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInFlight, "retry the request"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var record dispatchRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != requestHash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different dispatch"))
		return
	}
	if record.Pending {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInFlight, "a request with this idempotency key is still running"))
		return
	}

	body, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stored response"))
		return
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "operation", record.Operation.String()), "dispatch replayed")
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(body)
}

func checkIdempotencyKey(key string) error {
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required")
	}
	if len(key) > maxIdempotencyKeyLen {
		return pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header too long").
			WithDetails(map[string]any{"max_length": maxIdempotencyKeyLen})
	}
	for _, r := range key {
		if r < 0x21 || r > 0x7e {
			return pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header must be printable ASCII")
		}
	}
	return nil
}

// actorScope keys records by who dispatched, so two sellers reusing a key never collide.
func actorScope(r *http.Request) string {
	if actor, ok := ActorFromContext(r.Context()); ok {
		return actor.Scope()
	}
	return "anonymous"
}

func hashDispatch(op enums.OperationKind, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(op.String()))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(bytes.TrimSpace(body))
	return base64.RawStdEncoding.EncodeToString(h.Sum(nil))
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

// matchDispatchRoute works on the raw path since the middleware runs inside the orders
// subrouter, before chi has resolved the final pattern.
func matchDispatchRoute(method, path string) (dispatchRoute, bool) {
	if method != http.MethodPost || !strings.HasPrefix(path, dispatchRoutePrefix) {
		return dispatchRoute{}, false
	}
	for _, route := range dispatchRoutes {
		if strings.HasSuffix(strings.TrimSuffix(path, "/"), route.suffix) {
			return route, true
		}
	}
	return dispatchRoute{}, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
