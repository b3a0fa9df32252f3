package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benx421/smartcards/internal/models"
	"github.com/benx421/smartcards/internal/repository"
	"github.com/benx421/smartcards/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body)) //nolint:errcheck // test helper
	})
}

func keyedRequest(method, path, key string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	return req
}

func TestIdempotency_PassThrough(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		key    string
	}{
		{name: "read request", method: http.MethodGet, path: "/api/v1/cards", key: "k1"},
		{name: "session connect", method: http.MethodPost, path: "/api/v1/session", key: "k1"},
		{name: "no key", method: http.MethodPost, path: "/api/v1/cards"},
		{name: "prefix lookalike", method: http.MethodPost, path: "/api/v1/cardsets", key: "k1"},
		{name: "delete is not a mutation route", method: http.MethodDelete, path: "/api/v1/cards/2", key: "k1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No expectations: any repository call fails the test
			repo := mocks.NewMockIdempotencyRepository(t)

			var called bool
			handler := Idempotency(repo, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusNoContent)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, keyedRequest(tt.method, tt.path, tt.key))

			assert.True(t, called)
			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Empty(t, rec.Header().Get("X-Idempotent-Replayed"))
		})
	}
}

func TestIdempotency_StoresSuccessfulMutations(t *testing.T) {
	routes := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/api/v1/cards", http.StatusCreated},
		{http.MethodPost, "/api/v1/cards/4/deposits", http.StatusOK},
		{http.MethodPost, "/api/v1/cards/4/withdrawals", http.StatusOK},
		{http.MethodPost, "/api/v1/cards/4/spends", http.StatusOK},
		{http.MethodPost, "/api/v1/cards/4/reset", http.StatusOK},
		{http.MethodPut, "/api/v1/cards/4/status", http.StatusOK},
		{http.MethodPut, "/api/v1/cards/4/limit", http.StatusOK},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			body := `{"tx_hash":"0x01","block":12}`
			repo := mocks.NewMockIdempotencyRepository(t)
			repo.On("Get", mock.Anything, "mut-1", route.path).Return(nil, nil)
			repo.On("Store", mock.Anything, mock.MatchedBy(func(k *models.IdempotencyKey) bool {
				return k.Key == "mut-1" &&
					k.RequestPath == route.path &&
					k.ResponseStatus == route.status &&
					k.ResponseBody == body &&
					!k.CreatedAt.IsZero()
			})).Return(nil)

			rec := httptest.NewRecorder()
			Idempotency(repo, testLogger())(testHandler(route.status, body)).
				ServeHTTP(rec, keyedRequest(route.method, route.path, "mut-1"))

			assert.Equal(t, route.status, rec.Code)
			assert.Equal(t, body, rec.Body.String())
			assert.Empty(t, rec.Header().Get("X-Idempotent-Replayed"))
		})
	}
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	repo := mocks.NewMockIdempotencyRepository(t)
	repo.On("Get", mock.Anything, "create-7", "/api/v1/cards").Return(&models.IdempotencyKey{
		Key:            "create-7",
		RequestPath:    "/api/v1/cards",
		ResponseStatus: http.StatusCreated,
		ResponseBody:   `{"card_id":7}`,
	}, nil)

	var calls int
	handler := Idempotency(repo, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/cards", "create-7"))

	assert.Zero(t, calls, "a replay must not reach the ledger")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"card_id":7}`, rec.Body.String())
	assert.Equal(t, "true", rec.Header().Get("X-Idempotent-Replayed"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestIdempotency_FailedMutationsNotStored(t *testing.T) {
	statuses := []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusPaymentRequired,
		http.StatusConflict,
		http.StatusInternalServerError,
		http.StatusBadGateway,
	}

	for _, status := range statuses {
		t.Run(http.StatusText(status), func(t *testing.T) {
			repo := mocks.NewMockIdempotencyRepository(t)
			repo.On("Get", mock.Anything, "retry-me", "/api/v1/cards/1/spends").Return(nil, nil)

			rec := httptest.NewRecorder()
			Idempotency(repo, testLogger())(testHandler(status, `{"error":"x"}`)).
				ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/cards/1/spends", "retry-me"))

			assert.Equal(t, status, rec.Code)
			repo.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
		})
	}
}

func TestIdempotency_RepositoryFailures(t *testing.T) {
	t.Run("lookup failure fails open", func(t *testing.T) {
		repo := mocks.NewMockIdempotencyRepository(t)
		repo.On("Get", mock.Anything, "k", "/api/v1/cards").Return(nil, errors.New("connection reset"))

		rec := httptest.NewRecorder()
		Idempotency(repo, testLogger())(testHandler(http.StatusCreated, `{"card_id":0}`)).
			ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/cards", "k"))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, `{"card_id":0}`, rec.Body.String())
	})

	t.Run("store failure keeps the response", func(t *testing.T) {
		repo := mocks.NewMockIdempotencyRepository(t)
		repo.On("Get", mock.Anything, "k", "/api/v1/cards").Return(nil, nil)
		repo.On("Store", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		rec := httptest.NewRecorder()
		Idempotency(repo, testLogger())(testHandler(http.StatusCreated, `{"card_id":0}`)).
			ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/cards", "k"))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, `{"card_id":0}`, rec.Body.String())
	})
}

func TestIdempotency_KeysScopedByPath(t *testing.T) {
	repo := repository.NewMemoryIdempotencyRepository()

	var calls atomic.Int32
	handler := Idempotency(repo, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(r.URL.Path + "#" + string(rune('0'+n)))) //nolint:errcheck // test helper
	}))

	serve := func(path string) string {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest(http.MethodPost, path, "shared"))
		return rec.Body.String()
	}

	assert.Equal(t, "/api/v1/cards/0/deposits#1", serve("/api/v1/cards/0/deposits"))
	assert.Equal(t, "/api/v1/cards/0/withdrawals#2", serve("/api/v1/cards/0/withdrawals"))
	assert.Equal(t, "/api/v1/cards/0/deposits#1", serve("/api/v1/cards/0/deposits"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotency_TrailingSlashSharesKey(t *testing.T) {
	repo := mocks.NewMockIdempotencyRepository(t)
	repo.On("Get", mock.Anything, "slash-key", "/api/v1/cards/3/spends").Return(nil, nil).Once()
	repo.On("Store", mock.Anything, mock.AnythingOfType("*models.IdempotencyKey")).Return(nil).Once()

	middleware := Idempotency(repo, testLogger())
	handler := testHandler(http.StatusOK, `{}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cards/3/spends/", nil)
	req.Header.Set("Idempotency-Key", "slash-key")
	middleware(handler).ServeHTTP(httptest.NewRecorder(), req)
}

func TestIdempotency_PrefixLookalikeBypassed(t *testing.T) {
	repo := mocks.NewMockIdempotencyRepository(t)
	middleware := Idempotency(repo, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cardsets", nil)
	req.Header.Set("Idempotency-Key", "test-key")
	middleware(testHandler(http.StatusOK, `{}`)).ServeHTTP(httptest.NewRecorder(), req)

	repo.AssertNotCalled(t, "Get")
}

func TestIdempotency_OverlongKeyRejected(t *testing.T) {
	repo := mocks.NewMockIdempotencyRepository(t)
	middleware := Idempotency(repo, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cards", nil)
	req.Header.Set("Idempotency-Key", strings.Repeat("k", 256))
	rec := httptest.NewRecorder()

	middleware(testHandler(http.StatusCreated, `{}`)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
	repo.AssertNotCalled(t, "Get")
}

func TestIdempotency_ConcurrentRetriesSubmitOnce(t *testing.T) {
	repo := repository.NewMemoryIdempotencyRepository()
	middleware := Idempotency(repo, testLogger())

	var calls atomic.Int32
	release := make(chan struct{})
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"tx_hash":"0xabc"}`)) //nolint:errcheck // test helper
	}))

	const retries = 5
	recs := make([]*httptest.ResponseRecorder, retries)
	var wg sync.WaitGroup
	for i := range retries {
		recs[i] = httptest.NewRecorder()
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cards/0/spends", nil)
			req.Header.Set("Idempotency-Key", "spend-1")
			handler.ServeHTTP(recs[i], req)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, rec := range recs {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"tx_hash":"0xabc"}`, rec.Body.String())
	}
}

func TestKeyLocks_ReleasesEntries(t *testing.T) {
	locks := newKeyLocks()

	unlock := locks.lock("a")
	assert.Len(t, locks.locks, 1)
	unlock()

	assert.Empty(t, locks.locks)
}
