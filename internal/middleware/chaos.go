package middleware

import (
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/benx421/smartcards/internal/config"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// chaosPrefix scopes fault injection to the ledger-backed API. Health,
// metrics and docs always answer normally.
const chaosPrefix = "/api/v1/"

// FailureInjection delays API requests and fails a share of them the way a
// slow or unreachable ledger node would, so clients can rehearse both. It is
// a pass-through unless FAILURE_RATE or the latency bounds are set.
func FailureInjection(cfg *config.AppConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	minDelay := time.Duration(cfg.MinLatencyMS) * time.Millisecond
	maxDelay := time.Duration(cfg.MaxLatencyMS) * time.Millisecond
	enabled := cfg.FailureRate > 0 || maxDelay > 0 || minDelay > 0

	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, chaosPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			if delay := randomDelay(minDelay, maxDelay); delay > 0 {
				select {
				case <-time.After(delay):
				case <-r.Context().Done():
					// Client gave up while the simulated node was stalling
					return
				}
			}

			if shouldInjectFailure(cfg.FailureRate) {
				logger.Debug("injecting ledger failure",
					"path", r.URL.Path,
					"method", r.Method,
				)
				writeMiddlewareError(w, http.StatusBadGateway, "ledger_unavailable", "injected ledger failure")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// randomDelay picks a delay in [minDelay, maxDelay]
func randomDelay(minDelay, maxDelay time.Duration) time.Duration {
	spread := maxDelay - minDelay
	if spread <= 0 {
		return max(minDelay, 0)
	}
	offset, err := rand.Int(rand.Reader, big.NewInt(int64(spread)+1))
	if err != nil {
		return minDelay
	}
	return minDelay + time.Duration(offset.Int64())
}

func shouldInjectFailure(failureRate float64) bool {
	if failureRate <= 0 {
		return false
	}
	if failureRate >= 1 {
		return true
	}

	const precision = 1000000
	n, err := rand.Int(rand.Reader, big.NewInt(precision))
	if err != nil {
		return false
	}
	return n.Int64() < int64(failureRate*precision)
}

func writeMiddlewareError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best effort response writing
	json.NewEncoder(w).Encode(errorResponse{Error: code, Message: message})
}
