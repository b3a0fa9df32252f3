package handlers

import (
	"log/slog"
	"net/http"

	"github.com/benx421/smartcards/internal/api"
	"github.com/benx421/smartcards/internal/config"
	"github.com/benx421/smartcards/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every route on a new mux and wraps it in the
// middleware chain. gatherer backs /metrics; nil means the default registry.
func NewRouter(
	handler *Handler,
	idempotencyRepo middleware.IdempotencyRepository,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
	logger *slog.Logger,
) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	api.RegisterDocsRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", handler.GetHealth)

	mux.HandleFunc("GET /api/v1/wallets/{address}/portfolio", handler.GetPortfolio)
	mux.HandleFunc("GET /api/v1/wallets/{address}/cards", handler.ListCards)
	mux.HandleFunc("GET /api/v1/wallets/{address}/events", handler.ListEvents)
	mux.HandleFunc("GET /api/v1/wallets/{address}/spends", handler.ListSpends)
	mux.HandleFunc("GET /api/v1/wallets/{address}/qr", handler.GetWalletQR)

	mux.HandleFunc("POST /api/v1/cards", handler.CreateCard)
	mux.HandleFunc("POST /api/v1/cards/{cardId}/deposits", handler.DepositToCard)
	mux.HandleFunc("POST /api/v1/cards/{cardId}/withdrawals", handler.WithdrawFromCard)
	mux.HandleFunc("POST /api/v1/cards/{cardId}/spends", handler.SpendFromCard)
	mux.HandleFunc("POST /api/v1/cards/{cardId}/reset", handler.ResetCardSpent)
	mux.HandleFunc("PUT /api/v1/cards/{cardId}/status", handler.SetCardStatus)
	mux.HandleFunc("PUT /api/v1/cards/{cardId}/limit", handler.ChangeCardLimit)

	mux.HandleFunc("GET /api/v1/session", handler.GetSession)
	mux.HandleFunc("POST /api/v1/session", handler.ConnectWallet)
	mux.HandleFunc("DELETE /api/v1/session", handler.DisconnectWallet)
	mux.HandleFunc("PUT /api/v1/session/network", handler.SwitchNetwork)
	mux.HandleFunc("GET /api/v1/session/portfolio", handler.GetSessionPortfolio)

	var finalHandler http.Handler = mux

	finalHandler = middleware.FailureInjection(&cfg.App, logger)(finalHandler)
	finalHandler = middleware.Idempotency(idempotencyRepo, logger)(finalHandler)
	finalHandler = middleware.Recover(logger)(finalHandler)
	finalHandler = middleware.RequestLogging(logger)(finalHandler)

	return finalHandler
}
