package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/benx421/smartcards/internal/api"
	"github.com/oapi-codegen/runtime"
	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// GetPortfolio handles GET /api/v1/wallets/{address}/portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	owner, err := bindAddress(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var tz *string
	if err := runtime.BindQueryParameter("form", true, false, "tz", r.URL.Query(), &tz); err != nil {
		h.writeError(w, r, invalidRequest("invalid tz parameter", err))
		return
	}
	loc := h.location
	if tz != nil && *tz != "" {
		loc, err = time.LoadLocation(*tz)
		if err != nil {
			h.writeError(w, r, invalidRequest(fmt.Sprintf("unknown timezone %q", *tz), err))
			return
		}
	}

	portfolio, err := h.portfolios.ComputePortfolioIn(r.Context(), owner, loc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.Portfolio{Portfolio: portfolio, Unit: h.units.Symbol})
}

// ListCards handles GET /api/v1/wallets/{address}/cards
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	owner, err := bindAddress(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var spendable *bool
	if err := runtime.BindQueryParameter("form", true, false, "spendable", r.URL.Query(), &spendable); err != nil {
		h.writeError(w, r, invalidRequest("invalid spendable parameter", err))
		return
	}

	list := h.portfolios.ListOwnedCards
	if spendable != nil && *spendable {
		list = h.portfolios.ListSpendableCards
	}
	cards, err := list(r.Context(), owner)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toCards(cards))
}

// ListEvents handles GET /api/v1/wallets/{address}/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	owner, err := bindAddress(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	events, err := h.portfolios.ListOwnedEvents(r.Context(), owner)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toEvents(events))
}

// ListSpends handles GET /api/v1/wallets/{address}/spends
func (h *Handler) ListSpends(w http.ResponseWriter, r *http.Request) {
	owner, err := bindAddress(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	limit := DefaultSpendsLimit
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil || limit < 0 {
		h.writeError(w, r, invalidRequest("limit must be a non-negative integer", err))
		return
	}

	events, err := h.portfolios.RecentSpends(r.Context(), owner, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toEvents(events))
}

// GetWalletQR handles GET /api/v1/wallets/{address}/qr. The PNG encodes an
// EIP-681 payment URI for the wallet on the ledger's chain.
func (h *Handler) GetWalletQR(w http.ResponseWriter, r *http.Request) {
	owner, err := bindAddress(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	size := defaultQRSize
	if err := runtime.BindQueryParameter("form", true, false, "size", r.URL.Query(), &size); err != nil || size < minQRSize || size > maxQRSize {
		h.writeError(w, r, invalidRequest(fmt.Sprintf("size must be between %d and %d", minQRSize, maxQRSize), err))
		return
	}

	png, err := qrcode.Encode(paymentURI(owner.Hex(), h.session.ExpectedNetwork().ChainID), qrcode.Medium, size)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("failed to encode qr code: %w", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png) //nolint:errcheck // Nothing useful to do if write fails
}

func paymentURI(address string, chainID uint64) string {
	return fmt.Sprintf("ethereum:%s@%d", address, chainID)
}
