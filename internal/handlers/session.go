package handlers

import (
	"errors"
	"net/http"

	"github.com/benx421/smartcards/internal/api"
	"github.com/benx421/smartcards/internal/service"
	"github.com/benx421/smartcards/internal/session"
)

const staleHeader = "X-Portfolio-Stale"

// GetSession handles GET /api/v1/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.toSession(h.session.Snapshot()))
}

// ConnectWallet handles POST /api/v1/session
func (h *Handler) ConnectWallet(w http.ResponseWriter, r *http.Request) {
	var body api.ConnectRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	address, err := service.ValidateAddress(body.Address)
	if err != nil {
		h.writeError(w, r, &service.ServiceError{Code: service.ErrCodeInvalidAddress, Message: err.Error()})
		return
	}
	chainID, err := parseChainID(body.ChainID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.session.Connect(address, chainID); err != nil {
		h.writeError(w, r, &service.ServiceError{Code: service.ErrCodeInvalidAddress, Message: err.Error(), Err: err})
		return
	}

	// The tracker's watcher resets and restores from the persisted snapshot
	writeJSON(w, http.StatusOK, h.toSession(h.session.Snapshot()))
}

// DisconnectWallet handles DELETE /api/v1/session
func (h *Handler) DisconnectWallet(w http.ResponseWriter, r *http.Request) {
	h.session.Disconnect()
	writeJSON(w, http.StatusOK, h.toSession(h.session.Snapshot()))
}

// SwitchNetwork handles PUT /api/v1/session/network
func (h *Handler) SwitchNetwork(w http.ResponseWriter, r *http.Request) {
	var body api.NetworkRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	chainID, err := parseChainID(body.ChainID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.session.SwitchNetwork(chainID); err != nil {
		h.writeError(w, r, sessionError(err))
		return
	}

	writeJSON(w, http.StatusOK, h.toSession(h.session.Snapshot()))
}

// GetSessionPortfolio handles GET /api/v1/session/portfolio. It runs a fresh
// pass for the connected wallet; when that pass fails but an earlier one
// committed, the earlier snapshot is served with X-Portfolio-Stale set.
func (h *Handler) GetSessionPortfolio(w http.ResponseWriter, r *http.Request) {
	state := h.session.Snapshot()
	if !state.Connected {
		h.writeError(w, r, sessionError(session.ErrNotConnected))
		return
	}
	if !state.Expected {
		h.writeError(w, r, &service.ServiceError{
			Code:    service.ErrCodeWrongNetwork,
			Message: "wallet is on " + state.Network.Name + ", expected " + h.session.ExpectedNetwork().Name,
		})
		return
	}

	portfolio, err := h.tracker.Refresh(r.Context(), state.Address)
	switch {
	case errors.Is(err, service.ErrPassSuperseded):
		h.writeError(w, r, &service.ServiceError{
			Code:    service.ErrCodePassSuperseded,
			Message: "session changed while the portfolio was computed",
			Err:     err,
		})
		return
	case err != nil && portfolio == nil:
		h.writeError(w, r, err)
		return
	case err != nil:
		h.logger.Warn("serving stale portfolio", "owner", state.Address.Hex(), "sequence", portfolio.Sequence, "error", err)
		w.Header().Set(staleHeader, "true")
	}

	writeJSON(w, http.StatusOK, api.Portfolio{Portfolio: portfolio, Unit: h.units.Symbol})
}

func sessionError(err error) error {
	if errors.Is(err, session.ErrNotConnected) {
		return &service.ServiceError{Code: service.ErrCodeNotConnected, Message: "no wallet connected", Err: err}
	}
	return err
}
