package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/benx421/smartcards/internal/api"
	"github.com/benx421/smartcards/internal/models"
	"github.com/benx421/smartcards/internal/service"
	"github.com/benx421/smartcards/internal/session"
	"github.com/ethereum/go-ethereum/common"
	"github.com/oapi-codegen/runtime"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Nothing useful to do if the client went away
	json.NewEncoder(w).Encode(body)
}

// writeError renders err as {"error","message"}. Errors that are not a
// ServiceError are logged and reported as internal errors without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := extractServiceError(err)
	if svcErr == nil {
		h.logger.Error("unhandled error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, api.Error{
			Error:   service.ErrCodeInternalError,
			Message: "internal server error",
		})
		return
	}

	status := statusForCode(svcErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "code", svcErr.Code, "error", err)
	}
	writeJSON(w, status, api.Error{Error: svcErr.Code, Message: svcErr.Message})
}

func statusForCode(code string) int {
	switch code {
	case service.ErrCodeInsufficientFunds:
		return http.StatusPaymentRequired
	case service.ErrCodeCardNotFound:
		return http.StatusNotFound
	case service.ErrCodeNotConnected:
		return http.StatusUnauthorized
	case service.ErrCodeWrongNetwork, service.ErrCodePassSuperseded:
		return http.StatusConflict
	case service.ErrCodeLedgerUnavailable:
		return http.StatusBadGateway
	case api.ErrorCodeInvalidRequest:
		return http.StatusBadRequest
	}
	if service.IsValidationCode(code) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func extractServiceError(err error) *service.ServiceError {
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

func invalidRequest(message string, err error) *service.ServiceError {
	return &service.ServiceError{Code: api.ErrorCodeInvalidRequest, Message: message, Err: err}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidRequest("invalid request body", err)
	}
	return nil
}

func bindAddress(r *http.Request) (common.Address, error) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", "address", r.PathValue("address"), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return common.Address{}, &service.ServiceError{Code: service.ErrCodeInvalidAddress, Message: "invalid address parameter", Err: err}
	}
	addr, err := service.ValidateAddress(raw)
	if err != nil {
		return common.Address{}, &service.ServiceError{Code: service.ErrCodeInvalidAddress, Message: err.Error()}
	}
	return addr, nil
}

func bindCardID(r *http.Request) (uint64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "cardId", r.PathValue("cardId"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || id < 0 {
		return 0, invalidRequest(fmt.Sprintf("invalid card id %q", r.PathValue("cardId")), err)
	}
	return uint64(id), nil
}

// parseChainID accepts decimal or 0x-prefixed hex
func parseChainID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil || id == 0 {
		return 0, invalidRequest(fmt.Sprintf("invalid chain id %q", s), err)
	}
	return id, nil
}

func (h *Handler) toCard(c *models.Card) api.Card {
	return api.Card{
		ID:             c.ID,
		Owner:          c.Owner.Hex(),
		Balance:        models.FormatUnits(c.Balance, h.units.Decimals),
		SpendingLimit:  models.FormatUnits(c.SpendingLimit, h.units.Decimals),
		AmountSpent:    models.FormatUnits(c.AmountSpent, h.units.Decimals),
		RemainingLimit: models.FormatUnits(c.RemainingLimit(), h.units.Decimals),
		IsActive:       c.IsActive,
	}
}

func (h *Handler) toCards(cards []models.Card) []api.Card {
	out := make([]api.Card, 0, len(cards))
	for i := range cards {
		out = append(out, h.toCard(&cards[i]))
	}
	return out
}

func (h *Handler) toEvent(e *models.LedgerEvent) api.Event {
	txHash := e.TxHash.Hex()
	out := api.Event{
		Kind:        e.Kind(),
		CardID:      e.CardID,
		Block:       e.Block,
		LogIndex:    e.LogIndex,
		TxHash:      txHash,
		Title:       e.Title(),
		Description: e.Describe(h.units),
		ExplorerURL: h.session.ExpectedNetwork().TxURL(txHash),
	}
	if e.Account != (common.Address{}) {
		out.Account = e.Account.Hex()
	}
	if spend, ok := e.Payload.(models.CardSpentPayload); ok {
		out.Recipient = spend.Recipient.Hex()
	}
	if amount := e.Payload.Amount(); amount != nil {
		out.Amount = models.FormatUnits(amount, h.units.Decimals)
	}
	if !e.Timestamp.IsZero() {
		ts := e.Timestamp
		out.Timestamp = &ts
	}
	return out
}

func (h *Handler) toEvents(events []models.LedgerEvent) []api.Event {
	out := make([]api.Event, 0, len(events))
	for i := range events {
		out = append(out, h.toEvent(&events[i]))
	}
	return out
}

func (h *Handler) toSubmission(s *models.Submission) api.Submission {
	txHash := s.TxHash.Hex()
	return api.Submission{
		TxHash:      txHash,
		Block:       s.Block,
		CardID:      s.CardID,
		ExplorerURL: h.session.ExpectedNetwork().TxURL(txHash),
	}
}

func toNetwork(n session.Network) api.Network {
	return api.Network{Name: n.Name, ChainID: n.ChainIDHex(), ExplorerURL: n.ExplorerURL}
}

func (h *Handler) toSession(state session.State) api.Session {
	out := api.Session{
		Connected:         state.Connected,
		OnExpectedNetwork: state.Expected,
		ExpectedNetwork:   toNetwork(h.session.ExpectedNetwork()),
	}
	if state.Connected {
		network := toNetwork(state.Network)
		out.Network = &network
		out.Address = state.Address.Hex()
	}
	return out
}
