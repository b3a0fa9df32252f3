package handlers

import (
	"net/http"

	"github.com/benx421/smartcards/internal/api"
	"github.com/benx421/smartcards/internal/models"
	"github.com/benx421/smartcards/internal/service"
)

// CreateCard handles POST /api/v1/cards
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var body api.LimitRequest
	if err := h.prepareMutation(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	sub, err := h.cards.Create(r.Context(), body.SpendingLimit)
	h.writeSubmission(w, r, http.StatusCreated, sub, err)
}

// DepositToCard handles POST /api/v1/cards/{cardId}/deposits
func (h *Handler) DepositToCard(w http.ResponseWriter, r *http.Request) {
	var body api.AmountRequest
	id, err := h.prepareCardMutation(w, r, &body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sub, err := h.cards.Deposit(r.Context(), id, body.Amount)
	h.writeSubmission(w, r, http.StatusOK, sub, err)
}

// WithdrawFromCard handles POST /api/v1/cards/{cardId}/withdrawals
func (h *Handler) WithdrawFromCard(w http.ResponseWriter, r *http.Request) {
	var body api.AmountRequest
	id, err := h.prepareCardMutation(w, r, &body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sub, err := h.cards.Withdraw(r.Context(), id, body.Amount)
	h.writeSubmission(w, r, http.StatusOK, sub, err)
}

// SpendFromCard handles POST /api/v1/cards/{cardId}/spends
func (h *Handler) SpendFromCard(w http.ResponseWriter, r *http.Request) {
	var body api.SpendRequest
	id, err := h.prepareCardMutation(w, r, &body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sub, err := h.cards.Spend(r.Context(), id, body.Recipient, body.Amount)
	h.writeSubmission(w, r, http.StatusOK, sub, err)
}

// ResetCardSpent handles POST /api/v1/cards/{cardId}/reset
func (h *Handler) ResetCardSpent(w http.ResponseWriter, r *http.Request) {
	id, err := h.prepareCardMutation(w, r, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sub, err := h.cards.ResetSpent(r.Context(), id)
	h.writeSubmission(w, r, http.StatusOK, sub, err)
}

// SetCardStatus handles PUT /api/v1/cards/{cardId}/status
func (h *Handler) SetCardStatus(w http.ResponseWriter, r *http.Request) {
	var body api.StatusRequest
	id, err := h.prepareCardMutation(w, r, &body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.Active == nil {
		h.writeError(w, r, invalidRequest("active is required", nil))
		return
	}

	sub, err := h.cards.SetActive(r.Context(), id, *body.Active)
	h.writeSubmission(w, r, http.StatusOK, sub, err)
}

// ChangeCardLimit handles PUT /api/v1/cards/{cardId}/limit
func (h *Handler) ChangeCardLimit(w http.ResponseWriter, r *http.Request) {
	var body api.LimitRequest
	id, err := h.prepareCardMutation(w, r, &body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sub, err := h.cards.ChangeLimit(r.Context(), id, body.SpendingLimit)
	h.writeSubmission(w, r, http.StatusOK, sub, err)
}

// prepareMutation checks a wallet is connected on the ledger's chain and
// decodes the body into dst when dst is non-nil
func (h *Handler) prepareMutation(w http.ResponseWriter, r *http.Request, dst any) error {
	state := h.session.Snapshot()
	if !state.Connected {
		return &service.ServiceError{Code: service.ErrCodeNotConnected, Message: "connect a wallet before sending transactions"}
	}
	if !state.Expected {
		return &service.ServiceError{
			Code:    service.ErrCodeWrongNetwork,
			Message: "switch the wallet to " + h.session.ExpectedNetwork().Name,
		}
	}
	if dst == nil {
		return nil
	}
	return decodeBody(w, r, dst)
}

func (h *Handler) prepareCardMutation(w http.ResponseWriter, r *http.Request, dst any) (uint64, error) {
	id, err := bindCardID(r)
	if err != nil {
		return 0, err
	}
	return id, h.prepareMutation(w, r, dst)
}

func (h *Handler) writeSubmission(w http.ResponseWriter, r *http.Request, status int, sub *models.Submission, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, status, h.toSubmission(sub))
}
