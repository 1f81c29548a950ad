package server

import (
	"net/http"
	"strings"

	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/validation"
)

const (
	transactionWithdrawal = models.TransactionWithdrawal
	transactionDeposit    = models.TransactionDeposit
)

// WithdrawalRequest asks for funds to be sent to an external destination.
type WithdrawalRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Destination string  `json:"destination"`
	Method      string  `json:"method"`
}

// DepositRequest records funds arriving through a payment method.
type DepositRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Method   string  `json:"method"`
}

func (h *handlers) createWithdrawal(w http.ResponseWriter, r *http.Request) {
	profileID, err := currentProfileID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req WithdrawalRequest
	if err := h.decodeBody(r, validation.SchemaWithdrawal, &req); err != nil {
		respondError(w, r, err)
		return
	}

	destination := strings.TrimSpace(req.Destination)
	tx := &models.Transaction{
		ProfileID:   profileID,
		Type:        models.TransactionWithdrawal,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      models.TransactionPending,
		Destination: &destination,
	}
	if m := strings.TrimSpace(req.Method); m != "" {
		tx.Method = &m
	}

	if err := h.Repos.Transactions.Create(r.Context(), tx); err != nil {
		respondError(w, r, err)
		return
	}
	respondCreated(w, tx, "Withdrawal request submitted")
}

func (h *handlers) createDeposit(w http.ResponseWriter, r *http.Request) {
	profileID, err := currentProfileID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req DepositRequest
	if err := h.decodeBody(r, validation.SchemaDeposit, &req); err != nil {
		respondError(w, r, err)
		return
	}

	method := strings.TrimSpace(req.Method)
	tx := &models.Transaction{
		ProfileID: profileID,
		Type:      models.TransactionDeposit,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Status:    models.TransactionPending,
		Method:    &method,
	}

	if err := h.Repos.Transactions.Create(r.Context(), tx); err != nil {
		respondError(w, r, err)
		return
	}
	respondCreated(w, tx, "Deposit request submitted")
}

// listTransactionsOfType serves the typed withdrawal and deposit listings.
func (h *handlers) listTransactionsOfType(txType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeTransactions(w, r, txType)
	}
}

// listTransactions lists every type unless ?type= narrows it.
func (h *handlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	txType := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type")))
	switch txType {
	case "", models.TransactionDeposit, models.TransactionWithdrawal:
	default:
		respondError(w, r, BadRequest("Validation failed", map[string]string{"type": "must be DEPOSIT or WITHDRAWAL"}))
		return
	}
	h.writeTransactions(w, r, txType)
}

func (h *handlers) writeTransactions(w http.ResponseWriter, r *http.Request, txType string) {
	profileID, err := currentProfileID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	page := pagination.FromQuery(r.URL.Query())
	items, total, err := h.Repos.Transactions.List(r.Context(), repository.TransactionFilter{
		ProfileID: profileID,
		Type:      txType,
	}, page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, items, total, page)
}
