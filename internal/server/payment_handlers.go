package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/services/payment"
	"github.com/zignal/zignalapi/internal/validation"
)

const webhookSecretHeader = "X-Webhook-Secret"

// PaymentStatusRequest is the body of POST /api/payments/status.
type PaymentStatusRequest struct {
	PaymentID          string         `json:"paymentId"`
	Status             string         `json:"status"`
	ProviderOrderID    *string        `json:"providerOrderId"`
	TransactionDetails models.JSONMap `json:"transactionDetails"`
}

// PaymentLinkResponse is the customer-facing view of a payment.
type PaymentLinkResponse struct {
	ID          string  `json:"id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	PaymentLink string  `json:"paymentLink"`
}

func (h *handlers) createPaymentLink(w http.ResponseWriter, r *http.Request) {
	var req payment.CreateLinkRequest
	if err := h.decodeBody(r, validation.SchemaPaymentLink, &req); err != nil {
		respondError(w, r, err)
		return
	}

	p, err := h.Payments.CreateLink(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondCreated(w, p, "Payment link created")
}

func (h *handlers) getPaymentLink(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, r, NotFound("Payment not found"))
			return
		}
		respondError(w, r, err)
		return
	}
	respondOK(w, PaymentLinkResponse{
		ID:          p.ID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
		Status:      p.Status,
		PaymentLink: p.PaymentLink,
	})
}

// updatePaymentStatus applies an admin status change. Repeating an identical
// request returns the stored row without writing.
func (h *handlers) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req PaymentStatusRequest
	if err := h.decodeBody(r, validation.SchemaPaymentStatus, &req); err != nil {
		respondError(w, r, err)
		return
	}

	p, changed, err := h.Payments.UpdateStatus(r.Context(), repository.PaymentStatusUpdate{
		PaymentID:          req.PaymentID,
		Status:             req.Status,
		ProviderOrderID:    req.ProviderOrderID,
		TransactionDetails: req.TransactionDetails,
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, r, NotFound("Payment not found"))
		return
	case errors.Is(err, payment.ErrInvalidStatus):
		respondError(w, r, BadRequest("Validation failed", map[string]string{"status": "must be one of pending, completed, failed"}))
		return
	case err != nil:
		respondError(w, r, err)
		return
	}

	msg := "Payment status updated"
	if !changed {
		msg = "Payment status unchanged"
	}
	respondMessage(w, p, msg)
}

// paymentWebhook accepts gateway notifications authenticated by a shared
// secret header. Events that cannot be applied are acknowledged so the
// gateway stops retrying.
func (h *handlers) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	secret := ""
	if h.Cfg != nil {
		secret = h.Cfg.PaymentWebhookSecret
	}
	if secret == "" {
		respondError(w, r, NotImplemented("Payment webhook"))
		return
	}
	if !payment.VerifyWebhookSecret(secret, r.Header.Get(webhookSecretHeader)) {
		respondError(w, r, Unauthorized())
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, validation.MaxBodyBytes))
	if err != nil {
		respondError(w, r, Internal(err))
		return
	}

	var body models.JSONMap
	if err := json.Unmarshal(raw, &body); err != nil {
		respondError(w, r, BadRequest("Validation failed", map[string]string{validation.BodyField: "must be valid JSON"}))
		return
	}
	if err := h.Validator.Validate(validation.SchemaPaymentWebhook, map[string]any(body)); err != nil {
		respondError(w, r, err)
		return
	}

	var event payment.WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		respondError(w, r, BadRequest("Validation failed", map[string]string{validation.BodyField: "has an unexpected shape"}))
		return
	}

	result, err := h.Payments.HandleWebhook(r.Context(), event, body)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !result.Handled {
		slog.InfoContext(r.Context(), "payment webhook skipped", "event_type", event.EventType, "reason", result.Reason)
	}
	respondOK(w, map[string]any{"received": true, "handled": result.Handled, "changed": result.Changed})
}

// adminListPayments uses limit/offset paging and an optional status filter.
func (h *handlers) adminListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	status := q.Get("status")
	if status != "" && !payment.ValidStatus(status) {
		respondError(w, r, BadRequest("Validation failed", map[string]string{"status": "must be one of pending, completed, failed"}))
		return
	}

	items, total, err := h.Payments.List(r.Context(), repository.PaymentFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Payment{}
	}
	respondOK(w, map[string]any{"items": items, "total": total, "limit": limit, "offset": offset})
}

func (h *handlers) paymentAnalytics(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Payments.Totals(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	var count int
	var completedAmount float64
	for _, t := range totals {
		count += t.Count
		if t.Status == models.PaymentCompleted {
			completedAmount += t.Amount
		}
	}
	if totals == nil {
		totals = []repository.PaymentTotal{}
	}
	respondOK(w, map[string]any{
		"byStatus":      totals,
		"totalPayments": count,
		"totalRevenue":  completedAmount,
	})
}
