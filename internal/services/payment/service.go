// Package payment manages payment links and their status lifecycle.
package payment

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zignal/zignalapi/internal/db/bunx"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/telemetry"
)

const tracerName = "zignalapi/services/payment"

// ErrInvalidStatus is returned for a status outside pending, completed, failed.
var ErrInvalidStatus = errors.New("invalid payment status")

// Gateway events that move a payment between statuses.
const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	EventCapturePending   = "PAYMENT.CAPTURE.PENDING"
)

// ValidStatus reports whether status is a known payment status.
func ValidStatus(status string) bool {
	switch status {
	case models.PaymentPending, models.PaymentCompleted, models.PaymentFailed:
		return true
	}
	return false
}

// StatusForEvent maps a gateway event type to a payment status.
func StatusForEvent(eventType string) (string, bool) {
	switch eventType {
	case EventCaptureCompleted:
		return models.PaymentCompleted, true
	case EventCaptureDenied:
		return models.PaymentFailed, true
	case EventCapturePending:
		return models.PaymentPending, true
	}
	return "", false
}

// VerifyWebhookSecret compares the shared secret in constant time.
func VerifyWebhookSecret(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// CreateLinkRequest describes a new payment link.
type CreateLinkRequest struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Description   string  `json:"description"`
	CustomerName  string  `json:"customerName"`
	CustomerEmail string  `json:"customerEmail"`
}

// WebhookEvent is the subset of a gateway notification the service reads.
type WebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// OrderID returns the gateway order the event refers to.
func (e WebhookEvent) OrderID() string {
	return e.Resource.SupplementaryData.RelatedIDs.OrderID
}

// WebhookResult describes what a webhook delivery did.
type WebhookResult struct {
	Handled bool
	Payment *models.Payment
	Changed bool
	Reason  string
}

// Service wraps the payment repository with status rules and telemetry.
type Service struct {
	repo    repository.PaymentRepository
	siteURL string
}

// NewService constructs a payment service. siteURL prefixes customer-facing links.
func NewService(repo repository.PaymentRepository, siteURL string) *Service {
	return &Service{repo: repo, siteURL: strings.TrimRight(siteURL, "/")}
}

// CreateLink stores a pending payment and its customer-facing link.
func (s *Service) CreateLink(ctx context.Context, req CreateLinkRequest) (*models.Payment, error) {
	id := bunx.NewUUIDv7()
	payment := &models.Payment{
		ID:            id,
		Amount:        req.Amount,
		Currency:      strings.ToUpper(req.Currency),
		Description:   req.Description,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Status:        models.PaymentPending,
		PaymentLink:   s.siteURL + "/pay/" + id,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}
	return payment, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Payment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter repository.PaymentFilter) ([]models.Payment, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Totals(ctx context.Context) ([]repository.PaymentTotal, error) {
	return s.repo.Totals(ctx)
}

// UpdateStatus applies a status change. Repeating the same update leaves the
// stored row untouched and reports changed=false.
func (s *Service) UpdateStatus(ctx context.Context, u repository.PaymentStatusUpdate) (*models.Payment, bool, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "payment.UpdateStatus",
		attribute.String(telemetry.AttrPaymentID, u.PaymentID),
		attribute.String(telemetry.AttrPaymentStatus, u.Status),
	)
	defer span.End()

	if !ValidStatus(u.Status) {
		err := fmt.Errorf("%w: %q", ErrInvalidStatus, u.Status)
		telemetry.RecordError(span, err)
		return nil, false, err
	}

	payment, changed, err := s.repo.UpdateStatus(ctx, u)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, false, err
	}

	span.SetAttributes(attribute.Bool(telemetry.AttrPaymentChanged, changed))
	telemetry.RecordPaymentStatusUpdate(u.Status, changed)
	return payment, changed, nil
}

// HandleWebhook applies a gateway event. Unknown event types and unknown
// orders are acknowledged without a write. body is stored as the payment's
// transaction details.
func (s *Service) HandleWebhook(ctx context.Context, event WebhookEvent, body models.JSONMap) (*WebhookResult, error) {
	status, ok := StatusForEvent(event.EventType)
	if !ok {
		return &WebhookResult{Reason: "ignored event type " + event.EventType}, nil
	}

	orderID := event.OrderID()
	if orderID == "" {
		return &WebhookResult{Reason: "event carries no order id"}, nil
	}

	payment, err := s.repo.GetByProviderOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.WarnContext(ctx, "webhook for unknown payment order",
				"order_id", orderID, "event_type", event.EventType)
			return &WebhookResult{Reason: "unknown order " + orderID}, nil
		}
		return nil, fmt.Errorf("find payment for order %s: %w", orderID, err)
	}

	updated, changed, err := s.UpdateStatus(ctx, repository.PaymentStatusUpdate{
		PaymentID:          payment.ID,
		Status:             status,
		TransactionDetails: body,
	})
	if err != nil {
		return nil, err
	}
	return &WebhookResult{Handled: true, Payment: updated, Changed: changed}, nil
}
