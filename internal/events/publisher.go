package events

import (
	"context"
	"time"

	"github.com/priyakat/marketlink/backend/internal/domain"
)

// Publisher emits marketplace lifecycle events after state changes have been
// committed. Publishing is best-effort: the core operations never fail or
// retry because of the event bus.
type Publisher interface {
	TransactionStatusChanged(ctx context.Context, tx domain.Transaction, previous domain.Status)
	ReviewSubmitted(ctx context.Context, review domain.Review)
}

// Topics used on the bus.
const (
	TopicTransactionStatus = "transaction.status"
	TopicReviewSubmitted   = "review.submitted"
)

// TransactionStatusEvent is the wire shape for status transitions.
type TransactionStatusEvent struct {
	TransactionID     string    `json:"transactionId"`
	InitiatorID       string    `json:"initiatorId"`
	RecipientID       string    `json:"recipientId"`
	PreviousStatus    string    `json:"previousStatus"`
	Status            string    `json:"status"`
	InitiatorReviewed bool      `json:"initiatorReviewed"`
	RecipientReviewed bool      `json:"recipientReviewed"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// ReviewSubmittedEvent is the wire shape for accepted reviews.
type ReviewSubmittedEvent struct {
	ReviewID        string    `json:"reviewId"`
	TransactionID   string    `json:"transactionId"`
	ReviewerID      string    `json:"reviewerId"`
	ReviewedPartyID string    `json:"reviewedPartyId"`
	Rating          int       `json:"rating"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// Nop discards all events. Used when no broker is configured and in tests.
type Nop struct{}

func (Nop) TransactionStatusChanged(context.Context, domain.Transaction, domain.Status) {}

func (Nop) ReviewSubmitted(context.Context, domain.Review) {}
