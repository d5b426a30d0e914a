package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/priyakat/marketlink/backend/internal/domain"
	"github.com/priyakat/marketlink/backend/internal/events"
)

// LifecycleStore is the storage contract required by the lifecycle service.
// UpdateTransactionStatus must be a conditional write (no match once the
// stored status moved off expected) and InsertReviewIfAbsent must enforce the
// (reviewer, transaction) uniqueness at the storage layer; both are what keep
// concurrent callers linearizable per transaction.
type LifecycleStore interface {
	FindPartyByID(ctx context.Context, partyID string) (domain.Party, error)
	InsertTransaction(ctx context.Context, tx domain.Transaction) error
	FindTransactionByID(ctx context.Context, transactionID string) (domain.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, transactionID string, next, expected domain.Status, resetFlags bool, updatedAt time.Time) (domain.Transaction, error)
	SetReviewFlag(ctx context.Context, transactionID string, role domain.TransactionRole, updatedAt time.Time) (domain.Transaction, error)
	SetReviewFlags(ctx context.Context, transactionID string, initiatorReviewed, recipientReviewed bool, updatedAt time.Time) (domain.Transaction, error)
	ListTransactionsForParty(ctx context.Context, partyID string, status domain.Status) ([]domain.TransactionSummary, error)
	ListTransactionIDs(ctx context.Context) ([]string, error)
	InsertReviewIfAbsent(ctx context.Context, review domain.Review) error
	ListReviewsByTransaction(ctx context.Context, transactionID string) ([]domain.Review, error)
	ListReviewsAboutParty(ctx context.Context, partyID string) ([]domain.ReviewDetail, error)
}

// LifecycleService owns the transaction status machine, the review ledger,
// and the review-flag projection. The ledger is the single source of truth
// for "has this party reviewed"; the flags on the transaction are a derived
// read optimization.
type LifecycleService struct {
	store  LifecycleStore
	events events.Publisher
	nowFn  func() time.Time
	idFn   func() string
}

// NewLifecycleService constructs a LifecycleService. A nil publisher disables
// event emission.
func NewLifecycleService(store LifecycleStore, publisher events.Publisher) *LifecycleService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &LifecycleService{
		store:  store,
		events: publisher,
		nowFn:  time.Now,
		idFn:   func() string { return uuid.NewString() },
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *LifecycleService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// CreateTransaction opens a payment request in pending status.
func (s *LifecycleService) CreateTransaction(ctx context.Context, input CreateTransactionInput) (domain.Transaction, error) {
	if input.InitiatorID == "" || input.RecipientID == "" {
		return domain.Transaction{}, fmt.Errorf("initiator and recipient are required: %w", domain.ErrValidation)
	}
	if input.InitiatorID == input.RecipientID {
		return domain.Transaction{}, fmt.Errorf("a party cannot transact with itself: %w", domain.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("amount must be positive: %w", domain.ErrValidation)
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return domain.Transaction{}, fmt.Errorf("description is required: %w", domain.ErrValidation)
	}

	// Both parties must exist before the request is opened.
	if _, err := s.store.FindPartyByID(ctx, input.RecipientID); err != nil {
		return domain.Transaction{}, err
	}

	now := s.nowFn().UTC()
	tx := domain.Transaction{
		ID:          s.idFn(),
		InitiatorID: input.InitiatorID,
		RecipientID: input.RecipientID,
		Amount:      input.Amount,
		Description: description,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

// Transition moves a transaction to the requested status on behalf of
// actingPartyID. On entering confirmed both review flags are reset in the
// same storage write as the status, re-opening review eligibility exactly
// once (confirmed is terminal, so the reset cannot recur).
func (s *LifecycleService) Transition(ctx context.Context, transactionID string, requested domain.Status, actingPartyID string) (domain.Transaction, error) {
	tx, err := s.store.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}

	role := tx.RoleOf(actingPartyID)
	if role == domain.RoleNone {
		return domain.Transaction{}, fmt.Errorf("party %s is not a party to transaction %s: %w",
			actingPartyID, transactionID, domain.ErrForbidden)
	}

	if err := checkTransition(tx.Status, requested, role); err != nil {
		return domain.Transaction{}, err
	}

	resetFlags := requested == domain.StatusConfirmed
	updated, err := s.store.UpdateTransactionStatus(ctx, transactionID, requested, tx.Status, resetFlags, s.nowFn().UTC())
	if err != nil {
		return domain.Transaction{}, err
	}

	s.events.TransactionStatusChanged(ctx, updated, tx.Status)
	return updated, nil
}

// GetTransaction returns one transaction, restricted to its parties.
func (s *LifecycleService) GetTransaction(ctx context.Context, transactionID, actingPartyID string) (domain.Transaction, error) {
	tx, err := s.store.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if tx.RoleOf(actingPartyID) == domain.RoleNone {
		return domain.Transaction{}, fmt.Errorf("party %s is not a party to transaction %s: %w",
			actingPartyID, transactionID, domain.ErrForbidden)
	}
	return tx, nil
}

// ListTransactions returns the acting party's transactions, newest first,
// optionally filtered by status.
func (s *LifecycleService) ListTransactions(ctx context.Context, actingPartyID string, status domain.Status) ([]domain.TransactionSummary, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status filter %q: %w", status, domain.ErrValidation)
	}
	return s.store.ListTransactionsForParty(ctx, actingPartyID, status)
}
