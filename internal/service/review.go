package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/priyakat/marketlink/backend/internal/domain"
)

// SubmitReview records one party's review of the counterparty in a confirmed
// transaction. The duplicate check runs against the ledger itself (the
// storage-level uniqueness on (reviewer, transaction) decides races); the
// projected flags on the transaction are never consulted, only updated
// afterwards.
func (s *LifecycleService) SubmitReview(ctx context.Context, input SubmitReviewInput) (domain.Review, error) {
	tx, err := s.store.FindTransactionByID(ctx, input.TransactionID)
	if err != nil {
		return domain.Review{}, err
	}

	role := tx.RoleOf(input.ReviewerID)
	if role == domain.RoleNone {
		return domain.Review{}, fmt.Errorf("party %s is not a party to transaction %s: %w",
			input.ReviewerID, input.TransactionID, domain.ErrForbidden)
	}

	if tx.Status != domain.StatusConfirmed {
		return domain.Review{}, fmt.Errorf("transaction %s is %s, reviews require confirmed: %w",
			tx.ID, tx.Status, domain.ErrInvalidState)
	}

	if input.Rating < domain.MinRating || input.Rating > domain.MaxRating {
		return domain.Review{}, fmt.Errorf("rating must be between %d and %d: %w",
			domain.MinRating, domain.MaxRating, domain.ErrValidation)
	}
	comment := strings.TrimSpace(input.Comment)
	if comment == "" {
		return domain.Review{}, fmt.Errorf("comment is required: %w", domain.ErrValidation)
	}

	review := domain.Review{
		ID:              s.idFn(),
		ReviewerID:      input.ReviewerID,
		ReviewedPartyID: tx.CounterpartyOf(input.ReviewerID),
		TransactionID:   tx.ID,
		Rating:          input.Rating,
		Comment:         comment,
		CreatedAt:       s.nowFn().UTC(),
	}

	if err := s.store.InsertReviewIfAbsent(ctx, review); err != nil {
		return domain.Review{}, err
	}

	if _, err := s.project(ctx, role, tx.ID); err != nil {
		// The ledger entry exists; the stale flag is repairable via resync.
		return domain.Review{}, fmt.Errorf("review recorded but flag projection failed: %w", err)
	}

	s.events.ReviewSubmitted(ctx, review)
	return review, nil
}

// ReviewsAboutParty lists the reviews written about one party, newest first.
func (s *LifecycleService) ReviewsAboutParty(ctx context.Context, partyID string) ([]domain.ReviewDetail, error) {
	return s.store.ListReviewsAboutParty(ctx, partyID)
}
