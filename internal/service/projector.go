package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/priyakat/marketlink/backend/internal/domain"
)

// project marks the reviewer's own flag on the transaction after its ledger
// entry is committed. Only that role's flag is written; the write is
// idempotent, so re-projecting an already-true flag is a harmless no-op.
func (s *LifecycleService) project(ctx context.Context, role domain.TransactionRole, transactionID string) (domain.Transaction, error) {
	return s.store.SetReviewFlag(ctx, transactionID, role, s.nowFn().UTC())
}

// ResyncReviewFlags recomputes both review flags strictly from the ledger and
// overwrites the stored flags when they differ. Safe to call at any time and
// as often as wanted; when the flags already match the ledger nothing is
// written.
func (s *LifecycleService) ResyncReviewFlags(ctx context.Context, transactionID string) (domain.Transaction, error) {
	tx, _, err := s.resyncOne(ctx, transactionID)
	return tx, err
}

// ResyncSummary reports the outcome of a store-wide flag sweep.
type ResyncSummary struct {
	Scanned  int
	Repaired int
}

// ResyncAllReviewFlags sweeps every transaction and resyncs its review flags
// from the ledger. Transactions deleted mid-sweep are skipped; any other
// failure aborts the sweep with the partial counts.
func (s *LifecycleService) ResyncAllReviewFlags(ctx context.Context) (ResyncSummary, error) {
	ids, err := s.store.ListTransactionIDs(ctx)
	if err != nil {
		return ResyncSummary{}, err
	}

	var summary ResyncSummary
	for _, id := range ids {
		_, repaired, err := s.resyncOne(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("resync transaction %s: %w", id, err)
		}
		summary.Scanned++
		if repaired {
			summary.Repaired++
		}
	}
	return summary, nil
}

func (s *LifecycleService) resyncOne(ctx context.Context, transactionID string) (domain.Transaction, bool, error) {
	tx, err := s.store.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, false, err
	}

	reviews, err := s.store.ListReviewsByTransaction(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, false, err
	}

	initiatorReviewed := false
	recipientReviewed := false
	for _, review := range reviews {
		switch review.ReviewerID {
		case tx.InitiatorID:
			initiatorReviewed = true
		case tx.RecipientID:
			recipientReviewed = true
		}
	}

	if tx.InitiatorReviewed == initiatorReviewed && tx.RecipientReviewed == recipientReviewed {
		return tx, false, nil
	}
	updated, err := s.store.SetReviewFlags(ctx, transactionID, initiatorReviewed, recipientReviewed, s.nowFn().UTC())
	if err != nil {
		return domain.Transaction{}, false, err
	}
	return updated, true, nil
}
