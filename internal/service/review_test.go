package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/priyakat/marketlink/backend/internal/domain"
)

func confirmTransaction(t *testing.T, svc *LifecycleService, transactionID, initiatorID, recipientID string) {
	t.Helper()
	if _, err := svc.Transition(context.Background(), transactionID, domain.StatusCompleted, recipientID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.Transition(context.Background(), transactionID, domain.StatusConfirmed, initiatorID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
}

func TestSubmitReviewBothSides(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	publisher := &capturePublisher{}
	svc := NewLifecycleService(store, publisher)

	tx := seedTransaction(t, svc, "P-1", "P-2")
	confirmTransaction(t, svc, tx.ID, "P-1", "P-2")

	review, err := svc.SubmitReview(context.Background(), SubmitReviewInput{
		TransactionID: tx.ID,
		ReviewerID:    "P-1",
		Rating:        5,
		Comment:       "Smooth transaction.",
	})
	if err != nil {
		t.Fatalf("initiator review: %v", err)
	}
	if review.ReviewedPartyID != "P-2" {
		t.Errorf("expected review about P-2, got %s", review.ReviewedPartyID)
	}

	after := store.txs[tx.ID]
	if !after.InitiatorReviewed || after.RecipientReviewed {
		t.Errorf("expected only initiator flag set, got initiator=%v recipient=%v",
			after.InitiatorReviewed, after.RecipientReviewed)
	}

	if _, err := svc.SubmitReview(context.Background(), SubmitReviewInput{
		TransactionID: tx.ID,
		ReviewerID:    "P-2",
		Rating:        3,
		Comment:       "Payment settled on time.",
	}); err != nil {
		t.Fatalf("recipient review: %v", err)
	}

	after = store.txs[tx.ID]
	if !after.InitiatorReviewed || !after.RecipientReviewed {
		t.Errorf("expected both flags set, got initiator=%v recipient=%v",
			after.InitiatorReviewed, after.RecipientReviewed)
	}
	if len(publisher.reviewEvents) != 2 {
		t.Errorf("expected 2 review events, got %d", len(publisher.reviewEvents))
	}
}

func TestSubmitReviewDuplicate(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	svc := NewLifecycleService(store, nil)

	tx := seedTransaction(t, svc, "P-1", "P-2")
	confirmTransaction(t, svc, tx.ID, "P-1", "P-2")

	input := SubmitReviewInput{
		TransactionID: tx.ID,
		ReviewerID:    "P-1",
		Rating:        4,
		Comment:       "Everything as described.",
	}
	if _, err := svc.SubmitReview(context.Background(), input); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := svc.SubmitReview(context.Background(), input); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate, got %v", err)
	}
	if len(store.reviews) != 1 {
		t.Fatalf("expected a single ledger entry, got %d", len(store.reviews))
	}
}

func TestSubmitReviewConcurrentDuplicates(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	svc := NewLifecycleService(store, nil)

	tx := seedTransaction(t, svc, "P-1", "P-2")
	confirmTransaction(t, svc, tx.ID, "P-1", "P-2")

	// The same reviewer races itself; storage-level uniqueness must let
	// exactly one submission through.
	const submitters = 8
	errs := make(chan error, submitters)
	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitReview(context.Background(), SubmitReviewInput{
				TransactionID: tx.ID,
				ReviewerID:    "P-1",
				Rating:        4,
				Comment:       "Everything as described.",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	conflicts := 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != submitters-1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d conflicts", successes, conflicts)
	}
	if len(store.reviews) != 1 {
		t.Fatalf("expected a single ledger entry, got %d", len(store.reviews))
	}
}

func TestSubmitReviewRequiresConfirmed(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	svc := NewLifecycleService(store, nil)

	tx := seedTransaction(t, svc, "P-1", "P-2")

	input := SubmitReviewInput{TransactionID: tx.ID, ReviewerID: "P-1", Rating: 4, Comment: "Too early."}
	if _, err := svc.SubmitReview(context.Background(), input); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on pending, got %v", err)
	}

	if _, err := svc.Transition(context.Background(), tx.ID, domain.StatusCompleted, "P-2"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.SubmitReview(context.Background(), input); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on completed, got %v", err)
	}
}

func TestSubmitReviewValidation(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2", "P-3")
	svc := NewLifecycleService(store, nil)

	tx := seedTransaction(t, svc, "P-1", "P-2")
	confirmTransaction(t, svc, tx.ID, "P-1", "P-2")

	cases := []struct {
		name    string
		input   SubmitReviewInput
		wantErr error
	}{
		{
			name:    "outsider",
			input:   SubmitReviewInput{TransactionID: tx.ID, ReviewerID: "P-3", Rating: 4, Comment: "x"},
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "rating below range",
			input:   SubmitReviewInput{TransactionID: tx.ID, ReviewerID: "P-1", Rating: 0, Comment: "x"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "rating above range",
			input:   SubmitReviewInput{TransactionID: tx.ID, ReviewerID: "P-1", Rating: 6, Comment: "x"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "blank comment",
			input:   SubmitReviewInput{TransactionID: tx.ID, ReviewerID: "P-1", Rating: 4, Comment: "   "},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "unknown transaction",
			input:   SubmitReviewInput{TransactionID: "T-404", ReviewerID: "P-1", Rating: 4, Comment: "x"},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitReview(context.Background(), tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if len(store.reviews) != 0 {
		t.Fatalf("expected no ledger entries after rejected submissions, got %d", len(store.reviews))
	}
}

func TestResyncReviewFlagsRepairsDrift(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	svc := NewLifecycleService(store, nil)

	tx := seedTransaction(t, svc, "P-1", "P-2")
	confirmTransaction(t, svc, tx.ID, "P-1", "P-2")

	if _, err := svc.SubmitReview(context.Background(), SubmitReviewInput{
		TransactionID: tx.ID, ReviewerID: "P-1", Rating: 5, Comment: "Great.",
	}); err != nil {
		t.Fatalf("review: %v", err)
	}

	// Corrupt the projection: flip both flags away from what the ledger says.
	corrupted := store.txs[tx.ID]
	corrupted.InitiatorReviewed = false
	corrupted.RecipientReviewed = true
	store.txs[tx.ID] = corrupted

	repaired, err := svc.ResyncReviewFlags(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if !repaired.InitiatorReviewed || repaired.RecipientReviewed {
		t.Fatalf("expected flags recomputed from ledger, got initiator=%v recipient=%v",
			repaired.InitiatorReviewed, repaired.RecipientReviewed)
	}
}

func TestResyncAllReviewFlags(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	svc := NewLifecycleService(store, nil)

	clean := seedTransaction(t, svc, "P-1", "P-2")
	drifted := seedTransaction(t, svc, "P-1", "P-2")
	confirmTransaction(t, svc, drifted.ID, "P-1", "P-2")

	if _, err := svc.SubmitReview(context.Background(), SubmitReviewInput{
		TransactionID: drifted.ID, ReviewerID: "P-1", Rating: 5, Comment: "Great.",
	}); err != nil {
		t.Fatalf("review: %v", err)
	}

	// Corrupt one projection; the other transaction stays clean.
	corrupted := store.txs[drifted.ID]
	corrupted.InitiatorReviewed = false
	store.txs[drifted.ID] = corrupted

	summary, err := svc.ResyncAllReviewFlags(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.Scanned != 2 || summary.Repaired != 1 {
		t.Fatalf("expected 2 scanned and 1 repaired, got %+v", summary)
	}
	if !store.txs[drifted.ID].InitiatorReviewed {
		t.Error("expected drifted flag repaired from ledger")
	}
	if store.txs[clean.ID].InitiatorReviewed || store.txs[clean.ID].RecipientReviewed {
		t.Error("expected clean transaction untouched")
	}
	if store.setFlagsCalls != 1 {
		t.Fatalf("expected exactly one flag write, got %d", store.setFlagsCalls)
	}
}

func TestResyncReviewFlagsNoWriteWhenClean(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	svc := NewLifecycleService(store, nil)

	tx := seedTransaction(t, svc, "P-1", "P-2")
	confirmTransaction(t, svc, tx.ID, "P-1", "P-2")

	if _, err := svc.ResyncReviewFlags(context.Background(), tx.ID); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if store.setFlagsCalls != 0 {
		t.Fatalf("expected no flag write when projection matches ledger, got %d", store.setFlagsCalls)
	}

	if _, err := svc.ResyncReviewFlags(context.Background(), "T-404"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
