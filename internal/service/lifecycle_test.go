package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/priyakat/marketlink/backend/internal/domain"
)

// memStore is a behavioural double for the repository: it enforces the same
// conditional-update and unique-insert semantics the Cypher statements do, so
// the services are tested against the contract they rely on in production.
type memStore struct {
	mu      sync.Mutex
	parties map[string]domain.Party
	emails  map[string]string
	txs     map[string]domain.Transaction
	reviews map[string]domain.Review

	setFlagsCalls int
	beforeUpdate  func()
	failWith      error
}

func newMemStore() *memStore {
	return &memStore{
		parties: make(map[string]domain.Party),
		emails:  make(map[string]string),
		txs:     make(map[string]domain.Transaction),
		reviews: make(map[string]domain.Review),
	}
}

func reviewKey(reviewerID, transactionID string) string {
	return reviewerID + "|" + transactionID
}

func (m *memStore) InsertParty(_ context.Context, party domain.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, exists := m.emails[party.Email]; exists {
		return fmt.Errorf("email %s already registered: %w", party.Email, domain.ErrConflict)
	}
	m.parties[party.ID] = party
	m.emails[party.Email] = party.ID
	return nil
}

func (m *memStore) FindPartyByID(_ context.Context, partyID string) (domain.Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return domain.Party{}, m.failWith
	}
	party, ok := m.parties[partyID]
	if !ok {
		return domain.Party{}, fmt.Errorf("party %s: %w", partyID, domain.ErrNotFound)
	}
	return party, nil
}

func (m *memStore) FindPartyByEmail(_ context.Context, email string) (domain.Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.emails[email]
	if !ok {
		return domain.Party{}, fmt.Errorf("party with email %s: %w", email, domain.ErrNotFound)
	}
	return m.parties[id], nil
}

func (m *memStore) SearchParties(_ context.Context, query string) ([]domain.PartySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PartySummary
	for _, party := range m.parties {
		out = append(out, m.summaryLocked(party))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) FetchPartyProfile(_ context.Context, partyID string) (domain.PartyProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	party, ok := m.parties[partyID]
	if !ok {
		return domain.PartyProfile{}, fmt.Errorf("party %s: %w", partyID, domain.ErrNotFound)
	}
	profile := domain.PartyProfile{PartySummary: m.summaryLocked(party)}
	for _, review := range m.reviews {
		if review.ReviewedPartyID == partyID {
			profile.Reviews = append(profile.Reviews, domain.ReviewDetail{Review: review})
		}
	}
	return profile, nil
}

func (m *memStore) summaryLocked(party domain.Party) domain.PartySummary {
	total := 0
	count := 0
	for _, review := range m.reviews {
		if review.ReviewedPartyID == party.ID {
			total += review.Rating
			count++
		}
	}
	avg := 0.0
	if count > 0 {
		avg = float64(total) / float64(count)
	}
	return domain.PartySummary{
		ID:            party.ID,
		Name:          party.Name,
		Email:         party.Email,
		Roles:         party.Roles,
		AverageRating: avg,
		ReviewCount:   count,
	}
}

func (m *memStore) InsertTransaction(_ context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.parties[tx.InitiatorID]; !ok {
		return fmt.Errorf("party %s: %w", tx.InitiatorID, domain.ErrNotFound)
	}
	if _, ok := m.parties[tx.RecipientID]; !ok {
		return fmt.Errorf("party %s: %w", tx.RecipientID, domain.ErrNotFound)
	}
	m.txs[tx.ID] = tx
	return nil
}

func (m *memStore) FindTransactionByID(_ context.Context, transactionID string) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return domain.Transaction{}, m.failWith
	}
	tx, ok := m.txs[transactionID]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	return tx, nil
}

func (m *memStore) UpdateTransactionStatus(_ context.Context, transactionID string, next, expected domain.Status, resetFlags bool, updatedAt time.Time) (domain.Transaction, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[transactionID]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	if tx.Status != expected {
		return domain.Transaction{}, fmt.Errorf("transaction %s modified concurrently: %w", transactionID, domain.ErrConflict)
	}
	tx.Status = next
	tx.UpdatedAt = updatedAt
	if resetFlags {
		tx.InitiatorReviewed = false
		tx.RecipientReviewed = false
	}
	m.txs[transactionID] = tx
	return tx, nil
}

func (m *memStore) SetReviewFlag(_ context.Context, transactionID string, role domain.TransactionRole, updatedAt time.Time) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[transactionID]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	switch role {
	case domain.RoleInitiator:
		tx.InitiatorReviewed = true
	case domain.RoleRecipient:
		tx.RecipientReviewed = true
	}
	tx.UpdatedAt = updatedAt
	m.txs[transactionID] = tx
	return tx, nil
}

func (m *memStore) SetReviewFlags(_ context.Context, transactionID string, initiatorReviewed, recipientReviewed bool, updatedAt time.Time) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setFlagsCalls++
	tx, ok := m.txs[transactionID]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	tx.InitiatorReviewed = initiatorReviewed
	tx.RecipientReviewed = recipientReviewed
	tx.UpdatedAt = updatedAt
	m.txs[transactionID] = tx
	return tx, nil
}

func (m *memStore) ListTransactionsForParty(_ context.Context, partyID string, status domain.Status) ([]domain.TransactionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TransactionSummary
	for _, tx := range m.txs {
		if tx.InitiatorID != partyID && tx.RecipientID != partyID {
			continue
		}
		if status != "" && tx.Status != status {
			continue
		}
		out = append(out, domain.TransactionSummary{
			ID:          tx.ID,
			InitiatorID: tx.InitiatorID,
			RecipientID: tx.RecipientID,
			Amount:      tx.Amount,
			Description: tx.Description,
			Status:      tx.Status,
			CreatedAt:   tx.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) InsertReviewIfAbsent(_ context.Context, review domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	key := reviewKey(review.ReviewerID, review.TransactionID)
	if _, exists := m.reviews[key]; exists {
		return fmt.Errorf("reviewer %s already reviewed transaction %s: %w",
			review.ReviewerID, review.TransactionID, domain.ErrConflict)
	}
	m.reviews[key] = review
	return nil
}

func (m *memStore) ListTransactionIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.txs))
	for id := range m.txs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) ListReviewsByTransaction(_ context.Context, transactionID string) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Review
	for _, review := range m.reviews {
		if review.TransactionID == transactionID {
			out = append(out, review)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListReviewsAboutParty(_ context.Context, partyID string) ([]domain.ReviewDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ReviewDetail
	for _, review := range m.reviews {
		if review.ReviewedPartyID == partyID {
			out = append(out, domain.ReviewDetail{Review: review})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu           sync.Mutex
	statusEvents []domain.Status
	reviewEvents []domain.Review
}

func (c *capturePublisher) TransactionStatusChanged(_ context.Context, tx domain.Transaction, _ domain.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusEvents = append(c.statusEvents, tx.Status)
}

func (c *capturePublisher) ReviewSubmitted(_ context.Context, review domain.Review) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reviewEvents = append(c.reviewEvents, review)
}

func seedParties(t *testing.T, store *memStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		store.parties[id] = domain.Party{
			ID:    id,
			Name:  "Party " + id,
			Email: id + "@example.com",
		}
		store.emails[id+"@example.com"] = id
	}
}

func seedTransaction(t *testing.T, svc *LifecycleService, initiatorID, recipientID string) domain.Transaction {
	t.Helper()
	tx, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		InitiatorID: initiatorID,
		RecipientID: recipientID,
		Amount:      decimal.NewFromInt(1500),
		Description: "Bulk packaging materials",
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func TestCreateTransaction(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	svc := NewLifecycleService(store, nil)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	tx, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		InitiatorID: "P-1",
		RecipientID: "P-2",
		Amount:      decimal.RequireFromString("1234.56"),
		Description: "  Invoice for Q3 component order  ",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if tx.Status != domain.StatusPending {
		t.Errorf("expected status pending, got %s", tx.Status)
	}
	if tx.InitiatorReviewed || tx.RecipientReviewed {
		t.Error("expected both review flags false on a new transaction")
	}
	if tx.Description != "Invoice for Q3 component order" {
		t.Errorf("expected trimmed description, got %q", tx.Description)
	}
	if !tx.CreatedAt.Equal(now) || !tx.UpdatedAt.Equal(now) {
		t.Errorf("expected timestamps %v, got created=%v updated=%v", now, tx.CreatedAt, tx.UpdatedAt)
	}
	if _, ok := store.txs[tx.ID]; !ok {
		t.Error("expected transaction persisted")
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	svc := NewLifecycleService(store, nil)

	cases := []struct {
		name    string
		input   CreateTransactionInput
		wantErr error
	}{
		{
			name:    "missing recipient",
			input:   CreateTransactionInput{InitiatorID: "P-1", Amount: decimal.NewFromInt(100), Description: "x"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "self transaction",
			input:   CreateTransactionInput{InitiatorID: "P-1", RecipientID: "P-1", Amount: decimal.NewFromInt(100), Description: "x"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "zero amount",
			input:   CreateTransactionInput{InitiatorID: "P-1", RecipientID: "P-2", Amount: decimal.Zero, Description: "x"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "negative amount",
			input:   CreateTransactionInput{InitiatorID: "P-1", RecipientID: "P-2", Amount: decimal.NewFromInt(-5), Description: "x"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "blank description",
			input:   CreateTransactionInput{InitiatorID: "P-1", RecipientID: "P-2", Amount: decimal.NewFromInt(100), Description: "   "},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "unknown recipient",
			input:   CreateTransactionInput{InitiatorID: "P-1", RecipientID: "P-404", Amount: decimal.NewFromInt(100), Description: "x"},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTransaction(context.Background(), tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTransitionConfirmFlow(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	publisher := &capturePublisher{}
	svc := NewLifecycleService(store, publisher)

	tx := seedTransaction(t, svc, "P-1", "P-2")

	completed, err := svc.Transition(context.Background(), tx.ID, domain.StatusCompleted, "P-2")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}

	confirmed, err := svc.Transition(context.Background(), tx.ID, domain.StatusConfirmed, "P-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}
	if confirmed.InitiatorReviewed || confirmed.RecipientReviewed {
		t.Error("expected review flags reset on entering confirmed")
	}

	if len(publisher.statusEvents) != 2 {
		t.Fatalf("expected 2 status events, got %d", len(publisher.statusEvents))
	}
}

func TestTransitionReject(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	svc := NewLifecycleService(store, nil)

	tx := seedTransaction(t, svc, "P-1", "P-2")

	rejected, err := svc.Transition(context.Background(), tx.ID, domain.StatusRejected, "P-2")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.StatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}

	// Rejected is terminal.
	if _, err := svc.Transition(context.Background(), tx.ID, domain.StatusCompleted, "P-2"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionAuthorization(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2", "P-3")
	svc := NewLifecycleService(store, nil)

	tx := seedTransaction(t, svc, "P-1", "P-2")

	if _, err := svc.Transition(context.Background(), tx.ID, domain.StatusCompleted, "P-3"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}
	if _, err := svc.Transition(context.Background(), tx.ID, domain.StatusCompleted, "P-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for initiator completing, got %v", err)
	}
	if _, err := svc.Transition(context.Background(), tx.ID, domain.StatusConfirmed, "P-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for pending to confirmed, got %v", err)
	}
	if _, err := svc.Transition(context.Background(), "T-404", domain.StatusCompleted, "P-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown transaction, got %v", err)
	}
}

func TestTransitionLostRace(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2")
	svc := NewLifecycleService(store, nil)

	tx := seedTransaction(t, svc, "P-1", "P-2")

	// A rival transition lands between the read and the conditional write.
	store.beforeUpdate = func() {
		store.mu.Lock()
		defer store.mu.Unlock()
		rival := store.txs[tx.ID]
		rival.Status = domain.StatusRejected
		store.txs[tx.ID] = rival
	}

	if _, err := svc.Transition(context.Background(), tx.ID, domain.StatusCompleted, "P-2"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestListTransactions(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2", "P-3")
	svc := NewLifecycleService(store, nil)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	svc.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	first := seedTransaction(t, svc, "P-1", "P-2")
	second := seedTransaction(t, svc, "P-2", "P-1")
	seedTransaction(t, svc, "P-2", "P-3")

	if _, err := svc.Transition(context.Background(), first.ID, domain.StatusRejected, "P-2"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	all, err := svc.ListTransactions(context.Background(), "P-1", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 transactions for P-1, got %d", len(all))
	}
	if all[0].ID != second.ID {
		t.Errorf("expected newest first, got %s", all[0].ID)
	}

	rejected, err := svc.ListTransactions(context.Background(), "P-1", domain.StatusRejected)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(rejected) != 1 || rejected[0].ID != first.ID {
		t.Fatalf("expected only the rejected transaction, got %v", rejected)
	}

	if _, err := svc.ListTransactions(context.Background(), "P-1", domain.Status("archived")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown filter, got %v", err)
	}
}

func TestGetTransactionRestrictedToParties(t *testing.T) {
	store := newMemStore()
	seedParties(t, store, "P-1", "P-2", "P-3")
	svc := NewLifecycleService(store, nil)

	tx := seedTransaction(t, svc, "P-1", "P-2")

	if _, err := svc.GetTransaction(context.Background(), tx.ID, "P-2"); err != nil {
		t.Fatalf("expected recipient access, got %v", err)
	}
	if _, err := svc.GetTransaction(context.Background(), tx.ID, "P-3"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}
}
