package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/priyakat/marketlink/backend/internal/domain"
	"github.com/priyakat/marketlink/backend/internal/graph"
)

// InsertTransaction persists a new transaction with its party edges. Fails
// with domain.ErrNotFound when either party does not exist.
func (r *Repository) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	if tx.ID == "" {
		return errors.New("transaction id is required")
	}
	if tx.InitiatorID == "" || tx.RecipientID == "" {
		return errors.New("both initiator and recipient party IDs are required")
	}

	params := map[string]any{
		"transactionId": tx.ID,
		"initiatorId":   tx.InitiatorID,
		"recipientId":   tx.RecipientID,
		"props":         transactionProperties(tx),
	}

	res, err := r.client.ExecuteWrite(ctx, insertTransactionCypher, params)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("transaction %s parties: %w", tx.ID, domain.ErrNotFound)
	}
	return nil
}

// FindTransactionByID returns the transaction or domain.ErrNotFound.
func (r *Repository) FindTransactionByID(ctx context.Context, transactionID string) (domain.Transaction, error) {
	res, err := r.client.ExecuteRead(ctx, findTransactionCypher, map[string]any{
		"transactionId": transactionID,
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("find transaction %s: %w", transactionID, err)
	}
	if len(res.Records) == 0 {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	return recordToTransaction(res.Records[0]), nil
}

// UpdateTransactionStatus applies a conditional status write: the update only
// matches while the stored status still equals expected, which is what keeps
// two racing transitions from both succeeding. When resetFlags is set both
// review flags are cleared in the same statement, so status and flags commit
// together. Fails with domain.ErrConflict when the condition no longer holds
// and domain.ErrNotFound when the transaction does not exist.
func (r *Repository) UpdateTransactionStatus(ctx context.Context, transactionID string, next, expected domain.Status, resetFlags bool, updatedAt time.Time) (domain.Transaction, error) {
	params := map[string]any{
		"transactionId": transactionID,
		"next":          string(next),
		"expected":      string(expected),
		"resetFlags":    resetFlags,
		"updatedAt":     formatTime(updatedAt),
	}

	res, err := r.client.ExecuteWrite(ctx, updateStatusCypher, params)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("update transaction %s status: %w", transactionID, err)
	}
	if len(res.Records) == 0 {
		// Distinguish a vanished transaction from a lost race.
		if _, findErr := r.FindTransactionByID(ctx, transactionID); findErr != nil {
			return domain.Transaction{}, findErr
		}
		return domain.Transaction{}, fmt.Errorf("transaction %s modified concurrently: %w", transactionID, domain.ErrConflict)
	}
	return recordToTransaction(res.Records[0]), nil
}

// SetReviewFlag marks the flag belonging to the given transaction role as
// reviewed. Only that role's flag is touched; repeating the call is a no-op.
func (r *Repository) SetReviewFlag(ctx context.Context, transactionID string, role domain.TransactionRole, updatedAt time.Time) (domain.Transaction, error) {
	var cypher string
	switch role {
	case domain.RoleInitiator:
		cypher = setInitiatorReviewedCypher
	case domain.RoleRecipient:
		cypher = setRecipientReviewedCypher
	default:
		return domain.Transaction{}, fmt.Errorf("unknown transaction role %q", role)
	}

	res, err := r.client.ExecuteWrite(ctx, cypher, map[string]any{
		"transactionId": transactionID,
		"updatedAt":     formatTime(updatedAt),
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("set review flag on %s: %w", transactionID, err)
	}
	if len(res.Records) == 0 {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	return recordToTransaction(res.Records[0]), nil
}

// SetReviewFlags overwrites both flags, used by the resync operation after
// recomputing them from the ledger.
func (r *Repository) SetReviewFlags(ctx context.Context, transactionID string, initiatorReviewed, recipientReviewed bool, updatedAt time.Time) (domain.Transaction, error) {
	res, err := r.client.ExecuteWrite(ctx, setReviewFlagsCypher, map[string]any{
		"transactionId":     transactionID,
		"initiatorReviewed": initiatorReviewed,
		"recipientReviewed": recipientReviewed,
		"updatedAt":         formatTime(updatedAt),
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("set review flags on %s: %w", transactionID, err)
	}
	if len(res.Records) == 0 {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	return recordToTransaction(res.Records[0]), nil
}

// ListTransactionsForParty returns all transactions the party takes part in,
// newest first, optionally filtered by status, with party names resolved.
func (r *Repository) ListTransactionsForParty(ctx context.Context, partyID string, status domain.Status) ([]domain.TransactionSummary, error) {
	res, err := r.client.ExecuteRead(ctx, listTransactionsCypher, map[string]any{
		"partyId": partyID,
		"status":  string(status),
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", partyID, err)
	}

	summaries := make([]domain.TransactionSummary, 0, len(res.Records))
	for _, record := range res.Records {
		summaries = append(summaries, domain.TransactionSummary{
			ID:                toString(record["transactionId"]),
			InitiatorID:       toString(record["initiatorId"]),
			InitiatorName:     toString(record["initiatorName"]),
			RecipientID:       toString(record["recipientId"]),
			RecipientName:     toString(record["recipientName"]),
			Amount:            toDecimal(record["amount"]),
			Description:       toString(record["description"]),
			Status:            domain.Status(toString(record["status"])),
			InitiatorReviewed: toBool(record["initiatorReviewed"]),
			RecipientReviewed: toBool(record["recipientReviewed"]),
			CreatedAt:         toTime(record["createdAt"]),
		})
	}
	return summaries, nil
}

// ListTransactionIDs returns every transaction ID, used by maintenance
// sweeps that resync review flags store-wide.
func (r *Repository) ListTransactionIDs(ctx context.Context) ([]string, error) {
	res, err := r.client.ExecuteRead(ctx, listTransactionIDsCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list transaction ids: %w", err)
	}
	ids := make([]string, 0, len(res.Records))
	for _, record := range res.Records {
		if id := toString(record["transactionId"]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func transactionProperties(tx domain.Transaction) map[string]any {
	return map[string]any{
		"initiatorId":       tx.InitiatorID,
		"recipientId":       tx.RecipientID,
		"amount":            tx.Amount.String(),
		"description":       tx.Description,
		"status":            string(tx.Status),
		"initiatorReviewed": tx.InitiatorReviewed,
		"recipientReviewed": tx.RecipientReviewed,
		"createdAt":         formatTime(tx.CreatedAt),
		"updatedAt":         formatTime(tx.UpdatedAt),
	}
}

func recordToTransaction(record graph.Record) domain.Transaction {
	return domain.Transaction{
		ID:                toString(record["transactionId"]),
		InitiatorID:       toString(record["initiatorId"]),
		RecipientID:       toString(record["recipientId"]),
		Amount:            toDecimal(record["amount"]),
		Description:       toString(record["description"]),
		Status:            domain.Status(toString(record["status"])),
		InitiatorReviewed: toBool(record["initiatorReviewed"]),
		RecipientReviewed: toBool(record["recipientReviewed"]),
		CreatedAt:         toTime(record["createdAt"]),
		UpdatedAt:         toTime(record["updatedAt"]),
	}
}

const transactionReturnClause = `
RETURN t.transactionId AS transactionId,
       t.initiatorId AS initiatorId,
       t.recipientId AS recipientId,
       t.amount AS amount,
       t.description AS description,
       t.status AS status,
       t.initiatorReviewed AS initiatorReviewed,
       t.recipientReviewed AS recipientReviewed,
       t.createdAt AS createdAt,
       t.updatedAt AS updatedAt
`

const insertTransactionCypher = `
MATCH (initiator:Party {partyId: $initiatorId})
MATCH (recipient:Party {partyId: $recipientId})
CREATE (t:Transaction {transactionId: $transactionId})
SET t += $props
CREATE (initiator)-[:INITIATED]->(t)
CREATE (t)-[:REQUESTED_FROM]->(recipient)
RETURN t.transactionId AS transactionId
`

const findTransactionCypher = `
MATCH (t:Transaction {transactionId: $transactionId})
` + transactionReturnClause

const updateStatusCypher = `
MATCH (t:Transaction {transactionId: $transactionId})
WHERE t.status = $expected
SET t.status = $next,
    t.updatedAt = $updatedAt,
    t.initiatorReviewed = CASE WHEN $resetFlags THEN false ELSE t.initiatorReviewed END,
    t.recipientReviewed = CASE WHEN $resetFlags THEN false ELSE t.recipientReviewed END
` + transactionReturnClause

const setInitiatorReviewedCypher = `
MATCH (t:Transaction {transactionId: $transactionId})
SET t.initiatorReviewed = true,
    t.updatedAt = $updatedAt
` + transactionReturnClause

const setRecipientReviewedCypher = `
MATCH (t:Transaction {transactionId: $transactionId})
SET t.recipientReviewed = true,
    t.updatedAt = $updatedAt
` + transactionReturnClause

const setReviewFlagsCypher = `
MATCH (t:Transaction {transactionId: $transactionId})
SET t.initiatorReviewed = $initiatorReviewed,
    t.recipientReviewed = $recipientReviewed,
    t.updatedAt = $updatedAt
` + transactionReturnClause

const listTransactionsCypher = `
MATCH (initiator:Party)-[:INITIATED]->(t:Transaction)-[:REQUESTED_FROM]->(recipient:Party)
WHERE (t.initiatorId = $partyId OR t.recipientId = $partyId)
  AND ($status = "" OR t.status = $status)
RETURN t.transactionId AS transactionId,
       t.initiatorId AS initiatorId,
       initiator.name AS initiatorName,
       t.recipientId AS recipientId,
       recipient.name AS recipientName,
       t.amount AS amount,
       t.description AS description,
       t.status AS status,
       t.initiatorReviewed AS initiatorReviewed,
       t.recipientReviewed AS recipientReviewed,
       t.createdAt AS createdAt
ORDER BY datetime(t.createdAt) DESC
`

const listTransactionIDsCypher = `
MATCH (t:Transaction)
RETURN t.transactionId AS transactionId
ORDER BY t.transactionId
`
