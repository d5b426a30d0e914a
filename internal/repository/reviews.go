package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/priyakat/marketlink/backend/internal/domain"
	"github.com/priyakat/marketlink/backend/internal/graph"
)

// InsertReviewIfAbsent atomically inserts a review keyed on (reviewerId,
// transactionId). The MERGE, backed by the uniqueness constraint from
// EnsureConstraints, means exactly one of two concurrent submissions creates
// the node; the loser gets the winner's node back with a different reviewId
// and is reported as domain.ErrConflict. Fails with domain.ErrNotFound when
// the transaction or either party is missing.
func (r *Repository) InsertReviewIfAbsent(ctx context.Context, review domain.Review) error {
	if review.ID == "" {
		return errors.New("review id is required")
	}

	params := map[string]any{
		"reviewId":        review.ID,
		"reviewerId":      review.ReviewerID,
		"reviewedPartyId": review.ReviewedPartyID,
		"transactionId":   review.TransactionID,
		"rating":          review.Rating,
		"comment":         review.Comment,
		"createdAt":       formatTime(review.CreatedAt),
	}

	res, err := r.client.ExecuteWrite(ctx, insertReviewCypher, params)
	if err != nil {
		return fmt.Errorf("insert review for transaction %s: %w", review.TransactionID, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("review transaction %s or parties: %w", review.TransactionID, domain.ErrNotFound)
	}
	if toString(res.Records[0]["reviewId"]) != review.ID {
		return fmt.Errorf("reviewer %s already reviewed transaction %s: %w",
			review.ReviewerID, review.TransactionID, domain.ErrConflict)
	}
	return nil
}

// FindReviewByReviewerAndTransaction returns the ledger entry for the pair,
// or domain.ErrNotFound.
func (r *Repository) FindReviewByReviewerAndTransaction(ctx context.Context, reviewerID, transactionID string) (domain.Review, error) {
	res, err := r.client.ExecuteRead(ctx, findReviewCypher, map[string]any{
		"reviewerId":    reviewerID,
		"transactionId": transactionID,
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("find review: %w", err)
	}
	if len(res.Records) == 0 {
		return domain.Review{}, fmt.Errorf("review by %s on %s: %w", reviewerID, transactionID, domain.ErrNotFound)
	}
	return recordToReview(res.Records[0]), nil
}

// ListReviewsByTransaction returns the ledger entries for one transaction.
// The resync operation derives both flags from this listing alone.
func (r *Repository) ListReviewsByTransaction(ctx context.Context, transactionID string) ([]domain.Review, error) {
	res, err := r.client.ExecuteRead(ctx, listReviewsByTransactionCypher, map[string]any{
		"transactionId": transactionID,
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews for transaction %s: %w", transactionID, err)
	}

	reviews := make([]domain.Review, 0, len(res.Records))
	for _, record := range res.Records {
		reviews = append(reviews, recordToReview(record))
	}
	return reviews, nil
}

// ListReviewsAboutParty returns the reviews written about one party, newest
// first, joined with reviewer names and reviewed-transaction amounts.
func (r *Repository) ListReviewsAboutParty(ctx context.Context, partyID string) ([]domain.ReviewDetail, error) {
	res, err := r.client.ExecuteRead(ctx, listReviewsAboutPartyCypher, map[string]any{
		"partyId": partyID,
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews about %s: %w", partyID, err)
	}

	details := make([]domain.ReviewDetail, 0, len(res.Records))
	for _, record := range res.Records {
		amount := toDecimal(record["amount"])
		details = append(details, domain.ReviewDetail{
			Review:       recordToReview(record),
			ReviewerName: toString(record["reviewerName"]),
			Amount:       amount,
			Bracket:      domain.AmountBracket(amount),
		})
	}
	return details, nil
}

func recordToReview(record graph.Record) domain.Review {
	return domain.Review{
		ID:              toString(record["reviewId"]),
		ReviewerID:      toString(record["reviewerId"]),
		ReviewedPartyID: toString(record["reviewedPartyId"]),
		TransactionID:   toString(record["transactionId"]),
		Rating:          toInt(record["rating"]),
		Comment:         toString(record["comment"]),
		CreatedAt:       toTime(record["createdAt"]),
	}
}

const insertReviewCypher = `
MATCH (t:Transaction {transactionId: $transactionId})
MATCH (reviewer:Party {partyId: $reviewerId})
MATCH (reviewed:Party {partyId: $reviewedPartyId})
MERGE (r:Review {reviewerId: $reviewerId, transactionId: $transactionId})
ON CREATE SET r.reviewId = $reviewId,
              r.reviewedPartyId = $reviewedPartyId,
              r.rating = $rating,
              r.comment = $comment,
              r.createdAt = $createdAt
MERGE (reviewer)-[:WROTE]->(r)
MERGE (r)-[:ABOUT]->(reviewed)
MERGE (r)-[:FOR]->(t)
RETURN r.reviewId AS reviewId
`

const reviewReturnClause = `
RETURN r.reviewId AS reviewId,
       r.reviewerId AS reviewerId,
       r.reviewedPartyId AS reviewedPartyId,
       r.transactionId AS transactionId,
       r.rating AS rating,
       r.comment AS comment,
       r.createdAt AS createdAt
`

const findReviewCypher = `
MATCH (r:Review {reviewerId: $reviewerId, transactionId: $transactionId})
` + reviewReturnClause

const listReviewsByTransactionCypher = `
MATCH (r:Review {transactionId: $transactionId})
` + reviewReturnClause + `
ORDER BY datetime(r.createdAt) ASC
`

const listReviewsAboutPartyCypher = `
MATCH (reviewer:Party)-[:WROTE]->(r:Review)-[:ABOUT]->(p:Party {partyId: $partyId})
MATCH (r)-[:FOR]->(t:Transaction)
RETURN r.reviewId AS reviewId,
       r.reviewerId AS reviewerId,
       r.reviewedPartyId AS reviewedPartyId,
       r.transactionId AS transactionId,
       r.rating AS rating,
       r.comment AS comment,
       r.createdAt AS createdAt,
       reviewer.name AS reviewerName,
       t.amount AS amount
ORDER BY datetime(r.createdAt) DESC
`
