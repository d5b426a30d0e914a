package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is one party's rating and comment about the counterparty in one
// transaction. Immutable once created; the (ReviewerID, TransactionID) pair is
// unique, enforced by the storage layer.
type Review struct {
	ID              string
	ReviewerID      string
	ReviewedPartyID string
	TransactionID   string
	Rating          int
	Comment         string
	CreatedAt       time.Time
}

// ReviewDetail is a review joined with reviewer identity and the amount of the
// reviewed transaction, as shown on party profiles.
type ReviewDetail struct {
	Review
	ReviewerName string
	Amount       decimal.Decimal
	Bracket      string
}

// AmountBracket buckets a transaction amount into the coarse display ranges
// used on party profiles.
func AmountBracket(amount decimal.Decimal) string {
	switch {
	case amount.LessThan(decimal.NewFromInt(1000)):
		return "$0 - $1,000"
	case amount.LessThan(decimal.NewFromInt(5000)):
		return "$1,000 - $5,000"
	case amount.LessThan(decimal.NewFromInt(20000)):
		return "$5,000 - $20,000"
	case amount.LessThan(decimal.NewFromInt(50000)):
		return "$20,000 - $50,000"
	default:
		return "Above $50,000"
	}
}
