package service

import (
	"github.com/shopspring/decimal"

	"github.com/priyakat/marketlink/backend/internal/domain"
)

// CreateTransactionInput models a payment request. The initiator is the
// authenticated caller; the recipient is the party the payment is requested
// from.
type CreateTransactionInput struct {
	InitiatorID string
	RecipientID string
	Amount      decimal.Decimal
	Description string
}

// SubmitReviewInput models one party's review of the counterparty in a
// confirmed transaction.
type SubmitReviewInput struct {
	TransactionID string
	ReviewerID    string
	Rating        int
	Comment       string
}

// RegisterInput models a signup request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Roles    []domain.Role
	Company  domain.Company
}

// Session is the result of a successful registration or login.
type Session struct {
	Party domain.Party
	Token string
}
