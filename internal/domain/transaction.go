package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the transaction lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusConfirmed Status = "confirmed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusRejected, StatusConfirmed:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusConfirmed
}

// TransactionRole identifies a party's role within one transaction, as opposed
// to its account-level role labels.
type TransactionRole string

const (
	RoleInitiator TransactionRole = "initiator"
	RoleRecipient TransactionRole = "recipient"
	RoleNone      TransactionRole = ""
)

// Transaction models one payment-request workflow between two parties.
// InitiatorReviewed and RecipientReviewed are projections of the review
// ledger; they are never written except through the flag projector and the
// reset on entering confirmed.
type Transaction struct {
	ID                string
	InitiatorID       string
	RecipientID       string
	Amount            decimal.Decimal
	Description       string
	Status            Status
	InitiatorReviewed bool
	RecipientReviewed bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RoleOf returns the role partyID holds within this transaction, or RoleNone
// when it is not a party.
func (t Transaction) RoleOf(partyID string) TransactionRole {
	switch partyID {
	case t.InitiatorID:
		return RoleInitiator
	case t.RecipientID:
		return RoleRecipient
	}
	return RoleNone
}

// CounterpartyOf returns the other party's ID, or "" when partyID is not a
// party to the transaction.
func (t Transaction) CounterpartyOf(partyID string) string {
	switch partyID {
	case t.InitiatorID:
		return t.RecipientID
	case t.RecipientID:
		return t.InitiatorID
	}
	return ""
}

// TransactionSummary is the listing shape returned to API clients, with party
// names resolved.
type TransactionSummary struct {
	ID                string
	InitiatorID       string
	InitiatorName     string
	RecipientID       string
	RecipientName     string
	Amount            decimal.Decimal
	Description       string
	Status            Status
	InitiatorReviewed bool
	RecipientReviewed bool
	CreatedAt         time.Time
}
