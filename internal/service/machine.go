package service

import (
	"fmt"

	"github.com/priyakat/marketlink/backend/internal/domain"
)

// successors defines the transaction status graph. rejected and confirmed are
// terminal and deliberately absent.
var successors = map[domain.Status][]domain.Status{
	domain.StatusPending:   {domain.StatusCompleted, domain.StatusRejected},
	domain.StatusCompleted: {domain.StatusConfirmed},
}

// transitionActor names which transaction role may trigger a given target
// status. The recipient settles or rejects the request; the initiator
// confirms the settlement.
var transitionActor = map[domain.Status]domain.TransactionRole{
	domain.StatusCompleted: domain.RoleRecipient,
	domain.StatusRejected:  domain.RoleRecipient,
	domain.StatusConfirmed: domain.RoleInitiator,
}

// checkTransition validates that requested is a legal successor of current
// and that the acting role is entitled to trigger it. Authorization is by the
// party's role within this transaction, never by account-level role labels.
func checkTransition(current, requested domain.Status, actor domain.TransactionRole) error {
	// A status outside the vocabulary is malformed input, not a known state
	// missing an edge, so it fails validation before the successor check.
	if !requested.Valid() {
		return fmt.Errorf("unknown status %q: %w", requested, domain.ErrValidation)
	}

	allowed := false
	for _, next := range successors[current] {
		if next == requested {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("cannot move %s to %s: %w", current, requested, domain.ErrInvalidTransition)
	}

	if required := transitionActor[requested]; actor != required {
		return fmt.Errorf("only the %s may move a transaction to %s: %w", required, requested, domain.ErrForbidden)
	}
	return nil
}
