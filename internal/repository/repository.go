package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/priyakat/marketlink/backend/internal/graph"
)

// Repository encapsulates marketplace persistence on top of the graph client.
// Amounts are stored as exact decimal strings, timestamps as RFC3339Nano.
type Repository struct {
	client graph.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client}
}

// EnsureConstraints creates the uniqueness constraints the marketplace
// invariants rely on. The review constraint is load-bearing: it is what makes
// InsertReviewIfAbsent atomic under concurrent submissions. Safe to run on
// every startup.
func (r *Repository) EnsureConstraints(ctx context.Context) error {
	for _, stmt := range constraintStatements {
		if _, err := r.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure constraint: %w", err)
		}
	}
	return nil
}

var constraintStatements = []string{
	`CREATE CONSTRAINT party_id_unique IF NOT EXISTS
FOR (p:Party) REQUIRE p.partyId IS UNIQUE`,
	`CREATE CONSTRAINT party_email_unique IF NOT EXISTS
FOR (p:Party) REQUIRE p.email IS UNIQUE`,
	`CREATE CONSTRAINT transaction_id_unique IF NOT EXISTS
FOR (t:Transaction) REQUIRE t.transactionId IS UNIQUE`,
	`CREATE CONSTRAINT review_reviewer_transaction_unique IF NOT EXISTS
FOR (r:Review) REQUIRE (r.reviewerId, r.transactionId) IS UNIQUE`,
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toBool(val any) bool {
	b, _ := val.(bool)
	return b
}

func toInt(val any) int {
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func toDecimal(val any) decimal.Decimal {
	switch v := val.(type) {
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	}
	return decimal.Zero
}

func toStringSlice(val any) []string {
	raw, ok := val.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s := toString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toTime(val any) time.Time {
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		if v == "" {
			return time.Time{}
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
