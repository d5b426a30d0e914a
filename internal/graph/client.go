package graph

import (
	"context"
	"errors"
)

// Client is the contract the repositories use to talk to the marketplace
// store. Writes that must be atomic (conditional status updates, unique review
// inserts) are expressed as single Cypher statements so the store applies them
// in one transaction.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result is a simplified representation of a query response.
type Result struct {
	Records []Record
}

// Record groups key-value pairs returned from the store.
type Record map[string]any

// Options configures a graph client implementation.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI indicates the store URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")
