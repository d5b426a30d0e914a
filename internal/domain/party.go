package domain

import "time"

// Role is an account-level label. A party may hold both roles; authorization
// for lifecycle operations is decided by the party's role within a specific
// transaction, never by these labels.
type Role string

const (
	RoleSupplier Role = "supplier"
	RoleVendor   Role = "vendor"
)

// ValidRole reports whether r is a known account role.
func ValidRole(r Role) bool {
	return r == RoleSupplier || r == RoleVendor
}

// Company captures the optional company profile attached to a party.
type Company struct {
	Name        string
	Description string
	Industry    string
	LogoURL     string
}

// Party aggregates the canonical registered-actor data.
type Party struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Roles        []Role
	Company      Company
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the party carries the given account-level label.
func (p Party) HasRole(r Role) bool {
	for _, have := range p.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// PartySummary is the directory listing shape: identity plus review
// aggregates computed from the ledger.
type PartySummary struct {
	ID            string
	Name          string
	Email         string
	Roles         []Role
	AverageRating float64
	ReviewCount   int
}

// PartyProfile is a summary extended with the full review history about the
// party.
type PartyProfile struct {
	PartySummary
	Reviews []ReviewDetail
}
