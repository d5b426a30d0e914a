package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/priyakat/marketlink/backend/internal/domain"
	"github.com/priyakat/marketlink/backend/internal/graph"
)

// InsertParty persists a new party. Fails with domain.ErrConflict when the
// email is already registered: the MERGE keys on email, so an existing node
// comes back with a different partyId than the one we tried to create.
func (r *Repository) InsertParty(ctx context.Context, party domain.Party) error {
	if party.ID == "" {
		return errors.New("party id is required")
	}
	if party.Email == "" {
		return errors.New("party email is required")
	}

	params := map[string]any{
		"email":   strings.ToLower(strings.TrimSpace(party.Email)),
		"partyId": party.ID,
		"props":   partyProperties(party),
	}

	res, err := r.client.ExecuteWrite(ctx, insertPartyCypher, params)
	if err != nil {
		return fmt.Errorf("insert party %s: %w", party.ID, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("insert party %s: no record returned", party.ID)
	}
	if toString(res.Records[0]["partyId"]) != party.ID {
		return fmt.Errorf("email %s already registered: %w", party.Email, domain.ErrConflict)
	}
	return nil
}

// FindPartyByID returns the party or domain.ErrNotFound.
func (r *Repository) FindPartyByID(ctx context.Context, partyID string) (domain.Party, error) {
	res, err := r.client.ExecuteRead(ctx, findPartyByIDCypher, map[string]any{
		"partyId": partyID,
	})
	if err != nil {
		return domain.Party{}, fmt.Errorf("find party %s: %w", partyID, err)
	}
	if len(res.Records) == 0 {
		return domain.Party{}, fmt.Errorf("party %s: %w", partyID, domain.ErrNotFound)
	}
	return recordToParty(res.Records[0]), nil
}

// FindPartyByEmail returns the party or domain.ErrNotFound.
func (r *Repository) FindPartyByEmail(ctx context.Context, email string) (domain.Party, error) {
	res, err := r.client.ExecuteRead(ctx, findPartyByEmailCypher, map[string]any{
		"email": strings.ToLower(strings.TrimSpace(email)),
	})
	if err != nil {
		return domain.Party{}, fmt.Errorf("find party by email: %w", err)
	}
	if len(res.Records) == 0 {
		return domain.Party{}, fmt.Errorf("party with email %s: %w", email, domain.ErrNotFound)
	}
	return recordToParty(res.Records[0]), nil
}

// SearchParties returns directory summaries matching the query, with review
// aggregates computed from the ledger. An empty query matches everyone.
func (r *Repository) SearchParties(ctx context.Context, query string) ([]domain.PartySummary, error) {
	res, err := r.client.ExecuteRead(ctx, searchPartiesCypher, map[string]any{
		"q": strings.ToLower(strings.TrimSpace(query)),
	})
	if err != nil {
		return nil, fmt.Errorf("search parties: %w", err)
	}

	summaries := make([]domain.PartySummary, 0, len(res.Records))
	for _, record := range res.Records {
		summaries = append(summaries, recordToPartySummary(record))
	}
	return summaries, nil
}

// FetchPartyProfile returns one party's directory summary together with the
// reviews written about it, newest first.
func (r *Repository) FetchPartyProfile(ctx context.Context, partyID string) (domain.PartyProfile, error) {
	res, err := r.client.ExecuteRead(ctx, partySummaryCypher, map[string]any{
		"partyId": partyID,
	})
	if err != nil {
		return domain.PartyProfile{}, fmt.Errorf("fetch party profile %s: %w", partyID, err)
	}
	if len(res.Records) == 0 {
		return domain.PartyProfile{}, fmt.Errorf("party %s: %w", partyID, domain.ErrNotFound)
	}

	profile := domain.PartyProfile{
		PartySummary: recordToPartySummary(res.Records[0]),
	}

	reviews, err := r.ListReviewsAboutParty(ctx, partyID)
	if err != nil {
		return domain.PartyProfile{}, err
	}
	profile.Reviews = reviews
	return profile, nil
}

func partyProperties(p domain.Party) map[string]any {
	roles := make([]string, 0, len(p.Roles))
	for _, role := range p.Roles {
		roles = append(roles, string(role))
	}
	return map[string]any{
		"name":               p.Name,
		"passwordHash":       p.PasswordHash,
		"roles":              roles,
		"companyName":        p.Company.Name,
		"companyDescription": p.Company.Description,
		"companyIndustry":    p.Company.Industry,
		"companyLogoUrl":     p.Company.LogoURL,
		"createdAt":          formatTime(p.CreatedAt),
		"updatedAt":          formatTime(p.UpdatedAt),
	}
}

func recordToParty(record graph.Record) domain.Party {
	roles := make([]domain.Role, 0)
	for _, role := range toStringSlice(record["roles"]) {
		roles = append(roles, domain.Role(role))
	}
	return domain.Party{
		ID:           toString(record["partyId"]),
		Name:         toString(record["name"]),
		Email:        toString(record["email"]),
		PasswordHash: toString(record["passwordHash"]),
		Roles:        roles,
		Company: domain.Company{
			Name:        toString(record["companyName"]),
			Description: toString(record["companyDescription"]),
			Industry:    toString(record["companyIndustry"]),
			LogoURL:     toString(record["companyLogoUrl"]),
		},
		CreatedAt: toTime(record["createdAt"]),
		UpdatedAt: toTime(record["updatedAt"]),
	}
}

func recordToPartySummary(record graph.Record) domain.PartySummary {
	roles := make([]domain.Role, 0)
	for _, role := range toStringSlice(record["roles"]) {
		roles = append(roles, domain.Role(role))
	}
	return domain.PartySummary{
		ID:            toString(record["partyId"]),
		Name:          toString(record["name"]),
		Email:         toString(record["email"]),
		Roles:         roles,
		AverageRating: toFloat64(record["averageRating"]),
		ReviewCount:   toInt(record["reviewCount"]),
	}
}

const insertPartyCypher = `
MERGE (p:Party {email: $email})
ON CREATE SET p.partyId = $partyId, p += $props
RETURN p.partyId AS partyId
`

const findPartyByIDCypher = `
MATCH (p:Party {partyId: $partyId})
RETURN p.partyId AS partyId,
       p.name AS name,
       p.email AS email,
       p.passwordHash AS passwordHash,
       p.roles AS roles,
       p.companyName AS companyName,
       p.companyDescription AS companyDescription,
       p.companyIndustry AS companyIndustry,
       p.companyLogoUrl AS companyLogoUrl,
       p.createdAt AS createdAt,
       p.updatedAt AS updatedAt
`

const findPartyByEmailCypher = `
MATCH (p:Party {email: $email})
RETURN p.partyId AS partyId,
       p.name AS name,
       p.email AS email,
       p.passwordHash AS passwordHash,
       p.roles AS roles,
       p.companyName AS companyName,
       p.companyDescription AS companyDescription,
       p.companyIndustry AS companyIndustry,
       p.companyLogoUrl AS companyLogoUrl,
       p.createdAt AS createdAt,
       p.updatedAt AS updatedAt
`

const searchPartiesCypher = `
MATCH (p:Party)
WHERE $q = "" OR toLower(p.name) CONTAINS $q
OPTIONAL MATCH (rev:Review)-[:ABOUT]->(p)
RETURN p.partyId AS partyId,
       p.name AS name,
       p.email AS email,
       p.roles AS roles,
       count(rev) AS reviewCount,
       coalesce(avg(rev.rating), 0.0) AS averageRating
ORDER BY toLower(p.name) ASC
`

const partySummaryCypher = `
MATCH (p:Party {partyId: $partyId})
OPTIONAL MATCH (rev:Review)-[:ABOUT]->(p)
RETURN p.partyId AS partyId,
       p.name AS name,
       p.email AS email,
       p.roles AS roles,
       count(rev) AS reviewCount,
       coalesce(avg(rev.rating), 0.0) AS averageRating
`
