package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/priyakat/marketlink/backend/internal/auth"
	"github.com/priyakat/marketlink/backend/internal/domain"
)

// DirectoryStore is the storage contract required by the directory service.
type DirectoryStore interface {
	InsertParty(ctx context.Context, party domain.Party) error
	FindPartyByID(ctx context.Context, partyID string) (domain.Party, error)
	FindPartyByEmail(ctx context.Context, email string) (domain.Party, error)
	SearchParties(ctx context.Context, query string) ([]domain.PartySummary, error)
	FetchPartyProfile(ctx context.Context, partyID string) (domain.PartyProfile, error)
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// DirectoryService handles registration, login, and the public party
// directory.
type DirectoryService struct {
	store  DirectoryStore
	tokens *auth.Tokens
	nowFn  func() time.Time
	idFn   func() string
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(store DirectoryStore, tokens *auth.Tokens) *DirectoryService {
	return &DirectoryService{
		store:  store,
		tokens: tokens,
		nowFn:  time.Now,
		idFn:   func() string { return uuid.NewString() },
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *DirectoryService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Register creates a party account and returns an authenticated session.
// Fails with domain.ErrConflict when the email is already registered.
func (s *DirectoryService) Register(ctx context.Context, input RegisterInput) (Session, error) {
	name := strings.TrimSpace(input.Name)
	if len(name) < 2 {
		return Session{}, fmt.Errorf("name must be at least 2 characters: %w", domain.ErrValidation)
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !emailRegex.MatchString(email) {
		return Session{}, fmt.Errorf("invalid email: %w", domain.ErrValidation)
	}
	if len(input.Password) < auth.MinPasswordLength {
		return Session{}, fmt.Errorf("password must be at least %d characters: %w",
			auth.MinPasswordLength, domain.ErrValidation)
	}

	roles := input.Roles
	if len(roles) == 0 {
		roles = []domain.Role{domain.RoleSupplier}
	}
	for _, role := range roles {
		if !domain.ValidRole(role) {
			return Session{}, fmt.Errorf("invalid role %q: %w", role, domain.ErrValidation)
		}
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return Session{}, err
	}

	now := s.nowFn().UTC()
	party := domain.Party{
		ID:           s.idFn(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
		Company:      input.Company,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.InsertParty(ctx, party); err != nil {
		return Session{}, err
	}

	token, err := s.tokens.Issue(party.ID)
	if err != nil {
		return Session{}, err
	}
	party.PasswordHash = ""
	return Session{Party: party, Token: token}, nil
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *DirectoryService) Login(ctx context.Context, email, password string) (Session, error) {
	party, err := s.store.FindPartyByEmail(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("invalid credentials: %w", domain.ErrForbidden)
	}
	if !auth.CheckPassword(party.PasswordHash, password) {
		return Session{}, fmt.Errorf("invalid credentials: %w", domain.ErrForbidden)
	}

	token, err := s.tokens.Issue(party.ID)
	if err != nil {
		return Session{}, err
	}
	party.PasswordHash = ""
	return Session{Party: party, Token: token}, nil
}

// Search returns directory summaries matching the query by name; an empty
// query lists everyone.
func (s *DirectoryService) Search(ctx context.Context, query string) ([]domain.PartySummary, error) {
	return s.store.SearchParties(ctx, query)
}

// Profile returns one party's public profile with its review history.
func (s *DirectoryService) Profile(ctx context.Context, partyID string) (domain.PartyProfile, error) {
	return s.store.FetchPartyProfile(ctx, partyID)
}
