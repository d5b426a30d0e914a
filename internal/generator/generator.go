package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/priyakat/marketlink/backend/internal/domain"
)

// PartySeed describes one demo account to register.
type PartySeed struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Roles    []domain.Role  `json:"roles"`
	Company  domain.Company `json:"company"`
}

// ReviewSeed describes one review to submit once its transaction is
// confirmed. ByInitiator selects which side writes it.
type ReviewSeed struct {
	ByInitiator bool   `json:"byInitiator"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
}

// TransactionSeed describes one payment request to open and drive to its
// target status. Party references are indexes into the dataset's parties.
type TransactionSeed struct {
	InitiatorIdx int             `json:"initiatorIdx"`
	RecipientIdx int             `json:"recipientIdx"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	TargetStatus domain.Status   `json:"targetStatus"`
	Reviews      []ReviewSeed    `json:"reviews"`
}

// Dataset contains the generated parties and transactions.
type Dataset struct {
	Parties      []PartySeed       `json:"parties"`
	Transactions []TransactionSeed `json:"transactions"`
}

// Generator produces deterministic demo data for the marketplace.
type Generator struct {
	cfg       Config
	rand      *rand.Rand
	fragments nameFragments
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	if cfg.NumParties < 2 {
		cfg.NumParties = DefaultConfig().NumParties
	}
	if cfg.NumTransactions <= 0 {
		cfg.NumTransactions = DefaultConfig().NumTransactions
	}
	if cfg.ReviewChance <= 0 {
		cfg.ReviewChance = DefaultConfig().ReviewChance
	}
	if cfg.Password == "" {
		cfg.Password = DefaultConfig().Password
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:       cfg,
		rand:      rand.New(rand.NewSource(cfg.Seed)),
		fragments: defaultNameFragments(),
	}
}

// Generate synthesises parties and transactions. It respects context
// cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	parties := make([]PartySeed, g.cfg.NumParties)
	for i := 0; i < g.cfg.NumParties; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		name := g.randomFullName()
		parties[i] = PartySeed{
			Name:     name,
			Email:    fmt.Sprintf("demo-%03d@%s", i+1, g.randomDomain()),
			Password: g.cfg.Password,
			Roles:    g.randomRoles(),
			Company:  g.randomCompany(),
		}
	}

	transactions := make([]TransactionSeed, g.cfg.NumTransactions)
	for i := 0; i < g.cfg.NumTransactions; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		initiatorIdx := g.rand.Intn(len(parties))
		recipientIdx := g.rand.Intn(len(parties))
		if initiatorIdx == recipientIdx {
			recipientIdx = (recipientIdx + 1) % len(parties)
		}

		target := g.randomTargetStatus()
		seed := TransactionSeed{
			InitiatorIdx: initiatorIdx,
			RecipientIdx: recipientIdx,
			Amount:       g.randomAmount(),
			Description:  g.randomDescription(),
			TargetStatus: target,
		}

		// Reviews only apply once the transaction reaches confirmed.
		if target == domain.StatusConfirmed {
			if g.rand.Float64() < g.cfg.ReviewChance {
				seed.Reviews = append(seed.Reviews, g.randomReview(true))
			}
			if g.rand.Float64() < g.cfg.ReviewChance {
				seed.Reviews = append(seed.Reviews, g.randomReview(false))
			}
		}

		transactions[i] = seed
	}

	return Dataset{Parties: parties, Transactions: transactions}, nil
}

func (g *Generator) randomFullName() string {
	return fmt.Sprintf("%s %s", g.fragments.first[g.rand.Intn(len(g.fragments.first))],
		g.fragments.last[g.rand.Intn(len(g.fragments.last))])
}

func (g *Generator) randomDomain() string {
	return g.fragments.domains[g.rand.Intn(len(g.fragments.domains))]
}

func (g *Generator) randomRoles() []domain.Role {
	switch g.rand.Intn(3) {
	case 0:
		return []domain.Role{domain.RoleSupplier}
	case 1:
		return []domain.Role{domain.RoleVendor}
	default:
		return []domain.Role{domain.RoleSupplier, domain.RoleVendor}
	}
}

func (g *Generator) randomCompany() domain.Company {
	name := g.fragments.companies[g.rand.Intn(len(g.fragments.companies))]
	return domain.Company{
		Name:        name,
		Description: fmt.Sprintf("%s provides %s services.", name, g.randomIndustryWord()),
		Industry:    g.fragments.industries[g.rand.Intn(len(g.fragments.industries))],
	}
}

func (g *Generator) randomIndustryWord() string {
	words := []string{"logistics", "wholesale", "consulting", "manufacturing", "distribution"}
	return words[g.rand.Intn(len(words))]
}

func (g *Generator) randomAmount() decimal.Decimal {
	// Cents precision, spread across the profile display brackets.
	cents := int64(g.rand.Intn(8_000_000) + 2_500)
	return decimal.New(cents, -2)
}

func (g *Generator) randomDescription() string {
	return g.fragments.descriptions[g.rand.Intn(len(g.fragments.descriptions))]
}

func (g *Generator) randomTargetStatus() domain.Status {
	// Weighted toward confirmed so profiles accumulate reviews.
	switch g.rand.Intn(10) {
	case 0, 1:
		return domain.StatusPending
	case 2:
		return domain.StatusRejected
	case 3, 4:
		return domain.StatusCompleted
	default:
		return domain.StatusConfirmed
	}
}

func (g *Generator) randomReview(byInitiator bool) ReviewSeed {
	return ReviewSeed{
		ByInitiator: byInitiator,
		Rating:      g.rand.Intn(domain.MaxRating-domain.MinRating+1) + domain.MinRating,
		Comment:     g.fragments.comments[g.rand.Intn(len(g.fragments.comments))],
	}
}

type nameFragments struct {
	first        []string
	last         []string
	domains      []string
	companies    []string
	industries   []string
	descriptions []string
	comments     []string
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		first:      []string{"Jane", "John", "Alex", "Priya", "Liu", "Maria", "Omar", "Sofia", "Noah", "Emma", "Lucas", "Mia", "Ava", "Ethan", "Zara"},
		last:       []string{"Doe", "Smith", "Chen", "Patel", "Garcia", "Khan", "Kim", "Ivanov", "Nguyen", "Silva", "Brown", "Lee"},
		domains:    []string{"example.com", "mail.com", "marketlink.io", "vendors.net", "supplychain.org"},
		companies:  []string{"Northwind Traders", "Acme Supply", "Globex Freight", "Initech Parts", "Umbrella Goods", "Stark Components", "Wayne Logistics", "Hooli Wholesale"},
		industries: []string{"Logistics", "Manufacturing", "Wholesale", "Retail", "Construction", "Agriculture"},
		descriptions: []string{
			"Invoice for Q3 component order",
			"Freight charges, route 7",
			"Bulk packaging materials",
			"Consulting retainer",
			"Warehouse restock",
			"Equipment lease payment",
			"Raw material shipment",
		},
		comments: []string{
			"Smooth transaction, would work with them again.",
			"Payment settled on time.",
			"Communication could have been faster, but delivered as agreed.",
			"Excellent counterparty, no issues at all.",
			"Minor delays, resolved professionally.",
			"Everything as described.",
		},
	}
}
