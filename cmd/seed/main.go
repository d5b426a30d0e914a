package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/priyakat/marketlink/backend/internal/auth"
	"github.com/priyakat/marketlink/backend/internal/config"
	"github.com/priyakat/marketlink/backend/internal/domain"
	"github.com/priyakat/marketlink/backend/internal/generator"
	"github.com/priyakat/marketlink/backend/internal/graph"
	"github.com/priyakat/marketlink/backend/internal/logging"
	"github.com/priyakat/marketlink/backend/internal/repository"
	"github.com/priyakat/marketlink/backend/internal/service"
)

func main() {
	defaults := generator.DefaultConfig()
	var (
		parties      = flag.Int("parties", defaults.NumParties, "number of demo parties to register")
		transactions = flag.Int("transactions", defaults.NumTransactions, "number of demo transactions to open")
		reviewChance = flag.Float64("review-chance", defaults.ReviewChance, "probability each side of a confirmed transaction leaves a review")
		password     = flag.String("password", defaults.Password, "password shared by all demo accounts")
		seed         = flag.Int64("seed", defaults.Seed, "random seed for deterministic generation")
		outputDir    = flag.String("output-dir", "", "write the dataset as JSON instead of applying it to the store")
	)
	flag.Parse()

	genCfg := generator.Config{
		NumParties:      *parties,
		NumTransactions: *transactions,
		ReviewChance:    clampProbability(*reviewChance),
		Password:        *password,
		Seed:            *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dataset, err := generator.New(genCfg).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *outputDir != "" {
		if err := generator.WriteDataset(dataset, *outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "Wrote %d parties and %d transactions into %s\n",
			len(dataset.Parties), len(dataset.Transactions), *outputDir)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	if cfg.Graph.URI == "" {
		logger.Error("GRAPH_URI is required to apply the dataset")
		os.Exit(1)
	}
	graphClient, err := graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	})
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}
	defer graphClient.Close(context.Background())

	repo := repository.New(graphClient)
	if err := repo.EnsureConstraints(ctx); err != nil {
		logger.Error("failed to ensure graph constraints", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewTokens(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	lifecycle := service.NewLifecycleService(repo, nil)
	directory := service.NewDirectoryService(repo, tokens)

	if err := apply(ctx, logger, lifecycle, directory, dataset); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

func apply(ctx context.Context, logger *slog.Logger, lifecycle *service.LifecycleService, directory *service.DirectoryService, dataset generator.Dataset) error {
	partyIDs := make([]string, len(dataset.Parties))
	for i, seed := range dataset.Parties {
		session, err := directory.Register(ctx, service.RegisterInput{
			Name:     seed.Name,
			Email:    seed.Email,
			Password: seed.Password,
			Roles:    seed.Roles,
			Company:  seed.Company,
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", seed.Email, err)
		}
		partyIDs[i] = session.Party.ID
	}
	logger.Info("registered demo parties", "count", len(partyIDs))

	created := 0
	reviewed := 0
	for _, seed := range dataset.Transactions {
		initiatorID := partyIDs[seed.InitiatorIdx]
		recipientID := partyIDs[seed.RecipientIdx]

		tx, err := lifecycle.CreateTransaction(ctx, service.CreateTransactionInput{
			InitiatorID: initiatorID,
			RecipientID: recipientID,
			Amount:      seed.Amount,
			Description: seed.Description,
		})
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		created++

		switch seed.TargetStatus {
		case domain.StatusPending:
			continue
		case domain.StatusRejected:
			if _, err := lifecycle.Transition(ctx, tx.ID, domain.StatusRejected, recipientID); err != nil {
				return fmt.Errorf("reject transaction %s: %w", tx.ID, err)
			}
			continue
		case domain.StatusCompleted, domain.StatusConfirmed:
			if _, err := lifecycle.Transition(ctx, tx.ID, domain.StatusCompleted, recipientID); err != nil {
				return fmt.Errorf("complete transaction %s: %w", tx.ID, err)
			}
		}
		if seed.TargetStatus != domain.StatusConfirmed {
			continue
		}
		if _, err := lifecycle.Transition(ctx, tx.ID, domain.StatusConfirmed, initiatorID); err != nil {
			return fmt.Errorf("confirm transaction %s: %w", tx.ID, err)
		}

		for _, review := range seed.Reviews {
			reviewerID := recipientID
			if review.ByInitiator {
				reviewerID = initiatorID
			}
			if _, err := lifecycle.SubmitReview(ctx, service.SubmitReviewInput{
				TransactionID: tx.ID,
				ReviewerID:    reviewerID,
				Rating:        review.Rating,
				Comment:       review.Comment,
			}); err != nil {
				return fmt.Errorf("review transaction %s: %w", tx.ID, err)
			}
			reviewed++
		}
	}

	logger.Info("seeded demo data", "transactions", created, "reviews", reviewed)
	return nil
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
