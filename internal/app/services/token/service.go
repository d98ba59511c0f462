// Package token exposes balances and peer-to-peer transfers over the
// transaction ledger.
package token

import (
	"context"

	domain "github.com/ReTrace-Network/ledger_layer/internal/app/domain/token"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
	"github.com/ReTrace-Network/ledger_layer/internal/settlement"
	"github.com/ReTrace-Network/ledger_layer/pkg/logger"
)

// Service handles token balances and transfers.
type Service struct {
	tokens  storage.TokenStore
	actors  storage.ActorStore
	gateway settlement.Gateway
	log     *logger.Logger
}

// New creates the token service.
func New(tokens storage.TokenStore, actors storage.ActorStore, gateway settlement.Gateway, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("token")
	}
	return &Service{tokens: tokens, actors: actors, gateway: gateway, log: log}
}

// Balance sums an actor's completed transactions. Rewards credit the owning
// actor; a transfer row is owned by the sender and carries the recipient id
// in Metadata, debiting one side and crediting the other. Pending rows are
// excluded until settlement confirms them.
func (s *Service) Balance(ctx context.Context, actorID string) (float64, error) {
	if _, err := s.actors.GetActor(ctx, actorID); err != nil {
		return 0, err
	}

	// Incoming transfers live on other actors' rows, so scan everything.
	all, err := s.tokens.ListTokenTransactions(ctx, "")
	if err != nil {
		return 0, err
	}
	var balance float64
	for _, tx := range all {
		if tx.Status != domain.StatusCompleted {
			continue
		}
		switch tx.Kind {
		case domain.KindReward:
			if tx.ActorID == actorID {
				balance += tx.Amount
			}
		case domain.KindTransfer:
			if tx.ActorID == actorID {
				balance -= tx.Amount
			}
			if tx.Metadata == actorID {
				balance += tx.Amount
			}
		}
	}
	return balance, nil
}

// Transfer moves tokens from one actor to another. The sender needs a
// sufficient settled balance; the transfer itself settles asynchronously
// like every other ledger write.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount float64) (domain.Transaction, error) {
	if amount <= 0 {
		return domain.Transaction{}, errors.Validation("transfer amount must be positive, got %v", amount)
	}
	if fromID == toID {
		return domain.Transaction{}, errors.Validation("cannot transfer to self")
	}
	recipient, err := s.actors.GetActor(ctx, toID)
	if err != nil {
		return domain.Transaction{}, err
	}
	balance, err := s.Balance(ctx, fromID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if balance < amount {
		return domain.Transaction{}, errors.Validation("insufficient balance: have %v, need %v", balance, amount)
	}

	tx, err := s.tokens.CreateTokenTransaction(ctx, domain.Transaction{
		ActorID:  fromID,
		Kind:     domain.KindTransfer,
		Amount:   amount,
		Metadata: toID,
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	if s.gateway == nil {
		return tx, nil
	}
	receipt, err := s.gateway.SubmitIntent(ctx, settlement.Intent{
		Kind:          settlement.IntentTransfer,
		CorrelationID: tx.ID,
		Wallet:        recipient.Wallet,
		Amount:        amount,
	})
	switch {
	case err == nil && receipt.Applied:
		return s.tokens.MarkTokenTransactionStatus(ctx, tx.ID, domain.StatusCompleted, receipt.ExternalRef, "")
	case err == nil || errors.HasCode(err, errors.CodeSettlementPending):
		if receipt.ExternalRef != "" {
			return s.tokens.MarkTokenTransactionStatus(ctx, tx.ID, domain.StatusPending, receipt.ExternalRef, "")
		}
		return tx, nil
	default:
		s.log.WithError(err).Warnf("transfer %s not confirmed yet", tx.ID)
		return tx, nil
	}
}

// Get returns a transaction by id.
func (s *Service) Get(ctx context.Context, id string) (domain.Transaction, error) {
	return s.tokens.GetTokenTransaction(ctx, id)
}

// History lists an actor's own transactions.
func (s *Service) History(ctx context.Context, actorID string) ([]domain.Transaction, error) {
	return s.tokens.ListTokenTransactions(ctx, actorID)
}
