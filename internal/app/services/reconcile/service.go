// Package reconcile ingests settlement backend events and converges the
// local ledger onto them. Events may arrive late, duplicated or out of
// order; every handler is a pure convergence step that can be replayed
// safely.
package reconcile

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/token"
	"github.com/ReTrace-Network/ledger_layer/internal/app/metrics"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
	"github.com/ReTrace-Network/ledger_layer/pkg/logger"
)

// Outcome classifies what a reconciliation event did to local state.
type Outcome string

const (
	// OutcomeApplied means the event changed local state.
	OutcomeApplied Outcome = "applied"
	// OutcomeReplayed means local state already reflected the event.
	OutcomeReplayed Outcome = "replayed"
	// OutcomeCorrelationMiss means the event references no known local entity.
	OutcomeCorrelationMiss Outcome = "correlation_miss"
	// OutcomeConflict means the event contradicts committed local state.
	OutcomeConflict Outcome = "conflict"
)

// Event types accepted from the settlement backend.
const (
	EventRewardDistributed = "RewardDistributed"
	EventBatchCreated      = "BatchCreated"
	EventConsumerLinked    = "ConsumerLinked"
)

// Event is one settlement backend notification.
type Event struct {
	Type        string
	ExternalRef string
	Payload     []byte
}

// Service applies settlement events to the ledger.
type Service struct {
	subs    storage.SubmissionStore
	batches storage.BatchStore
	tokens  storage.TokenStore
	actors  storage.ActorStore
	log     *logger.Logger
}

// New creates the reconciliation service.
func New(subs storage.SubmissionStore, batches storage.BatchStore, tokens storage.TokenStore,
	actors storage.ActorStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reconcile")
	}
	return &Service{subs: subs, batches: batches, tokens: tokens, actors: actors, log: log}
}

// HandleEvent applies one event and reports the outcome. Malformed events
// and unknown types return an error; the four outcomes are all successful
// handler results, conflicts included, so the caller acks the event either
// way.
func (s *Service) HandleEvent(ctx context.Context, event Event) (Outcome, error) {
	event.ExternalRef = strings.TrimSpace(event.ExternalRef)
	if event.ExternalRef == "" {
		return "", errors.BadPayload("event is missing the external reference")
	}
	if len(event.Payload) > 0 && !gjson.ValidBytes(event.Payload) {
		return "", errors.BadPayload("event payload is not valid JSON")
	}

	var (
		outcome Outcome
		err     error
	)
	switch event.Type {
	case EventRewardDistributed:
		outcome, err = s.handleRewardDistributed(ctx, event)
	case EventBatchCreated:
		outcome, err = s.handleBatchCreated(ctx, event)
	case EventConsumerLinked:
		outcome, err = s.handleConsumerLinked(ctx, event)
	default:
		return "", errors.UnsupportedEvent(event.Type)
	}
	if err != nil {
		return "", err
	}

	metrics.RecordSettlementEvent(event.Type, string(outcome))
	s.log.WithFields(map[string]interface{}{
		"event_type":   event.Type,
		"external_ref": event.ExternalRef,
		"outcome":      string(outcome),
	}).Info("settlement event reconciled")
	return outcome, nil
}

func (s *Service) handleRewardDistributed(ctx context.Context, event Event) (Outcome, error) {
	// The reference is the idempotency key: once any transaction holds it,
	// later deliveries of the same event only confirm what we know.
	if existing, err := s.tokens.ResolveTokenTransactionByExternalRef(ctx, event.ExternalRef); err == nil {
		switch existing.Status {
		case token.StatusCompleted:
			return OutcomeReplayed, nil
		case token.StatusFailed:
			return OutcomeConflict, nil
		default:
			if _, err := s.tokens.MarkTokenTransactionStatus(ctx, existing.ID, token.StatusCompleted, event.ExternalRef, ""); err != nil {
				return "", err
			}
			return OutcomeApplied, nil
		}
	}

	if txID := gjson.GetBytes(event.Payload, "transaction_id").String(); txID != "" {
		tx, err := s.tokens.GetTokenTransaction(ctx, txID)
		if err != nil {
			if errors.HasCode(err, errors.CodeNotFound) {
				return OutcomeCorrelationMiss, nil
			}
			return "", err
		}
		if tx.ExternalRef != "" && tx.ExternalRef != event.ExternalRef {
			return OutcomeConflict, nil
		}
		if tx.Status == token.StatusFailed {
			return OutcomeConflict, nil
		}
		if tx.Status == token.StatusCompleted {
			return OutcomeReplayed, nil
		}
		if _, err := s.tokens.MarkTokenTransactionStatus(ctx, tx.ID, token.StatusCompleted, event.ExternalRef, ""); err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	}

	// No transaction row yet: the service may have crashed between
	// verification and issuance. Rebuild the row from the verified
	// submission the event points at.
	if subID := gjson.GetBytes(event.Payload, "submission_id").String(); subID != "" {
		sub, err := s.subs.GetSubmission(ctx, subID)
		if err != nil {
			if errors.HasCode(err, errors.CodeNotFound) {
				return OutcomeCorrelationMiss, nil
			}
			return "", err
		}
		if sub.Status != submission.StatusVerified || sub.RewardAmount == nil {
			return OutcomeConflict, nil
		}
		return s.recordDistributedReward(ctx, token.Transaction{
			ActorID:      sub.ActorID,
			Kind:         token.KindReward,
			Amount:       *sub.RewardAmount,
			SubmissionID: sub.ID,
			ExternalRef:  event.ExternalRef,
			Status:       token.StatusCompleted,
		})
	}

	// Last resort: the backend names only the beneficiary wallet, as it does
	// for rewards distributed by another writer. A known wallet is enough to
	// record the credit under the reference.
	wallet := gjson.GetBytes(event.Payload, "wallet").String()
	amount := gjson.GetBytes(event.Payload, "amount").Float()
	if wallet == "" || amount <= 0 {
		return OutcomeCorrelationMiss, nil
	}
	act, err := s.actors.GetActorByWallet(ctx, wallet)
	if err != nil {
		if errors.HasCode(err, errors.CodeNotFound) {
			return OutcomeCorrelationMiss, nil
		}
		return "", err
	}
	return s.recordDistributedReward(ctx, token.Transaction{
		ActorID:     act.ID,
		Kind:        token.KindReward,
		Amount:      amount,
		ExternalRef: event.ExternalRef,
		Status:      token.StatusCompleted,
	})
}

func (s *Service) recordDistributedReward(ctx context.Context, tx token.Transaction) (Outcome, error) {
	_, created, err := s.tokens.CreateOrGetTokenTransactionByExternalRef(ctx, tx)
	if err != nil {
		if errors.HasCode(err, errors.CodeConflictingReference) {
			return OutcomeConflict, nil
		}
		return "", err
	}
	if created {
		return OutcomeApplied, nil
	}
	return OutcomeReplayed, nil
}

func (s *Service) handleBatchCreated(ctx context.Context, event Event) (Outcome, error) {
	batchID := gjson.GetBytes(event.Payload, "batch_id").String()
	if batchID == "" {
		return "", errors.BadPayload("BatchCreated event is missing batch_id")
	}

	b, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		if errors.HasCode(err, errors.CodeNotFound) {
			return OutcomeCorrelationMiss, nil
		}
		return "", err
	}
	switch b.ExternalRef {
	case event.ExternalRef:
		return OutcomeReplayed, nil
	case "":
		if _, err := s.batches.SetBatchExternalRef(ctx, batchID, event.ExternalRef); err != nil {
			if errors.HasCode(err, errors.CodeConflictingReference) {
				return OutcomeConflict, nil
			}
			return "", err
		}
		return OutcomeApplied, nil
	default:
		return OutcomeConflict, nil
	}
}

func (s *Service) handleConsumerLinked(ctx context.Context, event Event) (Outcome, error) {
	batchID := gjson.GetBytes(event.Payload, "batch_id").String()
	if batchID == "" {
		return "", errors.BadPayload("ConsumerLinked event is missing batch_id")
	}

	consumerID := gjson.GetBytes(event.Payload, "consumer_id").String()
	if consumerID == "" {
		wallet := gjson.GetBytes(event.Payload, "wallet").String()
		if wallet == "" {
			return "", errors.BadPayload("ConsumerLinked event needs consumer_id or wallet")
		}
		act, err := s.actors.GetActorByWallet(ctx, wallet)
		if err != nil {
			if errors.HasCode(err, errors.CodeNotFound) {
				return OutcomeCorrelationMiss, nil
			}
			return "", err
		}
		consumerID = act.ID
	} else if _, err := s.actors.GetActor(ctx, consumerID); err != nil {
		if errors.HasCode(err, errors.CodeNotFound) {
			return OutcomeCorrelationMiss, nil
		}
		return "", err
	}

	b, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		if errors.HasCode(err, errors.CodeNotFound) {
			return OutcomeCorrelationMiss, nil
		}
		return "", err
	}
	for _, id := range b.Consumers {
		if id == consumerID {
			return OutcomeReplayed, nil
		}
	}
	if _, err := s.batches.LinkConsumer(ctx, batchID, consumerID); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}
