// Package batch manages producer batches from creation through recycling.
package batch

import (
	"context"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/actor"
	domain "github.com/ReTrace-Network/ledger_layer/internal/app/domain/batch"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
	"github.com/ReTrace-Network/ledger_layer/internal/app/metrics"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
	"github.com/ReTrace-Network/ledger_layer/internal/settlement"
	"github.com/ReTrace-Network/ledger_layer/pkg/logger"
)

// Service handles batch creation, membership and status progression.
type Service struct {
	batches storage.BatchStore
	subs    storage.SubmissionStore
	actors  storage.ActorStore
	gateway settlement.Gateway
	log     *logger.Logger
}

// New creates the batch service. A nil gateway skips settlement anchoring;
// external references then arrive through reconciliation only.
func New(batches storage.BatchStore, subs storage.SubmissionStore, actors storage.ActorStore,
	gateway settlement.Gateway, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("batch")
	}
	return &Service{batches: batches, subs: subs, actors: actors, gateway: gateway, log: log}
}

// Create registers a new batch for a producer and anchors it on the
// settlement backend. The id is caller-supplied or generated by the store.
func (s *Service) Create(ctx context.Context, producerID, id string, material submission.Material, weightKg float64) (domain.Batch, error) {
	producer, err := s.actors.GetActor(ctx, producerID)
	if err != nil {
		return domain.Batch{}, err
	}
	if producer.Role != actor.RoleProducer {
		return domain.Batch{}, errors.Forbidden(string(producer.Role), "create batches")
	}

	b, err := s.batches.CreateBatch(ctx, domain.Batch{
		ID:         id,
		ProducerID: producerID,
		Material:   material,
		WeightKg:   weightKg,
	})
	if err != nil {
		return domain.Batch{}, err
	}
	s.log.WithField("batch_id", b.ID).Infof("batch created: %s %.2fkg", b.Material, b.WeightKg)

	if s.gateway != nil {
		receipt, err := s.gateway.SubmitIntent(ctx, settlement.Intent{
			Kind:          settlement.IntentLogBatch,
			CorrelationID: b.ID,
			Wallet:        producer.Wallet,
			Payload: map[string]interface{}{
				"material":  string(b.Material),
				"weight_kg": b.WeightKg,
			},
		})
		if (err == nil || errors.HasCode(err, errors.CodeSettlementPending)) && receipt.ExternalRef != "" {
			if b, err = s.batches.SetBatchExternalRef(ctx, b.ID, receipt.ExternalRef); err != nil {
				return domain.Batch{}, err
			}
		} else if err != nil {
			s.log.WithError(err).Warnf("batch %s not anchored yet", b.ID)
		}
	}
	return b, nil
}

// LinkSubmission attaches a verified submission to a batch. A submission
// belongs to at most one batch for its whole life.
func (s *Service) LinkSubmission(ctx context.Context, batchID, submissionID string) (domain.Batch, error) {
	sub, err := s.subs.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Batch{}, err
	}
	if sub.Status != submission.StatusVerified {
		return domain.Batch{}, errors.Validation("submission %s is %s, only verified submissions join batches", submissionID, sub.Status)
	}
	return s.batches.LinkSubmission(ctx, batchID, submissionID)
}

// LinkConsumer records a consumer's purchase against a batch. Linking is
// idempotent; replays return the batch unchanged.
func (s *Service) LinkConsumer(ctx context.Context, batchID, consumerID string) (domain.Batch, error) {
	consumer, err := s.actors.GetActor(ctx, consumerID)
	if err != nil {
		return domain.Batch{}, err
	}
	if consumer.Role != actor.RoleConsumer {
		return domain.Batch{}, errors.Forbidden(string(consumer.Role), "link as consumer")
	}

	b, err := s.batches.LinkConsumer(ctx, batchID, consumerID)
	if err != nil {
		return domain.Batch{}, err
	}

	if s.gateway != nil {
		_, err := s.gateway.SubmitIntent(ctx, settlement.Intent{
			Kind:          settlement.IntentLinkConsumer,
			CorrelationID: batchID,
			Wallet:        consumer.Wallet,
			Payload:       map[string]interface{}{"consumer_id": consumerID},
		})
		if err != nil && !errors.HasCode(err, errors.CodeSettlementPending) {
			s.log.WithError(err).Warnf("consumer link for batch %s not anchored yet", batchID)
		}
	}
	return b, nil
}

// LinkRecycler records a recycler against the batch ahead of the recycled
// stage. Linking is idempotent like the other membership kinds.
func (s *Service) LinkRecycler(ctx context.Context, batchID, recyclerID string) (domain.Batch, error) {
	recycler, err := s.actors.GetActor(ctx, recyclerID)
	if err != nil {
		return domain.Batch{}, err
	}
	if recycler.Role != actor.RoleRecycler {
		return domain.Batch{}, errors.Forbidden(string(recycler.Role), "link as recycler")
	}
	return s.batches.LinkRecycler(ctx, batchID, recyclerID)
}

// Advance moves a batch to a strictly later stage. Producers and admins may
// advance any stage; a recycler may only mark the batch recycled and is
// linked to it in the same call.
func (s *Service) Advance(ctx context.Context, batchID, actorID string, status domain.Status) (domain.Batch, error) {
	act, err := s.actors.GetActor(ctx, actorID)
	if err != nil {
		return domain.Batch{}, err
	}
	switch act.Role {
	case actor.RoleProducer, actor.RoleAdmin:
	case actor.RoleRecycler:
		if status != domain.StatusRecycled {
			return domain.Batch{}, errors.Forbidden(string(act.Role), "advance a batch to "+string(status))
		}
	default:
		return domain.Batch{}, errors.Forbidden(string(act.Role), "advance batches")
	}

	b, err := s.batches.AdvanceBatchStatus(ctx, batchID, status)
	if err != nil {
		return domain.Batch{}, err
	}
	if act.Role == actor.RoleRecycler {
		if b, err = s.batches.LinkRecycler(ctx, batchID, actorID); err != nil {
			return domain.Batch{}, err
		}
	}
	s.log.WithField("batch_id", batchID).Infof("batch advanced to %s by %s", status, actorID)
	metrics.RecordBatchTransition(string(status))

	if s.gateway != nil {
		_, err := s.gateway.SubmitIntent(ctx, settlement.Intent{
			Kind:          settlement.IntentUpdateStatus,
			CorrelationID: batchID,
			Payload:       map[string]interface{}{"status": string(status)},
		})
		if err != nil && !errors.HasCode(err, errors.CodeSettlementPending) {
			s.log.WithError(err).Warnf("status change for batch %s not anchored yet", batchID)
		}
	}
	return b, nil
}

// Get returns a batch by id.
func (s *Service) Get(ctx context.Context, id string) (domain.Batch, error) {
	return s.batches.GetBatch(ctx, id)
}

// List returns batches, optionally filtered by producer.
func (s *Service) List(ctx context.Context, producerID string) ([]domain.Batch, error) {
	return s.batches.ListBatches(ctx, producerID)
}
