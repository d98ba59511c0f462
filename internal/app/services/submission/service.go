// Package submission drives the waste submission lifecycle from intake
// through verification to reward issuance.
package submission

import (
	"context"
	"strings"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/actor"
	domain "github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/token"
	"github.com/ReTrace-Network/ledger_layer/internal/app/metrics"
	"github.com/ReTrace-Network/ledger_layer/internal/app/reward"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
	"github.com/ReTrace-Network/ledger_layer/internal/settlement"
	"github.com/ReTrace-Network/ledger_layer/pkg/logger"
)

// AutoVerifierID marks verifications decided by the classifier instead of a
// human reviewer.
const AutoVerifierID = "auto:classifier"

// AutoVerifyConfig controls when a classifier result verifies a submission
// without human review.
type AutoVerifyConfig struct {
	Threshold        float64
	RequireTypeMatch bool
	Disabled         bool
}

// DefaultAutoVerify returns the shipped auto-verification policy.
func DefaultAutoVerify() AutoVerifyConfig {
	return AutoVerifyConfig{Threshold: 0.85, RequireTypeMatch: true}
}

// Service handles submission intake, verification and reward issuance.
type Service struct {
	subs       storage.SubmissionStore
	tokens     storage.TokenStore
	actors     storage.ActorStore
	policy     *reward.Policy
	gateway    settlement.Gateway
	autoVerify AutoVerifyConfig
	log        *logger.Logger
}

// New creates the submission service. A nil policy falls back to the default
// rate table; a nil gateway disables settlement submission, leaving reward
// transactions pending for the reconciliation path.
func New(subs storage.SubmissionStore, tokens storage.TokenStore, actors storage.ActorStore,
	policy *reward.Policy, gateway settlement.Gateway, log *logger.Logger) *Service {
	if policy == nil {
		policy = reward.NewPolicy(nil)
	}
	if log == nil {
		log = logger.NewDefault("submission")
	}
	return &Service{
		subs:       subs,
		tokens:     tokens,
		actors:     actors,
		policy:     policy,
		gateway:    gateway,
		autoVerify: DefaultAutoVerify(),
		log:        log,
	}
}

// SetAutoVerify overrides the auto-verification policy.
func (s *Service) SetAutoVerify(cfg AutoVerifyConfig) {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultAutoVerify().Threshold
	}
	s.autoVerify = cfg
}

// Submit records a new waste submission. Any registered actor may submit.
// When a classifier result accompanies the submission and clears the
// auto-verification bar, the submission is verified immediately and the
// reward issued in the same call.
func (s *Service) Submit(ctx context.Context, actorID string, material domain.Material, weightKg float64,
	imageRef, location string, classifier *domain.ClassifierResult) (domain.Submission, error) {
	if _, err := s.actors.GetActor(ctx, actorID); err != nil {
		return domain.Submission{}, err
	}

	sub := domain.Submission{
		ActorID:  actorID,
		Material: material,
		WeightKg: weightKg,
		ImageRef: strings.TrimSpace(imageRef),
		Location: strings.TrimSpace(location),
	}
	if classifier != nil {
		conf := classifier.Confidence
		sub.Confidence = &conf
	}

	created, err := s.subs.CreateSubmission(ctx, sub)
	if err != nil {
		return domain.Submission{}, err
	}
	s.log.WithField("submission_id", created.ID).
		Infof("submission received: %s %.2fkg from %s", created.Material, created.WeightKg, actorID)

	if classifier != nil && s.ShouldAutoVerify(material, *classifier) {
		verified, err := s.decide(ctx, created.ID, AutoVerifierID, true)
		if err != nil {
			// The submission stands; a reviewer can still decide it.
			s.log.WithError(err).Warnf("auto-verification of %s failed", created.ID)
			return created, nil
		}
		return verified, nil
	}
	return created, nil
}

// ShouldAutoVerify reports whether a classifier result is decisive enough to
// verify a submission without human review.
func (s *Service) ShouldAutoVerify(claimed domain.Material, result domain.ClassifierResult) bool {
	if s.autoVerify.Disabled {
		return false
	}
	if result.Confidence <= s.autoVerify.Threshold {
		return false
	}
	if s.autoVerify.RequireTypeMatch && result.Material != claimed {
		return false
	}
	return true
}

// Verify records a human verification decision. Admins and recyclers may
// verify; other roles are rejected.
func (s *Service) Verify(ctx context.Context, submissionID, verifierID string, approve bool) (domain.Submission, error) {
	verifier, err := s.actors.GetActor(ctx, verifierID)
	if err != nil {
		return domain.Submission{}, err
	}
	if verifier.Role != actor.RoleAdmin && verifier.Role != actor.RoleRecycler {
		return domain.Submission{}, errors.Forbidden(string(verifier.Role), "verify submissions")
	}
	return s.decide(ctx, submissionID, verifierID, approve)
}

// decide applies the verification decision. The store-level compare-and-swap
// on the pending status guarantees a single winner, so the reward issuance
// below it runs at most once per submission.
func (s *Service) decide(ctx context.Context, submissionID, verifierID string, approve bool) (domain.Submission, error) {
	sub, err := s.subs.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}

	if !approve {
		rejected, err := s.subs.SetSubmissionVerification(ctx, submissionID, domain.StatusRejected, verifierID, nil)
		if err == nil {
			metrics.RecordVerification(string(domain.StatusRejected), verifierID == AutoVerifierID)
		}
		return rejected, err
	}

	amount := s.policy.Reward(sub.Material, sub.WeightKg)
	verified, err := s.subs.SetSubmissionVerification(ctx, submissionID, domain.StatusVerified, verifierID, &amount)
	if err != nil {
		return domain.Submission{}, err
	}
	metrics.RecordVerification(string(domain.StatusVerified), verifierID == AutoVerifierID)

	if err := s.issueReward(ctx, verified); err != nil {
		// The verification stands either way; the transaction row records
		// how far issuance got and reconciliation finishes it.
		s.log.WithError(err).Warnf("reward issuance for %s incomplete", submissionID)
	}
	return verified, nil
}

func (s *Service) issueReward(ctx context.Context, sub domain.Submission) error {
	if sub.RewardAmount == nil {
		return errors.Internal("verified submission missing reward amount", nil)
	}

	tx, err := s.tokens.CreateTokenTransaction(ctx, token.Transaction{
		ActorID:      sub.ActorID,
		Kind:         token.KindReward,
		Amount:       *sub.RewardAmount,
		SubmissionID: sub.ID,
	})
	if err != nil {
		if errors.HasCode(err, errors.CodeConflictingReference) {
			// A reward already exists for this submission; nothing to do.
			return nil
		}
		return err
	}
	metrics.RecordRewardIssued(tx.Amount)

	if s.gateway == nil {
		return nil
	}

	wallet := ""
	if act, err := s.actors.GetActor(ctx, sub.ActorID); err == nil {
		wallet = act.Wallet
	}

	receipt, err := s.gateway.SubmitIntent(ctx, settlement.Intent{
		Kind:          settlement.IntentDistributeReward,
		CorrelationID: tx.ID,
		Wallet:        wallet,
		Amount:        tx.Amount,
		Payload:       map[string]interface{}{"submission_id": sub.ID},
	})
	switch {
	case err == nil && receipt.Applied:
		_, err = s.tokens.MarkTokenTransactionStatus(ctx, tx.ID, token.StatusCompleted, receipt.ExternalRef, "")
		return err
	case err == nil || errors.HasCode(err, errors.CodeSettlementPending):
		// Accepted but not final yet; keep the reference so reconciliation
		// can match the confirmation.
		if receipt.ExternalRef != "" {
			if _, markErr := s.tokens.MarkTokenTransactionStatus(ctx, tx.ID, token.StatusPending, receipt.ExternalRef, ""); markErr != nil {
				return markErr
			}
		}
		return nil
	default:
		// Transient outage: the transaction stays pending and the poller or
		// a settlement webhook resolves it later.
		s.log.WithError(err).Warnf("settlement intent for reward %s not confirmed", tx.ID)
		return nil
	}
}

// Get returns a submission by id.
func (s *Service) Get(ctx context.Context, id string) (domain.Submission, error) {
	return s.subs.GetSubmission(ctx, id)
}

// List returns submissions filtered by actor and status; empty filters match
// everything.
func (s *Service) List(ctx context.Context, actorID string, status domain.Status) ([]domain.Submission, error) {
	return s.subs.ListSubmissions(ctx, actorID, status)
}

// Reward returns the reward transaction issued for a submission.
func (s *Service) Reward(ctx context.Context, submissionID string) (token.Transaction, error) {
	return s.tokens.GetRewardBySubmission(ctx, submissionID)
}
