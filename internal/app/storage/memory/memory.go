package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/actor"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/batch"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/token"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. The single mutex gives every state-changing operation the
// per-entity linearizability the invariants require.
type Store struct {
	mu                  sync.RWMutex
	actors              map[string]actor.Actor
	actorsByWallet      map[string]string
	submissions         map[string]submission.Submission
	batches             map[string]batch.Batch
	transactions        map[string]token.Transaction
	rewardsBySubmission map[string]string
	txByExternalRef     map[string]string
}

var _ storage.ActorStore = (*Store)(nil)
var _ storage.SubmissionStore = (*Store)(nil)
var _ storage.BatchStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		actors:              make(map[string]actor.Actor),
		actorsByWallet:      make(map[string]string),
		submissions:         make(map[string]submission.Submission),
		batches:             make(map[string]batch.Batch),
		transactions:        make(map[string]token.Transaction),
		rewardsBySubmission: make(map[string]string),
		txByExternalRef:     make(map[string]string),
	}
}

// ActorStore implementation ---------------------------------------------------

func (s *Store) CreateActor(_ context.Context, act actor.Actor) (actor.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if act.ID == "" {
		act.ID = uuid.NewString()
	} else if _, exists := s.actors[act.ID]; exists {
		return actor.Actor{}, errors.Validation("actor %s already exists", act.ID)
	}
	if !act.Role.Valid() {
		return actor.Actor{}, errors.Validation("unknown role %q", act.Role)
	}

	act.Wallet = strings.TrimSpace(act.Wallet)
	walletKey := strings.ToLower(act.Wallet)
	if walletKey != "" {
		if existing, exists := s.actorsByWallet[walletKey]; exists {
			return actor.Actor{}, errors.Validation("wallet %s already assigned to actor %s", act.Wallet, existing)
		}
	}

	now := time.Now().UTC()
	act.CreatedAt = now
	act.UpdatedAt = now

	s.actors[act.ID] = act
	if walletKey != "" {
		s.actorsByWallet[walletKey] = act.ID
	}
	return act, nil
}

func (s *Store) GetActor(_ context.Context, id string) (actor.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	act, ok := s.actors[id]
	if !ok {
		return actor.Actor{}, errors.NotFound("actor", id)
	}
	return act, nil
}

func (s *Store) GetActorByWallet(_ context.Context, wallet string) (actor.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.actorsByWallet[strings.ToLower(strings.TrimSpace(wallet))]; ok {
		return s.actors[id], nil
	}
	return actor.Actor{}, errors.NotFound("actor with wallet", wallet)
}

func (s *Store) ListActors(_ context.Context) ([]actor.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]actor.Actor, 0, len(s.actors))
	for _, act := range s.actors {
		result = append(result, act)
	}
	return result, nil
}

// SubmissionStore implementation ----------------------------------------------

func (s *Store) CreateSubmission(_ context.Context, sub submission.Submission) (submission.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.WeightKg <= 0 {
		return submission.Submission{}, errors.Validation("weight must be positive, got %v", sub.WeightKg)
	}
	if !sub.Material.Valid() {
		return submission.Submission{}, errors.Validation("unknown material type %q", sub.Material)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	} else if _, exists := s.submissions[sub.ID]; exists {
		return submission.Submission{}, errors.Validation("submission %s already exists", sub.ID)
	}

	now := time.Now().UTC()
	sub.Status = submission.StatusPending
	sub.RewardAmount = nil
	sub.BatchID = ""
	sub.CreatedAt = now
	sub.UpdatedAt = now

	s.submissions[sub.ID] = sub
	return cloneSubmission(sub), nil
}

func (s *Store) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return submission.Submission{}, errors.NotFound("submission", id)
	}
	return cloneSubmission(sub), nil
}

func (s *Store) ListSubmissions(_ context.Context, actorID string, status submission.Status) ([]submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]submission.Submission, 0)
	for _, sub := range s.submissions {
		if actorID != "" && sub.ActorID != actorID {
			continue
		}
		if status != "" && sub.Status != status {
			continue
		}
		result = append(result, cloneSubmission(sub))
	}
	return result, nil
}

func (s *Store) SetSubmissionVerification(_ context.Context, id string, status submission.Status, verifierID string, rewardAmount *float64) (submission.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return submission.Submission{}, errors.NotFound("submission", id)
	}
	if sub.Status != submission.StatusPending {
		return submission.Submission{}, errors.AlreadyVerified(id)
	}
	switch status {
	case submission.StatusVerified:
		if rewardAmount == nil {
			return submission.Submission{}, errors.Validation("verified submission requires a reward amount")
		}
	case submission.StatusRejected:
		if rewardAmount != nil {
			return submission.Submission{}, errors.Validation("rejected submission must not carry a reward")
		}
	default:
		return submission.Submission{}, errors.Validation("verification status must be verified or rejected, got %q", status)
	}

	now := time.Now().UTC()
	sub.Status = status
	sub.VerifiedBy = verifierID
	sub.VerifiedAt = now
	sub.UpdatedAt = now
	if rewardAmount != nil {
		amount := *rewardAmount
		sub.RewardAmount = &amount
	}

	s.submissions[id] = sub
	return cloneSubmission(sub), nil
}

// BatchStore implementation ---------------------------------------------------

func (s *Store) CreateBatch(_ context.Context, b batch.Batch) (batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = "BATCH-" + uuid.NewString()
	} else if _, exists := s.batches[b.ID]; exists {
		return batch.Batch{}, errors.DuplicateBatch(b.ID)
	}
	if b.WeightKg <= 0 {
		return batch.Batch{}, errors.Validation("weight must be positive, got %v", b.WeightKg)
	}
	if !b.Material.Valid() {
		return batch.Batch{}, errors.Validation("unknown material type %q", b.Material)
	}

	now := time.Now().UTC()
	b.Status = batch.StatusPending
	b.SubmissionIDs = nil
	b.Consumers = nil
	b.Recyclers = nil
	b.CreatedAt = now
	b.UpdatedAt = now

	s.batches[b.ID] = b
	return cloneBatch(b), nil
}

func (s *Store) GetBatch(_ context.Context, id string) (batch.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return batch.Batch{}, errors.NotFound("batch", id)
	}
	return cloneBatch(b), nil
}

func (s *Store) ListBatches(_ context.Context, producerID string) ([]batch.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]batch.Batch, 0)
	for _, b := range s.batches {
		if producerID == "" || b.ProducerID == producerID {
			result = append(result, cloneBatch(b))
		}
	}
	return result, nil
}

func (s *Store) AdvanceBatchStatus(_ context.Context, batchID string, status batch.Status) (batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return batch.Batch{}, errors.NotFound("batch", batchID)
	}
	if batch.Rank(status) < 0 {
		return batch.Batch{}, errors.Validation("unknown batch status %q", status)
	}
	if !batch.CanAdvance(b.Status, status) {
		return batch.Batch{}, errors.InvalidTransition("batch "+batchID, string(b.Status), string(status))
	}

	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	s.batches[batchID] = b
	return cloneBatch(b), nil
}

func (s *Store) LinkSubmission(_ context.Context, batchID, submissionID string) (batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return batch.Batch{}, errors.NotFound("batch", batchID)
	}
	sub, ok := s.submissions[submissionID]
	if !ok {
		return batch.Batch{}, errors.NotFound("submission", submissionID)
	}
	if sub.BatchID != "" {
		return batch.Batch{}, errors.Validation("submission %s already belongs to batch %s", submissionID, sub.BatchID)
	}

	now := time.Now().UTC()
	sub.BatchID = batchID
	sub.UpdatedAt = now
	s.submissions[submissionID] = sub

	b.SubmissionIDs = append(b.SubmissionIDs, submissionID)
	b.UpdatedAt = now
	s.batches[batchID] = b
	return cloneBatch(b), nil
}

func (s *Store) LinkConsumer(_ context.Context, batchID, actorID string) (batch.Batch, error) {
	return s.linkMember(batchID, actorID, false)
}

func (s *Store) LinkRecycler(_ context.Context, batchID, actorID string) (batch.Batch, error) {
	return s.linkMember(batchID, actorID, true)
}

func (s *Store) linkMember(batchID, actorID string, recycler bool) (batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return batch.Batch{}, errors.NotFound("batch", batchID)
	}
	if actorID == "" {
		return batch.Batch{}, errors.Validation("actor id is required")
	}

	members := b.Consumers
	if recycler {
		members = b.Recyclers
	}
	for _, id := range members {
		if id == actorID {
			// Already linked; linking is idempotent by design.
			return cloneBatch(b), nil
		}
	}
	if recycler {
		b.Recyclers = append(b.Recyclers, actorID)
	} else {
		b.Consumers = append(b.Consumers, actorID)
	}
	b.UpdatedAt = time.Now().UTC()
	s.batches[batchID] = b
	return cloneBatch(b), nil
}

func (s *Store) SetBatchExternalRef(_ context.Context, batchID, externalRef string) (batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return batch.Batch{}, errors.NotFound("batch", batchID)
	}
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return batch.Batch{}, errors.Validation("external reference is required")
	}
	if b.ExternalRef == externalRef {
		return cloneBatch(b), nil
	}
	if b.ExternalRef != "" {
		return batch.Batch{}, errors.ConflictingReference("batch "+batchID, b.ExternalRef, externalRef)
	}

	b.ExternalRef = externalRef
	b.UpdatedAt = time.Now().UTC()
	s.batches[batchID] = b
	return cloneBatch(b), nil
}

// TokenStore implementation ---------------------------------------------------

func (s *Store) CreateTokenTransaction(_ context.Context, tx token.Transaction) (token.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTransactionLocked(tx)
}

func (s *Store) createTransactionLocked(tx token.Transaction) (token.Transaction, error) {
	if tx.ActorID == "" {
		return token.Transaction{}, errors.Validation("beneficiary actor id is required")
	}
	if tx.Amount <= 0 && (tx.Kind == token.KindReward || tx.Kind == token.KindTransfer) {
		return token.Transaction{}, errors.Validation("%s amount must be positive, got %v", tx.Kind, tx.Amount)
	}
	if tx.Kind == token.KindReward && tx.SubmissionID != "" {
		if existing, exists := s.rewardsBySubmission[tx.SubmissionID]; exists {
			return token.Transaction{}, errors.ConflictingReference(
				"submission "+tx.SubmissionID+" reward", existing, "a second reward transaction")
		}
	}
	if tx.ExternalRef != "" {
		if existing, exists := s.txByExternalRef[tx.ExternalRef]; exists {
			return token.Transaction{}, errors.ConflictingReference(
				"external reference "+tx.ExternalRef, existing, "a second transaction")
		}
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = token.StatusPending
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	s.transactions[tx.ID] = tx
	if tx.Kind == token.KindReward && tx.SubmissionID != "" {
		s.rewardsBySubmission[tx.SubmissionID] = tx.ID
	}
	if tx.ExternalRef != "" {
		s.txByExternalRef[tx.ExternalRef] = tx.ID
	}
	return tx, nil
}

func (s *Store) GetTokenTransaction(_ context.Context, id string) (token.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return token.Transaction{}, errors.NotFound("token transaction", id)
	}
	return tx, nil
}

func (s *Store) GetRewardBySubmission(_ context.Context, submissionID string) (token.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.rewardsBySubmission[submissionID]; ok {
		return s.transactions[id], nil
	}
	return token.Transaction{}, errors.NotFound("reward for submission", submissionID)
}

func (s *Store) ResolveTokenTransactionByExternalRef(_ context.Context, externalRef string) (token.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.txByExternalRef[externalRef]; ok {
		return s.transactions[id], nil
	}
	return token.Transaction{}, errors.NotFound("token transaction with reference", externalRef)
}

func (s *Store) CreateOrGetTokenTransactionByExternalRef(_ context.Context, tx token.Transaction) (token.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ExternalRef == "" {
		return token.Transaction{}, false, errors.Validation("external reference is required")
	}
	if id, ok := s.txByExternalRef[tx.ExternalRef]; ok {
		return s.transactions[id], false, nil
	}
	created, err := s.createTransactionLocked(tx)
	if err != nil {
		return token.Transaction{}, false, err
	}
	return created, true, nil
}

func (s *Store) MarkTokenTransactionStatus(_ context.Context, id string, status token.Status, externalRef, note string) (token.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return token.Transaction{}, errors.NotFound("token transaction", id)
	}
	externalRef = strings.TrimSpace(externalRef)
	if externalRef != "" && tx.ExternalRef != "" && tx.ExternalRef != externalRef {
		return token.Transaction{}, errors.ConflictingReference("transaction "+id, tx.ExternalRef, externalRef)
	}
	if tx.Status.Terminal() {
		if tx.Status == status {
			// Safe replay of an outcome already recorded.
			return tx, nil
		}
		return token.Transaction{}, errors.InvalidTransition("transaction "+id, string(tx.Status), string(status))
	}

	if externalRef != "" && tx.ExternalRef == "" {
		if existing, exists := s.txByExternalRef[externalRef]; exists && existing != id {
			return token.Transaction{}, errors.ConflictingReference(
				"external reference "+externalRef, existing, id)
		}
		tx.ExternalRef = externalRef
		s.txByExternalRef[externalRef] = id
	}
	tx.Status = status
	if note != "" {
		tx.FailureNote = note
	}
	tx.UpdatedAt = time.Now().UTC()
	s.transactions[id] = tx
	return tx, nil
}

func (s *Store) ListTokenTransactions(_ context.Context, actorID string) ([]token.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]token.Transaction, 0)
	for _, tx := range s.transactions {
		if actorID == "" || tx.ActorID == actorID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *Store) ListPendingTokenTransactions(_ context.Context) ([]token.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]token.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.Status == token.StatusPending {
			result = append(result, tx)
		}
	}
	return result, nil
}

// Helpers ---------------------------------------------------------------------

func cloneSubmission(sub submission.Submission) submission.Submission {
	if sub.RewardAmount != nil {
		amount := *sub.RewardAmount
		sub.RewardAmount = &amount
	}
	if sub.Confidence != nil {
		conf := *sub.Confidence
		sub.Confidence = &conf
	}
	return sub
}

func cloneBatch(b batch.Batch) batch.Batch {
	b.SubmissionIDs = append([]string(nil), b.SubmissionIDs...)
	b.Consumers = append([]string(nil), b.Consumers...)
	b.Recyclers = append([]string(nil), b.Recyclers...)
	return b
}
