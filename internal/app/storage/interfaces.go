package storage

import (
	"context"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/actor"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/batch"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/token"
)

// ActorStore persists participant records.
type ActorStore interface {
	CreateActor(ctx context.Context, act actor.Actor) (actor.Actor, error)
	GetActor(ctx context.Context, id string) (actor.Actor, error)
	GetActorByWallet(ctx context.Context, wallet string) (actor.Actor, error)
	ListActors(ctx context.Context) ([]actor.Actor, error)
}

// SubmissionStore persists submissions and enforces their state invariants.
// SetSubmissionVerification must be a compare-and-swap on the pending status:
// of N concurrent calls for the same submission exactly one succeeds and the
// rest fail with an already-verified error.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error)
	GetSubmission(ctx context.Context, id string) (submission.Submission, error)
	ListSubmissions(ctx context.Context, actorID string, status submission.Status) ([]submission.Submission, error)
	SetSubmissionVerification(ctx context.Context, id string, status submission.Status, verifierID string, rewardAmount *float64) (submission.Submission, error)
}

// BatchStore persists batches. Status only moves forward in the fixed
// ordering; membership linking is idempotent; the external reference is
// write-once.
type BatchStore interface {
	CreateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error)
	GetBatch(ctx context.Context, id string) (batch.Batch, error)
	ListBatches(ctx context.Context, producerID string) ([]batch.Batch, error)
	AdvanceBatchStatus(ctx context.Context, batchID string, status batch.Status) (batch.Batch, error)
	LinkSubmission(ctx context.Context, batchID, submissionID string) (batch.Batch, error)
	LinkConsumer(ctx context.Context, batchID, actorID string) (batch.Batch, error)
	LinkRecycler(ctx context.Context, batchID, actorID string) (batch.Batch, error)
	SetBatchExternalRef(ctx context.Context, batchID, externalRef string) (batch.Batch, error)
}

// TokenStore persists token transactions. The external reference is the
// idempotency key shared by the synchronous and reconciliation write paths:
// CreateOrGetTokenTransactionByExternalRef is the single entry point both
// use, so the same discipline applies everywhere.
type TokenStore interface {
	CreateTokenTransaction(ctx context.Context, tx token.Transaction) (token.Transaction, error)
	GetTokenTransaction(ctx context.Context, id string) (token.Transaction, error)
	GetRewardBySubmission(ctx context.Context, submissionID string) (token.Transaction, error)
	ResolveTokenTransactionByExternalRef(ctx context.Context, externalRef string) (token.Transaction, error)
	CreateOrGetTokenTransactionByExternalRef(ctx context.Context, tx token.Transaction) (token.Transaction, bool, error)
	MarkTokenTransactionStatus(ctx context.Context, id string, status token.Status, externalRef, note string) (token.Transaction, error)
	ListTokenTransactions(ctx context.Context, actorID string) ([]token.Transaction, error)
	ListPendingTokenTransactions(ctx context.Context) ([]token.Transaction, error)
}
