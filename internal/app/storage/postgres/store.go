package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/actor"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/batch"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/token"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
)

// Store implements the storage interfaces backed by PostgreSQL. The schema
// enforces the uniqueness invariants (wallet, one reward per submission,
// external reference) so concurrent writers converge on the same rows the
// in-memory store guards with its mutex.
type Store struct {
	db *sql.DB
}

var _ storage.ActorStore = (*Store)(nil)
var _ storage.SubmissionStore = (*Store)(nil)
var _ storage.BatchStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// --- ActorStore --------------------------------------------------------------

func (s *Store) CreateActor(ctx context.Context, act actor.Actor) (actor.Actor, error) {
	if !act.Role.Valid() {
		return actor.Actor{}, errors.Validation("unknown role %q", act.Role)
	}
	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	act.CreatedAt = now
	act.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actors (id, role, wallet, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, act.ID, act.Role, act.Wallet, act.Name, act.CreatedAt, act.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "idx_actors_wallet") {
			return actor.Actor{}, errors.Validation("wallet %s already assigned", act.Wallet)
		}
		if isUniqueViolation(err, "") {
			return actor.Actor{}, errors.Validation("actor %s already exists", act.ID)
		}
		return actor.Actor{}, err
	}
	return act, nil
}

func (s *Store) GetActor(ctx context.Context, id string) (actor.Actor, error) {
	return s.scanActor(s.db.QueryRowContext(ctx, `
		SELECT id, role, wallet, name, created_at, updated_at
		FROM actors WHERE id = $1
	`, id), "actor", id)
}

func (s *Store) GetActorByWallet(ctx context.Context, wallet string) (actor.Actor, error) {
	return s.scanActor(s.db.QueryRowContext(ctx, `
		SELECT id, role, wallet, name, created_at, updated_at
		FROM actors WHERE lower(wallet) = lower($1)
	`, wallet), "actor with wallet", wallet)
}

func (s *Store) ListActors(ctx context.Context) ([]actor.Actor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, wallet, name, created_at, updated_at
		FROM actors ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]actor.Actor, 0)
	for rows.Next() {
		var act actor.Actor
		if err := rows.Scan(&act.ID, &act.Role, &act.Wallet, &act.Name, &act.CreatedAt, &act.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, act)
	}
	return result, rows.Err()
}

func (s *Store) scanActor(row *sql.Row, kind, key string) (actor.Actor, error) {
	var act actor.Actor
	err := row.Scan(&act.ID, &act.Role, &act.Wallet, &act.Name, &act.CreatedAt, &act.UpdatedAt)
	if err == sql.ErrNoRows {
		return actor.Actor{}, errors.NotFound(kind, key)
	}
	if err != nil {
		return actor.Actor{}, err
	}
	return act, nil
}

// --- SubmissionStore ---------------------------------------------------------

const submissionColumns = `id, actor_id, material, weight_kg, image_ref, location,
	status, confidence, verified_by, verified_at, reward_amount, batch_id,
	created_at, updated_at`

func (s *Store) CreateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	if sub.WeightKg <= 0 {
		return submission.Submission{}, errors.Validation("weight must be positive, got %v", sub.WeightKg)
	}
	if !sub.Material.Valid() {
		return submission.Submission{}, errors.Validation("unknown material type %q", sub.Material)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.Status = submission.StatusPending
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, actor_id, material, weight_kg, image_ref, location, status, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, sub.ID, sub.ActorID, sub.Material, sub.WeightKg, sub.ImageRef, sub.Location,
		sub.Status, nullFloat(sub.Confidence), sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return submission.Submission{}, errors.Validation("submission %s already exists", sub.ID)
		}
		return submission.Submission{}, err
	}
	return sub, nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return submission.Submission{}, errors.NotFound("submission", id)
	}
	return sub, err
}

func (s *Store) ListSubmissions(ctx context.Context, actorID string, status submission.Status) ([]submission.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE ($1 = '' OR actor_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at
	`, actorID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]submission.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

// SetSubmissionVerification is a compare-and-swap on the pending status: the
// conditional UPDATE lets exactly one of N racing verifiers win.
func (s *Store) SetSubmissionVerification(ctx context.Context, id string, status submission.Status, verifierID string, rewardAmount *float64) (submission.Submission, error) {
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
	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = $2, verified_by = $3, verified_at = $4, reward_amount = $5, updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`, id, status, verifierID, now, nullFloat(rewardAmount))
	if err != nil {
		return submission.Submission{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return submission.Submission{}, err
	}
	if affected == 0 {
		if _, getErr := s.GetSubmission(ctx, id); getErr != nil {
			return submission.Submission{}, getErr
		}
		return submission.Submission{}, errors.AlreadyVerified(id)
	}
	return s.GetSubmission(ctx, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (submission.Submission, error) {
	var sub submission.Submission
	var confidence, reward sql.NullFloat64
	var verifiedAt sql.NullTime
	err := row.Scan(&sub.ID, &sub.ActorID, &sub.Material, &sub.WeightKg, &sub.ImageRef,
		&sub.Location, &sub.Status, &confidence, &sub.VerifiedBy, &verifiedAt,
		&reward, &sub.BatchID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return submission.Submission{}, err
	}
	if confidence.Valid {
		v := confidence.Float64
		sub.Confidence = &v
	}
	if reward.Valid {
		v := reward.Float64
		sub.RewardAmount = &v
	}
	if verifiedAt.Valid {
		sub.VerifiedAt = verifiedAt.Time
	}
	return sub, nil
}

// --- BatchStore --------------------------------------------------------------

const (
	memberSubmission = "submission"
	memberConsumer   = "consumer"
	memberRecycler   = "recycler"
)

func (s *Store) CreateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	if b.WeightKg <= 0 {
		return batch.Batch{}, errors.Validation("weight must be positive, got %v", b.WeightKg)
	}
	if !b.Material.Valid() {
		return batch.Batch{}, errors.Validation("unknown material type %q", b.Material)
	}
	if b.ID == "" {
		b.ID = "BATCH-" + uuid.NewString()
	}
	now := time.Now().UTC()
	b.Status = batch.StatusPending
	b.SubmissionIDs = nil
	b.Consumers = nil
	b.Recyclers = nil
	b.ExternalRef = ""
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, producer_id, material, weight_kg, status, external_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '', $6, $7)
	`, b.ID, b.ProducerID, b.Material, b.WeightKg, b.Status, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return batch.Batch{}, errors.DuplicateBatch(b.ID)
		}
		return batch.Batch{}, err
	}
	return b, nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (batch.Batch, error) {
	b, err := s.getBatchRow(ctx, id)
	if err != nil {
		return batch.Batch{}, err
	}
	if err := s.loadMembers(ctx, &b); err != nil {
		return batch.Batch{}, err
	}
	return b, nil
}

func (s *Store) getBatchRow(ctx context.Context, id string) (batch.Batch, error) {
	var b batch.Batch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, producer_id, material, weight_kg, status, external_ref, created_at, updated_at
		FROM batches WHERE id = $1
	`, id).Scan(&b.ID, &b.ProducerID, &b.Material, &b.WeightKg, &b.Status, &b.ExternalRef, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return batch.Batch{}, errors.NotFound("batch", id)
	}
	if err != nil {
		return batch.Batch{}, err
	}
	return b, nil
}

func (s *Store) loadMembers(ctx context.Context, b *batch.Batch) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, member_id FROM batch_members
		WHERE batch_id = $1 ORDER BY added_at
	`, b.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var kind, memberID string
		if err := rows.Scan(&kind, &memberID); err != nil {
			return err
		}
		switch kind {
		case memberSubmission:
			b.SubmissionIDs = append(b.SubmissionIDs, memberID)
		case memberConsumer:
			b.Consumers = append(b.Consumers, memberID)
		case memberRecycler:
			b.Recyclers = append(b.Recyclers, memberID)
		}
	}
	return rows.Err()
}

func (s *Store) ListBatches(ctx context.Context, producerID string) ([]batch.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, producer_id, material, weight_kg, status, external_ref, created_at, updated_at
		FROM batches WHERE ($1 = '' OR producer_id = $1)
		ORDER BY created_at
	`, producerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]batch.Batch, 0)
	for rows.Next() {
		var b batch.Batch
		if err := rows.Scan(&b.ID, &b.ProducerID, &b.Material, &b.WeightKg, &b.Status, &b.ExternalRef, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		if err := s.loadMembers(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) AdvanceBatchStatus(ctx context.Context, batchID string, status batch.Status) (batch.Batch, error) {
	if batch.Rank(status) < 0 {
		return batch.Batch{}, errors.Validation("unknown batch status %q", status)
	}

	current, err := s.getBatchRow(ctx, batchID)
	if err != nil {
		return batch.Batch{}, err
	}
	if !batch.CanAdvance(current.Status, status) {
		return batch.Batch{}, errors.InvalidTransition("batch "+batchID, string(current.Status), string(status))
	}

	// The update re-checks the guard so a concurrent advance cannot move the
	// batch backwards between the read and the write.
	res, err := s.db.ExecContext(ctx, `
		UPDATE batches SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
	`, batchID, status, time.Now().UTC(), current.Status)
	if err != nil {
		return batch.Batch{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return batch.Batch{}, err
	}
	if affected == 0 {
		refreshed, err := s.getBatchRow(ctx, batchID)
		if err != nil {
			return batch.Batch{}, err
		}
		return batch.Batch{}, errors.InvalidTransition("batch "+batchID, string(refreshed.Status), string(status))
	}
	return s.GetBatch(ctx, batchID)
}

func (s *Store) LinkSubmission(ctx context.Context, batchID, submissionID string) (batch.Batch, error) {
	if _, err := s.getBatchRow(ctx, batchID); err != nil {
		return batch.Batch{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET batch_id = $1, updated_at = $2
		WHERE id = $3 AND batch_id = ''
	`, batchID, time.Now().UTC(), submissionID)
	if err != nil {
		return batch.Batch{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return batch.Batch{}, err
	}
	if affected == 0 {
		sub, getErr := s.GetSubmission(ctx, submissionID)
		if getErr != nil {
			return batch.Batch{}, getErr
		}
		return batch.Batch{}, errors.Validation("submission %s already belongs to batch %s", submissionID, sub.BatchID)
	}

	if err := s.insertMember(ctx, batchID, memberSubmission, submissionID); err != nil {
		return batch.Batch{}, err
	}
	return s.GetBatch(ctx, batchID)
}

func (s *Store) LinkConsumer(ctx context.Context, batchID, actorID string) (batch.Batch, error) {
	return s.linkMember(ctx, batchID, memberConsumer, actorID)
}

func (s *Store) LinkRecycler(ctx context.Context, batchID, actorID string) (batch.Batch, error) {
	return s.linkMember(ctx, batchID, memberRecycler, actorID)
}

func (s *Store) linkMember(ctx context.Context, batchID, kind, actorID string) (batch.Batch, error) {
	if actorID == "" {
		return batch.Batch{}, errors.Validation("actor id is required")
	}
	if _, err := s.getBatchRow(ctx, batchID); err != nil {
		return batch.Batch{}, err
	}
	if err := s.insertMember(ctx, batchID, kind, actorID); err != nil {
		return batch.Batch{}, err
	}
	return s.GetBatch(ctx, batchID)
}

// insertMember relies on the composite primary key so repeated links are
// no-ops.
func (s *Store) insertMember(ctx context.Context, batchID, kind, memberID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_members (batch_id, kind, member_id, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, batchID, kind, memberID, time.Now().UTC())
	return err
}

func (s *Store) SetBatchExternalRef(ctx context.Context, batchID, externalRef string) (batch.Batch, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return batch.Batch{}, errors.Validation("external reference is required")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE batches SET external_ref = $2, updated_at = $3
		WHERE id = $1 AND (external_ref = '' OR external_ref = $2)
	`, batchID, externalRef, time.Now().UTC())
	if err != nil {
		return batch.Batch{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return batch.Batch{}, err
	}
	if affected == 0 {
		current, getErr := s.getBatchRow(ctx, batchID)
		if getErr != nil {
			return batch.Batch{}, getErr
		}
		return batch.Batch{}, errors.ConflictingReference("batch "+batchID, current.ExternalRef, externalRef)
	}
	return s.GetBatch(ctx, batchID)
}

// --- TokenStore --------------------------------------------------------------

const transactionColumns = `id, actor_id, kind, amount, metadata, submission_id,
	external_ref, status, failure_note, created_at, updated_at`

func (s *Store) CreateTokenTransaction(ctx context.Context, tx token.Transaction) (token.Transaction, error) {
	if tx.ActorID == "" {
		return token.Transaction{}, errors.Validation("beneficiary actor id is required")
	}
	if tx.Amount <= 0 && (tx.Kind == token.KindReward || tx.Kind == token.KindTransfer) {
		return token.Transaction{}, errors.Validation("%s amount must be positive, got %v", tx.Kind, tx.Amount)
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_transactions (id, actor_id, kind, amount, metadata, submission_id, external_ref, status, failure_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)
	`, tx.ID, tx.ActorID, tx.Kind, tx.Amount, tx.Metadata, tx.SubmissionID, tx.ExternalRef,
		tx.Status, tx.FailureNote, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, "idx_tx_reward_submission"):
			return token.Transaction{}, errors.ConflictingReference(
				"submission "+tx.SubmissionID+" reward", "an existing reward", "a second reward transaction")
		case isUniqueViolation(err, "idx_tx_external_ref"):
			return token.Transaction{}, errors.ConflictingReference(
				"external reference "+tx.ExternalRef, "an existing transaction", "a second transaction")
		case isUniqueViolation(err, ""):
			return token.Transaction{}, errors.Validation("transaction %s already exists", tx.ID)
		}
		return token.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) GetTokenTransaction(ctx context.Context, id string) (token.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM token_transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return token.Transaction{}, errors.NotFound("token transaction", id)
	}
	return tx, err
}

func (s *Store) GetRewardBySubmission(ctx context.Context, submissionID string) (token.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM token_transactions
		WHERE kind = 'reward' AND submission_id = $1
	`, submissionID)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return token.Transaction{}, errors.NotFound("reward for submission", submissionID)
	}
	return tx, err
}

func (s *Store) ResolveTokenTransactionByExternalRef(ctx context.Context, externalRef string) (token.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM token_transactions WHERE external_ref = $1
	`, externalRef)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return token.Transaction{}, errors.NotFound("token transaction with reference", externalRef)
	}
	return tx, err
}

func (s *Store) CreateOrGetTokenTransactionByExternalRef(ctx context.Context, tx token.Transaction) (token.Transaction, bool, error) {
	if tx.ExternalRef == "" {
		return token.Transaction{}, false, errors.Validation("external reference is required")
	}
	if existing, err := s.ResolveTokenTransactionByExternalRef(ctx, tx.ExternalRef); err == nil {
		return existing, false, nil
	} else if !errors.HasCode(err, errors.CodeNotFound) {
		return token.Transaction{}, false, err
	}

	created, err := s.CreateTokenTransaction(ctx, tx)
	if err != nil {
		// A concurrent writer may have claimed the reference between the
		// lookup and the insert; fall back to the row that won.
		if errors.HasCode(err, errors.CodeConflictingReference) {
			if existing, getErr := s.ResolveTokenTransactionByExternalRef(ctx, tx.ExternalRef); getErr == nil {
				return existing, false, nil
			}
		}
		return token.Transaction{}, false, err
	}
	return created, true, nil
}

func (s *Store) MarkTokenTransactionStatus(ctx context.Context, id string, status token.Status, externalRef, note string) (token.Transaction, error) {
	externalRef = strings.TrimSpace(externalRef)

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return token.Transaction{}, err
	}
	defer dbTx.Rollback()

	row := dbTx.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM token_transactions WHERE id = $1 FOR UPDATE
	`, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return token.Transaction{}, errors.NotFound("token transaction", id)
	}
	if err != nil {
		return token.Transaction{}, err
	}

	if externalRef != "" && tx.ExternalRef != "" && tx.ExternalRef != externalRef {
		return token.Transaction{}, errors.ConflictingReference("transaction "+id, tx.ExternalRef, externalRef)
	}
	if tx.Status.Terminal() {
		if tx.Status == status {
			return tx, nil
		}
		return token.Transaction{}, errors.InvalidTransition("transaction "+id, string(tx.Status), string(status))
	}

	if externalRef != "" && tx.ExternalRef == "" {
		tx.ExternalRef = externalRef
	}
	tx.Status = status
	if note != "" {
		tx.FailureNote = note
	}
	tx.UpdatedAt = time.Now().UTC()

	_, err = dbTx.ExecContext(ctx, `
		UPDATE token_transactions
		SET status = $2, external_ref = NULLIF($3, ''), failure_note = $4, updated_at = $5
		WHERE id = $1
	`, id, tx.Status, tx.ExternalRef, tx.FailureNote, tx.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "idx_tx_external_ref") {
			return token.Transaction{}, errors.ConflictingReference(
				"external reference "+tx.ExternalRef, "an existing transaction", id)
		}
		return token.Transaction{}, err
	}
	if err := dbTx.Commit(); err != nil {
		return token.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) ListTokenTransactions(ctx context.Context, actorID string) ([]token.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM token_transactions
		WHERE ($1 = '' OR actor_id = $1)
		ORDER BY created_at
	`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *Store) ListPendingTokenTransactions(ctx context.Context) ([]token.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM token_transactions
		WHERE status = 'pending' ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]token.Transaction, error) {
	result := make([]token.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func scanTransaction(row rowScanner) (token.Transaction, error) {
	var tx token.Transaction
	var submissionID, externalRef sql.NullString
	err := row.Scan(&tx.ID, &tx.ActorID, &tx.Kind, &tx.Amount, &tx.Metadata,
		&submissionID, &externalRef, &tx.Status, &tx.FailureNote, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return token.Transaction{}, err
	}
	tx.SubmissionID = submissionID.String
	tx.ExternalRef = externalRef.String
	return tx, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
