package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/token"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage/memory"
)

type settleImmediately struct{}

func (settleImmediately) Resolve(_ context.Context, _ token.Transaction) (bool, bool, string, string, time.Duration, error) {
	return true, true, "0xpolled", "", 0, nil
}

type pollerStore struct {
	store    *memory.Store
	resolver Resolver
	txID     string
}

func newPollerStore(t *testing.T) *pollerStore {
	t.Helper()
	store := memory.New()
	tx, err := store.CreateTokenTransaction(context.Background(), token.Transaction{
		ActorID: "actor-1", Kind: token.KindReward, Amount: 10, SubmissionID: "sub-1",
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return &pollerStore{store: store, resolver: settleImmediately{}, txID: tx.ID}
}

func TestPollerStartStopIdempotent(t *testing.T) {
	poller := NewSettlementPoller(memory.New(), nil, nil)
	ctx := context.Background()

	if err := poller.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := poller.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if err := poller.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := poller.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
