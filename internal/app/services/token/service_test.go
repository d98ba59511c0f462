package token

import (
	"context"
	"testing"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/actor"
	domain "github.com/ReTrace-Network/ledger_layer/internal/app/domain/token"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage/memory"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
	"github.com/ReTrace-Network/ledger_layer/internal/settlement"
)

func seedReward(t *testing.T, store *memory.Store, actorID string, amount float64, submissionID string) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.CreateTokenTransaction(ctx, domain.Transaction{
		ActorID: actorID, Kind: domain.KindReward, Amount: amount, SubmissionID: submissionID,
	})
	if err != nil {
		t.Fatalf("seed reward: %v", err)
	}
	if _, err := store.MarkTokenTransactionStatus(ctx, tx.ID, domain.StatusCompleted, "0xseed-"+submissionID, ""); err != nil {
		t.Fatalf("complete reward: %v", err)
	}
}

func TestTransfer(t *testing.T) {
	store := memory.New()
	gateway := &settlement.FakeGateway{}
	svc := New(store, store, gateway, nil)
	ctx := context.Background()

	alice, _ := store.CreateActor(ctx, actor.Actor{Role: actor.RoleConsumer, Wallet: "alice-wallet"})
	bob, _ := store.CreateActor(ctx, actor.Actor{Role: actor.RoleConsumer, Wallet: "bob-wallet"})
	seedReward(t, store, alice.ID, 50, "sub-1")

	tx, err := svc.Transfer(ctx, alice.ID, bob.ID, 20)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if tx.Status != domain.StatusCompleted || tx.ExternalRef == "" {
		t.Fatalf("transfer tx = %+v", tx)
	}

	aliceBalance, err := svc.Balance(ctx, alice.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	bobBalance, err := svc.Balance(ctx, bob.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if aliceBalance != 30 || bobBalance != 20 {
		t.Fatalf("balances = %v / %v, want 30 / 20", aliceBalance, bobBalance)
	}

	intents := gateway.Submitted()
	if len(intents) != 1 || intents[0].Kind != settlement.IntentTransfer || intents[0].Wallet != "bob-wallet" {
		t.Fatalf("gateway saw %+v", intents)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	store := memory.New()
	svc := New(store, store, &settlement.FakeGateway{}, nil)
	ctx := context.Background()

	alice, _ := store.CreateActor(ctx, actor.Actor{Role: actor.RoleConsumer, Wallet: "a"})
	bob, _ := store.CreateActor(ctx, actor.Actor{Role: actor.RoleConsumer, Wallet: "b"})
	seedReward(t, store, alice.ID, 5, "sub-1")

	if _, err := svc.Transfer(ctx, alice.ID, bob.ID, 10); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Transfer(ctx, alice.ID, alice.ID, 1); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("self transfer: expected validation error, got %v", err)
	}
	if _, err := svc.Transfer(ctx, alice.ID, bob.ID, -1); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("negative transfer: expected validation error, got %v", err)
	}
}

func TestPendingTransferExcludedFromBalance(t *testing.T) {
	store := memory.New()
	gateway := &settlement.FakeGateway{Pending: true}
	svc := New(store, store, gateway, nil)
	ctx := context.Background()

	alice, _ := store.CreateActor(ctx, actor.Actor{Role: actor.RoleConsumer, Wallet: "a"})
	bob, _ := store.CreateActor(ctx, actor.Actor{Role: actor.RoleConsumer, Wallet: "b"})
	seedReward(t, store, alice.ID, 50, "sub-1")

	tx, err := svc.Transfer(ctx, alice.ID, bob.ID, 20)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if tx.Status != domain.StatusPending || tx.ExternalRef == "" {
		t.Fatalf("transfer tx = %+v, want pending with reference", tx)
	}

	bobBalance, err := svc.Balance(ctx, bob.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bobBalance != 0 {
		t.Fatalf("unsettled transfer must not credit the recipient, got %v", bobBalance)
	}
}
