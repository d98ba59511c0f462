package actors

import (
	"context"
	"testing"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/actor"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage/memory"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
)

func TestRegisterAndLookup(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	act, err := svc.Register(ctx, actor.RoleConsumer, "NX4fJ9qW", "alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if act.ID == "" {
		t.Fatal("expected id to be generated")
	}

	byWallet, err := svc.GetByWallet(ctx, "NX4fJ9qW")
	if err != nil {
		t.Fatalf("get by wallet: %v", err)
	}
	if byWallet.ID != act.ID {
		t.Fatalf("wallet lookup returned %s, want %s", byWallet.ID, act.ID)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 actor, got %d", len(list))
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, actor.Role("alchemist"), "wallet", "x"); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for role, got %v", err)
	}
	if _, err := svc.Register(ctx, actor.RoleProducer, "   ", "x"); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for blank wallet, got %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	admin, err := svc.Register(ctx, actor.RoleAdmin, "admin-wallet", "root")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	consumer, err := svc.Register(ctx, actor.RoleConsumer, "consumer-wallet", "alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.RequireRole(ctx, admin.ID, "verify submissions", actor.RoleAdmin); err != nil {
		t.Fatalf("admin should pass: %v", err)
	}
	if _, err := svc.RequireRole(ctx, consumer.ID, "verify submissions", actor.RoleAdmin); !errors.HasCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.RequireRole(ctx, "missing", "verify submissions", actor.RoleAdmin); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
