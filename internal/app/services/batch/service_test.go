package batch

import (
	"context"
	"testing"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/actor"
	domain "github.com/ReTrace-Network/ledger_layer/internal/app/domain/batch"
	subdomain "github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage/memory"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
	"github.com/ReTrace-Network/ledger_layer/internal/settlement"
)

type fixture struct {
	store    *memory.Store
	gateway  *settlement.FakeGateway
	svc      *Service
	producer actor.Actor
	consumer actor.Actor
	recycler actor.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	gateway := &settlement.FakeGateway{}
	svc := New(store, store, store, gateway, nil)

	ctx := context.Background()
	mustActor := func(role actor.Role, wallet string) actor.Actor {
		act, err := store.CreateActor(ctx, actor.Actor{Role: role, Wallet: wallet})
		if err != nil {
			t.Fatalf("create %s: %v", role, err)
		}
		return act
	}
	return &fixture{
		store:    store,
		gateway:  gateway,
		svc:      svc,
		producer: mustActor(actor.RoleProducer, "producer-wallet"),
		consumer: mustActor(actor.RoleConsumer, "consumer-wallet"),
		recycler: mustActor(actor.RoleRecycler, "recycler-wallet"),
	}
}

func TestCreateAnchorsBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.producer.ID, "BATCH-001", subdomain.MaterialPET, 40)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID != "BATCH-001" || b.Status != domain.StatusPending {
		t.Fatalf("batch = %+v", b)
	}
	if b.ExternalRef == "" {
		t.Fatal("expected external reference from the settlement backend")
	}

	intents := f.gateway.Submitted()
	if len(intents) != 1 || intents[0].Kind != settlement.IntentLogBatch {
		t.Fatalf("gateway saw %+v", intents)
	}
}

func TestCreateGeneratesID(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), f.producer.ID, "", subdomain.MaterialHDPE, 10)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID == "" {
		t.Fatal("expected generated batch id")
	}
}

func TestCreateRequiresProducer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.consumer.ID, "", subdomain.MaterialPET, 5)
	if !errors.HasCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateSurvivesSettlementOutage(t *testing.T) {
	f := newFixture(t)
	f.gateway.Err = errors.SettlementUnavailable(nil)

	b, err := f.svc.Create(context.Background(), f.producer.ID, "", subdomain.MaterialPET, 5)
	if err != nil {
		t.Fatalf("create should succeed without the backend: %v", err)
	}
	if b.ExternalRef != "" {
		t.Fatalf("no reference expected during an outage, got %s", b.ExternalRef)
	}
}

func TestCreateToleratesEmptyReference(t *testing.T) {
	f := newFixture(t)
	f.gateway.RefFor = func(settlement.Intent) string { return "" }

	b, err := f.svc.Create(context.Background(), f.producer.ID, "", subdomain.MaterialPET, 5)
	if err != nil {
		t.Fatalf("create should survive a receipt without a reference: %v", err)
	}
	if b.ExternalRef != "" {
		t.Fatalf("external ref = %q, want empty until reconciliation supplies one", b.ExternalRef)
	}
}

func TestLinkSubmissionRequiresVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.producer.ID, "", subdomain.MaterialPET, 5)
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	sub, err := f.store.CreateSubmission(ctx, subdomain.Submission{
		ActorID: f.consumer.ID, Material: subdomain.MaterialPET, WeightKg: 1,
	})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}

	if _, err := f.svc.LinkSubmission(ctx, b.ID, sub.ID); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("pending submission must not join a batch, got %v", err)
	}

	reward := 10.0
	if _, err := f.store.SetSubmissionVerification(ctx, sub.ID, subdomain.StatusVerified, "v", &reward); err != nil {
		t.Fatalf("verify: %v", err)
	}
	linked, err := f.svc.LinkSubmission(ctx, b.ID, sub.ID)
	if err != nil {
		t.Fatalf("link verified submission: %v", err)
	}
	if len(linked.SubmissionIDs) != 1 {
		t.Fatalf("membership = %v", linked.SubmissionIDs)
	}
}

func TestLinkConsumerIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.producer.ID, "", subdomain.MaterialPET, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := f.svc.LinkConsumer(ctx, b.ID, f.consumer.ID); err != nil {
			t.Fatalf("link attempt %d: %v", i, err)
		}
	}
	got, err := f.svc.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Consumers) != 1 {
		t.Fatalf("consumers = %v, want one entry", got.Consumers)
	}

	if _, err := f.svc.LinkConsumer(ctx, b.ID, f.recycler.ID); !errors.HasCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden for non-consumer, got %v", err)
	}
}

func TestAdvanceRoleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.producer.ID, "", subdomain.MaterialPET, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Advance(ctx, b.ID, f.consumer.ID, domain.StatusVerified); !errors.HasCode(err, errors.CodeForbidden) {
		t.Fatalf("consumer advance: expected forbidden, got %v", err)
	}
	if _, err := f.svc.Advance(ctx, b.ID, f.recycler.ID, domain.StatusVerified); !errors.HasCode(err, errors.CodeForbidden) {
		t.Fatalf("recycler advance to verified: expected forbidden, got %v", err)
	}

	if _, err := f.svc.Advance(ctx, b.ID, f.producer.ID, domain.StatusProcessed); err != nil {
		t.Fatalf("producer advance: %v", err)
	}

	got, err := f.svc.Advance(ctx, b.ID, f.recycler.ID, domain.StatusRecycled)
	if err != nil {
		t.Fatalf("recycler advance to recycled: %v", err)
	}
	if got.Status != domain.StatusRecycled {
		t.Fatalf("status = %s, want recycled", got.Status)
	}
	if len(got.Recyclers) != 1 || got.Recyclers[0] != f.recycler.ID {
		t.Fatalf("recycler should be auto-linked, got %v", got.Recyclers)
	}
}

func TestAdvanceBackwardRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.producer.ID, "", subdomain.MaterialPET, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Advance(ctx, b.ID, f.producer.ID, domain.StatusProcessed); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := f.svc.Advance(ctx, b.ID, f.producer.ID, domain.StatusVerified); !errors.HasCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}
