package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ReTrace-Network/ledger_layer/internal/app/reward"
	"github.com/ReTrace-Network/ledger_layer/internal/app/services/actors"
	batchsvc "github.com/ReTrace-Network/ledger_layer/internal/app/services/batch"
	"github.com/ReTrace-Network/ledger_layer/internal/app/services/reconcile"
	submissionsvc "github.com/ReTrace-Network/ledger_layer/internal/app/services/submission"
	tokensvc "github.com/ReTrace-Network/ledger_layer/internal/app/services/token"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage/memory"
	"github.com/ReTrace-Network/ledger_layer/internal/app/system"
	"github.com/ReTrace-Network/ledger_layer/internal/settlement"
	"github.com/ReTrace-Network/ledger_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Actors      storage.ActorStore
	Submissions storage.SubmissionStore
	Batches     storage.BatchStore
	Tokens      storage.TokenStore
}

// Options carries the optional collaborators the application wires in.
type Options struct {
	// Gateway anchors ledger writes on the settlement backend. Nil leaves
	// transactions pending for reconciliation to resolve.
	Gateway settlement.Gateway
	// RewardRates overrides the default token-per-kg table.
	RewardRates *reward.Policy
	// AutoVerify overrides the classifier auto-verification policy.
	AutoVerify *submissionsvc.AutoVerifyConfig
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Actors      *actors.Service
	Submissions *submissionsvc.Service
	Batches     *batchsvc.Service
	Tokens      *tokensvc.Service
	Reconcile   *reconcile.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Actors == nil {
		stores.Actors = mem
	}
	if stores.Submissions == nil {
		stores.Submissions = mem
	}
	if stores.Batches == nil {
		stores.Batches = mem
	}
	if stores.Tokens == nil {
		stores.Tokens = mem
	}

	gateway := opts.Gateway
	if gateway == nil {
		if endpoint := strings.TrimSpace(os.Getenv("SETTLEMENT_ENDPOINT")); endpoint != "" {
			client, err := settlement.NewClient(settlement.Config{
				Endpoint: endpoint,
				APIKey:   os.Getenv("SETTLEMENT_API_KEY"),
			}, log)
			if err != nil {
				return nil, fmt.Errorf("configure settlement client: %w", err)
			}
			gateway = client
		} else {
			log.Warn("SETTLEMENT_ENDPOINT not set; ledger writes will stay pending until reconciled")
		}
	}

	manager := system.NewManager()

	actorService := actors.New(stores.Actors, log)
	submissionService := submissionsvc.New(stores.Submissions, stores.Tokens, stores.Actors, opts.RewardRates, gateway, log)
	if opts.AutoVerify != nil {
		submissionService.SetAutoVerify(*opts.AutoVerify)
	}
	batchService := batchsvc.New(stores.Batches, stores.Submissions, stores.Actors, gateway, log)
	tokenService := tokensvc.New(stores.Tokens, stores.Actors, gateway, log)
	reconcileService := reconcile.New(stores.Submissions, stores.Batches, stores.Tokens, stores.Actors, log)

	for _, name := range []string{"actors", "submissions", "batches", "tokens"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	var resolver reconcile.Resolver
	if endpoint := strings.TrimSpace(os.Getenv("SETTLEMENT_RESOLVER_URL")); endpoint != "" {
		httpClient := &http.Client{Timeout: 10 * time.Second}
		httpResolver, err := reconcile.NewHTTPResolver(httpClient, endpoint, os.Getenv("SETTLEMENT_RESOLVER_KEY"), log)
		if err != nil {
			log.WithError(err).Warn("configure settlement resolver")
		} else {
			resolver = httpResolver
		}
	} else {
		log.Warn("SETTLEMENT_RESOLVER_URL not set; pending transactions fail after the resolver timeout")
	}

	poller := reconcile.NewSettlementPoller(stores.Tokens, resolver, log)
	if err := manager.Register(poller); err != nil {
		return nil, fmt.Errorf("register %s: %w", poller.Name(), err)
	}

	return &Application{
		manager:     manager,
		log:         log,
		Actors:      actorService,
		Submissions: submissionService,
		Batches:     batchService,
		Tokens:      tokenService,
		Reconcile:   reconcileService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
