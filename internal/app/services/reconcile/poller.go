package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/token"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage"
	"github.com/ReTrace-Network/ledger_layer/internal/app/system"
	"github.com/ReTrace-Network/ledger_layer/pkg/logger"
)

// Resolver decides whether a pending token transaction has been settled.
type Resolver interface {
	Resolve(ctx context.Context, tx token.Transaction) (done bool, success bool, externalRef, message string, retryAfter time.Duration, err error)
}

// TimeoutResolver marks pending transactions as failed after a timeout.
// It is the fallback when no settlement backend is reachable at all.
type TimeoutResolver struct {
	timeout time.Duration
	seen    sync.Map // txID -> time.Time
}

func NewTimeoutResolver(timeout time.Duration) *TimeoutResolver {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &TimeoutResolver{timeout: timeout}
}

func (r *TimeoutResolver) Resolve(ctx context.Context, tx token.Transaction) (bool, bool, string, string, time.Duration, error) {
	if value, ok := r.seen.Load(tx.ID); ok {
		if time.Since(value.(time.Time)) >= r.timeout {
			return true, false, "", "timeout waiting for settlement confirmation", 0, nil
		}
		return false, false, "", "", r.timeout / 4, nil
	}
	r.seen.Store(tx.ID, time.Now())
	return false, false, "", "", r.timeout / 4, nil
}

// SettlementPoller watches pending token transactions and settles them using
// the resolver.
type SettlementPoller struct {
	store    storage.TokenStore
	resolver Resolver
	interval time.Duration
	log      *logger.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	nextAttempt map[string]time.Time
}

var _ system.Service = (*SettlementPoller)(nil)

func NewSettlementPoller(store storage.TokenStore, resolver Resolver, log *logger.Logger) *SettlementPoller {
	if log == nil {
		log = logger.NewDefault("reconcile-poller")
	}
	if resolver == nil {
		resolver = NewTimeoutResolver(2 * time.Minute)
	}
	return &SettlementPoller{
		store:       store,
		resolver:    resolver,
		interval:    15 * time.Second,
		log:         log,
		nextAttempt: make(map[string]time.Time),
	}
}

func (p *SettlementPoller) Name() string { return "reconcile-poller" }

// SetInterval overrides the tick interval; only effective before Start.
func (p *SettlementPoller) SetInterval(interval time.Duration) {
	if interval > 0 {
		p.interval = interval
	}
}

func (p *SettlementPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.tick(runCtx)
			}
		}
	}()

	p.log.Info("settlement poller started")
	return nil
}

func (p *SettlementPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (p *SettlementPoller) tick(ctx context.Context) {
	txs, err := p.store.ListPendingTokenTransactions(ctx)
	if err != nil {
		p.log.WithError(err).Warn("list pending transactions failed")
		return
	}

	now := time.Now()
	for _, tx := range txs {
		if !p.shouldAttempt(tx.ID, now) {
			continue
		}

		done, success, externalRef, message, retryAfter, err := p.resolver.Resolve(ctx, tx)
		if err != nil {
			p.log.WithError(err).Warnf("resolver error for transaction %s", tx.ID)
			p.scheduleNext(tx.ID, retryAfter)
			continue
		}

		if !done {
			p.scheduleNext(tx.ID, retryAfter)
			continue
		}

		status := token.StatusFailed
		if success {
			status = token.StatusCompleted
		}
		if _, err := p.store.MarkTokenTransactionStatus(ctx, tx.ID, status, externalRef, message); err != nil {
			p.log.WithError(err).Warnf("settle transaction %s failed", tx.ID)
			p.scheduleNext(tx.ID, retryAfter)
			continue
		}
		p.log.Infof("transaction %s settled (success=%t)", tx.ID, success)
		p.clearSchedule(tx.ID)
	}
}

func (p *SettlementPoller) shouldAttempt(id string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, ok := p.nextAttempt[id]
	if !ok || now.After(next) {
		return true
	}
	return false
}

func (p *SettlementPoller) scheduleNext(id string, after time.Duration) {
	if after <= 0 {
		after = p.interval
	}
	p.mu.Lock()
	p.nextAttempt[id] = time.Now().Add(after)
	p.mu.Unlock()
}

func (p *SettlementPoller) clearSchedule(id string) {
	p.mu.Lock()
	delete(p.nextAttempt, id)
	p.mu.Unlock()
}
