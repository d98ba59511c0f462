package settlement

import (
	"context"
	"sync"
)

// FakeGateway is an in-memory Gateway for tests. The zero value applies every
// intent with a deterministic reference; set Err or Pending to exercise the
// failure paths.
type FakeGateway struct {
	mu      sync.Mutex
	Err     error
	Pending bool
	RefFor  func(intent Intent) string
	Intents []Intent
}

var _ Gateway = (*FakeGateway)(nil)

func (g *FakeGateway) SubmitIntent(_ context.Context, intent Intent) (Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Intents = append(g.Intents, intent)
	if g.Err != nil {
		return Receipt{}, g.Err
	}

	ref := "0xref-" + intent.CorrelationID
	if g.RefFor != nil {
		ref = g.RefFor(intent)
	}
	if g.Pending {
		return Receipt{ExternalRef: ref, Applied: false}, nil
	}
	return Receipt{ExternalRef: ref, Applied: true}, nil
}

// Submitted returns a copy of the recorded intents.
func (g *FakeGateway) Submitted() []Intent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Intent(nil), g.Intents...)
}
