package reconcile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/token"
)

func TestHTTPResolver(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("correlation_id"); got != "tx-1" {
			t.Errorf("correlation_id = %q", got)
		}
		switch calls {
		case 1:
			w.Write([]byte(`{"done": false, "retry_after_seconds": 0.1}`))
		case 2:
			w.Write([]byte(`{"done": true, "success": true, "external_ref": "0xsettled"}`))
		default:
			t.Fatalf("unexpected call count: %d", calls)
		}
	}))
	defer server.Close()

	resolver, err := NewHTTPResolver(server.Client(), server.URL, "", nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	tx := token.Transaction{ID: "tx-1"}

	done, success, ref, errMsg, retry, err := resolver.Resolve(context.Background(), tx)
	if err != nil || done || success || ref != "" || errMsg != "" || retry <= 0 {
		t.Fatalf("unexpected first resolve: done=%v success=%v ref=%q err=%v retry=%v", done, success, ref, err, retry)
	}

	time.Sleep(50 * time.Millisecond)

	done, success, ref, errMsg, _, err = resolver.Resolve(context.Background(), tx)
	if err != nil || !done || !success || ref != "0xsettled" || errMsg != "" {
		t.Fatalf("unexpected second resolve: done=%v success=%v ref=%q err=%v", done, success, ref, err)
	}
}

func TestHTTPResolverFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"done": true, "success": false, "error": "intent rejected"}`))
	}))
	defer server.Close()

	resolver, err := NewHTTPResolver(server.Client(), server.URL, "", nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	done, success, ref, errMsg, _, err := resolver.Resolve(context.Background(), token.Transaction{ID: "tx-1"})
	if err != nil || !done || success || ref != "" || errMsg != "intent rejected" {
		t.Fatalf("unexpected resolve: done=%v success=%v ref=%q msg=%q err=%v", done, success, ref, errMsg, err)
	}
}

func TestTimeoutResolver(t *testing.T) {
	resolver := NewTimeoutResolver(30 * time.Millisecond)
	tx := token.Transaction{ID: "tx-1"}

	done, _, _, _, _, err := resolver.Resolve(context.Background(), tx)
	if err != nil || done {
		t.Fatalf("first resolve should wait: done=%v err=%v", done, err)
	}

	time.Sleep(40 * time.Millisecond)

	done, success, _, msg, _, err := resolver.Resolve(context.Background(), tx)
	if err != nil || !done || success {
		t.Fatalf("expected timeout failure: done=%v success=%v err=%v", done, success, err)
	}
	if msg == "" {
		t.Fatal("timeout should carry a message")
	}
}

func TestSettlementPoller(t *testing.T) {
	store := newPollerStore(t)
	poller := NewSettlementPoller(store.store, store.resolver, nil)
	poller.SetInterval(10 * time.Millisecond)

	ctx := context.Background()
	if err := poller.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer poller.Stop(ctx)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("transaction never settled")
		case <-time.After(20 * time.Millisecond):
		}
		tx, err := store.store.GetTokenTransaction(ctx, store.txID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if tx.Status == token.StatusCompleted {
			if tx.ExternalRef != "0xpolled" {
				t.Fatalf("settled ref = %s", tx.ExternalRef)
			}
			return
		}
	}
}
