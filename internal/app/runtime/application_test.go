package runtime

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ReTrace-Network/ledger_layer/internal/config"
)

func TestNewApplicationWithConfigMemory(t *testing.T) {
	cfg := config.Default()
	application, err := NewApplicationWithConfig(cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	rec := httptest.NewRecorder()
	application.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	application.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", rec.Code)
	}

	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestAuthConfiguredRouterRejectsAnonymous(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "auth.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	cfg := config.Default()
	cfg.Auth.PublicKeyPath = path
	application, err := NewApplicationWithConfig(cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	rec := httptest.NewRecorder()
	application.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/actors", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous request: status %d", rec.Code)
	}

	// Health stays reachable for probes.
	rec = httptest.NewRecorder()
	application.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
}

func TestLoadPublicKeyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadPublicKey(path); err == nil {
		t.Fatal("expected error for non-PEM input")
	}
}
