//go:build integration && postgres

package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/ReTrace-Network/ledger_layer/internal/app"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage/postgres"
	"github.com/ReTrace-Network/ledger_layer/internal/platform/migrations"
	"github.com/ReTrace-Network/ledger_layer/internal/settlement"
)

// Integration test against Postgres to ensure migrations plus the core
// submission flow work with persistence.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration")
	}

	ctx := context.Background()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := postgres.New(db)
	application, err := app.New(app.Stores{
		Actors:      store,
		Submissions: store,
		Batches:     store,
		Tokens:      store,
	}, app.Options{Gateway: &settlement.FakeGateway{}}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	handler := NewHandler(application)

	post := func(path string, body map[string]interface{}) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw)))
		return rec
	}

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	rec := post("/actors", map[string]interface{}{"role": "consumer", "wallet": "it-consumer-" + suffix})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register consumer: %d %s", rec.Code, rec.Body.String())
	}
	var consumer struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &consumer); err != nil {
		t.Fatalf("decode consumer: %v", err)
	}

	rec = post("/actors", map[string]interface{}{"role": "admin", "wallet": "it-admin-" + suffix})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register admin: %d %s", rec.Code, rec.Body.String())
	}
	var admin struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &admin); err != nil {
		t.Fatalf("decode admin: %v", err)
	}

	rec = post("/submissions", map[string]interface{}{
		"actor_id": consumer.ID, "material": "PET", "weight_kg": 2.0,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	var sub struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decode submission: %v", err)
	}

	rec = post("/submissions/"+sub.ID+"/verify", map[string]interface{}{
		"verifier_id": admin.ID, "approve": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/"+sub.ID+"/reward", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reward: %d %s", rec.Code, rec.Body.String())
	}
}
