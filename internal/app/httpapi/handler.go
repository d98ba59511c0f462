package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	app "github.com/ReTrace-Network/ledger_layer/internal/app"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/actor"
	batchdomain "github.com/ReTrace-Network/ledger_layer/internal/app/domain/batch"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
	"github.com/ReTrace-Network/ledger_layer/internal/app/services/reconcile"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
}

// NewHandler returns a mux exposing the core REST API. State-changing
// requests are recorded on an in-memory audit trail; set LEDGER_AUDIT_LOG to
// also persist entries as JSONL.
func NewHandler(application *app.Application) http.Handler {
	sink, _ := newFileAuditSink(os.Getenv("LEDGER_AUDIT_LOG"))
	var auditSink auditSink
	if sink != nil {
		auditSink = sink
	}
	h := &handler{app: application, audit: newAuditLog(500, auditSink)}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	mux.HandleFunc("/audit", h.auditEntries)
	mux.HandleFunc("/actors", h.actors)
	mux.HandleFunc("/actors/", h.actorResources)
	mux.HandleFunc("/submissions", h.submissions)
	mux.HandleFunc("/submissions/", h.submissionResources)
	mux.HandleFunc("/batches", h.batches)
	mux.HandleFunc("/batches/", h.batchResources)
	mux.HandleFunc("/transfers", h.transfers)
	mux.HandleFunc("/webhooks/settlement", h.settlementWebhook)
	return h.audit.middleware(mux)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

func (h *handler) actors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Role   string `json:"role"`
			Wallet string `json:"wallet"`
			Name   string `json:"name"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, errors.BadPayload("decode request: %v", err))
			return
		}
		act, err := h.app.Actors.Register(r.Context(), actor.Role(payload.Role), payload.Wallet, payload.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, act)

	case http.MethodGet:
		if wallet := strings.TrimSpace(r.URL.Query().Get("wallet")); wallet != "" {
			act, err := h.app.Actors.GetByWallet(r.Context(), wallet)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, act)
			return
		}
		acts, err := h.app.Actors.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, acts)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) actorResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/actors"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	actorID := parts[0]

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch {
	case len(parts) == 1:
		act, err := h.app.Actors.Get(r.Context(), actorID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, act)
	case len(parts) == 2 && parts[1] == "transactions":
		txs, err := h.app.Tokens.History(r.Context(), actorID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, txs)
	case len(parts) == 2 && parts[1] == "balance":
		balance, err := h.app.Tokens.Balance(r.Context(), actorID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) submissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			ActorID    string  `json:"actor_id"`
			Material   string  `json:"material"`
			WeightKg   float64 `json:"weight_kg"`
			ImageRef   string  `json:"image_ref"`
			Location   string  `json:"location"`
			Classifier *struct {
				Material   string  `json:"material"`
				Confidence float64 `json:"confidence"`
			} `json:"classifier"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, errors.BadPayload("decode request: %v", err))
			return
		}

		var classifier *submission.ClassifierResult
		if payload.Classifier != nil {
			classifier = &submission.ClassifierResult{
				Material:   submission.Material(payload.Classifier.Material),
				Confidence: payload.Classifier.Confidence,
			}
		}
		sub, err := h.app.Submissions.Submit(r.Context(), payload.ActorID,
			submission.Material(payload.Material), payload.WeightKg, payload.ImageRef, payload.Location, classifier)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)

	case http.MethodGet:
		subs, err := h.app.Submissions.List(r.Context(),
			r.URL.Query().Get("actor_id"), submission.Status(r.URL.Query().Get("status")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, subs)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) submissionResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/submissions"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	submissionID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sub, err := h.app.Submissions.Get(r.Context(), submissionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)

	case len(parts) == 2 && parts[1] == "verify":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			VerifierID string `json:"verifier_id"`
			Approve    bool   `json:"approve"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, errors.BadPayload("decode request: %v", err))
			return
		}
		sub, err := h.app.Submissions.Verify(r.Context(), submissionID, payload.VerifierID, payload.Approve)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)

	case len(parts) == 2 && parts[1] == "reward":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		tx, err := h.app.Submissions.Reward(r.Context(), submissionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) batches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			ID         string  `json:"id"`
			ProducerID string  `json:"producer_id"`
			Material   string  `json:"material"`
			WeightKg   float64 `json:"weight_kg"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, errors.BadPayload("decode request: %v", err))
			return
		}
		b, err := h.app.Batches.Create(r.Context(), payload.ProducerID, payload.ID,
			submission.Material(payload.Material), payload.WeightKg)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, b)

	case http.MethodGet:
		list, err := h.app.Batches.List(r.Context(), r.URL.Query().Get("producer_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) batchResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/batches"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	batchID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		b, err := h.app.Batches.Get(r.Context(), batchID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
		return
	}

	if len(parts) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "submissions":
		var payload struct {
			SubmissionID string `json:"submission_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, errors.BadPayload("decode request: %v", err))
			return
		}
		b, err := h.app.Batches.LinkSubmission(r.Context(), batchID, payload.SubmissionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)

	case "consumers":
		var payload struct {
			ConsumerID string `json:"consumer_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, errors.BadPayload("decode request: %v", err))
			return
		}
		b, err := h.app.Batches.LinkConsumer(r.Context(), batchID, payload.ConsumerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)

	case "recyclers":
		var payload struct {
			RecyclerID string `json:"recycler_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, errors.BadPayload("decode request: %v", err))
			return
		}
		b, err := h.app.Batches.LinkRecycler(r.Context(), batchID, payload.RecyclerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)

	case "status":
		var payload struct {
			ActorID string `json:"actor_id"`
			Status  string `json:"status"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, errors.BadPayload("decode request: %v", err))
			return
		}
		b, err := h.app.Batches.Advance(r.Context(), batchID, payload.ActorID, batchdomain.Status(payload.Status))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) transfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		FromActorID string  `json:"from_actor_id"`
		ToActorID   string  `json:"to_actor_id"`
		Amount      float64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.BadPayload("decode request: %v", err))
		return
	}
	tx, err := h.app.Tokens.Transfer(r.Context(), payload.FromActorID, payload.ToActorID, payload.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// settlementWebhook receives event notifications from the settlement
// backend. All four reconciliation outcomes answer 200 so the backend does
// not redeliver events we have converged on.
func (h *handler) settlementWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		EventType   string          `json:"event_type"`
		ExternalRef string          `json:"external_ref"`
		Payload     json.RawMessage `json:"payload"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, errors.BadPayload("decode request: %v", err))
		return
	}

	outcome, err := h.app.Reconcile.HandleEvent(r.Context(), reconcile.Event{
		Type:        payload.EventType,
		ExternalRef: payload.ExternalRef,
		Payload:     payload.Payload,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps the service error taxonomy onto HTTP statuses; anything
// else is treated as an internal failure.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := errors.CodeInternal
	if svcErr := errors.GetServiceError(err); svcErr != nil {
		status = svcErr.HTTPStatus
		code = svcErr.Code
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}
