// Package settlement talks to the external settlement backend that anchors
// ledger events on chain. The gateway is fire-and-confirm: an intent either
// comes back applied with an external reference, or the caller records the
// local row as pending and lets reconciliation finish the job.
package settlement

import "context"

// IntentKind names the on-chain operation an intent requests.
type IntentKind string

const (
	IntentLogBatch         IntentKind = "logBatch"
	IntentLinkConsumer     IntentKind = "linkConsumer"
	IntentUpdateStatus     IntentKind = "updateStatus"
	IntentDistributeReward IntentKind = "distributeReward"
	IntentTransfer         IntentKind = "transfer"
)

// Intent is a request to record one ledger event on the settlement backend.
// CorrelationID carries the local entity id (submission, batch or transaction)
// so reconciliation events can be matched back.
type Intent struct {
	Kind          IntentKind             `json:"kind"`
	CorrelationID string                 `json:"correlation_id"`
	Wallet        string                 `json:"wallet,omitempty"`
	Amount        float64                `json:"amount,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// Receipt reports the backend's answer. Applied false with a non-empty
// ExternalRef means the intent was accepted but not yet final.
type Receipt struct {
	ExternalRef string `json:"external_ref"`
	Applied     bool   `json:"applied"`
}

// Gateway submits intents to the settlement backend.
type Gateway interface {
	SubmitIntent(ctx context.Context, intent Intent) (Receipt, error)
}
