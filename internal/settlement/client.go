package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ReTrace-Network/ledger_layer/internal/errors"
	"github.com/ReTrace-Network/ledger_layer/pkg/logger"
)

// Client submits intents to an HTTP settlement backend.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// Config holds client configuration.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

var _ Gateway = (*Client)(nil)

// NewClient creates a settlement backend client.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("settlement endpoint required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("settlement")
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// SubmitIntent posts the intent to the backend's /intents endpoint.
// Transport failures and 5xx answers surface as SettlementUnavailable so
// callers treat them as transient; an accepted-but-unconfirmed answer
// surfaces as SettlementPending carrying the external reference.
func (c *Client) SubmitIntent(ctx context.Context, intent Intent) (Receipt, error) {
	if intent.Kind == "" {
		return Receipt{}, errors.Validation("intent kind is required")
	}
	if intent.CorrelationID == "" {
		return Receipt{}, errors.Validation("intent correlation id is required")
	}

	body, err := json.Marshal(intent)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/intents", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Receipt{}, errors.SettlementUnavailable(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Receipt{}, errors.SettlementUnavailable(err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return Receipt{}, errors.SettlementUnavailable(fmt.Errorf("backend status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
	default:
		return Receipt{}, errors.Internal(
			fmt.Sprintf("settlement backend rejected intent: status %d", resp.StatusCode), nil)
	}

	var receipt Receipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return Receipt{}, errors.SettlementUnavailable(fmt.Errorf("decode receipt: %w", err))
	}

	if !receipt.Applied {
		c.log.WithField("correlation_id", intent.CorrelationID).
			Infof("intent %s accepted, confirmation pending", intent.Kind)
		return receipt, errors.SettlementPending(receipt.ExternalRef)
	}
	return receipt, nil
}
