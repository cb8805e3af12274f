package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPOracle talks to an external decision service over HTTP. The service
// receives the market view as JSON and answers with a raw proposal, which is
// schema-validated before the engine sees it. Decision logic stays entirely
// on the other side of the wire.
type HTTPOracle struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type HTTPConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

func NewHTTP(cfg HTTPConfig) (*HTTPOracle, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("oracle endpoint is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPOracle{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (o *HTTPOracle) Name() string { return "http-oracle" }

// Propose posts the market view and parses the response proposal.
func (o *HTTPOracle) Propose(ctx context.Context, view MarketView) (TradeProposal, error) {
	body, err := json.Marshal(view)
	if err != nil {
		return TradeProposal{}, fmt.Errorf("encode market view: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return TradeProposal{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return TradeProposal{}, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TradeProposal{}, fmt.Errorf("read oracle response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return TradeProposal{}, fmt.Errorf("oracle status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	return ParseProposal(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
