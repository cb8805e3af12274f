package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBuy = `{
  "operation": "Buy",
  "symbol": "BTC/USDT",
  "probability_score": 68,
  "signal_quality": 8,
  "setup_quality": 7,
  "confidence": 0.8,
  "risk_percent": 0.01,
  "market_cycle": "bull_breakout",
  "rationale": "strong bull bar closing on its high",
  "entry": {"kind": "bar_extreme", "which": "high", "bar_index": 0, "offset_ticks": 1},
  "stop": {"kind": "bar_extreme", "which": "low", "bar_index": 0, "offset_ticks": -1},
  "target": {"kind": "risk_multiple", "risk_multiple": 2},
  "self_check": {"valid": true}
}`

func TestParseValidProposal(t *testing.T) {
	p, err := ParseProposal([]byte(validBuy))
	require.NoError(t, err)

	assert.Equal(t, Buy, p.Operation)
	assert.Equal(t, "BTC/USDT", p.Symbol)
	assert.Equal(t, 68.0, p.ProbabilityScore)
	require.NotNil(t, p.Entry)
	assert.Equal(t, BarExtreme, p.Entry.Kind)
	assert.Equal(t, High, p.Entry.Which)
	require.NotNil(t, p.Target)
	assert.Equal(t, 2.0, p.Target.RiskMultiple)
	assert.True(t, p.SelfCheck.Valid)
}

func TestParseStripsMarkdownFence(t *testing.T) {
	fenced := "```json\n" + validBuy + "\n```"
	p, err := ParseProposal([]byte(fenced))
	require.NoError(t, err)
	assert.Equal(t, Buy, p.Operation)
}

func TestParseRejectsNonJSON(t *testing.T) {
	_, err := ParseProposal([]byte("I think you should buy here because"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")

	_, err = ParseProposal([]byte(`["Buy"]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a JSON object")
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"bad operation":    `{"operation": "Long", "symbol": "BTC/USDT", "self_check": {"valid": true}}`,
		"missing symbol":   `{"operation": "Hold", "self_check": {"valid": true}}`,
		"future bar index": `{"operation": "Hold", "symbol": "X", "self_check": {"valid": true}, "entry": {"kind": "bar_extreme", "which": "high", "bar_index": 1}}`,
		"probability >100": `{"operation": "Hold", "symbol": "X", "probability_score": 150, "self_check": {"valid": true}}`,
		"bad rule kind":    `{"operation": "Hold", "symbol": "X", "self_check": {"valid": true}, "entry": {"kind": "vibes"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProposal([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestActionableProposalNeedsEntryAndStop(t *testing.T) {
	raw := `{"operation": "Sell", "symbol": "BTC/USDT", "self_check": {"valid": true}}`
	_, err := ParseProposal([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing entry or stop")
}

func TestHoldNeedsNoRules(t *testing.T) {
	raw := `{"operation": "Hold", "symbol": "BTC/USDT", "rationale": "chop", "self_check": {"valid": true}}`
	p, err := ParseProposal([]byte(raw))
	require.NoError(t, err)
	assert.False(t, p.IsActionable())
}

func TestBothOffsetsRejected(t *testing.T) {
	raw := `{
	  "operation": "Buy", "symbol": "BTC/USDT", "self_check": {"valid": true},
	  "entry": {"kind": "bar_extreme", "which": "high", "offset_ticks": 1, "offset_percent": 0.1},
	  "stop": {"kind": "bar_extreme", "which": "low"}
	}`
	_, err := ParseProposal([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both offset_ticks and offset_percent")
}

func TestPatternRuleNeedsBarRange(t *testing.T) {
	raw := `{
	  "operation": "Buy", "symbol": "BTC/USDT", "self_check": {"valid": true},
	  "entry": {"kind": "bar_extreme", "which": "high"},
	  "stop": {"kind": "pattern_extreme", "which": "low"}
	}`
	_, err := ParseProposal([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a bar range")
}

func TestFixedLevelNeedsPrice(t *testing.T) {
	raw := `{
	  "operation": "Buy", "symbol": "BTC/USDT", "self_check": {"valid": true},
	  "entry": {"kind": "fixed_level"},
	  "stop": {"kind": "bar_extreme", "which": "low"}
	}`
	_, err := ParseProposal([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive price")
}

func TestHoldWithDemotesAndAppendsReason(t *testing.T) {
	p := TradeProposal{Operation: Buy, Rationale: "setup"}
	h := p.HoldWith("[Cooldown] 5m remaining")
	assert.Equal(t, Hold, h.Operation)
	assert.Contains(t, h.Rationale, "setup")
	assert.Contains(t, h.Rationale, "[Cooldown]")
	// Original untouched.
	assert.Equal(t, Buy, p.Operation)
}
