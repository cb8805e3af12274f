// Package oracle defines the consumed surface of the strategy oracle: the
// proposal it emits once per hunting tick and the declarative price rules
// inside it. The engine never looks behind this interface.
package oracle

// Operation is the proposed action.
type Operation string

const (
	Buy  Operation = "Buy"
	Sell Operation = "Sell"
	Hold Operation = "Hold"
)

// RuleKind discriminates price rule specs.
type RuleKind string

const (
	BarExtreme     RuleKind = "bar_extreme"
	PatternExtreme RuleKind = "pattern_extreme"
	SwingExtreme   RuleKind = "swing_extreme"
	MeasuredMove   RuleKind = "measured_move"
	RiskMultiple   RuleKind = "risk_multiple"
	FixedLevel     RuleKind = "fixed_level"
)

// Extreme selects which bar price a rule reads.
type Extreme string

const (
	High  Extreme = "high"
	Low   Extreme = "low"
	Close Extreme = "close"
)

// RuleSpec is a pure, stateless price rule. Bar indices are relative:
// 0 is the most recent closed bar, negative values reach further back.
// Offsets are expressed in instrument ticks or as a percent of the base
// price; at most one of the two should be set.
type RuleSpec struct {
	Kind  RuleKind `json:"kind"`
	Which Extreme  `json:"which,omitempty"`

	BarIndex int `json:"bar_index,omitempty"`
	StartBar int `json:"start_bar,omitempty"`
	EndBar   int `json:"end_bar,omitempty"`

	OffsetTicks   float64 `json:"offset_ticks,omitempty"`
	OffsetPercent float64 `json:"offset_percent,omitempty"`

	RiskMultiple float64 `json:"risk_multiple,omitempty"`
	Price        float64 `json:"price,omitempty"`
}

// SelfCheck carries the oracle's own validation of its output. Three or
// more warnings are treated as a possible hallucination by the gate.
type SelfCheck struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// TradeProposal is one proposed trade. Produced once per hunting tick and
// consumed immediately; never kept as mutable state.
type TradeProposal struct {
	Operation        Operation `json:"operation"`
	Symbol           string    `json:"symbol"`
	ProbabilityScore float64   `json:"probability_score"` // 0-100
	SignalQuality    int       `json:"signal_quality"`    // 0-10
	SetupQuality     int       `json:"setup_quality"`     // 0-10
	Confidence       float64   `json:"confidence"`        // 0-1
	RiskPercent      float64   `json:"risk_percent,omitempty"`

	Entry  *RuleSpec `json:"entry,omitempty"`
	Stop   *RuleSpec `json:"stop,omitempty"`
	Target *RuleSpec `json:"target,omitempty"`

	// MarketCycle is the oracle's read of the regime ("trend",
	// "trading_range", ...); the gate cross-checks it against its own
	// range detector.
	MarketCycle string `json:"market_cycle,omitempty"`

	// Reversal marks an explicit reversal signal against an open position.
	Reversal         bool   `json:"reversal,omitempty"`
	ReversalStrength string `json:"reversal_strength,omitempty"` // weak|strong|very_strong

	Rationale string    `json:"rationale,omitempty"`
	SelfCheck SelfCheck `json:"self_check"`
}

// IsActionable reports whether the proposal asks for a new order.
func (p TradeProposal) IsActionable() bool {
	return p.Operation == Buy || p.Operation == Sell
}

// HoldWith returns a copy of p demoted to Hold with the given reason
// appended to the rationale.
func (p TradeProposal) HoldWith(reason string) TradeProposal {
	p.Operation = Hold
	if p.Rationale != "" {
		p.Rationale += " | "
	}
	p.Rationale += reason
	return p
}
