package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// proposalSchema is the structural contract for raw oracle output. Anything
// that fails here never reaches the gate.
const proposalSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["operation", "symbol", "self_check"],
  "properties": {
    "operation": {"type": "string", "enum": ["Buy", "Sell", "Hold"]},
    "symbol": {"type": "string", "minLength": 1},
    "probability_score": {"type": "number", "minimum": 0, "maximum": 100},
    "signal_quality": {"type": "integer", "minimum": 0, "maximum": 10},
    "setup_quality": {"type": "integer", "minimum": 0, "maximum": 10},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "risk_percent": {"type": "number", "minimum": 0, "maximum": 0.1},
    "market_cycle": {"type": "string"},
    "reversal": {"type": "boolean"},
    "reversal_strength": {"type": "string", "enum": ["weak", "strong", "very_strong"]},
    "rationale": {"type": "string"},
    "entry": {"$ref": "#/$defs/rule"},
    "stop": {"$ref": "#/$defs/rule"},
    "target": {"$ref": "#/$defs/rule"},
    "self_check": {
      "type": "object",
      "required": ["valid"],
      "properties": {
        "valid": {"type": "boolean"},
        "errors": {"type": "array", "items": {"type": "string"}},
        "warnings": {"type": "array", "items": {"type": "string"}}
      }
    }
  },
  "$defs": {
    "rule": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind": {
          "type": "string",
          "enum": ["bar_extreme", "pattern_extreme", "swing_extreme", "measured_move", "risk_multiple", "fixed_level"]
        },
        "which": {"type": "string", "enum": ["high", "low", "close"]},
        "bar_index": {"type": "integer", "maximum": 0},
        "start_bar": {"type": "integer", "maximum": 0},
        "end_bar": {"type": "integer", "maximum": 0},
        "offset_ticks": {"type": "number"},
        "offset_percent": {"type": "number"},
        "risk_multiple": {"type": "number", "exclusiveMinimum": 0},
        "price": {"type": "number", "exclusiveMinimum": 0}
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("proposal.json", proposalSchema)

// ParseProposal validates raw oracle JSON against the schema and decodes it.
// The gjson pre-pass rejects non-JSON noise (markdown fences, truncated
// output) with a short message instead of a schema error dump.
func ParseProposal(raw []byte) (TradeProposal, error) {
	trimmed := strings.TrimSpace(string(raw))
	trimmed = stripFences(trimmed)
	if !gjson.Valid(trimmed) {
		return TradeProposal{}, fmt.Errorf("oracle output is not valid JSON")
	}
	root := gjson.Parse(trimmed)
	if !root.IsObject() {
		return TradeProposal{}, fmt.Errorf("oracle output is not a JSON object")
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return TradeProposal{}, fmt.Errorf("decode oracle output: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return TradeProposal{}, fmt.Errorf("oracle output failed schema validation: %w", err)
	}

	var p TradeProposal
	if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
		return TradeProposal{}, fmt.Errorf("decode oracle output: %w", err)
	}
	if err := checkSemantics(p); err != nil {
		return TradeProposal{}, err
	}
	return p, nil
}

// checkSemantics enforces cross-field rules the schema cannot express.
func checkSemantics(p TradeProposal) error {
	if !p.IsActionable() {
		return nil
	}
	if p.Entry == nil || p.Stop == nil {
		return fmt.Errorf("%s proposal missing entry or stop rule", p.Operation)
	}
	for name, rule := range map[string]*RuleSpec{"entry": p.Entry, "stop": p.Stop, "target": p.Target} {
		if rule == nil {
			continue
		}
		if err := checkRule(name, *rule); err != nil {
			return err
		}
	}
	return nil
}

func checkRule(name string, r RuleSpec) error {
	if r.OffsetTicks != 0 && r.OffsetPercent != 0 {
		return fmt.Errorf("%s rule sets both offset_ticks and offset_percent", name)
	}
	switch r.Kind {
	case BarExtreme:
		if r.Which == "" {
			return fmt.Errorf("%s rule %s requires which", name, r.Kind)
		}
	case PatternExtreme, SwingExtreme, MeasuredMove:
		if r.StartBar == 0 && r.EndBar == 0 {
			return fmt.Errorf("%s rule %s requires a bar range", name, r.Kind)
		}
	case RiskMultiple:
		if r.RiskMultiple < 0 {
			return fmt.Errorf("%s rule has negative risk multiple", name)
		}
	case FixedLevel:
		if r.Price <= 0 {
			return fmt.Errorf("%s rule %s requires a positive price", name, r.Kind)
		}
	default:
		return fmt.Errorf("%s rule has unknown kind %q", name, r.Kind)
	}
	return nil
}

// stripFences removes a surrounding markdown code fence if present. Some
// oracle backends wrap JSON despite instructions not to.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
