// Package pricing resolves declarative price rules against a candle series.
// Evaluation is pure: same series, same rule, same result, no side effects.
package pricing

import "fmt"

type ErrorCode string

const (
	ErrInvalidIndex ErrorCode = "invalid_index"
	ErrEmptyRange   ErrorCode = "empty_range"
	ErrMissingInput ErrorCode = "missing_input"
	ErrBadSpec      ErrorCode = "bad_spec"
)

// RuleError describes why a rule could not be resolved. The code lets
// callers distinguish a stale bar reference from a structurally bad rule.
type RuleError struct {
	Code ErrorCode
	Rule string
	Msg  string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("price rule %s: %s (%s)", e.Rule, e.Msg, e.Code)
}

func ruleErrf(code ErrorCode, rule, format string, v ...any) *RuleError {
	return &RuleError{Code: code, Rule: rule, Msg: fmt.Sprintf(format, v...)}
}
