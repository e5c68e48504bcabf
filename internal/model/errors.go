package model

import (
	"errors"
	"fmt"
)

// Error codes surfaced by deal validation, the agreement lifecycle, and the
// apply engine. Codes are stable identifiers; messages are for humans.
const (
	CodeTradeDeadlinePassed  = "TRADE_DEADLINE_PASSED"
	CodeInvalidTeam          = "INVALID_TEAM"
	CodePlayerNotOwned       = "PLAYER_NOT_OWNED"
	CodePickNotOwned         = "PICK_NOT_OWNED"
	CodeRosterLimit          = "ROSTER_LIMIT"
	CodeHardCapExceeded      = "HARD_CAP_EXCEEDED"
	CodeAssetLocked          = "ASSET_LOCKED"
	CodeDealExpired          = "DEAL_EXPIRED"
	CodeDealInvalidated      = "DEAL_INVALIDATED"
	CodeDealAlreadyExecuted  = "DEAL_ALREADY_EXECUTED"
	CodeApplyFailed          = "APPLY_FAILED"
	CodeNegotiationNotFound  = "NEGOTIATION_NOT_FOUND"
	CodeMissingToTeam        = "MISSING_TO_TEAM"
	CodeDuplicateAsset       = "DUPLICATE_ASSET"
	CodePickTooFarInFuture   = "PICK_TOO_FAR_IN_FUTURE"
	CodeStepienRuleViolation = "STEPIEN_RULE_VIOLATION"
)

// TradeError is the typed error carried by every trade-core failure.
// Details holds the offending identifiers and amounts, never free text only.
type TradeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	cause error
}

// NewTradeError builds a TradeError with structured details.
func NewTradeError(code, message string, details map[string]any) *TradeError {
	return &TradeError{Code: code, Message: message, Details: details}
}

// WrapTradeError attaches an underlying cause, preserved for errors.Is/As.
func WrapTradeError(code, message string, details map[string]any, cause error) *TradeError {
	return &TradeError{Code: code, Message: message, Details: details, cause: cause}
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TradeError) Unwrap() error { return e.cause }

// ErrorCode extracts the trade-error code from err, or "" when err is not a
// TradeError.
func ErrorCode(err error) string {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
