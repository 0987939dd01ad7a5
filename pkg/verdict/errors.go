package verdict

import (
	"errors"
	"fmt"
)

// Canonical error codes. The code, not the message text, is the contract
// with callers and with the HTTP boundary.
const (
	CodeParseError        = "VERDICT/CORE/DSL/PARSE_ERROR"
	CodeBlocked           = "VERDICT/CORE/DSL/BLOCKED"
	CodeCompileError      = "VERDICT/CORE/SOLVER/COMPILE_ERROR"
	CodeSolverTimeout     = "VERDICT/CORE/SOLVER/TIMEOUT"
	CodeEngineFailure     = "VERDICT/CORE/CONSENSUS/ENGINE_FAILURE"
	CodeNoConsensus       = "VERDICT/CORE/CONSENSUS/NO_CONSENSUS"
	CodeInvalidMode       = "VERDICT/CORE/CONSENSUS/INVALID_MODE"
	CodeBelowThreshold    = "VERDICT/CORE/POLICY/CONFIDENCE_BELOW_THRESHOLD"
	CodeGatewayBlocked    = "VERDICT/CORE/GATEWAY/BLOCKED"
	CodeRateLimitExceeded = "VERDICT/CORE/RATE/LIMIT_EXCEEDED"
	CodeInvalidRequest    = "VERDICT/CORE/API/INVALID_REQUEST"
)

// Error is a coded, caller-facing failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a coded error with a formatted message.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the canonical code from an error, or "" when the error
// is not coded.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
