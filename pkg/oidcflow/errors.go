package oidcflow

import "fmt"

// Reason codes for client/protocol errors surfaced by the flow
const (
	CodeMissingCallbackParams = "missing_callback_params"
	CodeMissingCSRF           = "missing_csrf"
	CodeInvalidCSRF           = "invalid_csrf"
	CodeMissingIDToken        = "missing_id_token"
	CodeMissingClaims         = "missing_claims"
)

// FlowError is a client/protocol error with a machine-readable reason code.
// These are terminal for the current flow attempt; the user must restart.
type FlowError struct {
	Code    string
	Message string
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func flowErr(code, message string) *FlowError {
	return &FlowError{Code: code, Message: message}
}
