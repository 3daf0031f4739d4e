package session

import (
	"context"
	"errors"
)

// Data holds the per-browser-session state carried across the OIDC flow.
// CSRFToken, CodeVerifier, PendingDeviceID and ReturnURL are short-lived
// secrets written at login initiation and consumed at the callback.
// IDToken is the long-lived proof of authentication and survives the flow.
type Data struct {
	CSRFToken       string `json:"csrf_token,omitempty"`
	CodeVerifier    string `json:"code_verifier,omitempty"`
	PendingDeviceID string `json:"pending_device_id,omitempty"`
	ReturnURL       string `json:"return_url,omitempty"`
	IDToken         string `json:"id_token,omitempty"`
}

// ErrNotFound indicates no session data exists for the given key.
var ErrNotFound = errors.New("session not found")

// Store defines the interface for per-browser-session key/value storage.
// Implementations must be tamper-proof from the browser's point of view:
// the browser only ever holds an opaque session key, never the data itself.
type Store interface {
	// Load returns the session data for the given key.
	// Returns ErrNotFound when no session exists.
	Load(ctx context.Context, key string) (Data, error)

	// Save stores the session data under the given key, overwriting any
	// prior data.
	Save(ctx context.Context, key string, data Data) error

	// Delete removes the session data for the given key.
	Delete(ctx context.Context, key string) error
}
