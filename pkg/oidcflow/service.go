package oidcflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/tendant/device-cloud/pkg/device"
	"github.com/tendant/device-cloud/pkg/oidcprovider"
	"github.com/tendant/device-cloud/pkg/session"
	"github.com/tendant/device-cloud/pkg/user"
)

// Service runs the OIDC authorization-code flow and the device adoption
// bound to it. One instance serves all sessions; per-flow state lives in
// the session store under the caller's session key.
type Service struct {
	provider oidcprovider.Provider
	sessions session.Store
	users    user.Repository
	adoption *device.AdoptionService
	appURL   string
}

// NewService creates a new flow service. appURL is the externally reachable
// frontend base, used for the default and already-adopted destinations.
func NewService(
	provider oidcprovider.Provider,
	sessions session.Store,
	users user.Repository,
	adoption *device.AdoptionService,
	appURL string,
) *Service {
	return &Service{
		provider: provider,
		sessions: sessions,
		users:    users,
		adoption: adoption,
		appURL:   appURL,
	}
}

// InitiateLogin starts the authorization-code flow: generates fresh CSRF and
// PKCE material, persists it in the session (fully replacing any in-flight
// flow for that session, so a user-agent retry is safe), and returns the
// provider authorization URL to redirect to.
func (s *Service) InitiateLogin(ctx context.Context, sessionKey, deviceID, returnTo string) (string, error) {
	csrfToken, err := generateCSRFToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	codeVerifier := oauth2.GenerateVerifier()

	data, err := s.sessions.Load(ctx, sessionKey)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return "", fmt.Errorf("failed to load session: %w", err)
	}

	data.CSRFToken = csrfToken
	data.CodeVerifier = codeVerifier
	data.PendingDeviceID = deviceID
	data.ReturnURL = returnTo

	if err := s.sessions.Save(ctx, sessionKey, data); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	// The CSRF token rides inside the protocol state parameter so it
	// round-trips through the provider unmodified.
	state := url.Values{"csrf": {csrfToken}}.Encode()
	authURL := s.provider.AuthCodeURL(state, codeVerifier)

	slog.Info("Login initiated", "provider", s.provider.Name(), "deviceID", deviceID)
	return authURL, nil
}

// CallbackResult is the outcome of a completed callback
type CallbackResult struct {
	// RedirectURL is the final destination for the user agent
	RedirectURL string

	// AlreadyAdopted is set when the requested device is owned by a
	// different user. The login itself still succeeded.
	AlreadyAdopted bool

	// User is the authenticated user row
	User user.User
}

// flowState holds the single-use fields consumed from the session at the
// start of the callback
type flowState struct {
	codeVerifier    string
	pendingDeviceID string
	returnURL       string
}

// consumeFlowState reads the single-use fields and returns the next session
// data with them cleared
func consumeFlowState(data session.Data) (flowState, session.Data) {
	state := flowState{
		codeVerifier:    data.CodeVerifier,
		pendingDeviceID: data.PendingDeviceID,
		returnURL:       data.ReturnURL,
	}
	data.CSRFToken = ""
	data.CodeVerifier = ""
	data.PendingDeviceID = ""
	data.ReturnURL = ""
	return state, data
}

// HandleCallback validates the provider callback and completes the flow.
// Each gate is hard: failure aborts with no further side effects and no
// user or device mutation.
func (s *Service) HandleCallback(ctx context.Context, sessionKey, code, state string) (*CallbackResult, error) {
	if code == "" || state == "" {
		return nil, flowErr(CodeMissingCallbackParams, "missing callback parameters")
	}

	data, err := s.sessions.Load(ctx, sessionKey)
	if errors.Is(err, session.ErrNotFound) {
		return nil, flowErr(CodeMissingCSRF, "no login flow in progress for this session")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if data.CSRFToken == "" {
		return nil, flowErr(CodeMissingCSRF, "no login flow in progress for this session")
	}

	stateValues, err := url.ParseQuery(state)
	if err != nil || stateValues.Get("csrf") != data.CSRFToken {
		return nil, flowErr(CodeInvalidCSRF, "state parameter does not match this session's login flow")
	}

	// Consume the single-use fields before touching the provider, so a
	// duplicated callback delivery cannot replay the adoption step.
	flow, data := consumeFlowState(data)
	if err := s.sessions.Save(ctx, sessionKey, data); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if flow.returnURL == "" {
		flow.returnURL = s.appURL + "/devices"
	}

	// The provider recomputes the challenge from the verifier; a mismatch
	// or a reused code fails here, before any persistence.
	tokens, err := s.provider.Exchange(ctx, code, flow.codeVerifier)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	if tokens.IDToken == "" {
		return nil, flowErr(CodeMissingIDToken, "token response contains no ID token")
	}

	claims, err := s.provider.Verify(ctx, tokens.IDToken)
	if err != nil {
		return nil, fmt.Errorf("ID token verification failed: %w", err)
	}
	if claims.Subject == "" {
		return nil, flowErr(CodeMissingClaims, "ID token contains no subject claim")
	}

	userInfo, err := s.provider.Userinfo(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("userinfo fetch failed: %w", err)
	}

	u, err := s.users.UpsertByExternalID(ctx, user.UpsertParams{
		Field:      s.provider.ExternalIDField(),
		ExternalID: claims.Subject,
		Email:      userInfo.Email,
		Picture:    userInfo.Picture,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	// The raw ID token becomes the durable authenticated-session marker.
	data.IDToken = tokens.IDToken
	if err := s.sessions.Save(ctx, sessionKey, data); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("Login completed", "provider", s.provider.Name(), "sub", claims.Subject, "userID", u.ID)

	if flow.pendingDeviceID == "" {
		return &CallbackResult{RedirectURL: flow.returnURL, User: u}, nil
	}

	adopted, err := s.adoption.Adopt(ctx, flow.pendingDeviceID, u.ID)
	if errors.Is(err, device.ErrAdoptedByOther) {
		// Resale without a factory reset, or an adoption attempt by a
		// non-owner. Ownership is never silently reassigned; the login
		// half of the flow stands.
		slog.Warn("Device already adopted by another user", "deviceID", flow.pendingDeviceID, "userID", u.ID)
		return &CallbackResult{
			RedirectURL:    s.appURL + "/already-adopted",
			AlreadyAdopted: true,
			User:           u,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adopt device: %w", err)
	}

	redirectURL, err := s.buildAdoptionRedirect(flow.returnURL, adopted, tokens.IDToken)
	if err != nil {
		return nil, err
	}
	return &CallbackResult{RedirectURL: redirectURL, User: u}, nil
}

// buildAdoptionRedirect appends the temporary credential, device ID, ID
// token and client ID onto the stored return URL
func (s *Service) buildAdoptionRedirect(returnURL string, adopted device.Device, rawIDToken string) (string, error) {
	u, err := url.Parse(returnURL)
	if err != nil {
		return "", fmt.Errorf("invalid return URL: %w", err)
	}

	query := u.Query()
	query.Set("tempToken", adopted.TempToken)
	query.Set("deviceId", adopted.ID)
	query.Set(s.provider.IDTokenParam(), rawIDToken)
	query.Set("clientId", s.provider.ClientID())
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// generateCSRFToken generates a cryptographically random CSRF token (256 bits)
func generateCSRFToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
