package oidcprovider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// defaultHTTPTimeout bounds every remote call to the provider so a hung
// discovery, key fetch or token exchange aborts the flow instead of hanging.
const defaultHTTPTimeout = 15 * time.Second

// client implements the provider-independent parts of Provider on top of
// go-oidc discovery and x/oauth2 code exchange.
type client struct {
	name         string
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	httpClient   *http.Client
}

// newClient discovers the issuer metadata and prepares the OAuth2 and
// verification machinery. Called once at startup per configured provider.
func newClient(ctx context.Context, name string, cfg Config) (*client, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("issuer is required for provider %s", name)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required for provider %s", name)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("redirect URI is required for provider %s", name)
	}

	httpClient := &http.Client{Timeout: defaultHTTPTimeout}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover provider %s: %w", name, err)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	// The verifier checks signature, issuer, audience and expiry; unsigned
	// and alg=none tokens never pass.
	verifierConfig := &oidc.Config{ClientID: cfg.ClientID}
	var verifier *oidc.IDTokenVerifier
	if cfg.JWKSURL != "" {
		keySet := oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), httpClient), cfg.JWKSURL)
		verifier = oidc.NewVerifier(cfg.Issuer, keySet, verifierConfig)
	} else {
		verifier = provider.Verifier(verifierConfig)
	}

	slog.Info("OIDC provider discovered", "provider", name, "issuer", cfg.Issuer)

	return &client{
		name:         name,
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
		httpClient:   httpClient,
	}, nil
}

// Name returns the provider identifier
func (c *client) Name() string {
	return c.name
}

// ClientID returns the OAuth2 client ID
func (c *client) ClientID() string {
	return c.oauth2Config.ClientID
}

// AuthCodeURL builds the authorization URL with the S256 PKCE challenge.
// The "plain" challenge method is never offered.
func (c *client) AuthCodeURL(state, codeVerifier string) string {
	return c.oauth2Config.AuthCodeURL(state, oauth2.S256ChallengeOption(codeVerifier))
}

// Exchange redeems the authorization code, presenting the code verifier so
// the provider can recompute and compare the challenge
func (c *client) Exchange(ctx context.Context, code, codeVerifier string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	return &TokenSet{Token: token, IDToken: rawIDToken}, nil
}

// Userinfo fetches the userinfo document for the exchanged tokens
func (c *client) Userinfo(ctx context.Context, tokens *TokenSet) (*UserInfo, error) {
	info, err := c.provider.UserInfo(oidc.ClientContext(ctx, c.httpClient), oauth2.StaticTokenSource(tokens.Token))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}

	var extra struct {
		Picture string `json:"picture"`
	}
	if err := info.Claims(&extra); err != nil {
		slog.Warn("Failed to parse userinfo claims", "provider", c.name, "error", err)
	}

	return &UserInfo{
		Subject: info.Subject,
		Email:   info.Email,
		Picture: extra.Picture,
	}, nil
}

// Verify validates a raw ID token and returns its claim set
func (c *client) Verify(ctx context.Context, rawIDToken string) (*Claims, error) {
	idToken, err := c.verifier.Verify(oidc.ClientContext(ctx, c.httpClient), rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	var extra struct {
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&extra); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}

	return &Claims{
		Subject: idToken.Subject,
		Email:   extra.Email,
		Picture: extra.Picture,
		Expiry:  idToken.Expiry,
	}, nil
}
