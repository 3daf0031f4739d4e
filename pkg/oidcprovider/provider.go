package oidcprovider

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/tendant/device-cloud/pkg/user"
)

// Provider abstracts a single OIDC identity provider. Discovery happens once
// in the constructor; the rest of the system never branches on which provider
// is active.
type Provider interface {
	// Name returns the provider identifier ("google", "authentik")
	Name() string

	// ClientID returns the OAuth2 client ID registered with the provider
	ClientID() string

	// ExternalIDField returns the user directory column keyed by this
	// provider's subject claim
	ExternalIDField() user.ExternalIDField

	// IDTokenParam returns the query parameter name under which the ID
	// token is handed to the device return URL
	IDTokenParam() string

	// AuthCodeURL builds the provider authorization URL embedding the state
	// parameter and the S256 challenge derived from the code verifier
	AuthCodeURL(state, codeVerifier string) string

	// Exchange redeems the authorization code at the token endpoint,
	// presenting the original code verifier
	Exchange(ctx context.Context, code, codeVerifier string) (*TokenSet, error)

	// Userinfo fetches the userinfo document for the exchanged tokens
	Userinfo(ctx context.Context, tokens *TokenSet) (*UserInfo, error)

	// Verify validates a raw ID token against the provider's key set,
	// issuer, audience and expiry
	Verify(ctx context.Context, rawIDToken string) (*Claims, error)
}

// Config carries the per-provider settings resolved from the environment
type Config struct {
	// Issuer is the provider issuer URL. Fixed for Google; required for Authentik.
	Issuer string

	ClientID     string
	ClientSecret string

	// RedirectURI is the externally reachable callback URL registered with
	// the provider
	RedirectURI string

	// JWKSURL optionally overrides the key-set location from discovery
	JWKSURL string
}

// TokenSet is the result of a successful code exchange
type TokenSet struct {
	// Token is the full OAuth2 token response
	Token *oauth2.Token

	// IDToken is the raw signed identity token, empty when the provider
	// did not return one
	IDToken string
}

// Claims is the verified claim set of an ID token. Only claims from a token
// that passed full verification end up here.
type Claims struct {
	Subject string
	Email   string
	Picture string
	Expiry  time.Time
}

// UserInfo is the profile returned by the provider's userinfo endpoint
type UserInfo struct {
	Subject string
	Email   string
	Picture string
}
