package oidcprovider

import (
	"context"

	"github.com/tendant/device-cloud/pkg/user"
)

// GoogleIssuer is the fixed issuer URL for Google accounts
const GoogleIssuer = "https://accounts.google.com"

// GoogleProvider authenticates users against Google
type GoogleProvider struct {
	*client
}

// NewGoogle discovers Google's OIDC metadata and returns the provider.
// The issuer is fixed; any issuer in cfg is ignored.
func NewGoogle(ctx context.Context, cfg Config) (*GoogleProvider, error) {
	cfg.Issuer = GoogleIssuer

	c, err := newClient(ctx, "google", cfg)
	if err != nil {
		return nil, err
	}
	return &GoogleProvider{client: c}, nil
}

// ExternalIDField returns the user directory column keyed by Google subjects
func (p *GoogleProvider) ExternalIDField() user.ExternalIDField {
	return user.FieldGoogleID
}

// IDTokenParam returns the return-URL query parameter carrying the ID token
func (p *GoogleProvider) IDTokenParam() string {
	return "oidcGoogle"
}
