package oidcprovider

import (
	"context"
	"fmt"

	"github.com/tendant/device-cloud/pkg/user"
)

// AuthentikProvider authenticates users against a self-hosted Authentik
// instance. The issuer URL comes from configuration, and the key-set
// location can be overridden when it differs from discovery.
type AuthentikProvider struct {
	*client
}

// NewAuthentik discovers the configured Authentik issuer and returns the provider
func NewAuthentik(ctx context.Context, cfg Config) (*AuthentikProvider, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("issuer is required for authentik")
	}

	c, err := newClient(ctx, "authentik", cfg)
	if err != nil {
		return nil, err
	}
	return &AuthentikProvider{client: c}, nil
}

// ExternalIDField returns the user directory column keyed by Authentik subjects
func (p *AuthentikProvider) ExternalIDField() user.ExternalIDField {
	return user.FieldAuthentikID
}

// IDTokenParam returns the return-URL query parameter carrying the ID token
func (p *AuthentikProvider) IDTokenParam() string {
	return "oidcAuthentik"
}
