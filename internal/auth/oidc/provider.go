// Package oidc verifies upstream identity-provider ID tokens presented at
// sign-in. The dashboard never issues these tokens itself; it exchanges a
// verified ID token for a local access token.
package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/dockhand/dockhand-backend/internal/config"
)

// Profile is the subset of ID-token claims the dashboard keeps.
type Profile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Provider wraps the issuer's discovery document and token verifier.
type Provider struct {
	verifier *oidc.IDTokenVerifier
}

// NewProvider discovers the configured issuer and builds an ID-token verifier
// bound to the dashboard's client id.
func NewProvider(ctx context.Context, cfg *config.Config) (*Provider, error) {
	if cfg.OIDCIssuerURL == "" {
		return nil, fmt.Errorf("oidc issuer URL not configured")
	}
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})
	return &Provider{verifier: verifier}, nil
}

// VerifyIDToken validates the raw ID token and extracts the profile claims.
// A token without an email claim is rejected: email is the identity key.
func (p *Provider) VerifyIDToken(ctx context.Context, rawToken string) (*Profile, error) {
	idToken, err := p.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("id token verification failed: %w", err)
	}
	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token claims: %w", err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("id token has no email claim")
	}
	return &Profile{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
