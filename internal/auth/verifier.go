package auth

import "context"

// Verifier resolves an opaque credential to the subject's email. Token issuance
// is handled upstream; the gateway only verifies.
type Verifier interface {
	Verify(ctx context.Context, credential string) (email string, err error)
}

// TokenVerifier verifies access tokens issued by this process at sign-in.
type TokenVerifier struct {
	Secret string
}

func (v *TokenVerifier) Verify(ctx context.Context, credential string) (string, error) {
	claims, err := ValidateToken(v.Secret, credential)
	if err != nil {
		return "", ErrInvalidCredential
	}
	if claims.Email == "" {
		return "", ErrInvalidCredential
	}
	return claims.Email, nil
}
