package security

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Token is a verified bearer token.
type Token struct {
	Subject string
	Scopes  []string
}

// scopeList accepts both the space separated string form and the array
// form of scope claims.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = strings.Fields(str)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = list
	return nil
}

// VerifyToken verifies raw with verifier and extracts its subject and the
// union of its "scope" and "scp" claims. Failures wrap ErrPermission.
func VerifyToken(ctx context.Context, verifier *oidc.IDTokenVerifier, raw string) (*Token, error) {
	idToken, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermission, err)
	}

	var claims struct {
		Scope scopeList `json:"scope"`
		Scp   scopeList `json:"scp"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: token claims: %w", ErrPermission, err)
	}

	scopes := append([]string{}, claims.Scope...)
	for _, s := range claims.Scp {
		if !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}
	return &Token{Subject: idToken.Subject, Scopes: scopes}, nil
}

// TokenGrants verifies raw and grants its scopes under scheme.
func TokenGrants(ctx context.Context, verifier *oidc.IDTokenVerifier, scheme, raw string) (Grants, error) {
	tok, err := VerifyToken(ctx, verifier, raw)
	if err != nil {
		return nil, err
	}
	return Grants{scheme: tok.Scopes}, nil
}
