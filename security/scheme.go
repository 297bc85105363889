package security

import (
	"errors"
	"fmt"
)

// SchemeType identifies how credentials are presented.
type SchemeType string

// Supported scheme types.
const (
	SchemeBearer SchemeType = "bearer"
	SchemeAPIKey SchemeType = "apikey"
	SchemeOAuth2 SchemeType = "oauth2"
)

// OAuth2FlowType names an OAuth 2.0 grant flow.
type OAuth2FlowType string

// OAuth 2.0 flow types.
const (
	FlowAuthorizationCode OAuth2FlowType = "authorizationCode"
	FlowClientCredentials OAuth2FlowType = "clientCredentials"
	FlowPassword          OAuth2FlowType = "password"
)

// OAuth2Flow describes one OAuth 2.0 flow of an oauth2 scheme.
type OAuth2Flow struct {
	Type             OAuth2FlowType    `json:"type" toml:"type"`
	AuthorizationURL string            `json:"authorizationUrl,omitempty" toml:"authorization_url"`
	RefreshURL       string            `json:"refreshUrl,omitempty" toml:"refresh_url"`
	TokenURL         string            `json:"tokenUrl,omitempty" toml:"token_url"`
	Scopes           map[string]string `json:"scopes" toml:"scopes"`
}

// Scheme describes a security scheme in the discovery document.
type Scheme struct {
	Type        SchemeType        `json:"type" toml:"type"`
	In          string            `json:"in,omitempty" toml:"in"`
	Name        string            `json:"name,omitempty" toml:"name"`
	Description string            `json:"description,omitempty" toml:"description"`
	Scopes      map[string]string `json:"scopes,omitempty" toml:"scopes"`
	Flows       []OAuth2Flow      `json:"flows,omitempty" toml:"flows"`
}

// Bearer returns a bearer token scheme read from the Authorization header.
func Bearer(scopes map[string]string) Scheme {
	return Scheme{Type: SchemeBearer, In: "header", Name: "Authorization", Scopes: scopes}
}

// APIKey returns an API key scheme read from the named header.
func APIKey(header string, scopes map[string]string) Scheme {
	if header == "" {
		header = "api_key"
	}
	return Scheme{Type: SchemeAPIKey, In: "header", Name: header, Scopes: scopes}
}

// OAuth2 returns an OAuth 2.0 scheme with the given flows.
func OAuth2(flows ...OAuth2Flow) Scheme {
	return Scheme{Type: SchemeOAuth2, Flows: flows}
}

// ErrInvalidScheme is returned by Scheme.Validate.
var ErrInvalidScheme = errors.New("invalid security scheme")

// Validate checks that the scheme is well formed.
func (s Scheme) Validate() error {
	switch s.Type {
	case SchemeBearer, SchemeAPIKey:
		return nil
	case SchemeOAuth2:
		if len(s.Flows) == 0 {
			return fmt.Errorf("%w: oauth2 requires at least one flow", ErrInvalidScheme)
		}
		return nil
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidScheme)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidScheme, s.Type)
	}
}
