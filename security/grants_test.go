package security

import (
	"errors"
	"testing"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		req     Requirement
		grants  Grants
		policy  Policy
		wantErr bool
	}{
		{"empty requirement", nil, nil, RequireAll, false},
		{"empty requirement with any", Requirement{}, nil, RequireAny, false},
		{"exact scopes", Requirement{"bearer": {"read"}}, Grants{"bearer": {"read"}}, RequireAll, false},
		{"superset scopes", Requirement{"bearer": {"read"}}, Grants{"bearer": {"read", "write"}}, RequireAll, false},
		{"scheme without scopes", Requirement{"apikey": nil}, Grants{"apikey": nil}, RequireAll, false},
		{"missing scope", Requirement{"bearer": {"read", "write"}}, Grants{"bearer": {"read"}}, RequireAll, true},
		{"missing scheme", Requirement{"bearer": {"read"}}, Grants{"apikey": {"read"}}, RequireAll, true},
		{"no grants", Requirement{"bearer": {"read"}}, nil, RequireAll, true},
		{
			name:    "all requires every scheme",
			req:     Requirement{"bearer": {"read"}, "apikey": nil},
			grants:  Grants{"bearer": {"read"}},
			policy:  RequireAll,
			wantErr: true,
		},
		{
			name:   "any accepts one scheme",
			req:    Requirement{"bearer": {"read"}, "apikey": nil},
			grants: Grants{"bearer": {"read"}},
			policy: RequireAny,
		},
		{
			name:    "any still checks scopes",
			req:     Requirement{"bearer": {"admin"}, "apikey": {"admin"}},
			grants:  Grants{"bearer": {"read"}, "apikey": {"read"}},
			policy:  RequireAny,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.req, tt.grants, tt.policy)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrPermission) {
					t.Errorf("error %v does not wrap ErrPermission", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGrants_Has(t *testing.T) {
	g := Grants{"bearer": {"a", "b"}}

	if !g.Has("bearer") {
		t.Error("expected scheme without scopes to match")
	}
	if !g.Has("bearer", "b", "a") {
		t.Error("expected scope order not to matter")
	}
	if g.Has("bearer", "c") {
		t.Error("unexpected match for missing scope")
	}
	if g.Has("apikey") {
		t.Error("unexpected match for missing scheme")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", RequireAll, false},
		{"all", RequireAll, false},
		{"any", RequireAny, false},
		{"some", RequireAll, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
