package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/security"
	"github.com/felixgeelhaar/openrpc-go/server"
)

const sampleConfig = `
[server]
title = "calc"
version = "2.1.0"
description = "Arithmetic"
debug = true
error_code = -32050
batch_concurrency = 4
terms_of_service = "https://example.com/terms"
call_timeout = "10s"

[server.contact]
name = "Calc team"
email = "calc@example.com"

[server.license]
name = "MIT"
url = "https://opensource.org/licenses/MIT"

[server.method_timeouts]
"report.build" = "2m"
"calc.add" = "0s"

[http]
addr = ":9090"
path = "/jsonrpc"
read_timeout = "5s"
write_timeout = "10s"
max_body_size = 1024
cors_origins = ["https://app.example.com"]

[security]
policy = "any"

[security.schemes.bearer]
type = "bearer"
in = "header"
name = "Authorization"

[security.schemes.oauth]
type = "oauth2"

[[security.schemes.oauth.flows]]
type = "clientCredentials"
token_url = "https://auth.example.com/token"
scopes = { "calc:read" = "read access" }

[[servers]]
name = "production"
url = "https://rpc.example.com"
`

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, server.DefaultTitle, cfg.Server.Title)
	assert.Equal(t, "/rpc", cfg.HTTP.Path)
	assert.Equal(t, Duration(30*time.Second), cfg.HTTP.ReadTimeout)
	assert.Equal(t, "all", cfg.Security.Policy)
	require.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, server.Info{
		Title:          "calc",
		Version:        "2.1.0",
		Description:    "Arithmetic",
		TermsOfService: "https://example.com/terms",
		Contact:        &server.Contact{Name: "Calc team", Email: "calc@example.com"},
		License:        &server.License{Name: "MIT", URL: "https://opensource.org/licenses/MIT"},
	}, cfg.Info())
	assert.Equal(t, Duration(10*time.Second), cfg.Server.CallTimeout)
	assert.Equal(t, map[string]Duration{"report.build": Duration(2 * time.Minute), "calc.add": 0}, cfg.Server.MethodTimeouts)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, -32050, cfg.Server.ErrorCode)
	assert.Equal(t, 4, cfg.Server.BatchConcurrency)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "/jsonrpc", cfg.HTTP.Path)
	assert.Equal(t, Duration(5*time.Second), cfg.HTTP.ReadTimeout)
	assert.Equal(t, Duration(10*time.Second), cfg.HTTP.WriteTimeout)
	assert.Equal(t, Duration(30*time.Second), cfg.HTTP.ShutdownTimeout, "unset keys keep defaults")
	assert.Equal(t, int64(1024), cfg.HTTP.MaxBodySize)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.HTTP.CORSOrigins)

	require.Len(t, cfg.Security.Schemes, 2)
	assert.Equal(t, security.Bearer(nil), cfg.Security.Schemes["bearer"])
	oauth := cfg.Security.Schemes["oauth"]
	require.Len(t, oauth.Flows, 1)
	assert.Equal(t, security.FlowClientCredentials, oauth.Flows[0].Type)
	assert.Equal(t, "https://auth.example.com/token", oauth.Flows[0].TokenURL)
	assert.Equal(t, map[string]string{"calc:read": "read access"}, oauth.Flows[0].Scopes)

	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "https://rpc.example.com", cfg.Servers[0].URL)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"syntax", "[server", "failed to parse TOML"},
		{"bad duration", "[http]\nread_timeout = \"soon\"", "failed to parse TOML"},
		{"empty title", "[server]\ntitle = \"\"", "server.title is required"},
		{"error code", "[server]\nerror_code = -1", "server.error_code"},
		{"path", "[http]\npath = \"rpc\"", "http.path"},
		{"policy", "[security]\npolicy = \"some\"", "security.policy"},
		{"scheme type", "[security.schemes.x]\ntype = \"magic\"", "security.schemes.x"},
		{"oauth without flows", "[security.schemes.o]\ntype = \"oauth2\"", "oauth2 requires at least one flow"},
		{"server url", "[[servers]]\nname = \"x\"", "servers[0].url is required"},
		{"call timeout", "[server]\ncall_timeout = \"-1s\"", "server.call_timeout"},
		{"method timeout", "[server.method_timeouts]\nm = \"-1s\"", "server.method_timeouts.m"},
		{"license name", "[server.license]\nurl = \"https://x\"", "server.license.name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openrpc.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "calc", cfg.Server.Title)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvTitle, "from-env")
	t.Setenv(EnvDebug, "true")
	t.Setenv(EnvHTTPAddr, "127.0.0.1:7000")
	t.Setenv(EnvCORSOrigins, "https://a.example.com, https://b.example.com,")
	t.Setenv(EnvSecurityPolicy, "any")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Server.Title)
	assert.Equal(t, "2.1.0", cfg.Server.Version)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "127.0.0.1:7000", cfg.HTTP.Addr)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "any", cfg.Security.Policy)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvVersion, "9.9.9")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", cfg.Server.Version)

	t.Setenv(EnvDebug, "maybe")
	_, err = FromEnv()
	assert.ErrorContains(t, err, EnvDebug)
}

func TestOptions(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	srv := server.New(cfg.Info(), cfg.ServerOptions()...)
	assert.True(t, srv.Debug())

	doc := srv.Discover()
	assert.Equal(t, "calc", doc.Info.Title)
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "production", doc.Servers[0].Name)
	assert.Contains(t, doc.Components.SecuritySchemes, "bearer")

	assert.Len(t, cfg.HTTPOptions(), 6)
}

func TestFromEnv_CallTimeout(t *testing.T) {
	t.Setenv(EnvCallTimeout, "250ms")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.Server.CallTimeout)

	t.Setenv(EnvCallTimeout, "soon")
	_, err = FromEnv()
	assert.ErrorContains(t, err, EnvCallTimeout)
}

func TestMiddleware(t *testing.T) {
	cfg, err := Parse([]byte("[server]\ncall_timeout = \"20ms\"\n[server.method_timeouts]\n\"slow.exempt\" = \"0s\"\n"))
	require.NoError(t, err)
	assert.Len(t, Default().Middleware(middleware.NopLogger{}), 3, "no deadlines by default")

	srv := server.New(cfg.Info(), server.WithMiddleware(cfg.Middleware(middleware.NopLogger{})...))
	slow := func(ctx context.Context) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(100 * time.Millisecond):
			return "done", nil
		}
	}
	require.NoError(t, srv.Register("slow", slow))
	require.NoError(t, srv.Register("slow.exempt", slow))

	out := srv.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"slow"}`))
	var resp struct {
		Result string          `json:"result"`
		Error  *protocol.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out, &resp))
	require.NotNil(t, resp.Error, string(out))
	assert.Equal(t, protocol.CodeTimeout, resp.Error.Code)
	assert.Equal(t, middleware.MsgTimeout, resp.Error.Message)

	out = srv.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"slow.exempt"}`))
	resp.Error = nil
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Nil(t, resp.Error, string(out))
	assert.Equal(t, "done", resp.Result)
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, Duration(90*time.Second), d)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("fast")))
}
