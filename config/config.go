// Package config loads server configuration from TOML files.
//
// A file looks like:
//
//	[server]
//	title = "calc"
//	version = "1.0.0"
//	debug = false
//	call_timeout = "10s"
//
//	[server.method_timeouts]
//	"report.build" = "2m"
//
//	[http]
//	addr = ":8080"
//	read_timeout = "30s"
//	cors_origins = ["https://app.example.com"]
//
//	[security]
//	policy = "all"
//
//	[security.schemes.bearer]
//	type = "bearer"
//
// Values can be overridden with OPENRPC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/security"
	"github.com/felixgeelhaar/openrpc-go/server"
	"github.com/felixgeelhaar/openrpc-go/transport"
)

// Duration is a time.Duration written as a string such as "30s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ServerConfig configures the dispatcher.
type ServerConfig struct {
	Title            string `toml:"title"`
	Version          string `toml:"version"`
	Description      string `toml:"description"`
	TermsOfService   string `toml:"terms_of_service"`
	Debug            bool   `toml:"debug"`
	ErrorCode        int    `toml:"error_code"`
	BatchConcurrency int    `toml:"batch_concurrency"`

	Contact *server.Contact `toml:"contact"`
	License *server.License `toml:"license"`

	// CallTimeout bounds every method call. Zero means no deadline.
	CallTimeout Duration `toml:"call_timeout"`
	// MethodTimeouts overrides CallTimeout per method. Zero exempts a method.
	MethodTimeouts map[string]Duration `toml:"method_timeouts"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Addr            string   `toml:"addr"`
	Path            string   `toml:"path"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	MaxBodySize     int64    `toml:"max_body_size"`
	CORSOrigins     []string `toml:"cors_origins"`
}

// SecurityConfig lists security schemes and the policy for methods
// requiring several of them.
type SecurityConfig struct {
	Policy  string                     `toml:"policy"`
	Schemes map[string]security.Scheme `toml:"schemes"`
}

// Endpoint is a server advertised in discovery.
type Endpoint struct {
	Name        string `toml:"name"`
	URL         string `toml:"url"`
	Summary     string `toml:"summary"`
	Description string `toml:"description"`
}

// Config is the complete configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	HTTP     HTTPConfig     `toml:"http"`
	Security SecurityConfig `toml:"security"`
	Servers  []Endpoint     `toml:"servers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Title:     server.DefaultTitle,
			Version:   server.DefaultVersion,
			ErrorCode: protocol.CodeServerError,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			Path:            transport.DefaultPath,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			MaxBodySize:     transport.DefaultMaxBodySize,
		},
		Security: SecurityConfig{Policy: security.RequireAll.String()},
	}
}

// Load reads the TOML file at path on top of the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return Parse(data)
}

// Parse is like Load for TOML already in memory.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment variables read by Load, Parse and FromEnv.
const (
	EnvTitle          = "OPENRPC_TITLE"
	EnvVersion        = "OPENRPC_VERSION"
	EnvDebug          = "OPENRPC_DEBUG"
	EnvCallTimeout    = "OPENRPC_CALL_TIMEOUT"
	EnvHTTPAddr       = "OPENRPC_HTTP_ADDR"
	EnvHTTPPath       = "OPENRPC_HTTP_PATH"
	EnvCORSOrigins    = "OPENRPC_CORS_ORIGINS"
	EnvSecurityPolicy = "OPENRPC_SECURITY_POLICY"
)

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTitle); ok {
		c.Server.Title = v
	}
	if v, ok := lookup(EnvVersion); ok {
		c.Server.Version = v
	}
	if v, ok := lookup(EnvDebug); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		c.Server.Debug = debug
	}
	if v, ok := lookup(EnvCallTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCallTimeout, err)
		}
		c.Server.CallTimeout = Duration(d)
	}
	if v, ok := lookup(EnvHTTPAddr); ok {
		c.HTTP.Addr = v
	}
	if v, ok := lookup(EnvHTTPPath); ok {
		c.HTTP.Path = v
	}
	if v, ok := lookup(EnvCORSOrigins); ok {
		c.HTTP.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.HTTP.CORSOrigins = append(c.HTTP.CORSOrigins, origin)
			}
		}
	}
	if v, ok := lookup(EnvSecurityPolicy); ok {
		c.Security.Policy = v
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Title == "" {
		errs = append(errs, errors.New("server.title is required"))
	}
	if c.Server.ErrorCode > protocol.CodeServerError || c.Server.ErrorCode < protocol.CodePermission {
		errs = append(errs, fmt.Errorf("server.error_code %d is outside -32099..-32000", c.Server.ErrorCode))
	}
	if c.Server.BatchConcurrency < 0 {
		errs = append(errs, errors.New("server.batch_concurrency must not be negative"))
	}
	if c.Server.CallTimeout < 0 {
		errs = append(errs, errors.New("server.call_timeout must not be negative"))
	}
	for method, d := range c.Server.MethodTimeouts {
		if d < 0 {
			errs = append(errs, fmt.Errorf("server.method_timeouts.%s must not be negative", method))
		}
	}
	if c.Server.License != nil && c.Server.License.Name == "" {
		errs = append(errs, errors.New("server.license.name is required"))
	}
	if !strings.HasPrefix(c.HTTP.Path, "/") {
		errs = append(errs, fmt.Errorf("http.path %q must start with /", c.HTTP.Path))
	}
	if c.HTTP.MaxBodySize <= 0 {
		errs = append(errs, errors.New("http.max_body_size must be positive"))
	}
	if _, err := security.ParsePolicy(c.Security.Policy); err != nil {
		errs = append(errs, fmt.Errorf("security.policy: %w", err))
	}
	for name, scheme := range c.Security.Schemes {
		if err := scheme.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("security.schemes.%s: %w", name, err))
		}
	}
	for i, s := range c.Servers {
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("servers[%d].url is required", i))
		}
	}
	return errors.Join(errs...)
}

// Info returns the server info.
func (c *Config) Info() server.Info {
	return server.Info{
		Title:          c.Server.Title,
		Version:        c.Server.Version,
		Description:    c.Server.Description,
		TermsOfService: c.Server.TermsOfService,
		Contact:        c.Server.Contact,
		License:        c.Server.License,
	}
}

// Middleware returns the default middleware stack logging to logger, with
// the configured call deadlines.
func (c *Config) Middleware(logger middleware.Logger) []middleware.Middleware {
	timeouts := middleware.TimeoutConfig{Default: time.Duration(c.Server.CallTimeout)}
	if len(c.Server.MethodTimeouts) > 0 {
		timeouts.Methods = make(map[string]time.Duration, len(c.Server.MethodTimeouts))
		for method, d := range c.Server.MethodTimeouts {
			timeouts.Methods[method] = time.Duration(d)
		}
	}
	return middleware.NewStack(logger, middleware.StackConfig{Timeout: timeouts})
}

// ServerOptions returns the server options described by the configuration.
// The security function is not configurable from a file.
func (c *Config) ServerOptions() []server.Option {
	policy, _ := security.ParsePolicy(c.Security.Policy)
	opts := []server.Option{
		server.WithDebug(c.Server.Debug),
		server.WithDefaultErrorCode(c.Server.ErrorCode),
		server.WithSecurityPolicy(policy),
	}
	if c.Server.BatchConcurrency > 0 {
		opts = append(opts, server.WithBatchConcurrency(c.Server.BatchConcurrency))
	}
	if len(c.Security.Schemes) > 0 {
		opts = append(opts, server.WithSecuritySchemes(c.Security.Schemes))
	}
	if len(c.Servers) > 0 {
		servers := make([]server.ServerObject, len(c.Servers))
		for i, s := range c.Servers {
			servers[i] = server.ServerObject{
				Name:        s.Name,
				URL:         s.URL,
				Summary:     s.Summary,
				Description: s.Description,
			}
		}
		opts = append(opts, server.WithServers(servers...))
	}
	return opts
}

// HTTPOptions returns the HTTP transport options described by the
// configuration.
func (c *Config) HTTPOptions() []transport.HTTPOption {
	opts := []transport.HTTPOption{
		transport.WithPath(c.HTTP.Path),
		transport.WithMaxBodySize(c.HTTP.MaxBodySize),
	}
	if c.HTTP.ReadTimeout > 0 {
		opts = append(opts, transport.WithReadTimeout(time.Duration(c.HTTP.ReadTimeout)))
	}
	if c.HTTP.WriteTimeout > 0 {
		opts = append(opts, transport.WithWriteTimeout(time.Duration(c.HTTP.WriteTimeout)))
	}
	if c.HTTP.ShutdownTimeout > 0 {
		opts = append(opts, transport.WithShutdownTimeout(time.Duration(c.HTTP.ShutdownTimeout)))
	}
	if len(c.HTTP.CORSOrigins) > 0 {
		cors := transport.DefaultCORSConfig()
		cors.AllowOrigins = c.HTTP.CORSOrigins
		opts = append(opts, transport.WithCORS(cors))
	}
	return opts
}
