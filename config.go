package auth

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds auth options. Implemented by EnvConfig or by the host
// application's own configuration layer.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetTokenTTL() time.Duration
	GetRegistryTimeout() time.Duration
	GetStoreTimeout() time.Duration
	GetBcryptCost() int
	GetAdminRoleCode() string
	GetContextKey() string
}

// EnvConfig is a Config sourced from environment variables.
type EnvConfig struct {
	SigningKey      string        `env:"AUTH_SIGNING_KEY"`
	Issuer          string        `env:"AUTH_ISSUER" envDefault:"minuet"`
	Audience        []string      `env:"AUTH_AUDIENCE" envSeparator:","`
	TokenTTL        time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"1h"`
	RegistryTimeout time.Duration `env:"AUTH_REGISTRY_TIMEOUT" envDefault:"2s"`
	StoreTimeout    time.Duration `env:"AUTH_STORE_TIMEOUT" envDefault:"5s"`
	BcryptCost      int           `env:"AUTH_BCRYPT_COST" envDefault:"14"`
	AdminRoleCode   string        `env:"AUTH_ADMIN_ROLE" envDefault:"ADMIN"`
	ContextKey      string        `env:"AUTH_CONTEXT_KEY" envDefault:"auth_token"`
}

// NewEnvConfig parses configuration from the process environment.
func NewEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse auth environment config")
	}

	if cfg.SigningKey == "" {
		return nil, goerrors.New("AUTH_SIGNING_KEY is required", goerrors.CategoryValidation)
	}

	return cfg, nil
}

func (c *EnvConfig) GetSigningKey() string             { return c.SigningKey }
func (c *EnvConfig) GetIssuer() string                 { return c.Issuer }
func (c *EnvConfig) GetAudience() []string             { return c.Audience }
func (c *EnvConfig) GetTokenTTL() time.Duration        { return c.TokenTTL }
func (c *EnvConfig) GetRegistryTimeout() time.Duration { return c.RegistryTimeout }
func (c *EnvConfig) GetStoreTimeout() time.Duration    { return c.StoreTimeout }
func (c *EnvConfig) GetBcryptCost() int                { return c.BcryptCost }
func (c *EnvConfig) GetAdminRoleCode() string          { return c.AdminRoleCode }
func (c *EnvConfig) GetContextKey() string             { return c.ContextKey }

var _ Config = (*EnvConfig)(nil)
