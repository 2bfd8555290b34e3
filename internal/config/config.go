// Package config reads service settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Log output formats.
const (
	LogFormatText   = "text"
	LogFormatJSON   = "json"
	LogFormatLogfmt = "logfmt"
)

// minSecretLength is the shortest HS256 secret accepted.
const minSecretLength = 32

type Config struct {
	DatabaseDriver   string
	DatabaseURL      string
	Port             string
	JWTSecret        string
	JWTPublicKeyFile string
	JWTAudience      string
	JWTIssuer        string
	TagsAutoPrune    bool
	RateLimit        int
	RateWindow       time.Duration
	RequestTimeout   time.Duration
	LogLevel         log.Level
	LogFormat        string
	// TrustedProxies are the peers whose X-Forwarded-For header is believed.
	TrustedProxies   []netip.Prefix

	logLevelErr       error
	trustedProxiesErr error
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("SERVER_PORT_TASKS", "8080")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("TAGS_AUTO_PRUNE", false)
	v.SetDefault("RATE_LIMIT", 100)
	v.SetDefault("RATE_WINDOW", time.Minute)
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", LogFormatText)
}

// Load reads the given .env files (".env" when none are named) into the
// process environment, then resolves every setting. Missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		DatabaseDriver:   v.GetString("DATABASE_DRIVER"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		Port:             v.GetString("SERVER_PORT_TASKS"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTPublicKeyFile: v.GetString("JWT_PUBLIC_KEY_FILE"),
		JWTAudience:      v.GetString("JWT_AUDIENCE"),
		JWTIssuer:        v.GetString("JWT_ISSUER"),
		TagsAutoPrune:    v.GetBool("TAGS_AUTO_PRUNE"),
		RateLimit:        v.GetInt("RATE_LIMIT"),
		RateWindow:       v.GetDuration("RATE_WINDOW"),
		RequestTimeout:   v.GetDuration("REQUEST_TIMEOUT"),
		LogFormat:        v.GetString("LOG_FORMAT"),
	}
	cfg.LogLevel, cfg.logLevelErr = log.ParseLevel(v.GetString("LOG_LEVEL"))
	cfg.TrustedProxies, cfg.trustedProxiesErr = parseTrustedProxies(v.GetString("TRUSTED_PROXIES"))
	if cfg.DatabaseURL == "" && cfg.DatabaseDriver == DriverPostgres && v.GetString("POSTGRES_DB") != "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			v.GetString("POSTGRES_HOST"), v.GetString("POSTGRES_USER"), v.GetString("POSTGRES_PASSWORD"),
			v.GetString("POSTGRES_DB"), v.GetString("POSTGRES_PORT"), v.GetString("POSTGRES_SSLMODE"))
	}
	return cfg, nil
}

// parseTrustedProxies reads a comma separated list of CIDRs or bare addresses.
func parseTrustedProxies(raw string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			prefix, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// ValidateDatabase checks only what is needed to open the database.
func (c *Config) ValidateDatabase() error {
	return errors.Join(c.databaseErrors()...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	errs := c.databaseErrors()
	if c.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT_TASKS must be set"))
	}
	if c.JWTPublicKeyFile == "" {
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET or JWT_PUBLIC_KEY_FILE must be set"))
		} else if len(c.JWTSecret) < minSecretLength {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
		}
	}
	if c.RateLimit <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT must be positive"))
	}
	if c.RateWindow <= 0 {
		errs = append(errs, errors.New("RATE_WINDOW must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.logLevelErr != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", c.logLevelErr))
	}
	if c.trustedProxiesErr != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", c.trustedProxiesErr))
	}
	switch c.LogFormat {
	case "", LogFormatText, LogFormatJSON, LogFormatLogfmt:
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text, json or logfmt, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func (c *Config) databaseErrors() []error {
	var errs []error
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be %s or %s, got %q", DriverPostgres, DriverSQLite, c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL or POSTGRES_DB must be set"))
	}
	return errs
}
