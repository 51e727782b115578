package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ai-workflows/backend/internal/logging"
)

// Extraction strategies.
const (
	StrategyBalanced = "balanced"
	StrategyOuter    = "outer"
)

// Config holds the configuration for the application.
type Config struct {
	Environment string `mapstructure:"environment"`
	HTTP        struct {
		Port            int           `mapstructure:"port"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`
	Upstream   UpstreamConfig `mapstructure:"upstream"`
	Extraction struct {
		Strategy string `mapstructure:"strategy"`
	} `mapstructure:"extraction"`
	CORS struct {
		AllowOrigins []string `mapstructure:"allow_origins"`
	} `mapstructure:"cors"`
	Auth struct {
		Enabled  bool   `mapstructure:"enabled"`
		Issuer   string `mapstructure:"issuer"`
		ClientID string `mapstructure:"client_id"`

		// RequiredScope, when set, must appear in the token's scp or scope claim.
		RequiredScope string `mapstructure:"required_scope"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Log logging.Config `mapstructure:"log"`
}

// UpstreamConfig describes the chat-completion collaborator.
type UpstreamConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Token       string        `mapstructure:"token"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	JSONMode    bool          `mapstructure:"json_mode"`
	Breaker     struct {
		Enabled     bool          `mapstructure:"enabled"`
		MaxFailures uint32        `mapstructure:"max_failures"`
		OpenTimeout time.Duration `mapstructure:"open_timeout"`
	} `mapstructure:"breaker"`
}

// DefaultAllowOrigins is the browser origin allow-list used when none is
// configured.
var DefaultAllowOrigins = []string{
	"http://localhost:3001",
	"http://localhost:3000",
	"https://*.isbuildingluma.com",
	"https://*.lumahealthstaging.com",
	"https://*.lumahealth.io",
}

// LoadConfig loads the configuration from an optional dotenv file, an
// optional config file and the environment, in increasing precedence.
// An empty envFile loads ./.env when present; an empty configFile searches
// for config.yaml in . and ./config.
func LoadConfig(envFile, configFile string) (*Config, error) {
	if err := loadDotenv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names used by existing deployments
	_ = v.BindEnv("upstream.api_key", "UPSTREAM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("upstream.token", "UPSTREAM_TOKEN", "TOKEN")
	_ = v.BindEnv("http.port", "HTTP_PORT", "PORT")
	_ = v.BindEnv("auth.issuer", "AUTH_ISSUER")
	_ = v.BindEnv("auth.client_id", "AUTH_CLIENT_ID")
	_ = v.BindEnv("auth.required_scope", "AUTH_REQUIRED_SCOPE")
	_ = v.BindEnv("tls.cert_file", "TLS_CERT_FILE")
	_ = v.BindEnv("tls.key_file", "TLS_KEY_FILE")
	_ = v.BindEnv("tls.hostnames", "TLS_HOSTNAMES")
	_ = v.BindEnv("log.format", "LOG_FORMAT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Upstream.BaseURL), "/")
	cfg.Extraction.Strategy = strings.ToLower(strings.TrimSpace(cfg.Extraction.Strategy))
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
		if cfg.IsProduction() {
			cfg.Log.Format = "json"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first configuration problem that would make the
// service unusable.
func (c *Config) Validate() error {
	if c.Upstream.APIKey == "" {
		return errors.New("upstream api key is required (OPENAI_API_KEY)")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid upstream base url %q", c.Upstream.BaseURL)
	}
	if c.Upstream.Model == "" {
		return errors.New("upstream model is required")
	}
	if c.Upstream.Temperature < 0 || c.Upstream.Temperature > 2 {
		return fmt.Errorf("upstream temperature %v out of range [0, 2]", c.Upstream.Temperature)
	}
	switch c.Extraction.Strategy {
	case StrategyBalanced, StrategyOuter:
	default:
		return fmt.Errorf("unknown extraction strategy %q", c.Extraction.Strategy)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.Auth.Enabled && c.Auth.Issuer == "" {
		return errors.New("auth enabled but no issuer configured")
	}
	return nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.port", 5000)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 90*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("upstream.base_url", "https://api.openai.com/v1")
	v.SetDefault("upstream.model", "gpt-4o")
	v.SetDefault("upstream.temperature", 0.2)
	v.SetDefault("upstream.timeout", 60*time.Second)
	v.SetDefault("upstream.json_mode", false)
	v.SetDefault("upstream.breaker.enabled", false)
	v.SetDefault("upstream.breaker.max_failures", 5)
	v.SetDefault("upstream.breaker.open_timeout", 30*time.Second)

	v.SetDefault("extraction.strategy", StrategyBalanced)
	v.SetDefault("cors.allow_origins", DefaultAllowOrigins)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("tls.enable", false)

	v.SetDefault("log.level", "info")
}

func loadDotenv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}
