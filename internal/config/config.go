// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application settings loaded from the config file and environment.
type Config struct {
	BotToken    string   `mapstructure:"bot_token" validate:"required"`
	RPCList     []string `mapstructure:"rpc_list" validate:"required,min=1,dive,url"`
	DatabaseURL string   `mapstructure:"database_url" validate:"required"`

	JupiterURL     string        `mapstructure:"jupiter_url" validate:"required,url"`
	JupiterAPIKey  string        `mapstructure:"jupiter_api_key"`
	TokenListURL   string        `mapstructure:"token_list_url" validate:"required,url"`
	DexScreenerURL string        `mapstructure:"dexscreener_url" validate:"required,url"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps" validate:"gt=0"`
	HTTPTimeoutMS  int           `mapstructure:"http_timeout" validate:"gt=0"`
	HTTPTimeout    time.Duration `mapstructure:"-"`

	RedisURL string `mapstructure:"redis_url"`
	Workers  int    `mapstructure:"workers" validate:"gte=1"`
	HTTPAddr string `mapstructure:"http_addr"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	LogFile      string `mapstructure:"log_file"`

	// Keygen.sh configuration
	License            string `mapstructure:"license"`
	KeygenAccountID    string `mapstructure:"keygen_account_id"`
	KeygenProductToken string `mapstructure:"keygen_product_token"`
	KeygenProductID    string `mapstructure:"keygen_product_id"`
}

const (
	DefaultRPC            = "https://api.mainnet-beta.solana.com"
	DefaultJupiterURL     = "https://quote-api.jup.ag/v6"
	DefaultTokenListURL   = "https://token.jup.ag/strict"
	DefaultDexScreenerURL = "https://api.dexscreener.com/latest/dex"
	DefaultDatabaseURL    = "sqlite:///solsniper.db"
	DefaultWorkers        = 16
	DefaultRateLimitRPS   = 5
	DefaultHTTPTimeoutMS  = 30000
	DefaultLogFile        = "solsniper.log"

	envPrefix = "SOLSNIPER"
)

var validate = validator.New()

// LoadConfig reads configuration from path (optional) and the environment.
// A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	defaults := map[string]interface{}{
		"rpc_list":        []string{DefaultRPC},
		"database_url":    DefaultDatabaseURL,
		"jupiter_url":     DefaultJupiterURL,
		"token_list_url":  DefaultTokenListURL,
		"dexscreener_url": DefaultDexScreenerURL,
		"rate_limit_rps":  DefaultRateLimitRPS,
		"http_timeout":    DefaultHTTPTimeoutMS,
		"workers":         DefaultWorkers,
		"log_file":        DefaultLogFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config error: %w", err)
		}
	}

	bindEnvironment(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	if raw := v.GetString("rpc_list"); raw != "" && strings.Contains(raw, ",") {
		cfg.RPCList = splitList(raw)
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutMS) * time.Millisecond

	return &cfg, validateConfig(&cfg)
}

// bindEnvironment makes every known key overridable through SOLSNIPER_<KEY>.
// BOT_TOKEN, SOLANA_RPC and DATABASE_URL are honoured without prefix for
// compatibility with existing deployments.
func bindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("bot_token", envPrefix+"_BOT_TOKEN", "BOT_TOKEN")
	_ = v.BindEnv("rpc_list", envPrefix+"_RPC_LIST", "SOLANA_RPC")
	_ = v.BindEnv("database_url", envPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("redis_url", envPrefix+"_REDIS_URL", "REDIS_URL")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if clean := strings.TrimSpace(part); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: failed %q check", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return err
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if _, err := ParseDatabaseURL(cfg.DatabaseURL); err != nil {
		return err
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// DatabaseEngine names the store backend selected by database_url.
type DatabaseEngine string

const (
	EnginePostgres DatabaseEngine = "postgres"
	EngineSQLite   DatabaseEngine = "sqlite"
)

// DatabaseTarget is a parsed database_url.
type DatabaseTarget struct {
	Engine DatabaseEngine
	// DSN is passed to the driver as is: the full URL for postgres,
	// the file path for sqlite.
	DSN string
}

// ParseDatabaseURL picks the storage engine from the URL scheme.
func ParseDatabaseURL(raw string) (DatabaseTarget, error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DatabaseTarget{Engine: EnginePostgres, DSN: raw}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return DatabaseTarget{}, errors.New("sqlite database_url has no path")
		}
		return DatabaseTarget{Engine: EngineSQLite, DSN: path}, nil
	default:
		return DatabaseTarget{}, fmt.Errorf("unsupported database_url scheme: %q", raw)
	}
}
