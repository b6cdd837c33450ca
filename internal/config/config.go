package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// =============================================================================
// Wizard Gateway Configuration with Environment Overrides
// =============================================================================

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sync      SyncConfig      `yaml:"sync"`
	Device    DeviceConfig    `yaml:"device"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	Redis     RedisConfig     `yaml:"redis"`
}

type ServerConfig struct {
	Port             string   `yaml:"port"`
	Env              string   `yaml:"env"`
	Interface        string   `yaml:"interface"`
	ReadTimeoutSec   int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"`
	IdleTimeoutSec   int      `yaml:"idle_timeout_sec"`
	ShutdownTimeout  int      `yaml:"shutdown_timeout_sec"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
	LocalOnly        bool     `yaml:"local_only"`
}

// DispatchConfig holds dispatcher settings read from YAML and env.
// cmd/wizard-server does not pass them on: the dispatcher runs with
// dispatch.DefaultConfig().
type DispatchConfig struct {
	ShellEnabled  bool     `yaml:"shell_enabled"`
	StrictAllow   bool     `yaml:"strict_allowlist"`
	AllowlistOnly []string `yaml:"allowlist"`
}

// GatewayConfig controls the completion gateway's budgets, limits and
// backend endpoints. LocalModel is read but not consumed; the local backend
// names its model itself.
type GatewayConfig struct {
	DailyBudgetUSD      float64 `yaml:"daily_budget_usd"`
	MonthlyBudgetUSD    float64 `yaml:"monthly_budget_usd"`
	MaxRequestsPerDay   int     `yaml:"max_requests_per_day"`
	MaxTokensPerRequest int     `yaml:"max_tokens_per_request"`
	MaxSafeCloudTokens  int     `yaml:"max_safe_cloud_tokens"`
	LocalEnabled        bool    `yaml:"local_enabled"`
	LocalEndpoint       string  `yaml:"local_endpoint"`
	LocalModel          string  `yaml:"local_model"`
	CloudEnabled        bool    `yaml:"cloud_enabled"`
	CloudEndpoint       string  `yaml:"cloud_endpoint"`
	SanityCheckEnabled  bool    `yaml:"sanity_check_enabled"`
}

// RateLimitConfig holds rate-limiter settings; the per-tier table lives in
// internal/ratelimit. RedisBacked/RedisAddr select the optional Redis block
// store. Enabled is read but not consulted: the limiter always runs.
type RateLimitConfig struct {
	Enabled    bool   `yaml:"enabled"`
	RedisBacked bool   `yaml:"redis_backed"`
	RedisAddr  string `yaml:"redis_addr"`
}

// SyncConfig controls the external sync orchestrator's event queue.
type SyncConfig struct {
	DebounceSeconds int `yaml:"debounce_seconds"`
	BatchSize       int `yaml:"batch_size"`
	MaxRetries      int `yaml:"max_retries"`
	Workers         int `yaml:"workers"`
}

// DeviceConfig controls device pairing and state storage. PairingCodeTTLSec
// is read but not passed to the pairing service, which applies its own
// 5-minute default.
type DeviceConfig struct {
	PairingCodeTTLSec int    `yaml:"pairing_code_ttl_sec"`
	WizardAddress     string `yaml:"wizard_address"`
	StatePath         string `yaml:"state_path"`
}

// PubSubConfig for optional Google Cloud Pub/Sub event ingestion.
type PubSubConfig struct {
	ProjectID string `yaml:"project_id"`
	TopicID   string `yaml:"topic_id"`
	Enabled   bool   `yaml:"enabled"`
}

// RedisConfig is read from YAML and env but not consumed; the rate
// limiter's Redis address comes from RateLimitConfig.RedisAddr.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// =============================================================================
// Immutable-snapshot store
//
// Design Note §9: config is loaded once into a Config value and never mutated
// in place. Store.Replace swaps the whole pointer under a write lock so every
// reader sees a fully-consistent snapshot, never a partially-applied update.
// =============================================================================

type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore wraps a loaded Config in a snapshot store.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Snapshot returns the current config. The returned pointer is never mutated
// after Replace swaps it in, so callers may hold onto it safely.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace atomically swaps in a new config snapshot.
func (s *Store) Replace(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Load reads path (if present), applies env overrides and defaults, and
// returns a ready Store. Call sites construct this explicitly at startup;
// there is no package-level singleton.
func Load(path string) (*Store, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		slog.Warn("config: failed to load config file, using defaults", "error", err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.applyEnvOverrides()
	return NewStore(cfg), nil
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Server
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("WIZARD_ENV", c.Server.Env)
	c.Server.Interface = getEnv("WIZARD_INTERFACE", c.Server.Interface)
	c.Server.LocalOnly = getEnvBool("WIZARD_LOCAL_ONLY", c.Server.LocalOnly)

	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_IDLE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.IdleTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeout = v
	}
	if origins := getEnv("CORS_ALLOW_ORIGINS", ""); origins != "" {
		c.Server.CORSAllowOrigins = splitCSV(origins)
	}

	// Dispatch
	c.Dispatch.ShellEnabled = getEnvBool("DISPATCH_SHELL_ENABLED", c.Dispatch.ShellEnabled)
	c.Dispatch.StrictAllow = getEnvBool("DISPATCH_STRICT_ALLOWLIST", c.Dispatch.StrictAllow)
	if al := getEnv("DISPATCH_ALLOWLIST", ""); al != "" {
		c.Dispatch.AllowlistOnly = splitCSV(al)
	}

	// Gateway
	if v := getEnvFloat("GATEWAY_DAILY_BUDGET_USD", 0); v > 0 {
		c.Gateway.DailyBudgetUSD = v
	}
	if v := getEnvFloat("GATEWAY_MONTHLY_BUDGET_USD", 0); v > 0 {
		c.Gateway.MonthlyBudgetUSD = v
	}
	if v := getEnvInt("GATEWAY_MAX_REQUESTS_PER_DAY", 0); v > 0 {
		c.Gateway.MaxRequestsPerDay = v
	}
	if v := getEnvInt("GATEWAY_MAX_TOKENS_PER_REQUEST", 0); v > 0 {
		c.Gateway.MaxTokensPerRequest = v
	}
	if v := getEnvInt("GATEWAY_MAX_SAFE_CLOUD_TOKENS", 0); v > 0 {
		c.Gateway.MaxSafeCloudTokens = v
	}
	c.Gateway.LocalEnabled = getEnvBool("GATEWAY_LOCAL_ENABLED", c.Gateway.LocalEnabled)
	c.Gateway.LocalEndpoint = getEnv("GATEWAY_LOCAL_ENDPOINT", c.Gateway.LocalEndpoint)
	c.Gateway.LocalModel = getEnv("GATEWAY_LOCAL_MODEL", c.Gateway.LocalModel)
	c.Gateway.CloudEnabled = getEnvBool("GATEWAY_CLOUD_ENABLED", c.Gateway.CloudEnabled)
	c.Gateway.CloudEndpoint = getEnv("GATEWAY_CLOUD_ENDPOINT", c.Gateway.CloudEndpoint)
	c.Gateway.SanityCheckEnabled = getEnvBool("GATEWAY_SANITY_CHECK_ENABLED", c.Gateway.SanityCheckEnabled)

	// Rate limit
	c.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RedisBacked = getEnvBool("RATE_LIMIT_REDIS_BACKED", c.RateLimit.RedisBacked)
	c.RateLimit.RedisAddr = getEnv("RATE_LIMIT_REDIS_ADDR", c.RateLimit.RedisAddr)

	// Sync
	if v := getEnvInt("SYNC_DEBOUNCE_SECONDS", 0); v > 0 {
		c.Sync.DebounceSeconds = v
	}
	if v := getEnvInt("SYNC_BATCH_SIZE", 0); v > 0 {
		c.Sync.BatchSize = v
	}
	if v := getEnvInt("SYNC_MAX_RETRIES", 0); v > 0 {
		c.Sync.MaxRetries = v
	}
	if v := getEnvInt("SYNC_WORKERS", 0); v > 0 {
		c.Sync.Workers = v
	}

	// Device
	if v := getEnvInt("DEVICE_PAIRING_CODE_TTL_SEC", 0); v > 0 {
		c.Device.PairingCodeTTLSec = v
	}
	c.Device.WizardAddress = getEnv("WIZARD_ADDRESS", c.Device.WizardAddress)
	c.Device.StatePath = getEnv("VAULT_ROOT", c.Device.StatePath)

	// Pub/Sub
	c.PubSub.ProjectID = getEnv("GCP_PROJECT_ID", c.PubSub.ProjectID)
	c.PubSub.TopicID = getEnv("PUBSUB_TOPIC_ID", c.PubSub.TopicID)
	c.PubSub.Enabled = getEnvBool("PUBSUB_ENABLED", c.PubSub.Enabled)

	// Redis
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	if v := getEnvInt("REDIS_DB", -1); v >= 0 {
		c.Redis.DB = v
	}

	c.applyDefaults()
}

// applyDefaults sets sensible defaults for zero-valued config fields.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
	if len(c.Server.CORSAllowOrigins) == 0 {
		c.Server.CORSAllowOrigins = []string{"*"}
	}
	if c.Gateway.DailyBudgetUSD == 0 {
		c.Gateway.DailyBudgetUSD = 10.0
	}
	if c.Gateway.MonthlyBudgetUSD == 0 {
		c.Gateway.MonthlyBudgetUSD = 200.0
	}
	if c.Gateway.MaxRequestsPerDay == 0 {
		c.Gateway.MaxRequestsPerDay = 100
	}
	if c.Gateway.MaxTokensPerRequest == 0 {
		c.Gateway.MaxTokensPerRequest = 4096
	}
	if c.Gateway.MaxSafeCloudTokens == 0 {
		c.Gateway.MaxSafeCloudTokens = 6000
	}
	if c.Gateway.LocalEndpoint == "" {
		c.Gateway.LocalEndpoint = "http://127.0.0.1:11434"
	}
	if c.Gateway.LocalModel == "" {
		c.Gateway.LocalModel = "devstral-small-2"
	}
	if c.Sync.DebounceSeconds == 0 {
		c.Sync.DebounceSeconds = 30
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 50
	}
	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = 3
	}
	if c.Sync.Workers == 0 {
		c.Sync.Workers = 4
	}
	if c.Device.PairingCodeTTLSec == 0 {
		c.Device.PairingCodeTTLSec = 300
	}
	if c.Device.StatePath == "" {
		c.Device.StatePath = "./vault"
	}
	if c.PubSub.TopicID == "" {
		c.PubSub.TopicID = "wizard-sync-events"
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// =============================================================================
// Convenience Methods
// =============================================================================

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) GetPort() string {
	if c.Server.Port == "" {
		return "8080"
	}
	return c.Server.Port
}
