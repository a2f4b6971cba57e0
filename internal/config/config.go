// Package config loads Fuelgate's startup configuration from defaults, an
// optional YAML or JSON file, and FUELGATE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. FUELGATE_SERVER_ADDR.
const EnvPrefix = "FUELGATE"

// Config is the top-level configuration for a Fuelgate process. It is read
// once at startup and never reloaded.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Resource     ResourceConfig     `mapstructure:"resource"`
	Admission    AdmissionConfig    `mapstructure:"admission"`
	Lockout      LockoutConfig      `mapstructure:"lockout"`
	Availability AvailabilityConfig `mapstructure:"availability"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Log          LogConfig          `mapstructure:"log"`
	Storage      StorageConfig      `mapstructure:"storage"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// AdminAddr enables the metrics/health/stream listener. Empty disables it.
	AdminAddr string `mapstructure:"admin_addr"`
}

// ResourceConfig names the served file and its busy marker.
type ResourceConfig struct {
	Dir    string `mapstructure:"dir"`
	File   string `mapstructure:"file"`
	Marker string `mapstructure:"marker"` // empty means File + ".lock"
}

// MarkerPath returns the busy marker location.
func (r ResourceConfig) MarkerPath() string {
	if r.Marker == "" {
		return filepath.Join(r.Dir, r.File+".lock")
	}
	if filepath.IsAbs(r.Marker) {
		return r.Marker
	}
	return filepath.Join(r.Dir, r.Marker)
}

// AdmissionConfig holds the origin allowlist and the expected credential.
type AdmissionConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	PasswordHash   string   `mapstructure:"password_hash"`
	ConstantTime   bool     `mapstructure:"constant_time"`
	Realm          string   `mapstructure:"realm"`
}

// LockoutConfig controls the failed-attempt tracker.
type LockoutConfig struct {
	Threshold int `mapstructure:"threshold"`
	// Window expires an origin's failures this long after the first one.
	// Zero keeps them until restart.
	Window time.Duration `mapstructure:"window"`
}

// AvailabilityConfig is the busy-marker retry budget.
type AvailabilityConfig struct {
	Retries int           `mapstructure:"retries"`
	Delay   time.Duration `mapstructure:"delay"`
}

// AuditConfig locates the append-only audit log.
type AuditConfig struct {
	File string `mapstructure:"file"` // empty disables the file
}

// LogConfig controls operational logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// StorageConfig selects where failed-attempt counters live.
type StorageConfig struct {
	Backend         string             `mapstructure:"backend"`
	CleanupInterval time.Duration      `mapstructure:"cleanup_interval"`
	Redis           StorageRedisConfig `mapstructure:"redis"`
}

// StorageRedisConfig configures the redis backend.
type StorageRedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Cluster      bool          `mapstructure:"cluster"`
	ClusterNodes []string      `mapstructure:"cluster_nodes"`
	PoolSize     int           `mapstructure:"pool_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	Prefix       string        `mapstructure:"prefix"`
}

// Default returns a Config with sensible defaults. The password is left
// empty on purpose; Validate rejects a config without one.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":5314",
		},
		Resource: ResourceConfig{
			Dir:  ".",
			File: "server-fueldata.csv",
		},
		Admission: AdmissionConfig{
			AllowedOrigins: []string{"192.168.50.1"},
			Username:       "admin",
			Realm:          "Secure DCS Data",
		},
		Lockout: LockoutConfig{
			Threshold: 5,
		},
		Availability: AvailabilityConfig{
			Retries: 5,
			Delay:   time.Second,
		},
		Audit: AuditConfig{
			File: "server.log",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Backend:         "memory",
			CleanupInterval: time.Minute,
			Redis: StorageRedisConfig{
				Host:        "localhost",
				Port:        6379,
				PoolSize:    20,
				MaxRetries:  3,
				DialTimeout: 5 * time.Second,
				Prefix:      "fuelgate:attempts:",
			},
		},
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Resource.File == "" {
		return fmt.Errorf("resource.file is required")
	}
	if filepath.Base(c.Resource.File) != c.Resource.File {
		return fmt.Errorf("resource.file must be a bare file name, got %q", c.Resource.File)
	}
	if c.Admission.Username == "" {
		return fmt.Errorf("admission.username is required")
	}
	if c.Admission.Password == "" && c.Admission.PasswordHash == "" {
		return fmt.Errorf("one of admission.password or admission.password_hash is required")
	}
	if c.Admission.Password != "" && c.Admission.PasswordHash != "" {
		return fmt.Errorf("admission.password and admission.password_hash are mutually exclusive")
	}
	if c.Lockout.Threshold <= 0 {
		return fmt.Errorf("lockout.threshold must be positive, got %d", c.Lockout.Threshold)
	}
	if c.Lockout.Window < 0 {
		return fmt.Errorf("lockout.window must not be negative, got %s", c.Lockout.Window)
	}
	if c.Availability.Retries < 0 {
		return fmt.Errorf("availability.retries must not be negative, got %d", c.Availability.Retries)
	}
	if c.Availability.Delay < 0 {
		return fmt.Errorf("availability.delay must not be negative, got %s", c.Availability.Delay)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log.format %q, must be json or console", c.Log.Format)
	}
	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if c.Storage.Redis.Cluster && len(c.Storage.Redis.ClusterNodes) == 0 {
			return fmt.Errorf("storage.redis.cluster_nodes is required when cluster is enabled")
		}
		if !c.Storage.Redis.Cluster && c.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q, must be memory or redis", c.Storage.Backend)
	}
	return nil
}

// Load builds a Config from defaults, the file at path (skipped when path
// is empty) and FUELGATE_* environment variables, in increasing priority.
// Fields not specified anywhere retain their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a YAML or JSON config file and merges it with defaults
// and the environment.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Default(), fmt.Errorf("config path is required")
	}
	return Load(path)
}

// setDefaults registers every key so AutomaticEnv can find it during
// Unmarshal.
func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("server.addr", c.Server.Addr)
	v.SetDefault("server.admin_addr", c.Server.AdminAddr)
	v.SetDefault("resource.dir", c.Resource.Dir)
	v.SetDefault("resource.file", c.Resource.File)
	v.SetDefault("resource.marker", c.Resource.Marker)
	v.SetDefault("admission.allowed_origins", c.Admission.AllowedOrigins)
	v.SetDefault("admission.username", c.Admission.Username)
	v.SetDefault("admission.password", c.Admission.Password)
	v.SetDefault("admission.password_hash", c.Admission.PasswordHash)
	v.SetDefault("admission.constant_time", c.Admission.ConstantTime)
	v.SetDefault("admission.realm", c.Admission.Realm)
	v.SetDefault("lockout.threshold", c.Lockout.Threshold)
	v.SetDefault("lockout.window", c.Lockout.Window)
	v.SetDefault("availability.retries", c.Availability.Retries)
	v.SetDefault("availability.delay", c.Availability.Delay)
	v.SetDefault("audit.file", c.Audit.File)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
	v.SetDefault("storage.backend", c.Storage.Backend)
	v.SetDefault("storage.cleanup_interval", c.Storage.CleanupInterval)
	v.SetDefault("storage.redis.host", c.Storage.Redis.Host)
	v.SetDefault("storage.redis.port", c.Storage.Redis.Port)
	v.SetDefault("storage.redis.password", c.Storage.Redis.Password)
	v.SetDefault("storage.redis.db", c.Storage.Redis.DB)
	v.SetDefault("storage.redis.cluster", c.Storage.Redis.Cluster)
	v.SetDefault("storage.redis.cluster_nodes", c.Storage.Redis.ClusterNodes)
	v.SetDefault("storage.redis.pool_size", c.Storage.Redis.PoolSize)
	v.SetDefault("storage.redis.max_retries", c.Storage.Redis.MaxRetries)
	v.SetDefault("storage.redis.dial_timeout", c.Storage.Redis.DialTimeout)
	v.SetDefault("storage.redis.prefix", c.Storage.Redis.Prefix)
}

// WriteExample writes an example YAML config file to the given path.
// passwordHash, when set, replaces the plaintext password line.
func WriteExample(path, passwordHash string) error {
	credential := `  password: "change-me"`
	if passwordHash != "" {
		credential = fmt.Sprintf("  password_hash: %q", passwordHash)
	}
	example := `server:
  addr: ":5314"
  admin_addr: ""          # e.g. "127.0.0.1:9314" for /metrics, /healthz, /ws

resource:
  dir: "."
  file: "server-fueldata.csv"
  marker: ""              # defaults to <file>.lock

admission:
  allowed_origins:
    - "192.168.50.1"
  username: "admin"
` + credential + `
  constant_time: false
  realm: "Secure DCS Data"

lockout:
  threshold: 5
  window: 0s              # 0 keeps lockouts until restart

availability:
  retries: 5
  delay: 1s

audit:
  file: "server.log"

log:
  level: "info"
  format: "json"

storage:
  backend: "memory"       # memory or redis
  cleanup_interval: 1m
  redis:
    host: "localhost"
    port: 6379
    db: 0
    prefix: "fuelgate:attempts:"
`
	return os.WriteFile(path, []byte(example), 0o600)
}
