package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.Admission.Password = "pw"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":5314", cfg.Server.Addr)
	assert.Equal(t, "server-fueldata.csv", cfg.Resource.File)
	assert.Equal(t, []string{"192.168.50.1"}, cfg.Admission.AllowedOrigins)
	assert.Equal(t, 5, cfg.Lockout.Threshold)
	assert.Zero(t, cfg.Lockout.Window)
	assert.Equal(t, 5, cfg.Availability.Retries)
	assert.Equal(t, time.Second, cfg.Availability.Delay)
	assert.Equal(t, "server.log", cfg.Audit.File)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestDefault_NeedsPassword(t *testing.T) {
	assert.Error(t, Default().Validate())
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":        func(c *Config) { c.Server.Addr = "" },
		"file with dir":     func(c *Config) { c.Resource.File = "../x.csv" },
		"empty file":        func(c *Config) { c.Resource.File = "" },
		"no username":       func(c *Config) { c.Admission.Username = "" },
		"password and hash": func(c *Config) { c.Admission.PasswordHash = "$argon2id$..." },
		"zero threshold":    func(c *Config) { c.Lockout.Threshold = 0 },
		"negative window":   func(c *Config) { c.Lockout.Window = -time.Second },
		"negative retries":  func(c *Config) { c.Availability.Retries = -1 },
		"negative delay":    func(c *Config) { c.Availability.Delay = -time.Second },
		"bad log format":    func(c *Config) { c.Log.Format = "xml" },
		"bad backend":       func(c *Config) { c.Storage.Backend = "crdt" },
		"cluster no nodes": func(c *Config) {
			c.Storage.Backend = "redis"
			c.Storage.Redis.Cluster = true
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ZeroRetriesAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Availability.Retries = 0
	assert.NoError(t, cfg.Validate())
}

func TestMarkerPath(t *testing.T) {
	r := ResourceConfig{Dir: "/srv/data", File: "f.csv"}
	assert.Equal(t, "/srv/data/f.csv.lock", r.MarkerPath())

	r.Marker = "writer.busy"
	assert.Equal(t, "/srv/data/writer.busy", r.MarkerPath())

	r.Marker = "/tmp/abs.lock"
	assert.Equal(t, "/tmp/abs.lock", r.MarkerPath())
}

func TestLoadFile_YAMLPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fuelgate.yaml")
	data := `server:
  addr: ":9999"
admission:
  allowed_origins: ["10.0.0.0/8", "192.168.50.1"]
  password: "pw"
availability:
  delay: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.50.1"}, cfg.Admission.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.Availability.Delay)
	// Unset fields keep defaults.
	assert.Equal(t, 5, cfg.Availability.Retries)
	assert.Equal(t, "admin", cfg.Admission.Username)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fuelgate.json")
	data := `{"lockout": {"threshold": 3, "window": "10m"}, "storage": {"backend": "redis", "redis": {"port": 6380}}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Lockout.Threshold)
	assert.Equal(t, 10*time.Minute, cfg.Lockout.Window)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, 6380, cfg.Storage.Redis.Port)
	assert.Equal(t, "localhost", cfg.Storage.Redis.Host)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fuelgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7000\"\n"), 0o644))

	t.Setenv("FUELGATE_SERVER_ADDR", ":7001")
	t.Setenv("FUELGATE_ADMISSION_PASSWORD", "from-env")
	t.Setenv("FUELGATE_AVAILABILITY_RETRIES", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Admission.Password)
	assert.Equal(t, 2, cfg.Availability.Retries)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("FUELGATE_LOG_LEVEL", "debug")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":5314", cfg.Server.Addr)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = LoadFile("")
	assert.Error(t, err)
}

func TestWriteExample_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fuelgate.yaml")
	require.NoError(t, WriteExample(path, ""))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
	assert.Equal(t, "change-me", cfg.Admission.Password)
	assert.NoError(t, cfg.Validate())
}

func TestWriteExample_WithHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fuelgate.yaml")
	hash := "$argon2id$v=19$m=65536,t=1,p=2$c2FsdA$aGFzaA"
	require.NoError(t, WriteExample(path, hash))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, hash, cfg.Admission.PasswordHash)
	assert.Empty(t, cfg.Admission.Password)
	assert.NoError(t, cfg.Validate())
}
