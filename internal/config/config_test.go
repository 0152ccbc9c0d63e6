package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, DriverMongo, cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Equal(t, PolicySingle, cfg.Sessions.MaterializationPolicy)
	assert.Equal(t, "UTC", cfg.Sessions.DefaultTimezone)
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, time.Hour, cfg.Sweeper.Interval)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  driver: memory
sessions:
  materialization_policy: per_plan
  default_timezone: Europe/Berlin
jwt:
  expiration: 30m
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("SERVER_ADDRESS", ":9999")
	t.Setenv("S3_BUCKET_NAME", "media")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, PolicyPerPlan, cfg.Sessions.MaterializationPolicy)
	assert.Equal(t, "Europe/Berlin", cfg.Sessions.DefaultTimezone)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "media", cfg.S3.BucketName)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Database: DatabaseConfig{Driver: DriverMemory},
		Store:    StoreConfig{Timeout: time.Second},
		Sessions: SessionsConfig{MaterializationPolicy: PolicySingle, DefaultTimezone: "UTC"},
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.Database.Driver = "sqlite"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Sessions.MaterializationPolicy = "weekly"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Sessions.DefaultTimezone = "Mars/Olympus"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Sweeper = SweeperConfig{Enabled: true}
	assert.Error(t, bad.Validate())
}
