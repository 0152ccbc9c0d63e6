package app

import (
	"context"
	"testing"
	"time"

	"fittrainer/pro/internal/config"
	"fittrainer/pro/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() config.Config {
	return config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Metrics:  config.MetricsConfig{Enabled: true, Namespace: "fittrainer"},
		Store:    config.StoreConfig{Timeout: time.Second},
		Sessions: config.SessionsConfig{MaterializationPolicy: config.PolicySingle, DefaultTimezone: "Europe/Berlin"},
		Sweeper:  config.SweeperConfig{Enabled: true, Interval: time.Hour, SkipStaleSessions: true},
	}
}

func TestNew_Memory(t *testing.T) {
	a, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.NotNil(t, a.Registry)
	assert.NotNil(t, a.Repos)
	assert.NotNil(t, a.Sweeper)
	assert.Equal(t, "Europe/Berlin", a.Location.String())
	assert.Nil(t, a.Services.Auth, "no secret configured")
	assert.NotNil(t, a.Services.Sessions)

	res, err := a.Sweeper.SweepOnce(context.Background(), domain.NormalizeDate(time.Now()))
	require.NoError(t, err)
	assert.Zero(t, res.PlansExpired)
}

func TestNew_AuthAndMetricsToggles(t *testing.T) {
	cfg := memoryConfig()
	cfg.JWT = config.JWTConfig{Secret: "s3cret", Expiration: time.Hour}
	cfg.Metrics.Enabled = false

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.Services.Auth)
	assert.Nil(t, a.Registry)
	assert.NotNil(t, a.Metrics)
}

func TestNew_Rejects(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "sqlite"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Sessions.DefaultTimezone = "Mars/Olympus"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
