package config_test

import (
	"testing"
	"time"

	"github.com/jovywahba/jovnumbergames/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.CodeLen)
	assert.Equal(t, 20, cfg.TurnTimeSec)
	assert.Equal(t, 20*time.Minute, cfg.RoomTTL)
	assert.Equal(t, 200, cfg.HistoryCap)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 120*time.Millisecond, cfg.RetryBase)
	assert.Equal(t, 80*time.Millisecond, cfg.RetryJitter)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CODE_LEN", "4")
	t.Setenv("TURN_TIME_SEC", "not-a-number")
	t.Setenv("ROOM_TTL_MINUTES", "5")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 4, cfg.CodeLen)
	assert.Equal(t, 20, cfg.TurnTimeSec)
	assert.Equal(t, 5*time.Minute, cfg.RoomTTL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "unknown driver", env: map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "sqlite"}},
		{name: "code too long", env: map[string]string{"JWT_SECRET": "s", "CODE_LEN": "11"}},
		{name: "zero turn time", env: map[string]string{"JWT_SECRET": "s", "TURN_TIME_SEC": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
