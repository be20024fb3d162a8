package config

import (
	"testing"
	"time"

	"attendance.service/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "none", cfg.Notifier)
	assert.Equal(t, "Asia/Bangkok", cfg.Location().String())

	ttls := cfg.TTLs()
	assert.Equal(t, 5*time.Minute, ttls[string(model.DatasetRoster)])
	assert.Equal(t, time.Minute, ttls[string(model.DatasetSessions)])
	assert.Equal(t, 30*time.Second, ttls[string(model.DatasetLedger)])
	assert.Equal(t, 2*time.Minute, ttls[string(model.DatasetStats)])
	assert.Equal(t, time.Hour, cfg.TTLEmergency)

	limits := cfg.Limits()
	assert.Equal(t, 50, limits.PerMinute)
	assert.Equal(t, 2500, limits.PerHour)
	assert.Equal(t, 5, limits.Burst)
	assert.Equal(t, 5*time.Second, limits.BurstReset)
	assert.Empty(t, cfg.AutoCheckoutExempt)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TTL_LEDGER", "45s")
	t.Setenv("RATE_BURST", "8")
	t.Setenv("AUTO_CHECKOUT_HOUR", "18")
	t.Setenv("AUTO_CHECKOUT_MINUTE", "30")
	t.Setenv("AUTO_CHECKOUT_EXEMPT", "Somchai Jones,Anna")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("IS_LOCAL_DEV", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.TTLLedger)
	assert.Equal(t, 8, cfg.Limits().Burst)
	assert.Equal(t, 18, cfg.AutoCheckoutHour)
	assert.Equal(t, 30, cfg.AutoCheckoutMinute)
	assert.Equal(t, []string{"Somchai Jones", "Anna"}, cfg.AutoCheckoutExempt)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.True(t, cfg.IsLocalDev)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"timezone":     {"TIMEZONE", "Mars/Olympus"},
		"store":        {"STORE", "excel"},
		"notifier":     {"NOTIFIER", "pigeon"},
		"cutoff":       {"AUTO_CHECKOUT_HOUR", "24"},
		"sheets no id": {"STORE", "sheets"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
