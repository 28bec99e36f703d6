package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseDefaults(t *testing.T) {
	cfg, err := Base()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 9, cfg.WorkdayHours.StartHour)
	assert.Equal(t, 17, cfg.WorkdayHours.EndHour)
	assert.Equal(t, 48*time.Hour, cfg.Horizon)
	assert.Equal(t, 300*time.Millisecond, cfg.FeedDebounce)
	assert.Empty(t, cfg.ReminderLogURL)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, []int{10, 0}, cfg.Rules[0].LeadMinutes)
}

func TestBaseOverrides(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("WORKDAY_START_HOUR", "7")
	t.Setenv("WORKDAY_END_HOUR", "19")
	t.Setenv("REMINDER_LEADS_TASK", "15, 5,0")
	t.Setenv("PX_PER_MINUTE", "2")

	cfg, err := Base()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 7, cfg.WorkdayHours.StartHour)
	assert.Equal(t, []int{15, 5, 0}, cfg.Rules[0].LeadMinutes)
	assert.Equal(t, 2.0, cfg.Layout.PxPerMinute)
}

func TestBaseRejectsBadValues(t *testing.T) {
	for k, v := range map[string]string{
		"WORKDAY_END_HOUR":    "8",
		"REMINDER_LEADS_TASK": "10,soon",
		"TIMEZONE":            "Mars/Olympus",
		"PX_PER_MINUTE":       "-1",
	} {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			_, err := Base()
			assert.Error(t, err)
		})
	}
}

func TestFromEnvRequiresCookieKeys(t *testing.T) {
	t.Setenv("COOKIE_HASH_KEY", "")
	t.Setenv("COOKIE_BLOCK_KEY", "")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvReadsKeyFile(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "hash")
	require.NoError(t, os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(key)+"\n"), 0o600))

	t.Setenv("COOKIE_HASH_KEY", path)
	t.Setenv("COOKIE_BLOCK_KEY", base64.RawStdEncoding.EncodeToString(key))
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, key, cfg.CookieHashKey)
	assert.Equal(t, key, cfg.CookieBlockKey)
}

func TestFromEnvSelfLogNeedsToken(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	t.Setenv("COOKIE_HASH_KEY", key)
	t.Setenv("COOKIE_BLOCK_KEY", key)
	t.Setenv("BASE_URL", "http://crm.local:8080")
	t.Setenv("REMINDER_LOG_TOKEN", "")

	t.Setenv("REMINDER_LOG_URL", "")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.ReminderLogURL)

	t.Setenv("REMINDER_LOG_URL", "http://crm.local:8080/api/reminders/log")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "REMINDER_LOG_TOKEN")

	t.Setenv("REMINDER_LOG_TOKEN", "tok")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.ReminderToken)

	t.Setenv("REMINDER_LOG_TOKEN", "")
	t.Setenv("REMINDER_LOG_URL", "https://audit.example.com/reminders")
	_, err = FromEnv()
	assert.NoError(t, err)
}
