package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "wa_", cfg.WhatsApp.SessionPrefix)
	assert.Equal(t, 5*time.Second, cfg.WhatsApp.ReconnectDelay)
	assert.Equal(t, 3, cfg.WhatsApp.MaxReconnectAttempts)
	assert.Equal(t, 30*time.Second, cfg.WhatsApp.QRCooldown)
	assert.Equal(t, 2*time.Second, cfg.WhatsApp.LeaveDelay)
	assert.Equal(t, 3*time.Second, cfg.Telegram.PairingDelay)
	assert.Error(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "autoaccept.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
telegram:
  token: "123:abc"
  owners: [1001, 1002]
whatsapp:
  session_path: /var/lib/autoaccept
  qr_cooldown: 45s
web:
  enabled: true
  port: 9000
  api_key: s3cret
`), 0o600))

	cfg, err := Load(file)

	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int64{1001, 1002}, cfg.Telegram.Owners)
	assert.Equal(t, "/var/lib/autoaccept", cfg.WhatsApp.SessionPath)
	assert.Equal(t, 45*time.Second, cfg.WhatsApp.QRCooldown)
	assert.Equal(t, 5*time.Second, cfg.WhatsApp.ReconnectDelay, "unset keys keep defaults")
	assert.True(t, cfg.Web.Enabled)
	assert.Equal(t, 9000, cfg.Web.Port)
	assert.Equal(t, "s3cret", cfg.Web.APIKey)
	assert.True(t, cfg.IsOwner(1002))
	assert.False(t, cfg.IsOwner(1003))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOACCEPT_TELEGRAM_TOKEN", "999:xyz")
	t.Setenv("AUTOACCEPT_TELEGRAM_OWNERS", "42, 43")
	t.Setenv("AUTOACCEPT_WHATSAPP_RECONNECT_DELAY", "1s")
	t.Setenv("AUTOACCEPT_WHATSAPP_MAX_RECONNECT_ATTEMPTS", "5")
	t.Setenv("AUTOACCEPT_WEB_ENABLED", "true")
	t.Setenv("AUTOACCEPT_WEB_PORT", "not-a-port")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "999:xyz", cfg.Telegram.Token)
	assert.Equal(t, []int64{42, 43}, cfg.Telegram.Owners)
	assert.Equal(t, time.Second, cfg.WhatsApp.ReconnectDelay)
	assert.Equal(t, 5, cfg.WhatsApp.MaxReconnectAttempts)
	assert.True(t, cfg.Web.Enabled)
	assert.Equal(t, 1818, cfg.Web.Port, "invalid values are ignored")
}

func TestEnvOverridesPairingAndPool(t *testing.T) {
	t.Setenv("AUTOACCEPT_WHATSAPP_PAIRING_TIMEOUT", "90s")
	t.Setenv("AUTOACCEPT_WHATSAPP_PAIRING_RETRIES", "5")
	t.Setenv("AUTOACCEPT_WHATSAPP_WORKER_POOL_SIZE", "8")
	t.Setenv("AUTOACCEPT_WEB_API_KEY", "from-env")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.WhatsApp.PairingTimeout)
	assert.Equal(t, 5, cfg.WhatsApp.PairingRetries)
	assert.Equal(t, 8, cfg.WhatsApp.WorkerPoolSize)
	assert.Equal(t, "from-env", cfg.Web.APIKey)
}

func TestValidateRequiresAPIKeyForWeb(t *testing.T) {
	cfg := Default()
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.Owners = []int64{1}
	require.NoError(t, cfg.Validate())

	cfg.Web.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg.Web.APIKey = "k"
	assert.NoError(t, cfg.Validate())
}

func TestEnvOwnersInvalid(t *testing.T) {
	t.Setenv("AUTOACCEPT_TELEGRAM_OWNERS", "42,abc")
	_, err := Load("")
	assert.Error(t, err)
}
