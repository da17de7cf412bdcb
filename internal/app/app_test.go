package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/autoaccept/config"
	"github.com/talkincode/autoaccept/internal/domain"
)

func TestSummarize(t *testing.T) {
	open := *domain.NewOwnerSession(1)
	open.State = domain.StateOpen
	open.Policy.Enabled = true
	retrying := *domain.NewOwnerSession(2)
	retrying.ReconnectAttempts = 2

	s := summarize([]domain.OwnerSession{open, retrying, *domain.NewOwnerSession(3)})
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.States[domain.StateOpen])
	assert.Equal(t, 2, s.States[domain.StateDisconnected])
	assert.Equal(t, 1, s.Enabled)
	assert.Equal(t, 1, s.Reconnecting)
}

func TestCronParserAcceptsDescriptors(t *testing.T) {
	for _, expr := range []string{"@every 30s", "@every 1m", "*/10 * * * * *"} {
		sched, err := cronParser.Parse(expr)
		require.NoError(t, err, expr)
		now := time.Now()
		assert.True(t, sched.Next(now).After(now))
	}
}

func TestNewLoggerWithFile(t *testing.T) {
	cfg := config.Default()
	cfg.System.Workdir = t.TempDir()
	cfg.Logger.FileEnable = true
	cfg.Logger.Filename = ""

	logger, err := newLogger(cfg)
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()
	assert.FileExists(t, filepath.Join(cfg.GetLogDir(), "autoaccept.log"))
}

func TestInitAndRelease(t *testing.T) {
	cfg := config.Default()
	cfg.System.Workdir = t.TempDir()
	cfg.WhatsApp.SessionPath = filepath.Join(cfg.System.Workdir, "sessions")

	a := NewApplication(cfg)
	require.NoError(t, a.Init())
	defer a.Release()

	assert.NotNil(t, a.Store())
	assert.NotNil(t, a.Notifier())
	assert.NotNil(t, a.Supervisor())
	assert.Len(t, a.Scheduler().Entries(), 2)
	assert.Empty(t, a.Supervisor().Sessions())
}
