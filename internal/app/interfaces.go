package app

import (
	"github.com/robfig/cron/v3"
	"github.com/talkincode/autoaccept/config"
	"github.com/talkincode/autoaccept/internal/notify"
	"github.com/talkincode/autoaccept/internal/session"
	"github.com/talkincode/autoaccept/internal/supervisor"
)

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides housekeeping scheduling
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// SessionProvider provides the owner session components
type SessionProvider interface {
	Store() *session.Store
	Notifier() *notify.BusNotifier
	Supervisor() *supervisor.Supervisor
}

// AppContext combines the providers the entry point wires front-ends from.
type AppContext interface {
	ConfigProvider
	SchedulerProvider
	SessionProvider

	Init() error
	Release()
}
