package app

import (
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/autoaccept/config"
	"github.com/talkincode/autoaccept/internal/autoaccept"
	"github.com/talkincode/autoaccept/internal/notify"
	"github.com/talkincode/autoaccept/internal/session"
	"github.com/talkincode/autoaccept/internal/supervisor"
	"github.com/talkincode/autoaccept/internal/timers"
	"github.com/talkincode/autoaccept/internal/whatsapp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Application struct {
	appConfig  *config.AppConfig
	sched      *cron.Cron
	store      *session.Store
	notifier   *notify.BusNotifier
	timers     *timers.OwnerTimers
	engine     *autoaccept.Engine
	supervisor *supervisor.Supervisor
}

var (
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

// Init sets up logging and builds the core components.
func (a *Application) Init() error {
	cfg := a.appConfig
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	a.store = session.NewStore()
	a.notifier = notify.NewBusNotifier(EventBus.New())
	a.timers = timers.New()

	wa := cfg.WhatsApp
	a.engine, err = autoaccept.NewEngine(a.store, a.notifier, a.timers, autoaccept.Options{
		LeaveDelay: wa.LeaveDelay,
		PoolSize:   wa.WorkerPoolSize,
	})
	if err != nil {
		return err
	}

	a.supervisor = supervisor.New(supervisor.Deps{
		Store:    a.store,
		Creds:    whatsapp.NewCredentialStore(wa.SessionPath, wa.SessionPrefix),
		Dialer:   &whatsapp.Dialer{PrintQR: wa.PrintQR, QROutput: os.Stdout},
		Notifier: a.notifier,
		Engine:   a.engine,
		Timers:   a.timers,
	}, supervisor.Options{
		ReconnectDelay:       wa.ReconnectDelay,
		MaxReconnectAttempts: wa.MaxReconnectAttempts,
		QRCooldown:           wa.QRCooldown,
		PairingTimeout:       wa.PairingTimeout,
		PairingRetries:       wa.PairingRetries,
	})

	a.initJob()
	zap.L().Info("application initialized",
		zap.String("appid", cfg.System.Appid),
		zap.String("session_path", wa.SessionPath),
		zap.Int("owners", len(cfg.Telegram.Owners)))
	return nil
}

func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if cfg.System.Debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapConfig.OutputPaths = []string{"stdout"}

	if !cfg.Logger.FileEnable {
		logger, err := zapConfig.Build(zap.AddCaller())
		return logger, errors.Wrap(err, "build logger")
	}

	filename := cfg.Logger.Filename
	if filename == "" {
		filename = filepath.Join(cfg.GetLogDir(), "autoaccept.log")
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, errors.Wrap(err, "create log dir")
	}
	rotator := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
	}
	core := zapcore.NewTee(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			zapConfig.Level,
		),
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			zapConfig.Level,
		),
	)
	return zap.New(core, zap.AddCaller()), nil
}

func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Store() *session.Store {
	return a.store
}

func (a *Application) Notifier() *notify.BusNotifier {
	return a.notifier
}

func (a *Application) Supervisor() *supervisor.Supervisor {
	return a.supervisor
}

// Release stops background work. Stored credentials are kept so the next
// start restores the sessions.
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.supervisor != nil {
		a.supervisor.Shutdown()
	}
	if a.timers != nil {
		a.timers.Stop()
	}
	if a.engine != nil {
		a.engine.Release()
	}
	if a.notifier != nil {
		a.notifier.Wait()
	}
	_ = zap.L().Sync()
}
