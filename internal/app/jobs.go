package app

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/talkincode/autoaccept/internal/domain"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@every 1m", func() {
		go a.SchedSessionSummaryTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedProcessMonitorTask logs the process footprint.
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: PID is always within int32 range
	if err != nil {
		return
	}
	fields := []zap.Field{zap.String("namespace", "monitor")}
	if cpuuse, err := p.CPUPercent(); err == nil {
		fields = append(fields, zap.Float64("cpu_percent", cpuuse))
	}
	if meminfo, err := p.MemoryInfo(); err == nil {
		fields = append(fields, zap.Uint64("rss_mb", meminfo.RSS/1024/1024))
	}
	if n, err := p.NumThreads(); err == nil {
		fields = append(fields, zap.Int32("threads", n))
	}
	zap.L().Debug("process monitor", fields...)
}

// SchedSessionSummaryTask logs how many owner sessions are in each state.
func (a *Application) SchedSessionSummaryTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	s := summarize(a.store.Snapshot())
	zap.L().Info("session summary",
		zap.String("namespace", "monitor"),
		zap.Int("total", s.Total),
		zap.Int("open", s.States[domain.StateOpen]),
		zap.Int("auto_accept_enabled", s.Enabled),
		zap.Int("reconnecting", s.Reconnecting))
}

type sessionSummary struct {
	Total        int
	States       map[domain.SessionState]int
	Enabled      int
	Reconnecting int
}

func summarize(sessions []domain.OwnerSession) sessionSummary {
	s := sessionSummary{Total: len(sessions), States: make(map[domain.SessionState]int)}
	for _, sess := range sessions {
		s.States[sess.State]++
		if sess.Policy.Enabled {
			s.Enabled++
		}
		if sess.ReconnectAttempts > 0 {
			s.Reconnecting++
		}
	}
	return s
}
