// Package app wires configuration, storage, the YouTube prober, the webhook
// notifier and the watch loop into one daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"tubewatch/internal/config"
	"tubewatch/internal/eventbus"
	"tubewatch/internal/notifier"
	"tubewatch/internal/observability"
	"tubewatch/internal/ops"
	"tubewatch/internal/runtime/supervisor"
	"tubewatch/internal/storage"
	"tubewatch/internal/watch"
	"tubewatch/internal/youtube"
	logx "tubewatch/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Version is set at build time with -ldflags "-X tubewatch/internal/app.Version=...".
var Version = "dev"

// Options tweak how the App is assembled.
type Options struct {
	// DryRun probes and logs but neither notifies nor saves.
	DryRun bool
}

type App struct {
	cfgm *config.Manager
	rt   *config.Runtime

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Store
	notif   *notifier.Service
	watcher *watch.Watcher
	metrics *observability.Metrics

	sup *supervisor.Supervisor
}

// New builds the App from the manager's current config. Invalid config,
// an unreadable store or corrupt state (without reset_on_corrupt) fail here.
func New(ctx context.Context, cfgm *config.Manager, opts Options) (*App, error) {
	cfg := cfgm.Get()
	if cfg == nil {
		return nil, errors.New("config: not loaded")
	}
	rt, err := config.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logs, log := logx.New(rt.Logging)
	log = log.With(logx.String("comp", "app"))
	bus := eventbus.New()

	store, initial, err := openState(ctx, rt, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	prober, err := youtube.New(rt.YouTube)
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	notif := notifier.New(rt.Notifier, notifier.NewWebhook(nil), log.With(logx.String("comp", "notifier")), bus, store)

	a := &App{
		cfgm:    cfgm,
		rt:      rt,
		log:     log,
		logs:    logs,
		bus:     bus,
		store:   store,
		notif:   notif,
		metrics: observability.NewMetrics(),
	}

	w, err := watch.New(watch.Config{
		Channels:     rt.Channels,
		Prober:       prober,
		Notifier:     notif,
		Store:        store,
		Schedule:     rt.Schedule,
		FaultBackoff: rt.FaultBackoff,
		DryRun:       opts.DryRun,
		OnPass:       a.onPass,
	}, initial, log.With(logx.String("comp", "watch")), bus)
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}
	a.watcher = w
	return a, nil
}

// Run starts the auxiliary tasks and blocks in the watch loop until ctx is
// cancelled. It always shuts down before returning.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithBus(a.bus),
	)
	a.startAux()

	a.log.Info("tubewatch started",
		logx.String("version", Version),
		logx.Int("channels", len(a.rt.Channels)),
		logx.String("probe_driver", a.rt.YouTube.Driver),
		logx.String("storage_driver", a.rt.Storage.Driver),
		logx.String("schedule", a.rt.Schedule.String()),
	)
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	err := a.watcher.Run(a.sup.Context())

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if serr := a.Stop(stopCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}

// Check runs one pass synchronously and shuts down.
func (a *App) Check(ctx context.Context) (watch.PassReport, error) {
	rep, err := a.watcher.RunPass(ctx)
	_ = a.close()
	return rep, err
}

func (a *App) startAux() {
	a.sup.Go("metrics.consume", func(c context.Context) error {
		return a.metrics.Consume(c, a.bus)
	})
	a.sup.Go("eventbus.log", a.logEvents)

	if a.rt.Ops.Enabled {
		srv := ops.New(a.rt.Ops, ops.Sources{
			Status:  a.Status,
			Health:  a.Health,
			Metrics: a.metrics.Handler(),
		}, a.log.With(logx.String("comp", "ops")))
		a.sup.Go("ops.server", srv.Serve)
	}

	if strings.TrimSpace(a.cfgm.Path()) != "" {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		sub := a.cfgm.Subscribe(4)
		a.sup.Go("config.reload", func(c context.Context) error {
			defer a.cfgm.Unsubscribe(sub)
			return a.reloadLoop(c, sub)
		})
		a.sup.GoRestart("config.watch", time.Second, 30*time.Second, a.cfgm.Watch)
	}
}

// reloadLoop applies logging changes live. Everything else needs a restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) error {
	applied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			sections, attrs := config.SummarizeChange(applied, next)
			if len(sections) == 0 {
				a.log.Debug("config reload received, no effective changes")
				continue
			}
			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			if slices.Contains(sections, "logging") {
				a.logs.Apply(config.LoggingRuntime(next.Logging))
			}
			if config.OnlyLogging(sections) {
				a.log.Info("config reloaded", fields...)
			} else {
				a.log.Warn("config changed; restart required for non-logging sections", fields...)
			}
			eventbus.Publish(a.bus, eventbus.TypeConfigReloaded, sections)
			applied = next
		}
	}
}

func (a *App) logEvents(ctx context.Context) error {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

func (a *App) onPass(rep watch.PassReport) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
		a.log.Debug("sd_notify watchdog failed", logx.Err(err))
	}
}

// Status is the /status payload.
func (a *App) Status() any {
	st := struct {
		Version string                 `json:"version"`
		Watch   watch.Snapshot         `json:"watch"`
		History []notifier.HistoryItem `json:"deliveries"`
		Tasks   []supervisor.TaskStats `json:"tasks,omitempty"`
	}{
		Version: Version,
		Watch:   a.watcher.Snapshot(),
		History: a.notif.History(),
	}
	if a.sup != nil {
		st.Tasks = a.sup.Snapshot()
	}
	return st
}

// Health fails until the first pass has completed and while the most recent
// pass is overdue by more than a fault backoff.
func (a *App) Health() error {
	snap := a.watcher.Snapshot()
	if snap.LastPass == nil {
		return errors.New("no pass completed yet")
	}
	if !snap.NextPass.IsZero() && time.Since(snap.NextPass) > a.rt.FaultBackoff+time.Minute {
		return fmt.Errorf("pass overdue since %s", snap.NextPass.Format(time.RFC3339))
	}
	return nil
}

// Stop notifies systemd, stops auxiliary tasks and closes the store and the
// log sinks.
func (a *App) Stop(ctx context.Context) error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}
	a.log.Info("stopping")

	var errs []error
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}
