// Package app assembles the session: exchange client, scheduler, safety
// stack, engine, and the side channels (monitoring, control, audit).
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talon/internal/audit"
	"talon/internal/config"
	"talon/internal/control"
	"talon/internal/engine"
	"talon/internal/exchange/binance"
	"talon/internal/logger"
	"talon/internal/monitoring"
	"talon/internal/notifier"
	"talon/internal/oracle"
	"talon/internal/safety"
	"talon/internal/scheduler"
	"talon/internal/state"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        config.Config
	eng        *engine.Engine
	timer      *scheduler.CandleTimer
	watcher    *control.Watcher
	server     *monitoring.Server
	heartbeat  *monitoring.Heartbeat
	auditStore *audit.Store
	runID      string
}

// New builds the full object graph from config. Nothing starts running
// until Run.
func New(cfg config.Config) (*App, error) {
	period, ok := scheduler.ParseTimeframe(cfg.Session.Timeframe)
	if !ok {
		return nil, fmt.Errorf("invalid timeframe %q", cfg.Session.Timeframe)
	}

	ex := binance.New(binance.Config{
		RESTBaseURL: cfg.Exchange.RESTBaseURL,
		APIKey:      cfg.Exchange.APIKey,
		APISecret:   cfg.Exchange.APISecret,
		HTTPTimeout: time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	})

	strat, err := oracle.NewHTTP(oracle.HTTPConfig{
		Endpoint: cfg.Oracle.Endpoint,
		APIKey:   cfg.Oracle.APIKey,
		Timeout:  time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	timeSync := scheduler.NewTimeSync(ex, time.Duration(cfg.Session.TimeSyncMinutes)*time.Minute)
	timer := scheduler.NewCandleTimer(period, time.Duration(cfg.Session.ExecutionBufferMS)*time.Millisecond, timeSync)

	var channels []notifier.TextNotifier
	if cfg.Notify.Telegram.Enabled {
		channels = append(channels, notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
	}
	alerter := notifier.NewAlerter(channels...)

	var auditStore *audit.Store
	if cfg.Audit.Path != "" {
		auditStore, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
	}

	detector := safety.NewRangeDetector(cfg.Filters.TTRBodyRangeRatio, cfg.Filters.TTRRangePricePct, cfg.Filters.TTRDriftPct)
	gate := safety.NewGate(safety.GateConfig{
		Enabled:          cfg.Filters.Enabled,
		Cooldown:         time.Duration(cfg.Filters.CooldownMinutes) * time.Minute,
		MaxDailyTrades:   cfg.Filters.MaxDailyTrades,
		MinProbability:   cfg.Filters.MinProbability,
		MinSignalQuality: cfg.Filters.MinSignalQuality,
	}, detector)
	tracker := safety.NewTracker(cfg.Conviction.HistorySize, cfg.Conviction.MinConsecutive, cfg.Conviction.MinConfidence)
	protector := safety.NewProtector(safety.ProtectorConfig{
		MaxDailyLossPct:      cfg.Protector.MaxDailyLossPct,
		MaxConsecutiveLosses: cfg.Protector.MaxConsecutiveLosses,
		Cooldown:             time.Duration(cfg.Protector.CooldownHours) * time.Hour,
	}, alerter.Send)

	stateFile := state.NewFile(cfg.State.Path)
	runID := uuid.NewString()
	if snap, ok := stateFile.Load(); ok {
		gate.Restore(snap.Gate)
		protector.Restore(snap.Protector)
		logger.Infof("restored session counters from %s (previous run %s)", cfg.State.Path, snap.RunID)
	}

	eng := engine.New(engine.Options{
		Config:    cfg,
		Exchange:  ex,
		Oracle:    strat,
		Gate:      gate,
		Tracker:   tracker,
		Protector: protector,
		Detector:  detector,
		Alerter:   alerter,
		Audit:     auditStore,
		StateFile: stateFile,
		RunID:     runID,
		Period:    period,
	})

	heartbeat := monitoring.NewHeartbeat()
	server := monitoring.New(cfg.App.HTTPAddr, eng, heartbeat)

	watcher := control.NewWatcher(cfg.Control.Path, func(cmd control.Command) {
		switch cmd {
		case control.CmdHalt:
			eng.Halt()
		case control.CmdResume:
			eng.Resume()
		case control.CmdForceEnable:
			eng.ForceEnable()
		case control.CmdResetGate:
			eng.ResetGate()
		}
	})

	return &App{
		cfg:        cfg,
		eng:        eng,
		timer:      timer,
		watcher:    watcher,
		server:     server,
		heartbeat:  heartbeat,
		auditStore: auditStore,
		runID:      runID,
	}, nil
}

// Run drives the session until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	logger.Infof("run %s starting: %s %s, leverage %dx, dry_run=%v",
		a.runID, a.cfg.Session.Symbol, a.cfg.Session.Timeframe, a.cfg.Risk.Leverage, a.cfg.Exchange.DryRun)
	a.auditStore.RecordRun(a.runID, a.cfg.Session.Symbol, a.cfg.Session.Timeframe)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.tickLoop(ctx) })
	g.Go(func() error { return a.server.Run(ctx) })
	if a.watcher.Enabled() {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) tickLoop(ctx context.Context) error {
	if a.cfg.Session.RunImmediately {
		logger.Infof("run_immediately set, ticking before first boundary")
		a.runTick(ctx, time.Now().UTC())
	}
	for {
		wake, err := a.timer.WaitNext(ctx)
		if err != nil {
			return err
		}
		a.runTick(ctx, wake.Boundary)
	}
}

func (a *App) runTick(ctx context.Context, boundary time.Time) {
	err := a.eng.Tick(ctx)
	a.heartbeat.RecordTick(boundary, err)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("tick failed: %v", err)
	}
}

// Close releases resources after Run returns.
func (a *App) Close() {
	if err := a.auditStore.Close(); err != nil {
		logger.Warnf("close audit store: %v", err)
	}
}
