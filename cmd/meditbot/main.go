package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"meditbot/internal/audit"
	"meditbot/internal/bot"
	"meditbot/internal/config"
	"meditbot/internal/digest"
	"meditbot/internal/notify"
	"meditbot/internal/scan"
	"meditbot/internal/transport"
	"meditbot/internal/transport/telegram"
	"meditbot/internal/webhook"
	"meditbot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	boot := logx.NewConsole("info")

	mgr := config.NewManager(cfgPath, boot)
	cfg, err := mgr.Load()
	if err != nil {
		boot.Error("fatal: config", logx.Err(err))
		os.Exit(1)
	}

	logSvc, log := logx.New(logxConfig(cfg))
	defer logSvc.Close()

	pollTimeout, _ := cfg.PollTimeout()
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		log.Error("fatal: telegram adapter", logx.Err(err))
		os.Exit(1)
	}

	notifier := notify.New(adapter, cfg.Telegram.ChatID, cfg.Telegram.RatePerSec, log.With(logx.String("comp", "notify")))
	store := scan.NewStore(cfg.History.Path, log.With(logx.String("comp", "history")))

	busyTimeout, _ := cfg.AuditBusyTimeout()
	auditLog, err := audit.Open(audit.Config{Path: cfg.Audit.Path, BusyTimeout: busyTimeout}, log.With(logx.String("comp", "audit")))
	if err != nil {
		// The relay works without the audit trail; only notify/history are load-bearing.
		log.Error("audit log unavailable; continuing without it", logx.Err(err))
		auditLog = nil
	}

	handler := &webhook.Handler{
		Store:    store,
		Notifier: notifier,
		Audit:    auditLog,
		Opts:     scan.Options{PatientField: cfg.Telegram.PatientField},
		Log:      log.With(logx.String("comp", "webhook")),
	}
	srv := webhook.NewServer(cfg.Webhook.Addr, handler, log.With(logx.String("comp", "webhook")))

	updates := make(chan transport.Update, 64)
	if err := adapter.Start(ctx, updates); err != nil {
		log.Error("fatal: telegram start", logx.Err(err))
		os.Exit(1)
	}

	router := bot.New(adapter, store, cfg.Telegram.ChatID, log.With(logx.String("comp", "bot")))
	go router.Run(ctx, updates)

	dig := digest.New(auditLog, notifier, log.With(logx.String("comp", "digest")))
	if err := dig.Apply(digest.Config{Schedule: cfg.Digest.Schedule, Timezone: cfg.Digest.Timezone}); err != nil {
		log.Warn("digest disabled", logx.Err(err))
	}
	dig.Start()

	// Hot reload: log level and digest schedule follow the config file.
	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	sub := mgr.Subscribe(1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-sub:
				if next == nil {
					continue
				}
				logSvc.Apply(logxConfig(next))
				if err := dig.Apply(digest.Config{Schedule: next.Digest.Schedule, Timezone: next.Digest.Timezone}); err != nil {
					log.Warn("digest reload rejected", logx.Err(err))
				}
				log.Info("runtime config applied")
			}
		}
	}()

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Run() }()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("meditbot started",
		logx.String("addr", cfg.Webhook.Addr),
		logx.Int64("chat_id", cfg.Telegram.ChatID),
		logx.Bool("audit", auditLog != nil))

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("webhook server failed", logx.Err(err))
		}
		cancel()
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	_ = adapter.Stop(shCtx)
	dig.Stop()
	if auditLog != nil {
		_ = auditLog.Close()
	}
	log.Info("meditbot stopped")
}

func logxConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}
