package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/classroom/internal/api"
	"github.com/nhle/classroom/internal/app"
	"github.com/nhle/classroom/internal/attendance"
	"github.com/nhle/classroom/internal/credential"
	"github.com/nhle/classroom/internal/logging"
	"github.com/nhle/classroom/internal/metrics"
	"github.com/nhle/classroom/internal/model"
	"github.com/nhle/classroom/internal/notification"
	"github.com/nhle/classroom/internal/session"
	"github.com/nhle/classroom/internal/store"
	appsync "github.com/nhle/classroom/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "classroom: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if exists
	_ = godotenv.Load()

	configPath := pflag.String("config", model.DefaultConfigPath(), "path to the YAML config file")
	classroomID := pflag.String("classroom", "", "classroom opened in the attendance view")
	pflag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *classroomID != "" {
		cfg.Classroom.DefaultID = *classroomID
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting classroom",
		zap.String("api", cfg.API.BaseURL),
		zap.String("ledger", cfg.Ledger.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := credential.Open(filepath.Join(model.ConfigDir(), "credentials"))
	if err != nil {
		return err
	}
	sess := session.New(creds)
	if err := sess.Restore(); err != nil {
		logger.Warn("could not restore session", zap.Error(err))
	}

	client := api.NewClient(cfg.API.BaseURL, sess.Token, time.Duration(cfg.API.TimeoutSec)*time.Second)

	ledger, closer, err := store.OpenLedger(ctx, cfg.Ledger, logger)
	if err != nil {
		return fmt.Errorf("opening delivery ledger: %w", err)
	}
	defer closer.Close()

	if cfg.Metrics.ListenAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddr, logger); err != nil {
				logger.Error("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	feed := notification.NewStore()
	alerts := app.NewChannelAlerter()
	poller := appsync.New(client, feed, alerts, sess.Authenticated,
		appsync.WithLedger(ledger),
		appsync.WithLogger(logger.Named("poller")),
	)
	defer poller.Stop()

	timer := attendance.NewTimer(client)
	defer timer.Close()

	root := app.New(ctx, app.Deps{
		Session:     sess,
		Store:       feed,
		Poller:      poller,
		Alerts:      alerts,
		Timer:       timer,
		Client:      client,
		Logger:      logger.Named("ui"),
		ClassroomID: cfg.Classroom.DefaultID,
	})

	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
