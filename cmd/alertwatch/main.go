package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"AlertWatch/internal/config"
	"AlertWatch/internal/httpapi"
	"AlertWatch/internal/logger"
	"AlertWatch/internal/scheduler"
)

var (
	configPath string
	envFile    string
)

func main() {
	root := &cobra.Command{
		Use:           "alertwatch",
		Short:         "Intraday stock alert scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(serveCmd(), scanCmd(), mockAlertCmd(), presetsCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("alertwatch: %v", err)
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled scanner with the HTTP status surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log.Info("AlertWatch starting...")

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			sched := scheduler.NewScheduler(ctx, a.scanner, a.formatter)
			if err := sched.Register(cfg.Scan.Interval); err != nil {
				return err
			}
			sched.Start()

			banner := fmt.Sprintf("%s scanner is running.", cfg.Notify.Title)
			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           httpapi.NewRouter(a.scanner, a.metrics.Handler(), banner),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				log.WithField("addr", cfg.HTTP.Addr).Info("http server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.WithError(err).Error("http server")
				}
			}()

			if a.telegram != nil && cfg.Notify.Telegram.Commands {
				go a.telegram.StartPolling(ctx, sched.HandleCommand)
				log.Info("telegram polling started")
			}

			if cfg.Scan.RunOnStart {
				log.Info("RUN_ON_START enabled, scanning now")
				go sched.RunNow()
			}

			log.Info("AlertWatch is running. Press Ctrl+C to stop.")
			<-ctx.Done()

			log.Info("shutdown signal received, stopping...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("http shutdown")
			}
			sched.Stop()
			log.Info("AlertWatch stopped")
			return nil
		},
	}
}

func scanCmd() *cobra.Command {
	var ignoreWindow bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan cycle and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ignoreWindow {
				cfg.Scan.Window.Enabled = false
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			rep, err := a.scanner.RunCycle(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	cmd.Flags().BoolVar(&ignoreWindow, "ignore-window", false, "scan even outside the configured window")
	return cmd
}

func mockAlertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mock-alert",
		Short: "Send a synthetic alert through the configured notifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()
			if err := a.scanner.SendMockAlert(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Mock alert sent.")
			return nil
		},
	}
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in strategy presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTHRESHOLD\tCONFIRM\tSL/TP ATR\tDESCRIPTION")
			for _, name := range config.PresetNames() {
				p, _ := config.LookupPreset(name)
				s := p.Strategy
				fmt.Fprintf(w, "%s\t%.0f\t%s %s/%s\t%.1f/%.1f\t%s\n",
					p.Name, s.ConfidenceThreshold, s.ConfirmRule, p.PrimaryInterval, p.ConfirmInterval,
					s.StopLossATR, s.TakeProfitATR, p.Description)
			}
			return w.Flush()
		},
	}
}
