package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/talkincode/autoaccept/config"
	"github.com/talkincode/autoaccept/internal/adminapi"
	"github.com/talkincode/autoaccept/internal/app"
	"github.com/talkincode/autoaccept/internal/telegram"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "autoaccept",
	Short:         "Telegram-controlled WhatsApp group join request auto-approver",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print the effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		shown := *cfg
		if shown.Telegram.Token != "" {
			shown.Telegram.Token = "******"
		}
		out, err := yaml.Marshal(&shown)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml)")
	rootCmd.AddCommand(checkCmd)
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	application := app.NewApplication(cfg)
	if err := application.Init(); err != nil {
		return err
	}
	defer application.Release()

	sup := application.Supervisor()
	bot, err := telegram.New(telegram.Options{
		Token:        cfg.Telegram.Token,
		IsOwner:      cfg.IsOwner,
		PollTimeout:  cfg.Telegram.PollTimeout,
		PairingDelay: cfg.Telegram.PairingDelay,
	}, sup, application.Store())
	if err != nil {
		return err
	}
	if err := application.Notifier().Subscribe(bot.Deliver); err != nil {
		return errors.Wrap(err, "subscribe notifications")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Start(ctx)
	})
	if cfg.Web.Enabled {
		api := adminapi.New(cfg.Web.Host, cfg.Web.Port, cfg.Web.APIKey, sup)
		g.Go(func() error {
			return api.Start(ctx)
		})
	}
	g.Go(func() error {
		if err := sup.Restore(ctx, cfg.Telegram.Owners); err != nil {
			zap.L().Warn("restore sessions failed", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	zap.L().Info("shutting down")
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
