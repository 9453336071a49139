package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hotmic/internal/audio"
	"hotmic/internal/bootstrap"
	"hotmic/internal/config"
	"hotmic/internal/delivery"
	"hotmic/internal/domain"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "hotmic",
	Short:         "Push-to-talk dictation client",
	Long:          "hotmic toggles microphone capture with a global hotkey, streams audio to a transcription service and copies the transcript to the clipboard.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger := newLogger(cfg.SlogLevel())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := NewApp(cmd.OutOrStdout(), delivery.NewNotifier("hotmic", cfg.Notify), logger)
		services, err := bootstrap.Build(cfg, app, logger)
		if err != nil {
			app.SessionError(domain.ErrorCodeStartup, err.Error())
			return err
		}
		defer func() {
			if err := services.Close(); err != nil {
				logger.Warn("failed to release audio backend", "error", err)
			}
		}()

		app.attach(services)
		return app.Run(ctx)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, field := range cfg.Fields() {
			fmt.Fprintf(w, "%s\t%s\n", field.Key, field.Value)
		}
		return w.Flush()
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		device, err := audio.NewMalgoDevice(newLogger(slog.LevelWarn))
		if err != nil {
			return err
		}
		defer device.Close()

		infos, err := device.Devices()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(infos) == 0 {
			fmt.Fprintln(out, "no capture devices found")
			return nil
		}
		for _, info := range infos {
			marker := ""
			if info.IsDefault {
				marker = " (default)"
			}
			fmt.Fprintf(out, "%d: %s%s\n", info.Index, info.Name, marker)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOTMIC_CONFIG or ./config.json)")
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(devicesCmd)
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", consolePrefix, err)
		os.Exit(1)
	}
}
