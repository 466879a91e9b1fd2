package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"marketbook/internal/config"
	"marketbook/internal/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bookctl",
		Short:        "Inspect market availability and book slots",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("markets", "configs/markets.yaml", "Path to the markets catalog")
	rootCmd.PersistentFlags().String("timezone", "", "IANA timezone for today (default: local)")
	rootCmd.PersistentFlags().String("today", "", "Override today's date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log debug output to stderr")

	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(bookCmd())
	return rootCmd
}

func newLogger(cmd *cobra.Command) zerolog.Logger {
	level := zerolog.InfoLevel
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func loadSetup(cmd *cobra.Command, marketID string) (config.MarketSetup, error) {
	path, _ := cmd.Flags().GetString("markets")
	cfg, err := config.LoadMarketsConfig(path)
	if err != nil {
		return config.MarketSetup{}, err
	}
	return cfg.Setup(marketID)
}

func today(cmd *cobra.Command) (model.Date, *time.Location, error) {
	tz, _ := cmd.Flags().GetString("timezone")
	loc := time.Local
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return model.Date{}, nil, fmt.Errorf("timezone: %w", err)
		}
	}
	if raw, _ := cmd.Flags().GetString("today"); raw != "" {
		d, err := model.ParseDate(raw)
		return d, loc, err
	}
	return model.Today(loc), loc, nil
}

// clockNow is the wall clock for slot cuts. With --today set it is the
// start of that day, so past-slot filtering follows the override.
func clockNow(cmd *cobra.Command) (time.Time, error) {
	day, loc, err := today(cmd)
	if err != nil {
		return time.Time{}, err
	}
	if raw, _ := cmd.Flags().GetString("today"); raw != "" {
		return day.At(0, loc), nil
	}
	return time.Now().In(loc), nil
}

func dateFlag(cmd *cobra.Command, name string) (model.Date, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return model.Date{}, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}
