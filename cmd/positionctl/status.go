package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"positionGuard/config"
	"positionGuard/internal/adapters/logger"
	"positionGuard/internal/adapters/sqlite"
	"positionGuard/internal/supervisor"
	"positionGuard/internal/utils"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show process state, key settings and recent log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			writeStatus(cmd.Context(), cmd.OutOrStdout(), opts, time.Now())
			return nil
		},
	}
}

func writeStatus(ctx context.Context, w io.Writer, opts *options, now time.Time) {
	fmt.Fprintln(w, "=== BingX Position Manager Status ===")

	sup := supervisor.New(opts.pidFile, "")
	if pid, ok := sup.IsRunning(); ok {
		fmt.Fprintf(w, "Process:        running (PID %d)\n", pid)
	} else {
		fmt.Fprintln(w, "Process:        stopped")
	}

	logFile := config.Default().LogFile
	journalPath := ""
	cfg, err := config.Peek(opts.configPath)
	if err != nil {
		fmt.Fprintf(w, "Config:         unavailable (%v)\n", err)
	} else {
		logFile = cfg.LogFile
		journalPath = cfg.JournalPath
		fmt.Fprintf(w, "Testnet:        %s\n", yesNo(cfg.Testnet))
		fmt.Fprintf(w, "Interval:       %ds\n", cfg.CheckInterval)
		fmt.Fprintf(w, "Profit target:  %.1f%%\n", cfg.ProfitThreshold*100)
		fmt.Fprintf(w, "Emergency stop: %s\n", yesNo(cfg.EmergencyStop))
		fmt.Fprintf(w, "Dry run:        %s\n", yesNo(cfg.DryRun))
	}

	if info, err := os.Stat(logFile); err == nil {
		fmt.Fprintf(w, "Log file:       %.1f KB, modified %s\n", float64(info.Size())/1024, info.ModTime().Format("2006-01-02 15:04:05"))
		if lines, err := supervisor.TailLines(logFile, 3); err == nil && len(lines) > 0 {
			fmt.Fprintln(w, "Recent entries:")
			for _, l := range lines {
				fmt.Fprintf(w, "   %s\n", l)
			}
		}
	} else {
		fmt.Fprintln(w, "Log file:       not found")
	}

	if journalPath == "" {
		return
	}
	if _, err := os.Stat(journalPath); err != nil {
		return
	}
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: journalPath, Logger: quietLogger()})
	if err != nil {
		return
	}
	defer repo.Close()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if n, err := repo.CountSince(ctx, midnight); err == nil {
		fmt.Fprintf(w, "Actions today:  %d\n", n)
	}
}

func quietLogger() *logger.StdLogger {
	return logger.New(logger.LevelError, os.Stderr)
}

func newJournalCmd(opts *options) *cobra.Command {
	var (
		limit   int
		csvPath string
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent actions from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Peek(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.JournalPath == "" {
				return fmt.Errorf("journal disabled (journal_path is empty)")
			}
			repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.JournalPath, Logger: quietLogger()})
			if err != nil {
				return err
			}
			defer repo.Close()

			actions, err := repo.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if csvPath != "" {
				if err := utils.WriteActionsToCSV(actions, csvPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d actions to %s\n", len(actions), csvPath)
				return nil
			}
			return utils.WriteActions(cmd.OutOrStdout(), actions)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of actions to show")
	cmd.Flags().StringVar(&csvPath, "csv", "", "export to this CSV file instead of printing")
	return cmd
}
