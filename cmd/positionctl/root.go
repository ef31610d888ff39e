package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"positionGuard/config"
	"positionGuard/internal/supervisor"
)

const managerBinary = "positionGuard"

type options struct {
	configPath string
	pidFile    string
	manager    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "positionctl",
		Short:         "Control the BingX position manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "configuration file shared with the manager")
	root.PersistentFlags().StringVar(&opts.pidFile, "pid-file", supervisor.DefaultPIDFile, "PID marker file")
	root.PersistentFlags().StringVar(&opts.manager, "manager", "", "manager executable (default: "+managerBinary+" next to positionctl, then PATH)")

	root.AddCommand(
		newStartCmd(opts),
		newStopCmd(opts),
		newRestartCmd(opts),
		newStatusCmd(opts),
		newEmergencyCmd(opts, true),
		newEmergencyCmd(opts, false),
		newInitCmd(opts),
		newJournalCmd(opts),
	)
	return root
}

func (o *options) supervisor() (*supervisor.Supervisor, error) {
	bin, err := o.resolveManager()
	if err != nil {
		return nil, err
	}
	return supervisor.New(o.pidFile, bin, "--config", o.configPath), nil
}

// resolveManager finds the manager executable: the flag, then a sibling of
// this executable, then PATH.
func (o *options) resolveManager() (string, error) {
	if o.manager != "" {
		return o.manager, nil
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), managerBinary)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(managerBinary)
	if err != nil {
		return "", fmt.Errorf("manager executable not found, use --manager: %w", err)
	}
	return path, nil
}

func newStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the position manager in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, err := opts.supervisor()
			if err != nil {
				return err
			}
			pid, err := sup.Start()
			if errors.Is(err, supervisor.ErrAlreadyRunning) {
				fmt.Fprintf(cmd.OutOrStdout(), "Manager is already running (PID %d)\n", pid)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manager started with PID %d\n", pid)
			return nil
		},
	}
}

func newStopCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the position manager (SIGTERM, then SIGKILL after 2s)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopManager(cmd, supervisor.New(opts.pidFile, ""))
		},
	}
}

func stopManager(cmd *cobra.Command, sup *supervisor.Supervisor) error {
	err := sup.Stop()
	if errors.Is(err, supervisor.ErrNotRunning) {
		fmt.Fprintln(cmd.OutOrStdout(), "Manager is not running")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Manager stopped")
	return nil
}

func newRestartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop and start the position manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, err := opts.supervisor()
			if err != nil {
				return err
			}
			if err := stopManager(cmd, sup); err != nil {
				return err
			}
			pid, err := sup.Start()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manager started with PID %d\n", pid)
			return nil
		},
	}
}

func newEmergencyCmd(opts *options, on bool) *cobra.Command {
	use, short, done := "emergency", "Set emergency_stop so the manager halts processing", "Emergency stop activated"
	if !on {
		use, short, done = "resume", "Clear emergency_stop so the manager resumes", "Emergency stop cleared"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SetEmergencyStop(opts.configPath, on); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), done)
			return nil
		},
	}
}

func newInitCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", opts.configPath)
			}
			if err := config.Save(opts.configPath, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (dry_run enabled). Fill in api_key and secret_key.\n", opts.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
