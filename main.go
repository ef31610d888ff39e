package main

import (
	"context"
	"errors"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"positionGuard/config"
	"positionGuard/internal/adapters/bingx"
	"positionGuard/internal/adapters/logger"
	"positionGuard/internal/adapters/notify"
	"positionGuard/internal/adapters/sqlite"
	"positionGuard/internal/app"
	"positionGuard/internal/server"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "positionGuard",
	Short:         "Protects open BingX swap positions with stop-losses and partial profit-taking",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cfgFile)
	},
}

func main() {
	rootCmd.Flags().StringVar(&cfgFile, "config", config.DefaultPath, "configuration file")
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func run(path string) error {
	// 1. Load Configuration
	cfg, err := config.Load(path)
	if errors.Is(err, config.ErrConfigCreated) {
		fmt.Printf("Created configuration file %s (dry_run enabled).\n", path)
		fmt.Println("Fill in api_key and secret_key and review the settings before starting again.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Logger
	appLogger, closeLog, err := logger.NewFileLogger(cfg.Level(), cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.Level().String(), "file": cfg.LogFile})

	// 3. Initialize Journal (optional)
	opts := []app.Option{}
	if cfg.JournalPath != "" {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.JournalPath, Logger: appLogger})
		if err != nil {
			return fmt.Errorf("failed to initialize action journal: %w", err)
		}
		defer func() {
			if err := repo.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing action journal")
			}
		}()
		opts = append(opts, app.WithJournal(repo))
		appLogger.Info(ctx, "Action journal initialized", map[string]interface{}{"path": cfg.JournalPath})
	}

	// 4. Initialize Exchange Client
	client, err := bingx.New(bingx.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.Testnet,
		Logger:     appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize BingX client: %w", err)
	}

	// 5. Initialize Notifications
	notifier := notify.NewDispatcher(cfg.Notifications, appLogger)
	appLogger.Info(ctx, "Notifications initialized", map[string]interface{}{"enabled": notifier.Enabled()})

	// 6. Initialize Application Service
	manager, err := app.NewPositionManager(cfg, config.NewStore(path), appLogger, client, notifier, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize position manager: %w", err)
	}

	// 7. Run the loop and the optional status server until a signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Start(gctx)
	})
	if cfg.StatusAddr != "" {
		srv := server.New(cfg.StatusAddr, manager, appLogger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		appLogger.Error(context.Background(), err, "Position manager exited with error")
		return err
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
	return nil
}
