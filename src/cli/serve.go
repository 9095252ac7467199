package cli

import (
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"price-oracle/src/config"
	"price-oracle/src/helpers"
	"price-oracle/src/logger"

	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the oracle node",
	Long: `Start the oracle node, which provides:
- the HTTP API for pair registration, price submission and queries
- the WebSocket price feed on /ws
- Prometheus metrics on /metrics
- the gRPC control service used by the other commands

Pairs listed in the config are registered on startup when missing.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Load config from YAML file
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		return err
	}

	// 2. Setup logger
	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)

	// Soft heap limit unless the operator set GOMEMLIMIT
	if os.Getenv("GOMEMLIMIT") == "" {
		limit := helpers.RecommendedMemoryLimit()
		debug.SetMemoryLimit(limit)
		appLogger.Info("Memory limit set to %d MB", limit>>20)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Setup Components
	node, err := NewNode(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer node.Close()

	appLogger.Info("Initialization complete.")

	// 4. Serve until interrupted
	return node.Run(ctx)
}
