package cmd

import (
	"fmt"
	"os"

	"github.com/matthieukhl/loom/internal/config"
	"github.com/matthieukhl/loom/internal/database"
	"github.com/matthieukhl/loom/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Loom Agent - conversational commerce backend",
	Long: `Loom Agent turns free-text shopper messages into product searches,
cart changes and orders against a shared inventory.

The agent can run as an HTTP server for the storefront and staff console,
or be used via CLI commands to set up the schema, seed the catalog and
inspect stock and orders.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}

func connect(cfg *config.Config) (*database.DB, error) {
	db, err := database.NewConnection(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
