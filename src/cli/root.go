package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile  string
	grpcAddr    string
	callTimeout time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oracled",
	Short: "price-oracle - decentralized price oracle node",
	Long: `oracled runs a price oracle node. Scheduled producers report prices for
registered pairs and the node publishes a consensus price per pair once a
majority of active producers hold fresh data.

Run "oracled serve" to start the node. The other commands talk to a running
node over its gRPC control service.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/default.yaml", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&grpcAddr, "grpc-addr", "", "control service address (default: grpc_host:grpc_port from the config)")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 10*time.Second, "timeout for control calls")
}
