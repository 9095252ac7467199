package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"price-oracle/src/config"
	"price-oracle/src/grpc_control"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// dialOptions are appended to every control connection. Tests add a bufconn dialer.
var dialOptions []grpc.DialOption

// -----------------------------------------------------------------------------
// Control commands, talking to a running node over gRPC
// -----------------------------------------------------------------------------

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "Manage registered pairs",
}

var pairsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered pairs",
	Args:  cobra.NoArgs,
	RunE: withControl(func(ctx context.Context, c *grpc_control.Client, cmd *cobra.Command, args []string) error {
		pairs, err := c.ListPairs(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), pairs)
	}),
}

var pairCaller string

var pairsAddCmd = &cobra.Command{
	Use:   "add PAIR...",
	Short: "Register pairs as the given caller",
	Args:  cobra.MinimumNArgs(1),
	RunE: withControl(func(ctx context.Context, c *grpc_control.Client, cmd *cobra.Command, args []string) error {
		for _, pair := range args {
			if err := c.RegisterPair(ctx, pairCaller, pair); err != nil {
				return fmt.Errorf("register %s: %w", pair, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", pair)
		}
		return nil
	}),
}

var submitCmd = &cobra.Command{
	Use:   "submit PRODUCER PAIR=PRICE...",
	Short: "Submit prices on behalf of a producer",
	Long: `Submit replaces the producer's previous submission with the given prices
and runs an aggregation round for each pair. Pairs without a majority of fresh
reporters are listed as deferred.`,
	Args: cobra.MinimumNArgs(2),
	RunE: withControl(func(ctx context.Context, c *grpc_control.Client, cmd *cobra.Command, args []string) error {
		data, err := parsePairPrices(args[1:])
		if err != nil {
			return err
		}
		result, err := c.SubmitPrices(ctx, args[0], data)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	}),
}

var priceCmd = &cobra.Command{
	Use:   "price [PAIR]",
	Short: "Show the published price of a pair, or of every pair",
	Args:  cobra.MaximumNArgs(1),
	RunE: withControl(func(ctx context.Context, c *grpc_control.Client, cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			prices, err := c.ListPrices(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), prices)
		}
		price, err := c.GetPrice(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), price)
	}),
}

var submissionCmd = &cobra.Command{
	Use:   "submission PRODUCER",
	Short: "Show the latest submission of a producer",
	Args:  cobra.ExactArgs(1),
	RunE: withControl(func(ctx context.Context, c *grpc_control.Client, cmd *cobra.Command, args []string) error {
		sub, err := c.GetSubmission(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sub)
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show oracle status",
	Args:  cobra.NoArgs,
	RunE: withControl(func(ctx context.Context, c *grpc_control.Client, cmd *cobra.Command, args []string) error {
		st, err := c.GetStatus(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	}),
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect or reload the producer schedule",
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show active and standby producers",
	Args:  cobra.NoArgs,
	RunE: withControl(func(ctx context.Context, c *grpc_control.Client, cmd *cobra.Command, args []string) error {
		s, err := c.GetSchedule(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), s)
	}),
}

var scheduleReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the schedule file now",
	Args:  cobra.NoArgs,
	RunE: withControl(func(ctx context.Context, c *grpc_control.Client, cmd *cobra.Command, args []string) error {
		s, err := c.ReloadSchedule(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), s)
	}),
}

func init() {
	pairsAddCmd.Flags().StringVar(&pairCaller, "caller", config.DefaultSystemAccount, "account registering the pairs")

	pairsCmd.AddCommand(pairsListCmd, pairsAddCmd)
	scheduleCmd.AddCommand(scheduleShowCmd, scheduleReloadCmd)
	rootCmd.AddCommand(pairsCmd, submitCmd, priceCmd, submissionCmd, statusCmd, scheduleCmd)
}

// -----------------------------------------------------------------------------

type controlFunc func(ctx context.Context, c *grpc_control.Client, cmd *cobra.Command, args []string) error

// withControl dials the control service for the duration of one command.
func withControl(fn controlFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		addr, err := controlAddr()
		if err != nil {
			return err
		}

		opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, dialOptions...)
		conn, err := grpc.NewClient(addr, opts...)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
		defer cancel()
		return fn(ctx, grpc_control.NewClient(conn), cmd, args)
	}
}

// controlAddr prefers --grpc-addr and falls back to the config file.
func controlAddr() (string, error) {
	if grpcAddr != "" {
		return grpcAddr, nil
	}
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		return "", err
	}
	host := cfg.GrpcHost
	if host == "" {
		host = cfg.Host
	}
	return fmt.Sprintf("%s:%d", host, cfg.GrpcPort), nil
}

// -----------------------------------------------------------------------------

// parsePairPrices reads PAIR=PRICE arguments. Values are passed on unchecked;
// the oracle rejects non-positive prices itself.
func parsePairPrices(args []string) (map[string]float64, error) {
	data := make(map[string]float64, len(args))
	for _, arg := range args {
		pair, raw, ok := strings.Cut(arg, "=")
		if !ok || pair == "" || raw == "" {
			return nil, fmt.Errorf("invalid price %q, expected PAIR=PRICE", arg)
		}
		if _, dup := data[pair]; dup {
			return nil, fmt.Errorf("pair %s given more than once", pair)
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s: %w", pair, err)
		}
		data[pair] = price
	}
	return data, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
