package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"omnisearch/internal/app"
	"omnisearch/internal/infra/telemetry"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	logging    app.Logging
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{
		logLevel:  "info",
		logFormat: "json",
	}

	root := &cobra.Command{
		Use:           "omnisearch",
		Short:         "Unified search across connected workplace tools",
		Version:       fmt.Sprintf("%s (%s)", app.Version, app.Build),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logging, err := app.NewLogging(app.LoggingConfig{
				Level:  opts.logLevel,
				Format: opts.logFormat,
			})
			if err != nil {
				return err
			}
			opts.logging = logging
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.logging.Logger != nil {
				_ = opts.logging.Logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to tool catalog config file (built-in catalog when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", opts.logFormat, "log format (json or console)")

	root.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newSearchCmd(opts),
	)

	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		apiAddress     string
		connectOnStart bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search engine with its HTTP control API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(opts.logging)
			return application.Serve(ctx, app.ServeConfig{
				ConfigPath:     opts.configPath,
				APIAddress:     apiAddress,
				ConnectOnStart: connectOnStart,
				Observability:  observabilityFlags(cmd.Flags()),
			})
		},
	}

	cmd.Flags().StringVar(&apiAddress, "api", "", "control API listen address (overrides config)")
	cmd.Flags().BoolVar(&connectOnStart, "connect", false, "connect every tool on startup")
	cmd.Flags().Bool("metrics", false, "enable /metrics (overrides config)")
	cmd.Flags().Bool("healthz", false, "enable /healthz (overrides config)")
	return cmd
}

// observabilityFlags returns overrides only for flags set on the command line.
func observabilityFlags(flags *pflag.FlagSet) *app.ObservabilityOptions {
	var out app.ObservabilityOptions
	if flags.Changed("metrics") {
		value, _ := flags.GetBool("metrics")
		out.MetricsEnabled = &value
	}
	if flags.Changed("healthz") {
		value, _ := flags.GetBool("healthz")
		out.HealthzEnabled = &value
	}
	return &out
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the tool catalog without connecting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application := app.New(opts.logging)
			return application.ValidateConfig(cmd.Context(), app.ValidateConfig{
				ConfigPath: opts.configPath,
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		types      []string
		tools      []string
		maxResults int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Connect the catalog, run one search and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(opts.logging)
			resp, err := application.Search(ctx, app.SearchConfig{
				ConfigPath:   opts.configPath,
				Query:        strings.Join(args, " "),
				ContentTypes: types,
				MaxResults:   maxResults,
				Tools:        tools,
				JSON:         jsonOutput,
				Out:          cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			opts.logging.Logger.Debug("search finished",
				telemetry.SearchIDField(resp.SearchID),
				zap.Int("results", len(resp.Results)),
			)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&types, "type", nil, "content type filter (repeatable or comma-separated)")
	cmd.Flags().StringSliceVar(&tools, "tool", nil, "tools to connect (default: all)")
	cmd.Flags().IntVar(&maxResults, "max", 0, "maximum results (0 for no limit)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
