package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/turtacn/nodesync/internal/config"
	"github.com/turtacn/nodesync/internal/monitor"
	"github.com/turtacn/nodesync/internal/orchestrator"
	"github.com/turtacn/nodesync/internal/probe"
	"github.com/turtacn/nodesync/internal/tracker"
	"github.com/turtacn/nodesync/pkg/consts"
	"github.com/turtacn/nodesync/pkg/logger"
	"github.com/turtacn/nodesync/pkg/protocol"
)

// NewRootCmd builds the nodesync command tree.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "nodesync",
		Short:         "nodesync: supervise a node until it has synced past a reference target",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file path (yaml)")
	pf.String("local-endpoint", consts.DefaultLocalEndpoint, "status endpoint of the supervised node")
	pf.String("reference-endpoint", "", "status endpoint of the reference node")
	pf.Duration("poll-interval", consts.DefaultPollInterval, "interval between progress polls")
	pf.Duration("startup-poll-interval", consts.DefaultStartupPollInterval, "interval between startup probes")
	pf.Duration("startup-timeout", 0, "cap on the startup wait (0 = stall timeout)")
	pf.Duration("stall-timeout", consts.DefaultStallTimeout, "fail when progress has not increased for this long")
	pf.Uint64("delta", consts.DefaultSyncDelta, "progress beyond the reference required for success")
	pf.Int("log-tail-lines", consts.DefaultLogTailLines, "node log lines shown on every poll")
	pf.String("bootstrapping-mode", consts.BootstrapExecuteFromGenesis, "node bootstrapping mode")
	pf.String("continuous-syncing-mode", consts.ContinuousExecuteTransactions, "node continuous syncing mode")
	pf.String("node-log", consts.DefaultNodeLogPath, "file receiving the node's stdout and stderr")
	pf.String("node-config-template", "", "node config template to patch before launch")
	pf.String("node-config", "", "where the patched node config is written")
	pf.String("data-dir", "", "node data directory written into the node config")
	pf.Duration("probe-timeout", consts.DefaultProbeTimeout, "HTTP timeout of a single status probe")
	pf.String("progress-query", consts.DefaultProgressQuery, "jq expression selecting the progress value")
	pf.String("log-level", "info", "debug, info, warn or error")
	pf.String("log-format", "json", "json or text")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address")

	load := func(cmd *cobra.Command, req config.Requirement) (*protocol.Config, error) {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return nil, err
		}
		if err := config.Validate(cfg, req); err != nil {
			return nil, err
		}
		logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
		return cfg, nil
	}

	runCmd := &cobra.Command{
		Use:   "run [-- node command...]",
		Short: "Resolve the target, launch the node and supervise it until it syncs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRun(cmd, cfgFile, args)
			if err != nil {
				return err
			}
			logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)

			prober, err := probe.New(cfg.Probe.Timeout, cfg.Probe.ProgressQuery)
			if err != nil {
				return err
			}

			metrics := monitor.NewMetrics()
			if cfg.Observability.MetricsAddr != "" {
				srv := metrics.Serve(cfg.Observability.MetricsAddr)
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			v := orchestrator.NewEngine(cfg, prober, orchestrator.WithMetrics(metrics)).Run(ctx)
			return verdictError(cmd, v)
		},
	}

	probeCmd := &cobra.Command{
		Use:   "probe [endpoint]",
		Short: "Fetch the progress value from a status endpoint once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd, config.NeedLocal)
			if err != nil {
				return err
			}
			endpoint := cfg.Sync.LocalEndpoint
			if len(args) == 1 {
				endpoint = args[0]
			}
			prober, err := probe.New(cfg.Probe.Timeout, cfg.Probe.ProgressQuery)
			if err != nil {
				return err
			}
			v, err := prober.FetchProgress(cmd.Context(), endpoint)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	targetCmd := &cobra.Command{
		Use:   "target",
		Short: "Print the reference progress and the resulting sync target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd, config.NeedReference)
			if err != nil {
				return err
			}
			prober, err := probe.New(cfg.Probe.Timeout, cfg.Probe.ProgressQuery)
			if err != nil {
				return err
			}
			t, err := tracker.ResolveTarget(cmd.Context(), prober, cfg.Sync.ReferenceEndpoint, cfg.Sync.Delta)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reference=%d target=%d\n", t.Reference, t.Target)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, probeCmd, targetCmd)
	return rootCmd
}

// loadRun loads the configuration for `run`; a command after "--" overrides
// node.command.
func loadRun(cmd *cobra.Command, cfgFile string, args []string) (*protocol.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Node.Command = args
	}
	if err := config.Validate(cfg, config.NeedReference|config.NeedLocal|config.NeedNode); err != nil {
		return nil, err
	}
	return cfg, nil
}

// verdictError prints the verdict and turns a failure into the command error.
func verdictError(cmd *cobra.Command, v tracker.Verdict) error {
	if v.Success {
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully synced to %d in %s (%.2f per second)\n",
			v.FinalProgress, v.Elapsed.Round(time.Second), v.Throughput)
		return nil
	}
	return fmt.Errorf("sync failed at progress %d after %s: %w", v.FinalProgress, v.Elapsed.Round(time.Second), v.Err)
}

// Execute runs the CLI and exits non-zero on any failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Exiting!", err)
		os.Exit(1)
	}
}

// Personal.AI order the ending
