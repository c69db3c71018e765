package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/internal/debug"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/metrics"
	"github.com/dyike/CortexAgents/internal/server"
	"github.com/dyike/CortexAgents/internal/trace"
	"github.com/dyike/CortexAgents/pkg/app"
)

type rootOptions struct {
	configPath string
	debug      bool

	mgr *config.Manager
}

func (o *rootOptions) manager() (*config.Manager, error) {
	if o.mgr != nil {
		return o.mgr, nil
	}
	opts := []config.ManagerOption{config.WithEnvOverrides()}
	if o.configPath != "" {
		opts = append(opts, config.WithConfigPath(o.configPath))
	}
	mgr, err := config.NewManager(opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	o.mgr = mgr
	return mgr, nil
}

// runtime brings up tracing, the eino debugger and the app runtime. The
// returned cleanup is safe to call even when err is non-nil.
func (o *rootOptions) runtime(ctx context.Context, extra ...app.Option) (*app.Runtime, func(), error) {
	noop := func() {}
	mgr, err := o.manager()
	if err != nil {
		return nil, noop, err
	}
	cfg := mgr.Get()

	if err := debug.NewEinoDebugger(cfg).Initialize(ctx); err != nil {
		return nil, noop, err
	}
	if err := trace.Init(cfg.TraceEnabled, Version); err != nil {
		return nil, noop, fmt.Errorf("init tracing: %w", err)
	}

	rt, err := app.NewRuntime(ctx, mgr, extra...)
	if err != nil {
		_ = trace.Shutdown(context.Background())
		return nil, noop, err
	}
	if o.debug {
		logger.SetLevel("debug")
	}
	return rt, func() {
		if err := rt.Close(); err != nil {
			logger.L().Warn().Err(err).Msg("close runtime")
		}
		_ = trace.Shutdown(context.Background())
	}, nil
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cortex",
		Short: "CortexAgents - multi-agent trading analysis",
		Long: `CortexAgents runs a team of LLM agents over market, fundamental, social and news data,
debates the evidence, reviews the risk and produces a BUY, SELL or HOLD decision.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			rt, cleanup, err := opts.runtime(ctx, app.WithObserver(NewProgressTracker(out)))
			defer cleanup()
			if err != nil {
				return err
			}
			return NewInteractiveSession(rt, out).Start(ctx)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newAnalyzeCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newReflectCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		date     string
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL [SYMBOL...]",
		Short: "Run trading analysis for one or more symbols",
		Long: `Run the full agent pipeline for each symbol.
Example: cortex analyze AAPL --date=2024-03-15`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				rt, cleanup, err := opts.runtime(ctx, app.WithObserver(NewProgressTracker(out)))
				defer cleanup()
				if err != nil {
					return err
				}
				return runAnalysis(ctx, rt, out, args[0], date)
			}

			rt, cleanup, err := opts.runtime(ctx)
			defer cleanup()
			if err != nil {
				return err
			}
			bm := NewBatchManager(rt.Service(), parallel, out)
			results, err := bm.RunBatchAnalysis(ctx, args, date)
			bm.DisplaySummary(results)
			return err
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Analysis date in YYYY-MM-DD format (today if not provided)")
	cmd.Flags().IntVar(&parallel, "parallel", 2, "Concurrent analyses when several symbols are given")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, cleanup, err := opts.runtime(ctx)
			defer cleanup()
			if err != nil {
				return err
			}

			cfg := rt.Config()
			if addr == "" {
				addr = cfg.HTTPAddr
			}
			if cfg.MetricsAddr != "" {
				msrv := metrics.Serve(cfg.MetricsAddr)
				defer msrv.Close()
			}

			srv := server.New(addr, rt.Service())
			DisplayInfo(cmd.OutOrStdout(), "listening on "+srv.Addr())
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to http_addr from config)")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		cursor   int64
		limit    int
		messages bool
	)
	cmd := &cobra.Command{
		Use:   "history [SESSION_ID]",
		Short: "List past analyses or show one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := opts.runtime(cmd.Context())
			defer cleanup()
			if err != nil {
				return err
			}
			rm := NewResultsManager(rt.Service(), cmd.OutOrStdout())
			if len(args) == 1 {
				return rm.ShowSession(cmd.Context(), args[0], messages)
			}
			_, err = rm.ListSessions(cmd.Context(), cursor, limit)
			return err
		},
	}
	cmd.Flags().Int64Var(&cursor, "cursor", 0, "Continue listing from this cursor")
	cmd.Flags().IntVar(&limit, "limit", 20, "Sessions per page")
	cmd.Flags().BoolVar(&messages, "messages", false, "Include the full transcript")
	return cmd
}

func newReflectCmd(opts *rootOptions) *cobra.Command {
	var returns float64
	cmd := &cobra.Command{
		Use:   "reflect SESSION_ID",
		Short: "Record realized returns for a session and store the lessons",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := opts.runtime(cmd.Context())
			defer cleanup()
			if err != nil {
				return err
			}
			return NewResultsManager(rt.Service(), cmd.OutOrStdout()).Reflect(cmd.Context(), args[0], returns)
		},
	}
	cmd.Flags().Float64Var(&returns, "returns", 0, "Realized position return as a fraction (0.05 = +5%)")
	_ = cmd.MarkFlagRequired("returns")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CortexAgents %s\n", Version)
		},
	}
}
