// Package commands implements CLI command handlers for branchweight.
package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/branchweight/internal/accounting"
	"github.com/Sumatoshi-tech/branchweight/internal/config"
	"github.com/Sumatoshi-tech/branchweight/internal/observability"
	"github.com/Sumatoshi-tech/branchweight/internal/report"
	"github.com/Sumatoshi-tech/branchweight/pkg/gitcli"
	"github.com/Sumatoshi-tech/branchweight/pkg/version"
)

// ErrAborted is returned when the user declines the large-run confirmation.
var ErrAborted = errors.New("aborted")

// sourceOpener abstracts gitcli.Open for tests.
type sourceOpener func(ctx context.Context, path string) (gitcli.Source, error)

// AnalyzeCommand holds configuration and dependencies for the analyze command.
type AnalyzeCommand struct {
	repo       string
	outDir     string
	branch     string
	breakdown  string
	workers    int
	top        int
	limit      int
	plot       bool
	noColor    bool
	noPrompt   bool
	configPath string

	otlpEndpoint string
	metricsAddr  string
	logLevel     string

	open sourceOpener
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	return newAnalyzeCommandWithDeps(func(ctx context.Context, path string) (gitcli.Source, error) {
		return gitcli.Open(ctx, path)
	})
}

func newAnalyzeCommandWithDeps(open sourceOpener) *cobra.Command {
	ac := &AnalyzeCommand{open: open}

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Weigh unmerged branches by on-disk object size",
		Long: "Compute total, unique and shared on-disk object sizes for every\n" +
			"branch not merged into the repository's default branch.",
		Args: cobra.MaximumNArgs(1),
		RunE: ac.run,
	}

	cmd.Flags().StringVarP(&ac.repo, "repo", "p", "", "Repository path (default: current directory)")
	cmd.Flags().StringVarP(&ac.outDir, "out", "o", "", "Report output directory")
	cmd.Flags().StringVarP(&ac.branch, "branch", "b", "", "Default branch override (skips master/main detection)")
	cmd.Flags().StringVar(&ac.breakdown, "breakdown", "", "Also write a per-commit breakdown for this branch")
	cmd.Flags().IntVar(&ac.workers, "workers", 0, "Number of parallel workers (0 = use CPU count)")
	cmd.Flags().IntVar(&ac.top, "top", 0, "Write per-commit breakdowns for the N heaviest branches")
	cmd.Flags().IntVar(&ac.limit, "limit", 0, "Limit table rows (0 = all branches)")
	cmd.Flags().BoolVar(&ac.plot, "plot", false, "Render an HTML chart of the heaviest branches")
	cmd.Flags().BoolVar(&ac.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVarP(&ac.noPrompt, "yes", "y", false, "Skip the confirmation prompt on large repositories")
	cmd.Flags().StringVar(&ac.configPath, "config", "", "Config file path (default: .branchweight.yaml in CWD or $HOME)")

	cmd.Flags().StringVar(&ac.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address (empty = telemetry disabled)")
	cmd.Flags().StringVar(&ac.metricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /readyz on this address")
	cmd.Flags().StringVar(&ac.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	return cmd
}

func (ac *AnalyzeCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := ac.loadConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The diagnostics server comes first: its Prometheus reader must be
	// attached to the meter provider for run instruments to reach /metrics.
	var diag *observability.DiagnosticsServer

	obsCfg := observability.Config{
		ServiceVersion: version.Version,
		Environment:    cfg.Observability.Environment,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		OTLPInsecure:   cfg.Observability.OTLPInsecure,
		LogLevel:       parseLogLevel(cfg.Observability.LogLevel),
	}

	if cfg.Observability.MetricsAddr != "" {
		var diagErr error

		diag, diagErr = observability.NewDiagnosticsServer(cfg.Observability.MetricsAddr)
		if diagErr != nil {
			return fmt.Errorf("start diagnostics server: %w", diagErr)
		}

		defer diag.Close()

		obsCfg.PrometheusReader = diag.Reader()
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "telemetry shutdown: %v\n", shutdownErr)
		}
	}()

	if diag != nil {
		providers.Logger.InfoContext(ctx, "diagnostics listening", "addr", diag.Addr())
	}

	metrics, err := observability.NewRunMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	return ac.analyze(ctx, cmd, cfg, providers, metrics)
}

// loadConfig merges the config file with explicitly-set flags; flags win.
func (ac *AnalyzeCommand) loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(ac.configPath)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Repo = args[0]
	} else if ac.repo != "" {
		cfg.Repo = ac.repo
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = ac.workers
	}

	if flags.Changed("out") {
		cfg.Output.Dir = ac.outDir
	}

	if flags.Changed("top") {
		cfg.Output.Top = ac.top
	}

	if flags.Changed("limit") {
		cfg.Output.Limit = ac.limit
	}

	if flags.Changed("plot") {
		cfg.Output.Plot = ac.plot
	}

	if flags.Changed("no-color") {
		cfg.Output.NoColor = ac.noColor
	}

	if flags.Changed("otlp-endpoint") {
		cfg.Observability.OTLPEndpoint = ac.otlpEndpoint
	}

	if flags.Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = ac.metricsAddr
	}

	if flags.Changed("log-level") {
		cfg.Observability.LogLevel = ac.logLevel
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, validateErr
	}

	return cfg, nil
}

func (ac *AnalyzeCommand) analyze(
	ctx context.Context,
	cmd *cobra.Command,
	cfg *config.Config,
	providers observability.Providers,
	metrics *observability.RunMetrics,
) error {
	logger := providers.Logger
	started := time.Now()

	source, err := ac.open(ctx, cfg.Repo)
	if err != nil {
		return err
	}

	defaultRef, err := ac.resolveDefaultRef(ctx, source)
	if err != nil {
		return err
	}

	branches, err := source.UnmergedBranches(ctx, defaultRef)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "repository scanned",
		"repo", cfg.Repo, "default_branch", defaultRef, "branches", len(branches))

	if len(branches) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "All branches are merged into %s.\n", shortRef(defaultRef))

		return nil
	}

	if !ac.noPrompt && len(branches) > config.DefaultPromptThreshold {
		if !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), len(branches)) {
			return ErrAborted
		}
	}

	engine := &accounting.Engine{
		Source:  source,
		Workers: cfg.Workers,
		Logger:  logger,
		Tracer:  providers.Tracer,
		Metrics: metrics,
	}

	result, err := engine.Run(ctx, defaultRef, branches)
	if err != nil {
		return err
	}

	if writeErr := ac.writeReports(ctx, cmd, cfg, engine, result, defaultRef); writeErr != nil {
		return writeErr
	}

	logger.InfoContext(ctx, "run completed",
		"elapsed", time.Since(started), "failed_branches", len(result.Errors))

	if len(result.Errors) == len(branches) {
		return fmt.Errorf("all %d branches failed", len(branches))
	}

	return nil
}

func (ac *AnalyzeCommand) writeReports(
	ctx context.Context,
	cmd *cobra.Command,
	cfg *config.Config,
	engine *accounting.Engine,
	result *accounting.Result,
	defaultRef string,
) error {
	out := cmd.OutOrStdout()

	report.RenderTable(out, shortRef(defaultRef), result, report.TableOptions{
		Limit:   cfg.Output.Limit,
		NoColor: cfg.Output.NoColor,
	})

	writer, err := report.NewWriter(cfg.Output.Dir)
	if err != nil {
		return err
	}

	if err := writer.WriteResult(shortRef(defaultRef), result); err != nil {
		return err
	}

	for _, branch := range breakdownTargets(cfg, ac.breakdown, result) {
		weights, breakdownErr := engine.CommitBreakdown(ctx, branch)
		if breakdownErr != nil {
			return breakdownErr
		}

		if writeErr := writer.WriteBreakdown(branch, weights); writeErr != nil {
			return writeErr
		}

		fmt.Fprintln(out)
		report.RenderBreakdown(out, branch, weights)
	}

	if cfg.Output.Plot {
		path, plotErr := writer.WritePlot(shortRef(defaultRef), result)
		if plotErr != nil {
			return plotErr
		}

		fmt.Fprintf(out, "\nChart written to %s\n", path)
	}

	fmt.Fprintf(out, "\nReports written to %s\n", writer.Dir())

	return nil
}

// breakdownTargets selects branches for per-commit breakdowns: the N
// heaviest by configuration plus an explicitly requested one. Branches that
// failed collection are skipped.
func breakdownTargets(cfg *config.Config, explicit string, result *accounting.Result) []string {
	var targets []string

	seen := make(map[string]bool)

	add := func(branch string) {
		if branch == "" || seen[branch] || result.Errors[branch] != nil {
			return
		}

		seen[branch] = true
		targets = append(targets, branch)
	}

	add(explicit)

	for i := 0; i < cfg.Output.Top && i < len(result.Weights); i++ {
		add(result.Weights[i].Branch)
	}

	return targets
}

// resolveDefaultRef applies the --branch override or falls back to
// master/main autodetection.
func (ac *AnalyzeCommand) resolveDefaultRef(ctx context.Context, source gitcli.Source) (string, error) {
	if ac.branch == "" {
		return source.DefaultBranch(ctx)
	}

	if strings.HasPrefix(ac.branch, "refs/") {
		return ac.branch, nil
	}

	return "refs/heads/" + ac.branch, nil
}

// confirm asks the user before weighing an unusually large branch set.
func confirm(in io.Reader, out io.Writer, branches int) bool {
	fmt.Fprintf(out, "About to weigh %d branches, which may take a while. Continue? [y/N] ", branches)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "y" || answer == "yes"
}

// shortRef strips the refs/heads/ prefix for display.
func shortRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
