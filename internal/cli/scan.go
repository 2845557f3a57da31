package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/buemura/redirhunt/internal/output"
	"github.com/buemura/redirhunt/internal/scanner"
	"github.com/buemura/redirhunt/internal/wordlist"
	"github.com/buemura/redirhunt/pkg/types"
	"github.com/spf13/cobra"
)

var noProgressFlag bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe a target for open redirects",
	Long: `Injects every destination from the payloads file into every parameter
from the params file, once raw and once percent-encoded, and reports the
probes whose redirect leads to the injected destination or off the target.`,
	Example: `  redirhunt scan -t https://example.com/login --params params.txt --payloads payloads.txt
  redirhunt scan --target-file target.txt -c 10 --delay 250ms --report findings.md --report-format markdown`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	d := scanner.DefaultConfig()
	f := scanCmd.Flags()
	f.StringP("target", "t", "", "base URL to probe")
	f.String("target-file", "", "file whose first line is the base URL")
	f.StringP("params", "p", "params.txt", "file with parameter names, one per line")
	f.StringP("payloads", "d", "payloads.txt", "file with redirect destinations, one per line")
	f.StringP("report", "o", "report.txt", "report file path")
	f.String("report-format", "text", "report format: text, markdown")
	f.IntP("concurrency", "c", d.MaxConcurrency, "max probes in flight")
	f.Duration("timeout", d.RequestTimeout, "per-request timeout")
	f.Duration("delay", d.RequestDelay, "pause after each probe and between retries")
	f.IntP("retries", "r", d.MaxRetries, "retries per probe after a transport failure or 429")
	f.Duration("rate-limit-delay", d.RateLimitDelay, "back-off after an HTTP 429")
	f.Int("max-redirects", d.MaxRedirects, "hops followed when confirming a redirect")
	f.Float64("rate", 0, "global request-per-second cap (0 = unlimited)")
	f.StringArray("user-agent", nil, "User-Agent to rotate through (repeatable)")
	f.BoolP("insecure", "k", false, "skip TLS certificate verification")
	f.BoolVar(&noProgressFlag, "no-progress", false, "hide the progress bar")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	formatter, err := output.GetFormatter(cfg.ReportFormat)
	if err != nil {
		return err
	}

	target, err := resolveTarget(cfg.Target, cfg.TargetFile)
	if err != nil {
		return err
	}
	params, err := loadList("parameters", cfg.ParamsFile)
	if err != nil {
		return err
	}
	destinations, err := loadList("destinations", cfg.PayloadsFile)
	if err != nil {
		return err
	}

	var progress io.Writer
	if !noProgressFlag && !quietFlag {
		progress = cmd.ErrOrStderr()
	}
	console := output.NewConsole(cmd.OutOrStdout(), progress)
	console.Banner(target, len(params), len(destinations))

	logger := newLogger(cmd.ErrOrStderr())
	runner := scanner.NewRunner(cfg.ScanConfig(target.URL, params, destinations, &logger))
	runner.SetObserver(console)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	report := types.Report{
		Target:       target,
		Parameters:   params,
		Destinations: len(destinations),
		StartedAt:    startedAt,
		CompletedAt:  time.Now(),
		Summary:      summary,
	}
	console.Summary(report)

	if err := output.WriteReport(cfg.ReportPath, formatter, report); err != nil {
		return err
	}
	if abs, err := filepath.Abs(cfg.ReportPath); err == nil {
		console.ReportSaved(abs)
	} else {
		console.ReportSaved(cfg.ReportPath)
	}

	runner.Finish()
	return nil
}

func resolveTarget(raw, file string) (types.Target, error) {
	if raw == "" && file != "" {
		line, err := wordlist.LoadTarget(file)
		if err != nil {
			return types.Target{}, &scanner.ConfigError{Source: "target", Err: err}
		}
		raw = line
	}
	if raw == "" {
		return types.Target{}, fmt.Errorf("--target (-t) or --target-file is required")
	}

	target, err := types.ParseTarget(raw)
	if err != nil {
		return types.Target{}, &scanner.ConfigError{Source: "target", Err: err}
	}
	return target, nil
}

func loadList(source, path string) ([]string, error) {
	lines, err := wordlist.Load(path)
	if err != nil {
		return nil, &scanner.ConfigError{Source: source, Err: err}
	}
	if len(lines) == 0 {
		return nil, &scanner.ConfigError{Source: source, Err: fmt.Errorf("%s: %w", path, scanner.ErrEmptySource)}
	}
	return lines, nil
}
