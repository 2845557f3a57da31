package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/buemura/redirhunt/internal/scanner"
	"github.com/buemura/redirhunt/pkg/types"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

var _ scanner.Observer = (*Console)(nil)

// Console is the live terminal reporter. It receives probe outcomes from
// the scanner's workers, so every method is safe for concurrent use.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	progress io.Writer
	bar      *progressbar.ProgressBar
}

// NewConsole writes findings to out and, if progress is non-nil, draws a
// progress bar on it.
func NewConsole(out, progress io.Writer) *Console {
	return &Console{out: out, progress: progress}
}

// Banner prints the scan header.
func (c *Console) Banner(target types.Target, params, destinations int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintln(c.out, "OPEN REDIRECT SCAN")
	cyan.Fprintln(c.out, "================================")
	fmt.Fprintf(c.out, "Target:        %s\n", target.URL)
	fmt.Fprintf(c.out, "Destinations:  %d\n", destinations)
	fmt.Fprintf(c.out, "Parameters:    %d\n", params)
	fmt.Fprintf(c.out, "Probes:        %d\n\n", params*destinations*len(types.Encodings))
}

func (c *Console) ScanStarted(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil || total == 0 {
		return
	}
	c.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.progress),
		progressbar.OptionEnableColorCodes(!color.NoColor),
		progressbar.OptionSetDescription("[cyan]Probing...[reset]"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func (c *Console) ProbeFinished(out scanner.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch out.Verdict {
	case scanner.VerdictVulnerable:
		c.clearBar()
		c.printFinding(*out.Evidence)
	case scanner.VerdictFailed:
		c.clearBar()
		color.New(color.FgRed).Fprintf(c.out, "[FAILED] %s (%d attempts): %v\n", out.TestURL, out.Attempts, out.Err)
	}

	if c.bar != nil {
		_ = c.bar.Add(1)
	}
}

func (c *Console) printFinding(ev types.Evidence) {
	color.New(color.FgYellow, color.Bold).Fprintf(c.out, "[VULNERABLE] %s (%s)\n", ev.Parameter, ev.Encoding)
	color.New(color.FgCyan).Fprintf(c.out, "  Tested:      %s\n", ev.TestURL)
	color.New(color.FgGreen).Fprintf(c.out, "  Redirects:   %s\n", ev.Location)
	if ev.FinalURL != "" {
		color.New(color.FgGreen).Fprintf(c.out, "  Final URL:   %s\n", ev.FinalURL)
	}
	color.New(color.FgCyan).Fprintf(c.out, "  Status:      %d\n\n", ev.StatusCode)
}

func (c *Console) clearBar() {
	if c.bar != nil {
		_ = c.bar.Clear()
	}
}

// Summary prints the end-of-run counters and the findings table.
func (c *Console) Summary(report types.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		_ = c.bar.Finish()
		c.bar = nil
	}

	s := report.Summary
	fmt.Fprintln(c.out)
	color.New(color.FgGreen, color.Bold).Fprintln(c.out, "RESULTS")
	fmt.Fprintf(c.out, "  Vulnerabilities:  %d\n", s.Vulnerable)
	fmt.Fprintf(c.out, "  Probes tested:    %d\n", s.Tested)
	fmt.Fprintf(c.out, "  Failed requests:  %d\n", s.Failed)
	fmt.Fprintf(c.out, "  Elapsed:          %s\n\n", report.Elapsed().Round(10*time.Millisecond))

	renderFindings(c.out, s.Findings)

	if s.Vulnerable > 0 {
		color.New(color.FgYellow, color.Bold).Fprintf(c.out, "\n%s\n", actionLine)
	} else {
		color.New(color.FgGreen).Fprintf(c.out, "\n%s\n", secureLine)
	}
}

// ReportSaved tells the user where the report file went.
func (c *Console) ReportSaved(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	color.New(color.FgCyan).Fprintf(c.out, "Report saved to %s\n", path)
}
