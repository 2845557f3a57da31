package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/buemura/redirhunt/pkg/types"
)

const (
	noFindingsLine = "No vulnerability found."
	actionLine     = "Action required!"
	secureLine     = "No open redirect detected."
	separator      = "--------------------------------"
)

// TextFormatter renders the flat-text report file.
type TextFormatter struct{}

func (f *TextFormatter) Format(w io.Writer, report types.Report) error {
	var b strings.Builder

	fmt.Fprintln(&b, "OPEN REDIRECT REPORT")
	fmt.Fprintf(&b, "Generated: %s\n", report.CompletedAt.Format(time.DateTime))
	fmt.Fprintln(&b, separator)
	fmt.Fprintf(&b, "Target: %s\n", report.Target.URL)
	fmt.Fprintf(&b, "Parameters: %s\n", strings.Join(report.Parameters, ", "))
	fmt.Fprintf(&b, "Destinations: %d\n", report.Destinations)
	fmt.Fprintln(&b, separator)
	fmt.Fprintln(&b)

	if len(report.Summary.Findings) == 0 {
		fmt.Fprintln(&b, noFindingsLine)
		fmt.Fprintln(&b)
	}
	for _, ev := range report.Summary.Findings {
		fmt.Fprintf(&b, "[VULNERABLE] %s (%s)\n", ev.Parameter, ev.Encoding)
		fmt.Fprintf(&b, "  Test URL:    %s\n", ev.TestURL)
		fmt.Fprintf(&b, "  Location:    %s\n", ev.Location)
		if ev.FinalURL != "" {
			fmt.Fprintf(&b, "  Final URL:   %s\n", ev.FinalURL)
		}
		fmt.Fprintf(&b, "  Status:      %d\n", ev.StatusCode)
		fmt.Fprintf(&b, "  Rule:        %s\n", ev.Rule)
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "STATISTICS")
	fmt.Fprintf(&b, "  Probes tested:    %d\n", report.Summary.Tested)
	fmt.Fprintf(&b, "  Vulnerabilities:  %d\n", report.Summary.Vulnerable)
	fmt.Fprintf(&b, "  Failed requests:  %d\n", report.Summary.Failed)
	fmt.Fprintf(&b, "  Elapsed:          %s\n", report.Elapsed().Round(time.Millisecond))
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, verdictLine(report.Summary))

	_, err := io.WriteString(w, b.String())
	return err
}

func verdictLine(s types.Summary) string {
	if s.Vulnerable > 0 {
		return actionLine
	}
	return secureLine
}
