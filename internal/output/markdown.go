package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/buemura/redirhunt/pkg/types"
)

// MarkdownFormatter renders the report as Markdown suitable for pasting
// into tickets or pull-request descriptions.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(w io.Writer, report types.Report) error {
	fmt.Fprintf(w, "## Open redirect report — %s\n\n", report.Target.Host)
	fmt.Fprintf(w, "- **Target:** `%s`\n", report.Target.URL)
	fmt.Fprintf(w, "- **Generated:** %s\n", report.CompletedAt.Format(time.DateTime))
	fmt.Fprintf(w, "- **Parameters:** %s\n", escapeMarkdown(strings.Join(report.Parameters, ", ")))
	fmt.Fprintf(w, "- **Destinations:** %d\n\n", report.Destinations)

	if len(report.Summary.Findings) == 0 {
		fmt.Fprintf(w, "_%s_\n", noFindingsLine)
	} else {
		fmt.Fprintln(w, "| Parameter | Encoding | Status | Test URL | Location | Final URL |")
		fmt.Fprintln(w, "|-----------|----------|--------|----------|----------|-----------|")
		for _, ev := range report.Summary.Findings {
			fmt.Fprintf(w, "| %s | %s | %d | %s | %s | %s |\n",
				escapeMarkdown(ev.Parameter),
				ev.Encoding,
				ev.StatusCode,
				codeSpan(ev.TestURL),
				codeSpan(ev.Location),
				codeSpan(ev.FinalURL),
			)
		}
	}

	_, err := fmt.Fprintf(w, "\n%s\n\n**%s**\n", markdownSummary(report), verdictLine(report.Summary))
	return err
}

// escapeMarkdown escapes pipe characters that would break Markdown tables.
func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func codeSpan(s string) string {
	if s == "" {
		return ""
	}
	return "`" + escapeMarkdown(strings.ReplaceAll(s, "`", "%60")) + "`"
}

func markdownSummary(report types.Report) string {
	s := report.Summary
	return fmt.Sprintf("**Summary:** %d probes tested, %d vulnerable, %d failed (%s)",
		s.Tested, s.Vulnerable, s.Failed, report.Elapsed().Round(time.Millisecond))
}
