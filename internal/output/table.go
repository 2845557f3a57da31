package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/buemura/redirhunt/pkg/types"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// renderFindings writes the findings as a colored terminal table.
func renderFindings(w io.Writer, findings []types.Evidence) {
	if len(findings) == 0 {
		fmt.Fprintln(w, color.GreenString("  %s", noFindingsLine))
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Parameter", "Encoding", "Status", "Location", "Final URL", "Rule"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")

	for _, ev := range findings {
		table.Append([]string{
			color.YellowString(ev.Parameter),
			string(ev.Encoding),
			colorStatus(ev.StatusCode),
			ev.Location,
			ev.FinalURL,
			string(ev.Rule),
		})
	}

	table.Render()
}

func colorStatus(code int) string {
	s := strconv.Itoa(code)
	switch code {
	case 301, 308:
		return color.MagentaString(s)
	case 302, 303, 307:
		return color.CyanString(s)
	default:
		return s
	}
}
