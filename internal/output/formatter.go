package output

import (
	"fmt"
	"io"
	"os"

	"github.com/buemura/redirhunt/pkg/types"
)

// Formatter renders a finished scan report to a writer.
type Formatter interface {
	Format(w io.Writer, report types.Report) error
}

// GetFormatter returns the report formatter for the given format string.
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case "text", "txt":
		return &TextFormatter{}, nil
	case "markdown", "md":
		return &MarkdownFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q (supported: text, markdown)", format)
	}
}

// WriteReport renders report with f into the file at path, replacing it.
func WriteReport(path string, f Formatter, report types.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := f.Format(file, report); err != nil {
		file.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return file.Close()
}
