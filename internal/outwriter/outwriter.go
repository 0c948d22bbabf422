// Package outwriter renders query results as tables, CSV or JSON.
package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"
)

// Report is one printable result. Text and CSV output use Header and Rows; JSON output
// encodes Data so machine consumers get the typed values.
type Report struct {
	Title  string
	Header []string
	Rows   [][]string
	Footer string
	Data   any
}

// Write prints the report in the configured output format.
func Write(r Report, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, r.Data)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVWithHeader(w, r.Header, func(cw *csv.Writer) error {
				return cw.WriteAll(stripColors(r.Rows))
			})
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is only supported by the export command")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeTable(w, r)
		}, "Wrote table")
	}
}

// writeTable renders the human-readable table.
func writeTable(w io.Writer, r Report) error {
	if r.Title != "" {
		if _, err := fmt.Fprintln(w, r.Title); err != nil {
			return err
		}
	}
	table := tablewriter.NewWriter(w)
	table.Header(r.Header)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(r.Rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if r.Footer != "" {
		if _, err := fmt.Fprintln(w, r.Footer); err != nil {
			return err
		}
	}
	return nil
}

// writeWithFile opens the output, runs writer against it and closes it again.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeCSVWithHeader(w io.Writer, header []string, writeRows func(*csv.Writer) error) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	return writeRows(csvWriter)
}

// maxNameWidth is how wide a target name column may get on the current terminal.
func maxNameWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	available := width - 90 // the numeric columns of the widest table
	return max(12, min(available, 40))
}

// truncate shortens s to n runes with a trailing ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
