package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"
)

// CSV extracts comma-separated files as an aligned plain-text table.
type CSV struct{}

func (c *CSV) Extract(_ context.Context, content []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parsing csv: %w", err)
	}
	return renderTable(rows), nil
}

// XLSX extracts the first sheet of a spreadsheet as an aligned plain-text
// table.
type XLSX struct{}

func (x *XLSX) Extract(_ context.Context, content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return renderTable(rows), nil
}

// renderTable writes rows as a human-readable column-aligned dump, the way a
// person would print the table, rather than re-encoding it structurally.
func renderTable(rows [][]string) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}
