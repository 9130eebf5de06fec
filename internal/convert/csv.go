package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVConverter renders a CSV file as a markdown table; the first record is
// the header row.
type CSVConverter struct{}

func (c *CSVConverter) Convert(r io.Reader, filename string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return &Result{}, nil
	}

	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(" " + escapeCell(cell) + " |")
		}
		b.WriteString("\n")
	}

	writeRow(records[0])
	b.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	for _, rec := range records[1:] {
		writeRow(rec)
	}
	return &Result{Text: b.String()}, nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
