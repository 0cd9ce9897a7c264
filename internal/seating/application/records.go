package application

import (
	"errors"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Record is one non-empty input row with its 1-based file line number.
type Record struct {
	Line  int
	Cells []string
}

// SplitLine splits one CSV line on commas. A double quote toggles quoting and
// is dropped; commas inside quotes are kept. Cells are trimmed.
func SplitLine(line string) []string {
	var (
		cells    []string
		current  strings.Builder
		inQuotes bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			cells = append(cells, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	cells = append(cells, strings.TrimSpace(current.String()))
	return cells
}

// ParseLines turns raw CSV lines into records. Blank lines and lines starting
// with '#' are skipped but still count toward line numbers.
func ParseLines(lines []string) []Record {
	records := make([]Record, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if i == 0 {
			trimmed = strings.TrimPrefix(trimmed, "\ufeff")
		}
		if skipLine(trimmed) {
			continue
		}
		records = append(records, Record{Line: i + 1, Cells: SplitLine(trimmed)})
	}
	return records
}

// SplitContent splits an uploaded CSV body into lines.
func SplitContent(content string) []string {
	return strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
}

// ReadXLSX reads the first sheet of a workbook into records using the same
// skipping rules as ParseLines.
func ReadXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx import: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = strings.TrimSpace(cell)
		}
		if skipLine(strings.Join(cells, "")) || strings.HasPrefix(firstCell(cells), "#") {
			continue
		}
		records = append(records, Record{Line: i + 1, Cells: cells})
	}
	return records, nil
}

func skipLine(line string) bool {
	return line == "" || strings.HasPrefix(line, "#")
}

func firstCell(cells []string) string {
	if len(cells) == 0 {
		return ""
	}
	return cells[0]
}
