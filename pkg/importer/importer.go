// Package importer reads family changeover defaults from an xlsx
// workbook into the bulk upsert shape. Validation happens up front and
// reports row numbers; a workbook with any bad row imports nothing.
package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lineshift/lineshift/pkg/changeover"
)

// Expected header columns, matched case-insensitively.
const (
	colFromFamily = "from_family"
	colToFamily   = "to_family"
	colMinutes    = "minutes"
	colNotes      = "notes"
)

// RowError describes one rejected workbook row. Row numbers are the
// spreadsheet's own 1-based numbering, header included.
type RowError struct {
	Row     int
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Result is a fully validated workbook ready for one atomic bulk upsert.
type Result struct {
	Items []changeover.FamilyDefaultInput

	// Duplicates lists directions that appear more than once; the later
	// row wins on import, and callers may want to warn about it.
	Duplicates []changeover.FamilyPair
}

// ReadFamilyDefaults parses the first sheet of an xlsx workbook. The
// first row must be a header containing at least from_family, to_family,
// and minutes; notes is optional. Any invalid row fails the whole read.
func ReadFamilyDefaults(r io.Reader) (*Result, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	columns, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	result := &Result{Items: []changeover.FamilyDefaultInput{}}
	seen := map[changeover.FamilyPair]bool{}

	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}

		item, err := parseRow(row, columns, rowNum)
		if err != nil {
			return nil, err
		}

		key := changeover.FamilyPair{FromFamily: item.FromFamily, ToFamily: item.ToFamily}
		if seen[key] {
			result.Duplicates = append(result.Duplicates, key)
		}
		seen[key] = true
		result.Items = append(result.Items, item)
	}

	return result, nil
}

// mapHeader locates the known columns in the header row.
func mapHeader(header []string) (map[string]int, error) {
	columns := map[string]int{}
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		switch name {
		case colFromFamily, colToFamily, colMinutes, colNotes:
			columns[name] = i
		}
	}
	for _, required := range []string{colFromFamily, colToFamily, colMinutes} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("header is missing the %s column", required)
		}
	}
	return columns, nil
}

func parseRow(row []string, columns map[string]int, rowNum int) (changeover.FamilyDefaultInput, error) {
	cell := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	item := changeover.FamilyDefaultInput{
		FromFamily: cell(colFromFamily),
		ToFamily:   cell(colToFamily),
		Notes:      cell(colNotes),
	}

	if item.FromFamily == "" {
		return item, &RowError{Row: rowNum, Message: "from_family is empty"}
	}
	if item.ToFamily == "" {
		return item, &RowError{Row: rowNum, Message: "to_family is empty"}
	}

	raw := cell(colMinutes)
	if raw == "" {
		return item, &RowError{Row: rowNum, Message: "minutes is empty"}
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return item, &RowError{Row: rowNum, Message: fmt.Sprintf("minutes %q is not a whole number", raw)}
	}
	if minutes < 0 || minutes > changeover.MaxChangeoverMinutes {
		return item, &RowError{Row: rowNum, Message: fmt.Sprintf("minutes %d is outside 0..%d", minutes, changeover.MaxChangeoverMinutes)}
	}
	item.Minutes = minutes

	return item, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
