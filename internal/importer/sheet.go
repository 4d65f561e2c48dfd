package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// headerScanRows bounds how far down the sheet the header auto-detection
// looks. Exported spreadsheets often carry title or footer rows above the
// real header.
const headerScanRows = 10

// headerMarkers are column names whose presence identifies the header row.
var headerMarkers = []string{"案件編號", "發生時間", "事故編號", "舉發單號"}

// Sheet is a parsed spreadsheet: a header row resolved to column indices and
// the data rows that follow it.
type Sheet struct {
	cols      map[string]int
	rows      [][]string
	headerRow int // 0-based index of the detected header row
}

// OpenSheet reads the first worksheet of an .xlsx stream. The header row is
// auto-detected within the first few rows; column names are cleaned of
// whitespace and newlines before matching.
func OpenSheet(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	headerRow := detectHeaderRow(rows)

	cols := make(map[string]int)
	for i, name := range rows[headerRow] {
		clean := cleanHeader(name)
		if clean == "" {
			continue
		}
		if _, dup := cols[clean]; !dup {
			cols[clean] = i
		}
	}

	return &Sheet{
		cols:      cols,
		rows:      rows[headerRow+1:],
		headerRow: headerRow,
	}, nil
}

// detectHeaderRow scans the first rows for one of the known header markers
// and falls back to row 0.
func detectHeaderRow(rows [][]string) int {
	limit := headerScanRows
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		text := strings.Join(rows[i], " ")
		for _, marker := range headerMarkers {
			if strings.Contains(text, marker) {
				return i
			}
		}
	}
	return 0
}

func cleanHeader(name string) string {
	return strings.NewReplacer("\n", "", "\r", "", " ", "", "　", "").Replace(strings.TrimSpace(name))
}

// Rows returns the data rows below the header, each carrying its 1-based
// spreadsheet row number for error reporting.
func (s *Sheet) Rows() []Row {
	out := make([]Row, 0, len(s.rows))
	for i, cells := range s.rows {
		out = append(out, Row{
			Number: s.headerRow + i + 2,
			cells:  cells,
			cols:   s.cols,
		})
	}
	return out
}

// HasColumn reports whether the sheet's header contains the (cleaned) name.
func (s *Sheet) HasColumn(name string) bool {
	_, ok := s.cols[cleanHeader(name)]
	return ok
}

// Row is one data row bound to its sheet's header map.
type Row struct {
	Number int // 1-based spreadsheet row number
	cells  []string
	cols   map[string]int
}

// Field returns the trimmed value of the first listed column that exists and
// is non-empty. Column name lookup tolerates whitespace in the header.
func (r Row) Field(names ...string) string {
	for _, name := range names {
		idx, ok := r.cols[cleanHeader(name)]
		if !ok || idx >= len(r.cells) {
			continue
		}
		if v := strings.TrimSpace(r.cells[idx]); v != "" {
			return v
		}
	}
	return ""
}

// NonEmptyCells counts cells with any non-whitespace content. Used to tell
// genuinely blank rows apart from rows missing a required field.
func (r Row) NonEmptyCells() int {
	n := 0
	for _, c := range r.cells {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
