package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// naMarkers are read as null, matching the usual dataframe defaults.
var naMarkers = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"NULL": true,
	"null": true,
	"#N/A": true,
	"None": true,
}

// IsNA reports whether a raw CSV cell denotes a missing value.
func IsNA(s string) bool {
	return naMarkers[strings.TrimSpace(s)]
}

// ReadCSV decodes r from the named charset (any WHATWG label, e.g. "utf-8",
// "windows-1252", "gbk"), tolerating a byte order mark. A column whose non-null
// cells all parse as numbers becomes numeric; any other column keeps text.
func ReadCSV(r io.Reader, charset string) (*Table, error) {
	if charset == "" {
		charset = "utf-8"
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	decoded := transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))

	reader := csv.NewReader(decoded)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: no header row")
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	body := records[1:]

	numeric := make([]bool, len(header))
	for j := range header {
		numeric[j] = true
		for _, rec := range body {
			cell := rec[j]
			if IsNA(cell) {
				continue
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
				numeric[j] = false
				break
			}
		}
	}

	table := NewTable(header)
	table.Rows = make([][]Value, len(body))
	for i, rec := range body {
		row := make([]Value, len(header))
		for j, cell := range rec {
			switch {
			case IsNA(cell):
				row[j] = Null()
			case numeric[j]:
				f, _ := strconv.ParseFloat(strings.TrimSpace(cell), 64)
				row[j] = Number(f)
			default:
				row[j] = Text(cell)
			}
		}
		table.Rows[i] = row
	}
	return table, nil
}

func ReadCSVFile(path, charset string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file, charset)
}

// WriteCSV writes the header and rows as UTF-8. Nulls are written empty.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for j, v := range row {
			record[j] = v.String()
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteCSVFile(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, t); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
