package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Load reads a dataset from a .csv or .xlsx file. The first row is the
// header; workbook datasets are read from the first sheet.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".xlsx":
		return LoadWorkbook(path)
	default:
		return nil, fmt.Errorf("tabular: unsupported dataset format: %s", filepath.Ext(path))
	}
}

// LoadCSV reads a delimited dataset with a header row.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tabular: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("tabular: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("tabular: %s: empty dataset", path)
	}
	return fromRecords(records)
}

// LoadWorkbook reads the first sheet of an Excel workbook as a dataset.
func LoadWorkbook(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("tabular: open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("tabular: %s: workbook has no sheets", path)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("tabular: read sheet %q: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("tabular: %s: empty dataset", path)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) (*Table, error) {
	header := records[0]
	width := len(header)
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, width)
		for i := 0; i < width && i < len(rec); i++ {
			row[i] = rec[i]
		}
		rows = append(rows, row)
	}
	return New(header, rows)
}
