// Package imports loads registry data from uploaded spreadsheets and CT-e
// XML documents.
package imports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/frete360/frete_backend/utils"
	"github.com/xuri/excelize/v2"
)

// table is a header row plus data rows. Line numbers are 1-based and count
// the header, so the first data row is line 2.
type table struct {
	columns map[string]int
	rows    [][]string
}

// readTable reads the first sheet of an .xlsx file or a .csv file.
func readTable(filename string, r io.Reader) (*table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(r)
	case ".csv", ".txt":
		records, err = readCSV(r)
	default:
		return nil, utils.NewValidationError("file", "unsupported file type %q (use .xlsx or .csv)", filepath.Ext(filename))
	}
	if err != nil {
		return nil, utils.NewValidationError("file", "%v", err)
	}
	if len(records) == 0 {
		return nil, utils.NewValidationError("file", "the file has no header row")
	}

	t := &table{columns: make(map[string]int, len(records[0]))}
	for i, name := range records[0] {
		key := columnKey(name)
		if _, dup := t.columns[key]; key != "" && !dup {
			t.columns[key] = i
		}
	}
	t.rows = records[1:]
	return t, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	// raw values keep dates as serial numbers instead of locale-formatted text
	return f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		reader.Comma = ';'
	}
	return reader.ReadAll()
}

func columnKey(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
}

// require fails when any of the named columns is absent.
func (t *table) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := t.columns[columnKey(n)]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return utils.NewValidationError("file", "missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (t *table) cell(row []string, name string) string {
	i, ok := t.columns[columnKey(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	d, err := utils.ParseDecimal(value)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative number %q", value)
	}
	return int(d.Round(0).IntPart()), nil
}

// parseCellDate accepts the text layouts of utils.ParseDate and spreadsheet
// serial dates.
func parseCellDate(value string) (time.Time, error) {
	if t, err := utils.ParseDate(value); err == nil {
		return t, nil
	}
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return utils.DateOnly(t), nil
}

// parseActive treats a blank cell as active.
func parseActive(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "", "1", "s", "sim", "y", "yes", "true", "ativo", "verdadeiro":
		return true, nil
	case "0", "n", "nao", "não", "no", "false", "inativo", "falso":
		return false, nil
	}
	return false, fmt.Errorf("invalid Ativo value %q", value)
}
