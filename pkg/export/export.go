// Package export renders tabular query results as CSV or Excel workbooks.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/admin-portal/pkg/odata"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// maxSheetName is Excel's limit on worksheet names.
const maxSheetName = 31

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(CSV):
		return CSV, nil
	case string(XLSX):
		return XLSX, nil
	default:
		return "", serrors.FieldError("format", fmt.Sprintf("unsupported export format %q", s))
	}
}

func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) Filename(base string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", base, now.UTC().Format("20060102-150405"), f)
}

type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]any
}

func FromResult(sheet string, res *odata.Result) Table {
	t := Table{Sheet: sheet, Headers: make([]string, len(res.Columns)), Rows: make([][]any, 0, len(res.Rows))}
	for i, c := range res.Columns {
		t.Headers[i] = c.Label()
	}
	for _, row := range res.Rows {
		values := make([]any, len(res.Columns))
		for i, c := range res.Columns {
			values[i] = row[c.Name]
		}
		t.Rows = append(t.Rows, values)
	}
	return t
}

func Write(w io.Writer, format Format, t Table) error {
	switch format {
	case XLSX:
		return writeXLSX(w, t)
	default:
		return writeCSV(w, t)
	}
}

func writeCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	record := make([]string, len(t.Headers))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = cell(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Export"
	}
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	headers := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = h
	}
	if err := sw.SetRow("A1", headers, excelize.RowOpts{StyleID: header}); err != nil {
		return err
	}
	for r, row := range t.Rows {
		addr, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = xlsxValue(v)
		}
		if err := sw.SetRow(addr, values); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func xlsxValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, int, int32, int64, float32, float64:
		return val
	case time.Time:
		return val.UTC()
	default:
		return cell(v)
	}
}

// cell formats v for a CSV cell. Text that a spreadsheet would evaluate as a
// formula is prefixed with a quote.
func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if val != "" && strings.ContainsRune("=+-@\t\r", rune(val[0])) {
			return "'" + val
		}
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
