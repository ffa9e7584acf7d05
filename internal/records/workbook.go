package records

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Header is the fixed first row of every daily log. The column order is
// shared with files written by earlier versions of the bot.
var Header = []string{"Дата", "ВСП", "ИНН", "Наименование", "Бумага/эл", "Добавил"}

// summaryColumns are the free-text columns shown in a listing.
const (
	firstSummaryCol = 1
	lastSummaryCol  = 4
)

// workbook is an open daily log together with its rows, header included.
type workbook struct {
	f     *excelize.File
	sheet string
	rows  [][]string
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	header := toCells(Header)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &workbook{f: f, sheet: sheet, rows: [][]string{append([]string(nil), Header...)}}, nil
}

func openWorkbook(path string) (*workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read rows: %w", err)
	}
	wb := &workbook{f: f, sheet: sheet, rows: rows}
	if len(rows) == 0 {
		header := toCells(Header)
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		wb.rows = [][]string{append([]string(nil), Header...)}
	}
	return wb, nil
}

// count is the number of data rows; the header is never counted.
func (w *workbook) count() int {
	return len(w.rows) - 1
}

func (w *workbook) appendRow(values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, len(w.rows)+1)
	if err != nil {
		return err
	}
	cells := toCells(values)
	if err := w.f.SetSheetRow(w.sheet, cell, &cells); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	w.rows = append(w.rows, values)
	return nil
}

// deleteRow removes the data row at 1-based position; the caller checks range.
func (w *workbook) deleteRow(position int) error {
	if err := w.f.RemoveRow(w.sheet, position+1); err != nil {
		return fmt.Errorf("remove row: %w", err)
	}
	w.rows = append(w.rows[:position], w.rows[position+1:]...)
	return nil
}

func (w *workbook) summaries() []string {
	out := make([]string, 0, w.count())
	for i, row := range w.rows[1:] {
		fields := make([]string, 0, lastSummaryCol-firstSummaryCol+1)
		for c := firstSummaryCol; c <= lastSummaryCol; c++ {
			v := ""
			if c < len(row) {
				v = row[c]
			}
			fields = append(fields, v)
		}
		out = append(out, fmt.Sprintf("%d. %s", i+1, strings.Join(fields, " | ")))
	}
	return out
}

func (w *workbook) save(path string) error {
	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (w *workbook) close() {
	_ = w.f.Close()
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
