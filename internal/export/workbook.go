package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var errNoSheet = errors.New("no active sheet")

// workbook writes sheets row by row on top of excelize.
type workbook struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newWorkbook() *workbook {
	return &workbook{file: excelize.NewFile()}
}

func (w *workbook) addSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *workbook) writeHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.writeRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
	if err := w.file.SetCellStyle(w.currentSheet, start, end, style); err != nil {
		return err
	}
	return w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (w *workbook) writeRow(row []any) error {
	if w.currentSheet == "" {
		return errNoSheet
	}
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

func (w *workbook) save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *workbook) saveAs(path string) error {
	return w.file.SaveAs(path)
}

func (w *workbook) close() error {
	return w.file.Close()
}
