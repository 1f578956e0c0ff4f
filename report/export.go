package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/warp/attendance-engine/generic"
)

// ===== Column layout =====

var recordHeader = []string{"Date", "CheckIn", "CheckOut", "Status", "LateMinutes", "WorkedHours", "IncidentType"}

// Header returns the export columns; unit scope prepends the worker name.
func Header(unitScope bool) []string {
	if unitScope {
		return append([]string{"Worker"}, recordHeader...)
	}
	return append([]string(nil), recordHeader...)
}

func cells(row Row, unitScope bool) []string {
	out := []string{
		row.Date.String(),
		clockCell(row.CheckIn),
		clockCell(row.CheckOut),
		string(row.Status),
		strconv.Itoa(row.LateMinutes),
		row.WorkedHours.StringFixed(2),
		row.IncidentType,
	}
	if unitScope {
		return append([]string{row.Worker}, out...)
	}
	return out
}

func clockCell(c *generic.ClockTime) string {
	if c == nil {
		return ""
	}
	return c.String()
}

// ===== CSV =====

// WriteCSV writes the header and one line per row.
func WriteCSV(w io.Writer, rows []Row, unitScope bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(unitScope)); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(cells(row, unitScope)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ===== XLSX =====

const sheetName = "Attendance"

// WriteXLSX writes the same columns as WriteCSV into a single-sheet
// workbook. Late minutes and worked hours are stored as numbers.
func WriteXLSX(w io.Writer, rows []Row, unitScope bool) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	header := Header(unitScope)
	for i, title := range header {
		ref, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, ref, title); err != nil {
			return err
		}
	}
	last, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(sheetName, "A1", last+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "A", last, 14); err != nil {
		return err
	}

	for r, row := range rows {
		values := cells(row, unitScope)
		for c, v := range values {
			ref, _ := excelize.CoordinatesToCellName(c+1, r+2)
			var cell any = v
			switch header[c] {
			case "LateMinutes":
				cell = row.LateMinutes
			case "WorkedHours":
				cell, _ = row.WorkedHours.Round(2).Float64()
			}
			if err := f.SetCellValue(sheetName, ref, cell); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
