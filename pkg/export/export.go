package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Table is a header plus rows shared by every export format
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]any
}

// ContentType returns the MIME type of a format
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Render encodes the table in format (csv or xlsx)
func Render(table Table, format string) ([]byte, error) {
	switch format {
	case FormatCSV, "":
		return CSV(table)
	case FormatXLSX:
		return XLSX(table)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// CSV writes the table as RFC 4180 CSV
func CSV(table Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(table.Header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(table.Header))
	for _, row := range table.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX writes the table to a single styled sheet
func XLSX(table Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := table.Sheet
	if sheet == "" {
		sheet = "Export"
	}
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range table.Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		colName, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(sheet, colName, colName, 18); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, row := range table.Rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if t, ok := value.(time.Time); ok {
				value = t.UTC().Format(time.RFC3339)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Cents renders an integer cent amount as a decimal string
func Cents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
