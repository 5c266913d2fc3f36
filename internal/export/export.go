// Package export renders the file listing as an XLSX workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"go-contractseal/internal/assembly"
)

const sheet = "Files"

var headers = []string{"ID", "Name", "Type", "Size (bytes)", "Modified", "Path"}

var columnWidths = []struct {
	from, to string
	width    float64
}{
	{"A", "A", 40}, // id
	{"B", "B", 48}, // name
	{"C", "D", 14}, // type, size
	{"E", "E", 20}, // modified
	{"F", "F", 60}, // path
}

// FilesXLSX returns the workbook bytes, one row per file in the given order.
func FilesXLSX(files []assembly.StoredFile) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("xlsx header: %w", err)
	}

	for i, file := range files {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			file.ID,
			file.Name,
			file.Type,
			file.Size,
			file.CreatedAt.Format("2006-01-02 15:04:05"),
			file.Path,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	for _, w := range columnWidths {
		if err := f.SetColWidth(sheet, w.from, w.to, w.width); err != nil {
			return nil, fmt.Errorf("xlsx column %s: %w", w.from, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
