package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThiagoRGoveia/club-power/internal/models"
	"github.com/xuri/excelize/v2"
)

// XLSXParser reads the first sheet of an Office Open XML workbook. Legacy
// binary .xls files are rejected by the decoder with a parse error.
type XLSXParser struct{}

func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

func (p *XLSXParser) Parse(r io.Reader) (*models.Table, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := book.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	var table *models.Table
	line := 0
	for rows.Next() {
		line++
		// Raw values keep numbers free of display formats like thousands separators.
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d of sheet %s: %w", line, sheets[0], err)
		}
		if table == nil {
			if isBlank(cells) {
				continue
			}
			table = &models.Table{Header: cells}
			continue
		}
		if isBlank(cells) {
			continue
		}
		table.Rows = append(table.Rows, models.RawFeedRow{Line: line, Cells: cells})
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate sheet %s: %w", sheets[0], err)
	}
	if table == nil {
		return nil, fmt.Errorf("sheet %s is empty, no header row found", sheets[0])
	}

	return table, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
