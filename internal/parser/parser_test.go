package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		contentType string
		want        Parser
		wantErr     error
	}{
		{name: "csv by extension", fileName: "base.CSV", contentType: "application/vnd.ms-excel", want: &CSVParser{}},
		{name: "xlsx by extension", fileName: "avance.xlsx", want: &XLSXParser{}},
		{name: "csv by content type", fileName: "upload", contentType: "text/csv; charset=utf-8", want: &CSVParser{}},
		{name: "xlsx by content type", fileName: "", contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", want: &XLSXParser{}},
		{name: "pdf is rejected", fileName: "avance.pdf", contentType: "application/pdf", wantErr: ErrUnsupportedFormat},
		{name: "nothing declared", fileName: "", contentType: "", wantErr: ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ForFile(tt.fileName, tt.contentType, ',')
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}
}

func TestCSVParser_Parse(t *testing.T) {
	t.Run("should read header and rows", func(t *testing.T) {
		content := "\ufeffDNI,Nombre,Dia\n666666,Juan,2099-01-01\n123456,Ana\n"

		table, err := NewCSVParser(',').Parse(strings.NewReader(content))

		require.NoError(t, err)
		assert.Equal(t, []string{"DNI", "Nombre", "Dia"}, table.Header)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, 2, table.Rows[0].Line)
		assert.Equal(t, "2099-01-01", table.Rows[0].Cell(2))
		assert.Equal(t, "", table.Rows[1].Cell(2), "short rows read as empty cells")
	})

	t.Run("should honor a custom delimiter", func(t *testing.T) {
		table, err := NewCSVParser(';').Parse(strings.NewReader("dni;nombre\n666666;Juan\n"))

		require.NoError(t, err)
		assert.Equal(t, []string{"666666", "Juan"}, table.Rows[0].Cells)
	})

	t.Run("should keep embedded newlines in quoted headers", func(t *testing.T) {
		table, err := NewCSVParser(',').Parse(strings.NewReader("\"PP\nVR\",dni\n1,666666\n"))

		require.NoError(t, err)
		assert.Equal(t, "PP\nVR", table.Header[0])
	})

	t.Run("should fail on an empty file", func(t *testing.T) {
		_, err := NewCSVParser(',').Parse(strings.NewReader(""))

		assert.ErrorContains(t, err, "no header row")
	})
}

func TestParseDelimiter(t *testing.T) {
	d, err := ParseDelimiter("")
	require.NoError(t, err)
	assert.Equal(t, ',', d)

	d, err = ParseDelimiter("tab")
	require.NoError(t, err)
	assert.Equal(t, '\t', d)

	d, err = ParseDelimiter(";")
	require.NoError(t, err)
	assert.Equal(t, ';', d)

	_, err = ParseDelimiter(";;")
	assert.Error(t, err)

	_, err = ParseDelimiter(`"`)
	assert.Error(t, err)
}

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()

	sheet := book.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow(sheet, cell, &row))
	}

	buf, err := book.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestXLSXParser_Parse(t *testing.T) {
	t.Run("should read the first sheet", func(t *testing.T) {
		buf := buildWorkbook(t, [][]any{
			{"DNI", "Apellido y Nombre", "PP VR"},
			{"666666", "Juan", 40},
			{},
			{"123456", "Ana", 12},
		})

		table, err := NewXLSXParser().Parse(buf)

		require.NoError(t, err)
		assert.Equal(t, []string{"DNI", "Apellido y Nombre", "PP VR"}, table.Header)
		require.Len(t, table.Rows, 2, "blank rows are skipped")
		assert.Equal(t, "40", table.Rows[0].Cell(2))
		assert.Equal(t, "123456", table.Rows[1].Cell(0))
	})

	t.Run("should fail on bytes that are not a workbook", func(t *testing.T) {
		_, err := NewXLSXParser().Parse(strings.NewReader("dni,nombre\n"))

		assert.ErrorContains(t, err, "failed to open workbook")
	})

	t.Run("should fail on a workbook without header", func(t *testing.T) {
		buf := buildWorkbook(t, nil)

		_, err := NewXLSXParser().Parse(buf)

		assert.ErrorContains(t, err, "no header row")
	})
}
