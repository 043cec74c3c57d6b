package parser

import (
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/ThiagoRGoveia/club-power/internal/models"
)

var ErrUnsupportedFormat = errors.New("unsupported format: upload a .csv or .xlsx file")

// Parser decodes a whole feed into a header plus raw rows.
type Parser interface {
	Parse(r io.Reader) (*models.Table, error)
}

// ForFile picks a parser for an upload. The file extension decides when it is
// recognized; the declared content type is only consulted otherwise, because
// browsers commonly label .csv files as application/vnd.ms-excel.
func ForFile(fileName, contentType string, delimiter rune) (Parser, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))) {
	case ".csv", ".txt":
		return NewCSVParser(delimiter), nil
	case ".xlsx", ".xlsm", ".xls":
		return NewXLSXParser(), nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, ErrUnsupportedFormat
	}
	switch mediaType {
	case "text/csv", "application/csv", "text/plain":
		return NewCSVParser(delimiter), nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return NewXLSXParser(), nil
	}
	return nil, ErrUnsupportedFormat
}
