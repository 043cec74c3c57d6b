package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ThiagoRGoveia/club-power/internal/models"
)

const utf8BOM = "\ufeff"

type CSVParser struct {
	delimiter rune
}

func NewCSVParser(delimiter rune) *CSVParser {
	if delimiter == 0 {
		delimiter = ','
	}
	return &CSVParser{delimiter: delimiter}
}

func (p *CSVParser) Parse(r io.Reader) (*models.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = p.delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("file is empty, no header row found")
		}
		return nil, fmt.Errorf("failed to read header from CSV: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	table := &models.Table{Header: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record from CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		table.Rows = append(table.Rows, models.RawFeedRow{Line: line, Cells: record})
	}

	return table, nil
}

// ParseDelimiter turns a command-line delimiter argument into a rune. It
// accepts a single character or the names "tab" and "\t".
func ParseDelimiter(arg string) (rune, error) {
	switch arg {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	runes := []rune(arg)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got '%s'", arg)
	}
	if runes[0] == '"' || runes[0] == '\r' || runes[0] == '\n' {
		return 0, fmt.Errorf("invalid delimiter '%s'", arg)
	}
	return runes[0], nil
}
