package ingestion

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ThiagoRGoveia/club-power/internal/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var identifierPattern = regexp.MustCompile(`^\d{6,12}$`)

var sourceDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02/01/2006 15:04:05",
}

// ValidIdentifier reports whether s has the shape of a DNI: 6 to 12 digits.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// SnapshotDateFor returns the closed day reported by an ingest that starts at
// now: the calendar day before now, as seen in loc.
func SnapshotDateFor(now time.Time, loc *time.Location) models.Date {
	if loc != nil {
		now = now.In(loc)
	}
	return models.DateOf(now.AddDate(0, 0, -1))
}

type normalizedRow struct {
	Line       int
	Record     models.ProgressRecord
	SourceDate *time.Time
}

// Normalizer turns raw feed rows into progress records for one ingest run.
type Normalizer struct {
	columns      ColumnMap
	snapshotDate models.Date
}

func NewNormalizer(columns ColumnMap, snapshotDate models.Date) *Normalizer {
	return &Normalizer{columns: columns, snapshotDate: snapshotDate}
}

// Normalize cleans a single row. It returns false when the row has to be
// dropped, which only happens for identifiers that are not 6 to 12 digits.
func (n *Normalizer) Normalize(row models.RawFeedRow) (normalizedRow, bool) {
	identifier := strings.TrimSpace(n.cell(row, ColIdentifier))
	if !ValidIdentifier(identifier) {
		return normalizedRow{}, false
	}

	record := models.ProgressRecord{
		Identifier:  identifier,
		DisplayName: strings.TrimSpace(n.cell(row, ColDisplayName)),

		PrepaidTotal:    n.int(row, ColPrepaidTotal),
		PrepaidVerified: n.int(row, ColPrepaidVerified),
		PrepaidPorted:   n.int(row, ColPrepaidPorted),

		PostpaidTotal:    n.int(row, ColPostpaidTotal),
		PostpaidVerified: n.int(row, ColPostpaidVerified),
		PostpaidOther1:   n.int(row, ColPostpaidOther1),
		PostpaidOther2:   n.int(row, ColPostpaidOther2),

		TargetMonth1Prepaid:  n.int(row, ColTargetMonth1Prepaid),
		TargetMonth1Postpaid: n.int(row, ColTargetMonth1Postpaid),
		TargetMonth2Prepaid:  n.int(row, ColTargetMonth2Prepaid),
		TargetMonth2Postpaid: n.int(row, ColTargetMonth2Postpaid),
	}
	// Totals in the file are never trusted.
	record.RecomputeTotals()

	sourceDate := parseSourceDate(n.cell(row, ColSnapshotDate))
	// Only closed days are reported, whatever the file says.
	record.SnapshotDate = n.snapshotDate

	return normalizedRow{Line: row.Line, Record: record, SourceDate: sourceDate}, true
}

func (n *Normalizer) cell(row models.RawFeedRow, canonical string) string {
	return row.Cell(n.columns.Index(canonical))
}

func (n *Normalizer) int(row models.RawFeedRow, canonical string) int {
	return coerceInt(n.cell(row, canonical))
}

// coerceInt parses a numeric cell and truncates it toward zero. Anything that
// is not a number, or does not fit in an int64, becomes 0. Negative values are
// kept as they are.
func coerceInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	whole := d.Truncate(0).BigInt()
	if !whole.IsInt64() {
		return 0
	}
	return int(whole.Int64())
}

// parseSourceDate reads the date column of a row. It returns nil when the
// cell is empty or unreadable. Workbooks carry dates as serial numbers.
func parseSourceDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range sourceDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return &t
		}
	}
	return nil
}
