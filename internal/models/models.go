package models

import (
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day. It serializes as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	t, err := time.Parse(`"`+dateLayout+`"`, string(data))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ProgressRecord is one row of club_power_avance.
type ProgressRecord struct {
	Identifier   string `json:"dni"`
	DisplayName  string `json:"nombre"`
	SnapshotDate Date   `json:"dia"`

	PrepaidTotal    int `json:"pp_total"`
	PrepaidVerified int `json:"pp_vr"`
	PrepaidPorted   int `json:"porta_pp"`

	PostpaidTotal    int `json:"ss_total"`
	PostpaidVerified int `json:"ss_vr"`
	PostpaidOther1   int `json:"opp"`
	PostpaidOther2   int `json:"oss"`

	TargetMonth1Prepaid  int `json:"meta_ene_pp"`
	TargetMonth1Postpaid int `json:"meta_ene_ss"`
	TargetMonth2Prepaid  int `json:"meta_feb_pp"`
	TargetMonth2Postpaid int `json:"meta_feb_ss"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeTotals overwrites both totals from their breakdown columns.
func (r *ProgressRecord) RecomputeTotals() {
	r.PrepaidTotal = r.PrepaidVerified + r.PrepaidPorted
	r.PostpaidTotal = r.PostpaidVerified + r.PostpaidOther1 + r.PostpaidOther2
}

func (r *ProgressRecord) TotalsConsistent() bool {
	return r.PrepaidTotal == r.PrepaidVerified+r.PrepaidPorted &&
		r.PostpaidTotal == r.PostpaidVerified+r.PostpaidOther1+r.PostpaidOther2
}

// PrizePoints is one row of club_power_puntos. It is maintained outside the
// ingest pipeline and only read here.
type PrizePoints struct {
	Identifier string   `json:"dni"`
	Canasta    int      `json:"canasta"`
	Pavo       int      `json:"pavo"`
	Points     *float64 `json:"puntos,omitempty"`
	PV         *string  `json:"pv,omitempty"`
	Type       *string  `json:"-"`
	Channel    *string  `json:"-"`
}

// Table is a decoded feed: the header row and every data row beneath it.
type Table struct {
	Header []string
	Rows   []RawFeedRow
}

// RawFeedRow is one data line of a feed as read from the file. Line is
// 1-based and counts the header.
type RawFeedRow struct {
	Line  int
	Cells []string
}

// Cell returns the value at index i, or "" when the row is shorter.
func (r RawFeedRow) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

type IngestResult struct {
	RunID          string `json:"run_id"`
	Policy         string `json:"policy"`
	Checksum       string `json:"checksum"`
	RowsRead       int    `json:"rows_read"`
	RowsRejected   int    `json:"rows_rejected"`
	RowsDuplicated int    `json:"rows_duplicated"`
	RowsLoaded     int    `json:"rows_loaded"`
	SnapshotDate   Date   `json:"forced_snapshot_date"`
}

const (
	RUN_STATUS_DONE   = "DONE"
	RUN_STATUS_FAILED = "FAILED"
)

// IngestRun is the audit trail entry written once per ingest attempt.
type IngestRun struct {
	ID           string
	FileName     string
	Checksum     string
	Policy       string
	Status       string
	RowsRead     int
	RowsRejected int
	RowsLoaded   int
	SnapshotDate *Date
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}
