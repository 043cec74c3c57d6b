package ingestion

import (
	"strings"
)

// Canonical column names of the progress feed.
const (
	ColIdentifier           = "dni"
	ColDisplayName          = "nombre"
	ColSnapshotDate         = "dia"
	ColPrepaidTotal         = "pp_total"
	ColPrepaidVerified      = "pp_vr"
	ColPrepaidPorted        = "porta_pp"
	ColPostpaidTotal        = "ss_total"
	ColPostpaidVerified     = "ss_vr"
	ColPostpaidOther1       = "opp"
	ColPostpaidOther2       = "oss"
	ColTargetMonth1Prepaid  = "meta_ene_pp"
	ColTargetMonth1Postpaid = "meta_ene_ss"
	ColTargetMonth2Prepaid  = "meta_feb_pp"
	ColTargetMonth2Postpaid = "meta_feb_ss"
)

// RequiredColumns must all be present after reconciliation. Totals are
// recomputed and targets default to zero, so neither is required.
var RequiredColumns = []string{
	ColIdentifier,
	ColDisplayName,
	ColSnapshotDate,
	ColPrepaidVerified,
	ColPrepaidPorted,
	ColPostpaidVerified,
	ColPostpaidOther1,
	ColPostpaidOther2,
}

// columnSynonyms maps a normalized header to its canonical column.
var columnSynonyms = map[string]string{
	"dni":        ColIdentifier,
	"documento":  ColIdentifier,
	"nro dni":    ColIdentifier,
	"número dni": ColIdentifier,
	"numero dni": ColIdentifier,

	"nombre":            ColDisplayName,
	"nombres":           ColDisplayName,
	"apellido y nombre": ColDisplayName,
	"asesor":            ColDisplayName,

	"dia":   ColSnapshotDate,
	"día":   ColSnapshotDate,
	"fecha": ColSnapshotDate,

	"pp_total": ColPrepaidTotal,
	"pp total": ColPrepaidTotal,
	"pptotal":  ColPrepaidTotal,

	"pp_vr": ColPrepaidVerified,
	"pp vr": ColPrepaidVerified,
	"ppvr":  ColPrepaidVerified,
	"vr pp": ColPrepaidVerified,

	"porta_pp": ColPrepaidPorted,
	"porta pp": ColPrepaidPorted,
	"portapp":  ColPrepaidPorted,
	"porta":    ColPrepaidPorted,

	"ss_total": ColPostpaidTotal,
	"ss total": ColPostpaidTotal,
	"sstotal":  ColPostpaidTotal,

	"ss_vr": ColPostpaidVerified,
	"ss vr": ColPostpaidVerified,
	"ssvr":  ColPostpaidVerified,
	"vr ss": ColPostpaidVerified,

	"opp": ColPostpaidOther1,
	"oss": ColPostpaidOther2,

	"meta_ene_pp": ColTargetMonth1Prepaid,
	"meta_ene_ss": ColTargetMonth1Postpaid,
	"meta_feb_pp": ColTargetMonth2Prepaid,
	"meta_feb_ss": ColTargetMonth2Postpaid,
	"meta ene pp": ColTargetMonth1Prepaid,
	"meta ene ss": ColTargetMonth1Postpaid,
	"meta feb pp": ColTargetMonth2Prepaid,
	"meta feb ss": ColTargetMonth2Postpaid,
}

// ColumnMap holds the source column index of each canonical column found.
type ColumnMap map[string]int

// Index returns the source column of a canonical column, or -1.
func (m ColumnMap) Index(canonical string) int {
	if i, ok := m[canonical]; ok {
		return i
	}
	return -1
}

// NormalizeHeader lowercases a header and collapses every run of whitespace,
// embedded newlines included, to a single space.
func NormalizeHeader(header string) string {
	return strings.Join(strings.Fields(strings.ToLower(header)), " ")
}

// ReconcileColumns maps a raw header row onto the canonical schema. Unknown
// headers are ignored. When two headers resolve to the same column the
// leftmost one is used.
func ReconcileColumns(header []string) (ColumnMap, error) {
	columns := make(ColumnMap, len(header))
	for i, raw := range header {
		canonical, ok := columnSynonyms[NormalizeHeader(raw)]
		if !ok {
			continue
		}
		if _, seen := columns[canonical]; seen {
			continue
		}
		columns[canonical] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	return columns, nil
}
