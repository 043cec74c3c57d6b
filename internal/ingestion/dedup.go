package ingestion

// dedupLastWins keeps one row per identifier: the last one in file order.
// Survivors stay in file order, so each identifier sits where its final row
// appeared.
func dedupLastWins(rows []normalizedRow) []normalizedRow {
	last := make(map[string]int, len(rows))
	for i, row := range rows {
		last[row.Record.Identifier] = i
	}

	out := make([]normalizedRow, 0, len(last))
	for i, row := range rows {
		if last[row.Record.Identifier] == i {
			out = append(out, row)
		}
	}
	return out
}
