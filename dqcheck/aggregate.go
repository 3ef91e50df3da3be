package dqcheck

// AggregateMissing turns the row-level NULL_VALUE observations of one
// entity-scoped scan into one MISSING_AGGREGATE observation per column,
// graded by the share of rows that were null. Columns keep the order in
// which their first null was seen.
func AggregateMissing(spec TableSpec, entityID int64, totalRows int, observations []Observation) []Observation {
	if totalRows <= 0 {
		return nil
	}
	var order []string
	nulls := make(map[string]int)
	for _, o := range observations {
		if o.Table != spec.Name || o.Kind != NullValue {
			continue
		}
		if _, seen := nulls[o.Column]; !seen {
			order = append(order, o.Column)
		}
		nulls[o.Column]++
	}

	out := make([]Observation, 0, len(order))
	for _, col := range order {
		pct := float64(nulls[col]) / float64(totalRows)
		obs := Observation{
			Table:  spec.Name,
			Column: col,
			Kind:   MissingAggregate,
			Detail: Detail{MissingPct: &pct, NullRows: nulls[col], TotalRows: totalRows},
			Key:    EntityKey{Curr: entityID},
		}
		obs.Severity = obs.classify()
		out = append(out, obs)
	}
	return out
}
