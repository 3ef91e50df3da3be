package dqcheck

// Evaluate runs the rule pack of spec against a single row and returns the
// raw observations in column order. A row whose entity key cannot be
// resolved is rejected with ErrMissingEntityKey and yields nothing.
func Evaluate(spec TableSpec, row Row) ([]Observation, error) {
	idx := indexCells(row)
	key, err := spec.keyOf(idx)
	if err != nil {
		return nil, err
	}

	var out []Observation
	for _, c := range row.Cells() {
		if spec.IsKeyColumn(c.Column) {
			continue
		}
		if c.Value.IsNull() {
			out = append(out, newObservation(spec, c.Column, NullValue, Null(), key))
		}
	}

	for _, col := range spec.NonNegative {
		v := idx[col]
		if d, ok := v.Decimal(); ok && d.IsNegative() {
			out = append(out, newObservation(spec, col, NegativeValue, v, key))
		}
	}

	for _, rule := range spec.DayRules {
		v := idx[rule.Column]
		if d, ok := v.Decimal(); ok && d.IsPositive() {
			out = append(out, newObservation(spec, rule.Column, rule.Kind, v, key))
		}
	}

	for _, rule := range spec.Domains {
		v := idx[rule.Column]
		if v.IsNull() {
			continue
		}
		if !contains(rule.Allowed, v.String()) {
			out = append(out, newObservation(spec, rule.Column, InvalidRange, v, key))
		}
	}

	if p := spec.Payment; p != nil {
		out = append(out, checkPayment(spec, *p, idx, key)...)
	}
	return out, nil
}

// checkPayment runs the over and under comparisons independently; a
// negative amount due can trip both.
func checkPayment(spec TableSpec, rule PaymentRule, idx map[string]Value, key EntityKey) []Observation {
	paidValue := idx[rule.PaidColumn]
	paid, ok := paidValue.Decimal()
	if !ok {
		return nil
	}
	due, ok := idx[rule.DueColumn].Decimal()
	if !ok {
		return nil
	}
	var out []Observation
	if paid.GreaterThan(due.Mul(rule.Over)) {
		out = append(out, newObservation(spec, rule.PaidColumn, PotentialOverpayment, paidValue, key))
	}
	if paid.LessThan(due.Mul(rule.Under)) {
		out = append(out, newObservation(spec, rule.PaidColumn, PotentialUnderpayment, paidValue, key))
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
