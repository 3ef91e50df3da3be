package dqcheck

import "strings"

const keySeparator = "|"

// FindDuplicates flags every row whose duplicate-key tuple is shared with at
// least one other row of the same scan. Rows without a resolvable entity key
// are left out and counted in skipped; Evaluate reports them.
func FindDuplicates(spec TableSpec, rows []Row) (dups []Observation, skipped int) {
	column := strings.Join(spec.DuplicateKey, keySeparator)
	counts := make(map[string]int)
	tuples := make([]string, len(rows))
	keys := make([]*EntityKey, len(rows))

	for i, row := range rows {
		idx := indexCells(row)
		key, err := spec.keyOf(idx)
		if err != nil {
			skipped++
			continue
		}
		parts := make([]string, len(spec.DuplicateKey))
		for j, col := range spec.DuplicateKey {
			parts[j] = idx[col].String()
		}
		tuples[i] = strings.Join(parts, keySeparator)
		keys[i] = &key
		counts[tuples[i]]++
	}

	for i := range rows {
		if keys[i] == nil || counts[tuples[i]] < 2 {
			continue
		}
		dups = append(dups, newObservation(spec, column, DuplicateKey, Text(tuples[i]), *keys[i]))
	}
	return dups, skipped
}
