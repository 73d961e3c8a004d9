package oraclesql

// Optimize runs the ordered chain of semantics-preserving AST-to-AST passes
// to a fixed point: passes run repeatedly until one iteration leaves the
// pipeline unchanged. Each pass is named and documented with its intent,
// grounding the sequencing style on the way a columnar query engine lists
// its own rewrite passes - run in order, some repeated, each a one-line
// comment on what it does and why it's safe.
func Optimize(stages []Stage) []Stage {
	for {
		next, changed := mergeAdjacentMatches(stages)
		next, changed2 := pushDownPredicates(next)
		next, changed3 := combineSortLimit(next)
		stages = next
		if !changed && !changed2 && !changed3 {
			return stages
		}
	}
}

// mergeAdjacentMatches fuses two consecutive Match stages into one under an
// AND of their filters. Confluent: k consecutive matches yield the same
// filter regardless of merge order, since AND is associative/commutative
// at the AST level (render order is preserved left to right).
func mergeAdjacentMatches(stages []Stage) ([]Stage, bool) {
	changed := false
	out := make([]Stage, 0, len(stages))
	for _, s := range stages {
		if len(out) > 0 {
			if prevMatch, ok := out[len(out)-1].(*Match); ok {
				if curMatch, ok := s.(*Match); ok {
					out[len(out)-1] = &Match{Filter: &Logical{Op: OpAnd, Operands: []Expr{prevMatch.Filter, curMatch.Filter}}}
					changed = true
					continue
				}
			}
		}
		out = append(out, s)
	}
	return out, changed
}

// pushDownPredicates swaps a Match with an immediately preceding Sort,
// Skip, or Limit stage, since those never alter field values a later
// filter depends on. It never swaps past Group, Project, AddFields,
// Lookup, Unwind, or SetWindowFields, which may rename, compute, or
// shadow fields the Match predicate references.
func pushDownPredicates(stages []Stage) ([]Stage, bool) {
	changed := false
	out := make([]Stage, len(stages))
	copy(out, stages)
	for i := 1; i < len(out); i++ {
		match, ok := out[i].(*Match)
		if !ok {
			continue
		}
		if isSwappable(out[i-1]) {
			out[i-1], out[i] = match, out[i-1]
			changed = true
		}
	}
	return out, changed
}

func isSwappable(s Stage) bool {
	switch s.(type) {
	case *Sort, *Skip, *Limit:
		return true
	default:
		return false
	}
}

// combineSortLimit marks a Sort immediately followed by a Limit as
// eligible for a Top-N render: the renderer emits ORDER BY ... FETCH
// FIRST n ROWS ONLY as a single clause on the outermost query rather than
// wrapping the sort in a subquery. This pass does not restructure the
// stage list - TopNEligible below is consulted by the renderer directly -
// so it never reports a change.
func combineSortLimit(stages []Stage) ([]Stage, bool) {
	return stages, false
}

// TopNEligible reports whether stages[i] is a Sort immediately followed by
// a Limit, i.e. eligible for single-clause ORDER BY ... FETCH FIRST
// rendering.
func TopNEligible(stages []Stage, i int) bool {
	if i+1 >= len(stages) {
		return false
	}
	_, isSort := stages[i].(*Sort)
	_, nextIsLimit := stages[i+1].(*Limit)
	return isSort && nextIsLimit
}
