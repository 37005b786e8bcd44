package planner

// Join strategy thresholds, applied to the larger estimated input of a
// join pair. The rule is deterministic so that EXPLAIN output is
// reproducible: below the nested-loop ceiling the quadratic scan is
// cheap enough to not matter, above the hash floor the build/probe
// split wins, and the band between sorts both sides and merges.
const (
	nestedLoopMaxRows = 1_000
	hashJoinMinRows   = 10_000
)

// groupReduction is the assumed ratio of input rows to groups when a
// GROUP BY cardinality is unknown.
const groupReduction = 10

// chooseStrategy applies the threshold rule to one join pair. Joins
// without a usable equi-key always run as nested loops, whatever the
// estimates say.
func chooseStrategy(leftRows, rightRows int64, equi bool) Strategy {
	if !equi {
		return NestedLoop
	}
	larger := leftRows
	if rightRows > larger {
		larger = rightRows
	}
	switch {
	case larger < nestedLoopMaxRows:
		return NestedLoop
	case larger >= hashJoinMinRows:
		return HashJoin
	default:
		return MergeJoin
	}
}

// Step cost heuristics. Costs are row-count based, used only for
// ordering and diagnostics, never for correctness.

func fetchCost(rows int64) float64 {
	return float64(rows)
}

func joinCost(strategy Strategy, leftRows, rightRows int64) float64 {
	l, r := float64(leftRows), float64(rightRows)
	switch strategy {
	case NestedLoop:
		return l * r
	case HashJoin, MergeJoin:
		return l + r
	default:
		return l * r
	}
}

func sortCost(rows int64) float64 {
	n := float64(rows)
	if n < 2 {
		return n
	}
	return n * log2(n)
}

func aggregateCost(rows int64) float64 {
	return float64(rows)
}

// estimateJoinRows guesses the output cardinality of a join. Equi joins
// are assumed to roughly preserve the larger side; everything else is
// treated as a filtered cross product.
func estimateJoinRows(leftRows, rightRows int64, equi bool) int64 {
	if !equi {
		est := leftRows * rightRows
		if est < 1 {
			est = 1
		}
		return est
	}
	if rightRows > leftRows {
		return rightRows
	}
	return leftRows
}

func log2(n float64) float64 {
	// Cheap integer log2 is enough for a diagnostic cost.
	var bits int
	for v := int64(n); v > 1; v >>= 1 {
		bits++
	}
	return float64(bits)
}
