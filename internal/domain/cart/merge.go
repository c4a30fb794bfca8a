package cart

// Merge reconciles carts at login. Every base line is kept in order; a line
// from the other lists is appended only when no earlier line shares its
// (item, size, color) key. Quantities of duplicates are never summed, so the
// first occurrence wins. Merge is idempotent: Merge(Merge(a, b), b) equals
// Merge(a, b).
func Merge(base []Line, others ...[]Line) []Line {
	size := len(base)
	for _, o := range others {
		size += len(o)
	}

	merged := make([]Line, 0, size)
	seen := make(map[LineKey]struct{}, size)

	add := func(lines []Line) {
		for _, l := range lines {
			k := l.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, l)
		}
	}

	add(base)
	for _, o := range others {
		add(o)
	}
	return merged
}
