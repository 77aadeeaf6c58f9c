package editscript

// Range is a half-open [Start, End) rune-offset interval in some coordinate space. 0 <= Start <= End.
type Range struct {
	Start int
	End   int
}

// Len is End - Start.
func (r Range) Len() int {
	return r.End - r.Start
}

// Empty reports whether r covers no runes.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Space is the coordinate space ranges are computed in.
type Space int

const (
	// SpaceMerged is the union text (Script.Merged): every operation advances the cursor.
	SpaceMerged Space = iota

	// SpaceTarget is the final corrected text: only Retain and Insert advance the cursor.
	SpaceTarget

	// SpaceSource is the original text: only Retain and Delete advance the cursor.
	SpaceSource
)

func (sp Space) advances(k Kind) bool {
	switch sp {
	case SpaceTarget:
		return k != KindDelete
	case SpaceSource:
		return k != KindInsert
	default:
		return true
	}
}

// Predicate selects operations to map.
type Predicate func(op Operation) bool

// IsInsert selects KindInsert operations.
func IsInsert(op Operation) bool { return op.Kind == KindInsert }

// IsDelete selects KindDelete operations.
func IsDelete(op Operation) bool { return op.Kind == KindDelete }

// Ranges is MapRanges(s, space, pred).
func (s Script) Ranges(space Space, pred Predicate) []Range {
	return MapRanges(s, space, pred)
}

// MapRanges walks ops in order with a cursor starting at 0 in space, and returns one Range per operation matching pred. Each range starts at the cursor and spans the
// operation's full rune length; the cursor itself only advances for kinds that exist in space.
//
// Zero-length operations that match pred yield zero-width ranges; callers decide whether to skip them. The result is ordered by Start and, for a well-formed script,
// ranges never overlap.
func MapRanges(ops []Operation, space Space, pred Predicate) []Range {
	var ranges []Range
	cursor := 0
	for _, op := range ops {
		n := op.Len()
		start := cursor
		if space.advances(op.Kind) {
			cursor += n
		}
		if pred(op) {
			ranges = append(ranges, Range{Start: start, End: start + n})
		}
	}
	return ranges
}
