package editscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapRanges_Spaces(t *testing.T) {
	// "ab" -> "aXc": retain a, delete b, insert Xc
	ops := Script{
		{Kind: KindRetain, Text: "a"},
		{Kind: KindDelete, Text: "b"},
		{Kind: KindInsert, Text: "Xc"},
	}
	assert.Equal(t, "abXc", ops.Merged())

	tests := []struct {
		name  string
		space Space
		pred  Predicate
		want  []Range
	}{
		{"merged inserts", SpaceMerged, IsInsert, []Range{{2, 4}}},
		{"merged deletes", SpaceMerged, IsDelete, []Range{{1, 2}}},
		{"target inserts", SpaceTarget, IsInsert, []Range{{1, 3}}},
		{"target deletes cover own text", SpaceTarget, IsDelete, []Range{{1, 2}}},
		{"source deletes", SpaceSource, IsDelete, []Range{{1, 2}}},
		{"source inserts", SpaceSource, IsInsert, []Range{{2, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapRanges(ops, tt.space, tt.pred))
		})
	}
}

func TestMapRanges_ZeroLengthOperationsAreEmitted(t *testing.T) {
	ops := []Operation{
		{Kind: KindRetain, Text: "ab"},
		{Kind: KindInsert, Text: ""},
		{Kind: KindRetain, Text: "c"},
	}
	got := MapRanges(ops, SpaceMerged, IsInsert)
	assert.Equal(t, []Range{{Start: 2, End: 2}}, got)
	assert.True(t, got[0].Empty())
}

func TestMapRanges_RuneOffsets(t *testing.T) {
	ops := []Operation{
		{Kind: KindRetain, Text: "café "},
		{Kind: KindInsert, Text: "très "},
		{Kind: KindRetain, Text: "bon"},
	}
	assert.Equal(t, []Range{{Start: 5, End: 10}}, MapRanges(ops, SpaceTarget, IsInsert))
}

func TestMapRanges_OrderedAndDisjoint(t *testing.T) {
	s := Compute("The quick brwn fox jumpd ovr the lazy dog", "The quick brown fox jumped over the lazy dog", AlgorithmChars)
	for _, space := range []Space{SpaceMerged, SpaceTarget} {
		ranges := s.Ranges(space, IsInsert)
		for i := 1; i < len(ranges); i++ {
			assert.LessOrEqual(t, ranges[i-1].End, ranges[i].Start)
		}
	}
}
