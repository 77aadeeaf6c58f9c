package editscript

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"znkr.io/diff"
)

// Algorithm selects the diff engine used by Compute.
type Algorithm string

const (
	// AlgorithmChars is a character diff with diff-match-patch's prefix/suffix trimming and merge cleanup. Default.
	AlgorithmChars Algorithm = "chars"

	// AlgorithmMyers is a rune-level Myers diff.
	AlgorithmMyers Algorithm = "myers"
)

// Algorithms lists the supported algorithms.
var Algorithms = []Algorithm{AlgorithmChars, AlgorithmMyers}

// ParseAlgorithm parses s (case-insensitive). The empty string is AlgorithmChars.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlgorithmChars:
		return AlgorithmChars, nil
	case AlgorithmMyers:
		return AlgorithmMyers, nil
	}
	return "", fmt.Errorf("unknown diff algorithm %q (want one of %v)", s, Algorithms)
}

// Compute diffs source to target and returns the edit script. Adjacent operations of the same kind are coalesced and no operation has empty text.
//
// Compute panics if the produced script does not reconstruct source and target; that indicates a bug in the engine adapter, not bad input.
func Compute(source, target string, algo Algorithm) Script {
	var s Script
	switch algo {
	case AlgorithmMyers:
		s = computeMyers(source, target)
	default:
		s = computeChars(source, target)
	}

	if err := s.validate(source, target); err != nil {
		panic(fmt.Errorf("Compute: validate failed with %v", err))
	}
	return s
}

func computeChars(source, target string) Script {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // single lines are short; always find the optimal diff

	var s Script
	for _, d := range dmp.DiffMain(source, target, false) {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			s = s.appendOp(KindRetain, d.Text)
		case diffmatchpatch.DiffInsert:
			s = s.appendOp(KindInsert, d.Text)
		case diffmatchpatch.DiffDelete:
			s = s.appendOp(KindDelete, d.Text)
		}
	}
	return s
}

func computeMyers(source, target string) Script {
	var s Script
	var b strings.Builder
	kind := KindRetain
	flush := func() {
		s = s.appendOp(kind, b.String())
		b.Reset()
	}

	for _, e := range diff.Edits([]rune(source), []rune(target)) {
		var k Kind
		var r rune
		switch e.Op {
		case diff.Match:
			k, r = KindRetain, e.X
		case diff.Delete:
			k, r = KindDelete, e.X
		case diff.Insert:
			k, r = KindInsert, e.Y
		}
		if k != kind {
			flush()
			kind = k
		}
		b.WriteRune(r)
	}
	flush()
	return s
}
