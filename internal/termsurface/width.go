package termsurface

import (
	"strings"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/graphemes"
	"github.com/mattn/go-runewidth"
)

// WidthOptions control display-width calculation. Only relevant for East Asian code points.
type WidthOptions struct {
	EastAsianWidth   bool // treat ambiguous East Asian code points as 2 wide. Use if the locale is one of CJK.
	TreatEmojiAsWide bool // only considered if EastAsianWidth
}

func condition(opts *WidthOptions) *runewidth.Condition {
	cond := runewidth.NewCondition()
	cond.EastAsianWidth = false
	cond.StrictEmojiNeutral = true
	if opts == nil {
		return cond
	}
	cond.EastAsianWidth = opts.EastAsianWidth
	if opts.EastAsianWidth && opts.TreatEmojiAsWide {
		cond.StrictEmojiNeutral = false
	}
	return cond
}

// TextWidth returns the width of s in terminal columns. If opts is nil, locale is assumed to be non-East Asian.
func TextWidth(s string, opts *WidthOptions) int {
	return condition(opts).StringWidth(s)
}

// cluster is one grapheme cluster of a line with its rune offset.
type cluster struct {
	text      string
	runeStart int
	runeEnd   int
	width     int
}

// clusters splits line into grapheme clusters, tracking rune offsets so rune-based spans can be projected onto display columns.
func clusters(line string, opts *WidthOptions) []cluster {
	cond := condition(opts)
	var out []cluster
	runeOffset := 0
	iter := graphemes.FromString(line)
	for iter.Next() {
		v := iter.Value()
		n := utf8.RuneCountInString(v)
		out = append(out, cluster{text: v, runeStart: runeOffset, runeEnd: runeOffset + n, width: cond.StringWidth(v)})
		runeOffset += n
	}
	return out
}

// markerLine returns a line that, printed beneath line, puts marker(runeOffset) under each grapheme. A zero marker prints spaces. Trailing spaces are trimmed.
func markerLine(line string, opts *WidthOptions, marker func(runeOffset int) rune) string {
	var b strings.Builder
	for _, c := range clusters(line, opts) {
		m := rune(0)
		for r := c.runeStart; r < c.runeEnd && m == 0; r++ {
			m = marker(r)
		}
		if m == 0 {
			m = ' '
		}
		for i := 0; i < c.width; i++ {
			b.WriteRune(m)
		}
	}
	return strings.TrimRight(b.String(), " ")
}
