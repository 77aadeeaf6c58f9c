package editscript

import (
	"strings"
	"unicode/utf8"
)

// Kind is the kind of an Operation.
type Kind int

// Kinds of operations from source text to target text.
const (
	KindRetain Kind = iota
	KindInsert
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindRetain:
		return "retain"
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Operation is one unit of a Script.
type Operation struct {
	Kind Kind
	Text string
}

// Len is the rune length of o.Text.
func (o Operation) Len() int {
	return utf8.RuneCountInString(o.Text)
}

// Script is an ordered edit script from a source string to a target string. A Script is produced fresh per Compute call and should be treated as immutable.
type Script []Operation

// Source reconstructs the source string (Retain and Delete operations).
func (s Script) Source() string {
	return s.concat(func(k Kind) bool { return k != KindInsert })
}

// Target reconstructs the target string (Retain and Insert operations).
func (s Script) Target() string {
	return s.concat(func(k Kind) bool { return k != KindDelete })
}

// Merged returns the "union" text: every operation's text regardless of kind, showing both removed and added characters.
func (s Script) Merged() string {
	return s.concat(func(Kind) bool { return true })
}

// Changed reports whether s contains any Insert or Delete with non-empty text.
func (s Script) Changed() bool {
	for _, op := range s {
		if op.Kind != KindRetain && op.Text != "" {
			return true
		}
	}
	return false
}

func (s Script) concat(keep func(Kind) bool) string {
	var b strings.Builder
	for _, op := range s {
		if keep(op.Kind) {
			b.WriteString(op.Text)
		}
	}
	return b.String()
}

// appendOp appends text with kind to s, coalescing with the previous operation when it has the same kind. Empty text is dropped.
func (s Script) appendOp(kind Kind, text string) Script {
	if text == "" {
		return s
	}
	if n := len(s); n > 0 && s[n-1].Kind == kind {
		s[n-1].Text += text
		return s
	}
	return append(s, Operation{Kind: kind, Text: text})
}
