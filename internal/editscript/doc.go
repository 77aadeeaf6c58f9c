// Package editscript computes character-level edit scripts between a source and a target string and maps them onto offset ranges used for highlighting.
//
// Representation: a Script is an ordered slice of Operations. Each Operation has a Kind:
//   - KindRetain: text present in both source and target
//   - KindInsert: text present only in the target
//   - KindDelete: text present only in the source
//
// Invariants:
//   - concat(Retain, Insert texts, in order) == target
//   - concat(Retain, Delete texts, in order) == source
//   - Merged (the concatenation of every operation's text) has length sum(len(op.Text))
//
// Getting a script: use Compute with an Algorithm:
//
//	s := editscript.Compute("This is a test lime", "This is a test line", editscript.AlgorithmChars)
//	merged := s.Merged()
//	removed := s.Ranges(editscript.SpaceMerged, editscript.IsDelete)
//
// Coordinate spaces: a Range is interpreted against one of three strings. In SpaceMerged every operation advances the cursor; in SpaceTarget only Retain and Insert advance
// it; in SpaceSource only Retain and Delete advance it. A Range always covers the full text of the operation it was produced from, even when that operation does not
// advance the cursor in the active space.
//
// Offsets: all offsets count runes, not bytes.
package editscript
