// Package cascade loads layered configuration into Go structs from multiple sources with predictable precedence.
//
// A Loader builds a prioritized cascade of sources and writes into a destination struct. Register sources from lowest to highest priority using the With* methods, then call StrictlyLoad.
// The zero value of Loader is ready to use; New exists for fluent chaining (ex: New().WithDefaults(...).WithJSONFile(...).WithEnv(...).StrictlyLoad(&cfg)).
//
// Sources
//   - Defaults from a map[string]any whose keys may use dot-notation to denote nesting.
//   - JSON files read at load time. WithJSONFile registers a specific path (absolute or relative). WithNearestJSONFile searches upward from a starting path for the first readable, non-empty
//     file with a given relative name; it panics if fileName is absolute.
//   - Environment variables mapped to configuration keys via WithEnv; missing or empty variables are ignored and present values are strings. Loader.LookupEnv replaces os.LookupEnv.
//
// Keys are case-insensitive and dot-separated for nesting. Struct field names (or their json tag names) are matched case-insensitively. Unknown keys and JSON nulls are ignored. Values are coerced
// when reasonable to the destination type (strings to numbers/bools, numbers to strings, floats to ints truncated toward zero). Pointer fields are allocated as needed.
//
// Provenance: a field named XProvidence of type Providence (or *Providence) next to field X records which source last set X.
//
// StrictlyLoad returns an error when a readable source cannot be parsed or when a value cannot be coerced to the field type; it fails fast and does not continue to later sources to
// "fix" bad values. Missing or unreadable sources, directories, empty/whitespace-only files, and unknown keys do not cause errors. Errors include the source's name for context.
package cascade
