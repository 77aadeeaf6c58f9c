// Package config resolves quicktypofix settings in one step into an immutable Config.
//
// Sources, from lowest to highest priority: built-in defaults, the global ~/.quicktypofix/config.json, the nearest .quicktypofix/config.json found walking up from the
// working directory, and QUICKTYPOFIX_* environment variables. JSON keys match case-insensitively (ex: "apiEndpoint" or "apiendpoint"). Unknown keys are ignored;
// missing or unreadable files are skipped. A file that cannot be parsed, or a value that cannot be coerced or validated, is an error.
//
// Every resolved field records where it came from. DefaultNotices reports the endpoint, model and system prompt when they fell back to their defaults.
package config

import (
	"sort"
	"time"

	"github.com/quicktypofix/quicktypofix/internal/editscript"
	"github.com/quicktypofix/quicktypofix/internal/surface"
)

// Keys of the configurable settings.
const (
	KeyEndpoint      = "apiEndpoint"
	KeyModel         = "modelName"
	KeySystemPrompt  = "systemPrompt"
	KeyDwell         = "highlightTimeout"
	KeyAddedColor    = "addedHighlightColor"
	KeyRemovedColor  = "removedHighlightColor"
	KeyDiffAlgorithm = "diffAlgorithm"
)

// Defaults.
const (
	DefaultEndpoint       = "https://api.openai.com/v1/chat/completions"
	DefaultModel          = "gpt-4o-mini"
	DefaultSystemPrompt   = "Excellent Typo Fixer"
	DefaultDwellMillis    = 1000
	DefaultAddedColor     = "rgba(0, 255, 0, 0.5)"
	DefaultRemovedColor   = "rgba(255, 0, 0, 0.5)"
	DefaultDiffAlgorithm  = editscript.AlgorithmChars
	AddedStyleName        = "added"
	RemovedStyleName      = "removed"
	globalConfigRelPath   = ".quicktypofix/config.json"
	projectConfigFileName = ".quicktypofix/config.json"
)

// EnvVars maps each key to its environment variable.
var EnvVars = map[string]string{
	KeyEndpoint:      "QUICKTYPOFIX_API_ENDPOINT",
	KeyModel:         "QUICKTYPOFIX_MODEL_NAME",
	KeySystemPrompt:  "QUICKTYPOFIX_SYSTEM_PROMPT",
	KeyDwell:         "QUICKTYPOFIX_HIGHLIGHT_TIMEOUT",
	KeyAddedColor:    "QUICKTYPOFIX_ADDED_HIGHLIGHT_COLOR",
	KeyRemovedColor:  "QUICKTYPOFIX_REMOVED_HIGHLIGHT_COLOR",
	KeyDiffAlgorithm: "QUICKTYPOFIX_DIFF_ALGORITHM",
}

// Provenance says which source set a field.
type Provenance struct {
	SourceType       string `json:"source"`               // "default", "json_file", or "env"
	SourceIdentifier string `json:"identifier,omitempty"` // ex: "/path/to/config.json" or "QUICKTYPOFIX_MODEL_NAME"
}

// Default reports whether the field fell back to its default.
func (p Provenance) Default() bool {
	return p.SourceType == "default"
}

// Config is the resolved configuration for one correction run. Treat it as immutable.
type Config struct {
	Endpoint      string               `json:"apiEndpoint"`
	Model         string               `json:"modelName"`
	SystemPrompt  string               `json:"systemPrompt"`
	Dwell         time.Duration        `json:"-"`
	DwellMillis   int                  `json:"highlightTimeout"`
	AddedStyle    surface.Style        `json:"addedStyle"`
	RemovedStyle  surface.Style        `json:"removedStyle"`
	DiffAlgorithm editscript.Algorithm `json:"diffAlgorithm"`

	// Provenance is keyed by the Key* constants.
	Provenance map[string]Provenance `json:"provenance"`
}

// Defaulted returns the keys that fell back to defaults, sorted.
func (c Config) Defaulted() []string {
	var keys []string
	for k, p := range c.Provenance {
		if p.Default() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// DefaultNotices returns a user-facing warning for each of the endpoint, model and system prompt that fell back to its default. The other fields default silently.
func (c Config) DefaultNotices() []string {
	var msgs []string
	for _, k := range c.Defaulted() {
		switch k {
		case KeyEndpoint:
			msgs = append(msgs, "API endpoint is not set. Using default endpoint: "+c.Endpoint)
		case KeyModel:
			msgs = append(msgs, "Model name is not set. Using default model: "+c.Model)
		case KeySystemPrompt:
			msgs = append(msgs, "System prompt is not set. Using default prompt: "+c.SystemPrompt)
		}
	}
	return msgs
}
