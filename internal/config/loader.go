package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/quicktypofix/quicktypofix/internal/editscript"
	"github.com/quicktypofix/quicktypofix/internal/q/cascade"
	"github.com/quicktypofix/quicktypofix/internal/surface"
)

// settings is the cascade destination. Each field's sibling Providence records the source that set it.
type settings struct {
	APIEndpoint                     string             `json:"apiEndpoint"`
	APIEndpointProvidence           cascade.Providence `json:"-"`
	ModelName                       string             `json:"modelName"`
	ModelNameProvidence             cascade.Providence `json:"-"`
	SystemPrompt                    string             `json:"systemPrompt"`
	SystemPromptProvidence          cascade.Providence `json:"-"`
	HighlightTimeout                int                `json:"highlightTimeout"`
	HighlightTimeoutProvidence      cascade.Providence `json:"-"`
	AddedHighlightColor             string             `json:"addedHighlightColor"`
	AddedHighlightColorProvidence   cascade.Providence `json:"-"`
	RemovedHighlightColor           string             `json:"removedHighlightColor"`
	RemovedHighlightColorProvidence cascade.Providence `json:"-"`
	DiffAlgorithm                   string             `json:"diffAlgorithm"`
	DiffAlgorithmProvidence         cascade.Providence `json:"-"`
}

// Loader resolves a Config. Files are applied in order (later wins), then the nearest project file found from SearchFrom, then the environment.
type Loader struct {
	Files []string

	// SearchFrom, if set, is where the upward search for .quicktypofix/config.json starts.
	SearchFrom string

	Getenv func(string) string // os.Getenv if nil
}

// NewLoader returns a Loader over the global ~/.quicktypofix/config.json and the nearest project config file found walking up from startDir (the working directory if empty).
func NewLoader(startDir string) *Loader {
	if startDir == "" {
		startDir = cascade.ExpandPath(".")
	}
	return &Loader{
		Files:      []string{cascade.ExpandPath("~/" + globalConfigRelPath)},
		SearchFrom: startDir,
	}
}

func (l *Loader) cascade() *cascade.Loader {
	c := cascade.New().WithDefaults(map[string]any{
		KeyEndpoint:      DefaultEndpoint,
		KeyModel:         DefaultModel,
		KeySystemPrompt:  DefaultSystemPrompt,
		KeyDwell:         DefaultDwellMillis,
		KeyAddedColor:    DefaultAddedColor,
		KeyRemovedColor:  DefaultRemovedColor,
		KeyDiffAlgorithm: string(DefaultDiffAlgorithm),
	})
	for _, f := range l.Files {
		c = c.WithJSONFile(f)
	}
	if l.SearchFrom != "" {
		c = c.WithNearestJSONFile(filepath.FromSlash(projectConfigFileName), l.SearchFrom)
	}
	c = c.WithEnv(EnvVars)
	if l.Getenv != nil {
		c.LookupEnv = func(k string) (string, bool) {
			v := l.Getenv(k)
			return v, v != ""
		}
	}
	return c
}

// SourceFiles returns the config files that Load would read, lowest priority first. Files that don't exist are included.
func (l *Loader) SourceFiles() []string {
	return l.cascade().JSONFiles()
}

// Load resolves the configuration. It is cheap enough to call once per correction run, so edits to config files apply to the next run.
func (l *Loader) Load() (Config, error) {
	var s settings
	if err := l.cascade().StrictlyLoad(&s); err != nil {
		return Config{}, fmt.Errorf("load configuration: %w", err)
	}
	return build(s)
}

func provenance(p cascade.Providence, envVar string) Provenance {
	if p.SourceType == "env" {
		return Provenance{SourceType: p.SourceType, SourceIdentifier: envVar}
	}
	return Provenance{SourceType: p.SourceType, SourceIdentifier: p.SourceIdentifier}
}

func build(s settings) (Config, error) {
	prov := map[string]Provenance{
		KeyEndpoint:      provenance(s.APIEndpointProvidence, EnvVars[KeyEndpoint]),
		KeyModel:         provenance(s.ModelNameProvidence, EnvVars[KeyModel]),
		KeySystemPrompt:  provenance(s.SystemPromptProvidence, EnvVars[KeySystemPrompt]),
		KeyDwell:         provenance(s.HighlightTimeoutProvidence, EnvVars[KeyDwell]),
		KeyAddedColor:    provenance(s.AddedHighlightColorProvidence, EnvVars[KeyAddedColor]),
		KeyRemovedColor:  provenance(s.RemovedHighlightColorProvidence, EnvVars[KeyRemovedColor]),
		KeyDiffAlgorithm: provenance(s.DiffAlgorithmProvidence, EnvVars[KeyDiffAlgorithm]),
	}

	// A blank value in a file means "not set", matching how the settings UI treats blank fields.
	blank := func(key string, v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
			prov[key] = Provenance{SourceType: "default"}
		}
	}
	blank(KeyEndpoint, &s.APIEndpoint, DefaultEndpoint)
	blank(KeyModel, &s.ModelName, DefaultModel)
	blank(KeySystemPrompt, &s.SystemPrompt, DefaultSystemPrompt)
	blank(KeyAddedColor, &s.AddedHighlightColor, DefaultAddedColor)
	blank(KeyRemovedColor, &s.RemovedHighlightColor, DefaultRemovedColor)
	blank(KeyDiffAlgorithm, &s.DiffAlgorithm, string(DefaultDiffAlgorithm))
	if s.HighlightTimeout == 0 {
		s.HighlightTimeout = DefaultDwellMillis
		prov[KeyDwell] = Provenance{SourceType: "default"}
	}

	where := func(key string) string {
		if p := prov[key]; p.SourceIdentifier != "" {
			return fmt.Sprintf("%s (from %s)", key, p.SourceIdentifier)
		}
		return key
	}

	cfg := Config{
		Endpoint:     strings.TrimSpace(s.APIEndpoint),
		Model:        strings.TrimSpace(s.ModelName),
		SystemPrompt: s.SystemPrompt,
		Provenance:   prov,
	}

	if s.HighlightTimeout < 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s must be > 0 (got %d)", where(KeyDwell), s.HighlightTimeout)
	}
	cfg.DwellMillis = s.HighlightTimeout
	cfg.Dwell = time.Duration(s.HighlightTimeout) * time.Millisecond

	added, err := NormalizeColor(s.AddedHighlightColor)
	if err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %s: %w", where(KeyAddedColor), err)
	}
	removed, err := NormalizeColor(s.RemovedHighlightColor)
	if err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %s: %w", where(KeyRemovedColor), err)
	}
	cfg.AddedStyle = surface.Style{Name: AddedStyleName, Background: added}
	cfg.RemovedStyle = surface.Style{Name: RemovedStyleName, Background: removed}

	algo, err := editscript.ParseAlgorithm(s.DiffAlgorithm)
	if err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %s: %w", where(KeyDiffAlgorithm), err)
	}
	cfg.DiffAlgorithm = algo

	return cfg, nil
}
