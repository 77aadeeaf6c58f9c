package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quicktypofix/quicktypofix/internal/editscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func writeJSON(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	l := &Loader{Files: []string{filepath.Join(t.TempDir(), "missing.json")}, Getenv: noEnv}
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt)
	assert.Equal(t, time.Second, cfg.Dwell)
	assert.Equal(t, "#008000", cfg.AddedStyle.Background)
	assert.Equal(t, "#800000", cfg.RemovedStyle.Background)
	assert.Equal(t, AddedStyleName, cfg.AddedStyle.Name)
	assert.Equal(t, editscript.AlgorithmChars, cfg.DiffAlgorithm)

	assert.Len(t, cfg.Defaulted(), 7)
	assert.Equal(t, []string{
		"API endpoint is not set. Using default endpoint: https://api.openai.com/v1/chat/completions",
		"Model name is not set. Using default model: gpt-4o-mini",
		"System prompt is not set. Using default prompt: Excellent Typo Fixer",
	}, cfg.DefaultNotices())
}

func TestDefaultNotices_OnlyEndpointModelAndPrompt(t *testing.T) {
	env := map[string]string{
		"QUICKTYPOFIX_API_ENDPOINT":  "https://example.test/v1/chat/completions",
		"QUICKTYPOFIX_MODEL_NAME":    "m",
		"QUICKTYPOFIX_SYSTEM_PROMPT": "p",
	}
	cfg, err := (&Loader{Getenv: func(k string) string { return env[k] }}).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{KeyAddedColor, KeyDiffAlgorithm, KeyDwell, KeyRemovedColor}, cfg.Defaulted())
	assert.Empty(t, cfg.DefaultNotices())
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "home", ".quicktypofix", "config.json")
	project := filepath.Join(dir, "proj", ".quicktypofix", "config.json")
	writeJSON(t, global, `{"modelName": "global-model", "apiEndpoint": "https://global.example/v1/chat/completions", "highlightTimeout": 250}`)
	writeJSON(t, project, `{"modelname": "project-model", "systemPrompt": "", "unknownKey": true}`)

	env := map[string]string{"QUICKTYPOFIX_ADDED_HIGHLIGHT_COLOR": "#00ff00", "QUICKTYPOFIX_DIFF_ALGORITHM": "myers"}
	l := &Loader{Files: []string{global, project}, Getenv: func(k string) string { return env[k] }}

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "project-model", cfg.Model)
	assert.Equal(t, Provenance{SourceType: "json_file", SourceIdentifier: project}, cfg.Provenance[KeyModel])
	assert.Equal(t, "https://global.example/v1/chat/completions", cfg.Endpoint)
	assert.Equal(t, 250*time.Millisecond, cfg.Dwell)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt, "empty string means unset")
	assert.Equal(t, "#00ff00", cfg.AddedStyle.Background)
	assert.Equal(t, Provenance{SourceType: "env", SourceIdentifier: "QUICKTYPOFIX_ADDED_HIGHLIGHT_COLOR"}, cfg.Provenance[KeyAddedColor])
	assert.Equal(t, editscript.AlgorithmMyers, cfg.DiffAlgorithm)

	assert.Equal(t, []string{KeyRemovedColor, KeySystemPrompt}, cfg.Defaulted())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	writeJSON(t, bad, `{"modelName": `)
	_, err := (&Loader{Files: []string{bad}, Getenv: noEnv}).Load()
	assert.Error(t, err)

	wrongType := filepath.Join(dir, "wrong.json")
	writeJSON(t, wrongType, `{"highlightTimeout": "soon"}`)
	_, err = (&Loader{Files: []string{wrongType}, Getenv: noEnv}).Load()
	assert.Error(t, err)

	tests := map[string]string{
		"QUICKTYPOFIX_HIGHLIGHT_TIMEOUT":      "-5",
		"QUICKTYPOFIX_REMOVED_HIGHLIGHT_COLOR": "reddish",
		"QUICKTYPOFIX_DIFF_ALGORITHM":         "patience",
	}
	for k, v := range tests {
		t.Run(k, func(t *testing.T) {
			_, err := (&Loader{Getenv: func(key string) string {
				if key == k {
					return v
				}
				return ""
			}}).Load()
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestLoad_BlankFileIgnored(t *testing.T) {
	blank := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, blank, "  \n")
	cfg, err := (&Loader{Files: []string{blank, t.TempDir()}, Getenv: noEnv}).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cfg.Model)
}

func TestLoad_NearestProjectFile(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, ".quicktypofix", "config.json")
	writeJSON(t, project, `{"modelName": "x", "diffAlgorithm": null}`)
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	global := filepath.Join(t.TempDir(), "global.json")
	writeJSON(t, global, `{"modelName": "global", "highlightTimeout": 300}`)

	l := &Loader{Files: []string{global}, SearchFrom: deep, Getenv: noEnv}
	assert.Equal(t, []string{global, project}, l.SourceFiles())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "x", cfg.Model)
	assert.Equal(t, Provenance{SourceType: "json_file", SourceIdentifier: project}, cfg.Provenance[KeyModel])
	assert.Equal(t, 300*time.Millisecond, cfg.Dwell)
	assert.Equal(t, editscript.AlgorithmChars, cfg.DiffAlgorithm, "null leaves the default")

	nl := NewLoader(deep)
	assert.Equal(t, deep, nl.SearchFrom)
	require.Len(t, nl.Files, 1)
	assert.True(t, filepath.IsAbs(nl.Files[0]))
}

func TestLoad_ErrorNamesSource(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.json")
	writeJSON(t, p, `{"addedHighlightColor": "mauve"}`)
	_, err := (&Loader{Files: []string{p}, Getenv: noEnv}).Load()
	assert.ErrorContains(t, err, "invalid configuration: addedHighlightColor (from "+p+")")

	_, err = (&Loader{Getenv: func(k string) string {
		if k == "QUICKTYPOFIX_HIGHLIGHT_TIMEOUT" {
			return "-1"
		}
		return ""
	}}).Load()
	assert.ErrorContains(t, err, "highlightTimeout (from QUICKTYPOFIX_HIGHLIGHT_TIMEOUT)")
}

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "#00FF00", want: "#00ff00"},
		{in: "#0f0", want: "#00ff00"},
		{in: "rgb(255, 128, 0)", want: "#ff8000"},
		{in: "rgba(0, 255, 0, 0.5)", want: "#008000"},
		{in: "rgba(255,0,0,1)", want: "#ff0000"},
		{in: "rgba(255,0,0,0)", want: "#000000"},
		{in: "rgba(255,0,0)", wantErr: true},
		{in: "rgb(300,0,0)", wantErr: true},
		{in: "rgba(1,2,3,1.5)", wantErr: true},
		{in: "#zzzzzz", wantErr: true},
		{in: "green", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeColor(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
