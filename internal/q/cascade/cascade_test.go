package cascade

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withJSON writes a file named name with contents into a new temporary directory and invokes callback with its absolute path.
func withJSON(t *testing.T, name string, contents string, callback func(path string)) {
	require.False(t, filepath.IsAbs(name))
	d := t.TempDir()
	p := filepath.Join(d, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	callback(p)
}

func envMap(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestStrictlyLoad_Precedence(t *testing.T) {
	type C struct {
		Port           int
		PortProvidence Providence `json:"-"`
		Name           string `json:"displayName"`
		NameProvidence Providence
		Ratio          float64
		Debug          bool
		Server         struct {
			Host string
		}
	}

	withJSON(t, "cfg.json", `{"port": 8080, "DisplayName": "fromjson", "server": {"host": "h"}, "unknown": [1, 2]}`, func(p string) {
		var cfg C
		l := New().
			WithDefaults(map[string]any{"port": 80, "displayname": "def", "ratio": 0.5, "server.host": "localhost"}).
			WithJSONFile(p).
			WithEnv(map[string]string{"port": "ENV_PORT", "debug": "ENV_DEBUG", "displayname": "ENV_NAME"})
		l.LookupEnv = envMap(map[string]string{"ENV_PORT": "9090", "ENV_DEBUG": "true", "ENV_NAME": ""})
		require.NoError(t, l.StrictlyLoad(&cfg))

		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, Providence{SourceType: "env"}, cfg.PortProvidence)
		assert.Equal(t, "fromjson", cfg.Name, "empty env var does not override")
		assert.Equal(t, Providence{SourceType: "json_file", SourceIdentifier: p}, cfg.NameProvidence)
		assert.False(t, cfg.NameProvidence.Default())
		assert.True(t, cfg.NameProvidence.IsSet())
		assert.Equal(t, 0.5, cfg.Ratio)
		assert.True(t, cfg.Debug)
		assert.Equal(t, "h", cfg.Server.Host)
		assert.Equal(t, []string{p}, l.JSONFiles())
	})
}

func TestStrictlyLoad_DefaultOnly(t *testing.T) {
	type C struct {
		TimeoutSecs           int
		TimeoutSecsProvidence *Providence
		Unset                 string
		UnsetProvidence       Providence
	}

	var cfg C
	require.NoError(t, New().WithDefaults(map[string]any{"timeoutsecs": 30}).StrictlyLoad(&cfg))
	assert.Equal(t, 30, cfg.TimeoutSecs)
	require.NotNil(t, cfg.TimeoutSecsProvidence)
	assert.True(t, cfg.TimeoutSecsProvidence.Default())
	assert.False(t, cfg.UnsetProvidence.IsSet())
}

func TestStrictlyLoad_Errors(t *testing.T) {
	type C struct {
		Port int
		Host string
	}

	tests := []struct {
		name     string
		contents string
		wantErr  string
	}{
		{name: "bad json", contents: `{"port": `, wantErr: "parse json"},
		{name: "not an object", contents: `[1]`, wantErr: "top-level JSON must be an object"},
		{name: "uncoercible", contents: `{"port": "soon"}`, wantErr: `cannot parse int from "soon"`},
		{name: "object for scalar", contents: `{"host": {"a": 1}}`, wantErr: "cannot coerce"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withJSON(t, "c.json", tt.contents, func(p string) {
				var cfg C
				err := New().WithJSONFile(p).StrictlyLoad(&cfg)
				require.Error(t, err)
				assert.Contains(t, err.Error(), "JSON File: "+p)
				assert.Contains(t, err.Error(), tt.wantErr)
			})
		})
	}

	var notStruct int
	assert.Error(t, New().StrictlyLoad(&notStruct))
	assert.Error(t, New().StrictlyLoad(nil))
}

func TestStrictlyLoad_SkipsMissingBlankAndDirectories(t *testing.T) {
	type C struct{ Host string }

	dir := t.TempDir()
	blank := filepath.Join(dir, "blank.json")
	require.NoError(t, os.WriteFile(blank, []byte(" \n"), 0o644))

	var cfg C
	err := New().
		WithDefaults(map[string]any{"host": "def"}).
		WithJSONFile(filepath.Join(dir, "missing.json")).
		WithJSONFile(blank).
		WithJSONFile(dir).
		StrictlyLoad(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "def", cfg.Host)
}

func TestWithNearestJSONFile(t *testing.T) {
	type C struct{ Host string }

	root := t.TempDir()
	deep := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(filepath.Join(deep, ".app"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".app", "config.json"), []byte(`{"host": "root"}`), 0o644))
	// A blank file closer to the start is skipped.
	require.NoError(t, os.WriteFile(filepath.Join(deep, ".app", "config.json"), []byte("  "), 0o644))

	l := New().WithNearestJSONFile(filepath.Join(".app", "config.json"), deep)
	assert.Equal(t, []string{filepath.Join(root, ".app", "config.json")}, l.JSONFiles())

	var cfg C
	require.NoError(t, l.StrictlyLoad(&cfg))
	assert.Equal(t, "root", cfg.Host)

	assert.Empty(t, New().WithNearestJSONFile("nope.json", deep).JSONFiles())
	assert.Panics(t, func() { New().WithNearestJSONFile(filepath.Join(root, "x.json"), "") })
}

func TestSourceMap_ToMap(t *testing.T) {
	m, err := (&sourceMap{m: map[string]any{"A.B": 1, "a.C": "x", "d": map[string]any{"E.f": true}}}).ToMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": 1, "c": "x"},
		"d": map[string]any{"e": map[string]any{"f": true}},
	}, m)

	_, err = (&sourceMap{m: map[string]any{"a": 1, "a.b": 2}}).ToMap()
	assert.ErrorContains(t, err, "key conflict")

	_, err = (&sourceMap{m: map[string]any{"a": struct{}{}}}).ToMap()
	assert.ErrorContains(t, err, "not allowed")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, ".app", "config.json"), ExpandPath("~/.app/config.json"))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "rel.json"), ExpandPath("rel.json"))
}
