package credential

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		key  string
		ok   bool
		want string
	}{
		{"", false, "(not set)"},
		{"", true, "(empty string)"},
		{"abc", true, "***"},
		{"123456789012", true, "************"},
		{"sk-1234567890abcdef", true, "sk-...def"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Preview(tt.key, tt.ok), "key=%q ok=%v", tt.key, tt.ok)
	}
}

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	f := NewFile(path)

	_, err := f.Retrieve(APIKeyID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.Store(APIKeyID, "sk-secret"))
	got, err := f.Retrieve(APIKeyID)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", got)

	if runtime.GOOS != "windows" {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	}

	// A second store instance sees the persisted value:
	got, err = NewFile(path).Retrieve(APIKeyID)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", got)

	require.NoError(t, f.Delete(APIKeyID))
	require.NoError(t, f.Delete(APIKeyID))
	_, err = f.Retrieve(APIKeyID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFile(path).Retrieve(APIKeyID)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLookup(t *testing.T) {
	t.Setenv("QUICKTYPOFIX_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	var m Memory
	_, err := Lookup(&m)
	assert.ErrorIs(t, err, ErrNotFound)

	t.Setenv("OPENAI_API_KEY", "env-openai")
	key, err := Lookup(&m)
	require.NoError(t, err)
	assert.Equal(t, "env-openai", key)

	t.Setenv("QUICKTYPOFIX_API_KEY", "env-qtf")
	key, err = Lookup(nil)
	require.NoError(t, err)
	assert.Equal(t, "env-qtf", key)

	require.NoError(t, m.Store(APIKeyID, "stored"))
	key, err = Lookup(&m)
	require.NoError(t, err)
	assert.Equal(t, "stored", key)
}
