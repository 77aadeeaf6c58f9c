// Package credential stores the correction service API key.
//
// A Store is scoped secret storage keyed by identifier. File persists secrets as JSON in a 0600 file under the user's home directory; Memory is for tests. Absence of
// a secret is ErrNotFound, a recoverable condition callers surface to the user.
package credential

import (
	"errors"
	"os"
	"strings"
)

// APIKeyID is the fixed identifier the API key is stored under.
const APIKeyID = "quickTypoFix.apiKey"

// ErrNotFound is returned by Retrieve when no secret is stored for the identifier.
var ErrNotFound = errors.New("credential: not found")

// Store is scoped secret storage.
type Store interface {
	Store(id string, secret string) error
	Retrieve(id string) (string, error)
	Delete(id string) error
}

// EnvFallbacks are consulted, in order, by Lookup when the store has no API key.
var EnvFallbacks = []string{"$QUICKTYPOFIX_API_KEY", "$OPENAI_API_KEY"}

// Lookup returns the API key from store, falling back to EnvFallbacks. It returns ErrNotFound if no key is available anywhere; other store errors are returned as-is.
func Lookup(store Store) (string, error) {
	if store != nil {
		key, err := store.Retrieve(APIKeyID)
		if err == nil && key != "" {
			return key, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	for _, env := range EnvFallbacks {
		if v := getEnvWithPossibleDollar(env); v != "" {
			return v, nil
		}
	}
	return "", ErrNotFound
}

func getEnvWithPossibleDollar(key string) string {
	envVar := strings.TrimPrefix(key, "$")
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// maskThreshold is the length at or below which a key is fully masked.
const maskThreshold = 12

// Preview returns a display-safe version of key: "(not set)" when !ok, "(empty string)" when empty, all '*' when short, else the first and last 3 characters around "...".
func Preview(key string, ok bool) string {
	switch {
	case !ok:
		return "(not set)"
	case key == "":
		return "(empty string)"
	}
	runes := []rune(key)
	if len(runes) <= maskThreshold {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:3]) + "..." + string(runes[len(runes)-3:])
}
