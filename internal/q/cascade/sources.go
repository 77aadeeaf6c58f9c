package cascade

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// cascadeSource supplies key/value data to the loader in a normalized map form.
type cascadeSource interface {
	// Name returns a human-readable label for the source, used in error messages.
	Name() string

	// ToMap returns a normalized map:
	//   - keys are lower cased
	//   - keys have no "." (dots are expanded into nested maps)
	//   - values are nested map[string]any, scalars (int, float64, bool, string), []any from JSON arrays, or nil.
	ToMap() (map[string]any, error)
}

// sourceMap adapts a Go map of defaults into a cascadeSource.
type sourceMap struct {
	isDefaults bool
	m          map[string]any // keys may include "." for nesting
}

// sourceJSONFile is a single JSON file read at load time. Empty or whitespace-only files and directories contribute no values.
type sourceJSONFile struct {
	path string
}

// sourceEnv maps configuration keys to environment variables.
type sourceEnv struct {
	keyToEnv map[string]string // ex: {"server.port": "SERVER_PORT"}
	lookup   func(string) (string, bool)
}

func (s *sourceMap) Name() string {
	if s.isDefaults {
		return "Defaults"
	}
	return "Go Map"
}

func (s *sourceMap) ToMap() (map[string]any, error) {
	out := map[string]any{}
	for k, v := range s.m {
		if err := mergeIntoObject(out, strings.Split(k, "."), v, k); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// mergeIntoObject inserts value into obj along parts, lowercasing each segment. A map value at the leaf is deep-merged. Setting a leaf twice, or descending through a non-object,
// is a key conflict. fullKey only annotates errors.
func mergeIntoObject(obj map[string]any, parts []string, value any, fullKey string) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid key")
	}
	part := strings.ToLower(parts[0])
	if len(parts) > 1 {
		existing, exists := obj[part]
		if !exists {
			child := map[string]any{}
			obj[part] = child
			return mergeIntoObject(child, parts[1:], value, fullKey)
		}
		if m, ok := existing.(map[string]any); ok {
			return mergeIntoObject(m, parts[1:], value, fullKey)
		}
		return fmt.Errorf("key conflict at '%s': '%s' is not an object", fullKey, part)
	}

	if mv, ok := value.(map[string]any); ok {
		existing, exists := obj[part]
		if !exists {
			existing = map[string]any{}
			obj[part] = existing
		}
		destMap, isMap := existing.(map[string]any)
		if !isMap {
			return fmt.Errorf("key conflict: key '%s' was already set", fullKey)
		}
		return mergeMap(destMap, mv, fullKey)
	}

	switch value.(type) {
	case nil, int, float64, bool, string, []any:
	default:
		return fmt.Errorf("invalid value for key '%s': type %T is not allowed", fullKey, value)
	}
	if _, exists := obj[part]; exists {
		return fmt.Errorf("key conflict: key '%s' was already set", fullKey)
	}
	obj[part] = value
	return nil
}

// mergeMap merges src into dest, lowercasing keys and expanding dotted keys. baseKey prefixes error paths.
func mergeMap(dest map[string]any, src map[string]any, baseKey string) error {
	for k, v := range src {
		full := strings.ToLower(k)
		if baseKey != "" {
			full = baseKey + "." + full
		}
		if err := mergeIntoObject(dest, strings.Split(k, "."), v, full); err != nil {
			return err
		}
	}
	return nil
}

func (s *sourceJSONFile) Name() string {
	return fmt.Sprintf("JSON File: %s", s.path)
}

func (s *sourceJSONFile) ToMap() (map[string]any, error) {
	if s == nil || s.path == "" {
		return map[string]any{}, nil
	}

	path := ExpandPath(s.path)
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return map[string]any{}, nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level JSON must be an object")
	}

	dest := map[string]any{}
	if err := mergeMap(dest, obj, ""); err != nil {
		return nil, err
	}
	return dest, nil
}

func (s *sourceEnv) Name() string {
	return "ENV"
}

// ToMap reads every mapped variable. Missing and empty variables do not set any key; an empty variable must not override a value from a JSON file.
func (s *sourceEnv) ToMap() (map[string]any, error) {
	lookup := s.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	out := map[string]any{}
	for key, envVar := range s.keyToEnv {
		if envVar == "" {
			continue
		}
		val, exists := lookup(envVar)
		if !exists || val == "" {
			continue
		}
		if err := mergeIntoObject(out, strings.Split(key, "."), val, key); err != nil {
			return nil, err
		}
	}
	return out, nil
}
