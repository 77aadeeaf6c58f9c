package cascade

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
)

// fieldKey returns the lowercased key a struct field is matched by: its json tag name if present, else its Go name. json:"-" does not skip the field, it only ignores the json
// naming.
func fieldKey(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		name := strings.TrimSpace(strings.Split(tag, ",")[0])
		if name != "" && name != "-" {
			return strings.ToLower(name)
		}
	}
	return strings.ToLower(f.Name)
}

// Loader builds a prioritized cascade of configuration sources and applies them to a destination struct. Register sources in call order from lowest to highest priority using the With*
// methods, then call StrictlyLoad.
type Loader struct {
	// LookupEnv reads environment variables for WithEnv sources. os.LookupEnv if nil.
	LookupEnv func(key string) (string, bool)

	sources []cascadeSource // Sources are ordered from low to high priority.
}

// Providence records which source set a field.
type Providence struct {
	SourceType       string // "default", "json_file", or "env"
	SourceIdentifier string // ex: "/path/to/file.json". "" for sources without identifiers (defaults, env).
}

// IsSet reports whether any source set the field.
func (p Providence) IsSet() bool {
	return p.SourceType != ""
}

// Default reports whether the field was last set by the defaults.
func (p Providence) Default() bool {
	return p.SourceType == "default"
}

// New returns a new Loader. It is equivalent to &Loader{} and exists to support fluent chaining.
func New() *Loader {
	return &Loader{}
}

// WithDefaults registers m as the lowest-priority source of default values. Keys may use dot-notation and are matched case-insensitively. A nil map contributes no values.
func (c *Loader) WithDefaults(m map[string]any) *Loader {
	c.sources = append(c.sources, &sourceMap{isDefaults: true, m: m})
	return c
}

// WithJSONFile registers a JSON file as a source. path may be absolute or relative and is expanded with ExpandPath. The file is not read at call time; any I/O or parse errors
// occur during loading.
func (c *Loader) WithJSONFile(path string) *Loader {
	c.sources = append(c.sources, &sourceJSONFile{path: path})
	return c
}

// WithNearestJSONFile searches upward from startingAbsolutePath (or, if empty, from the current working directory) for the first readable, non-empty file named fileName and adds it
// as the next-highest-priority source. fileName must be relative (ex: ".app/config.json"); it panics if fileName is absolute. If startingAbsolutePath names a file, its directory
// is used. If no file is found, the loader is unchanged.
func (c *Loader) WithNearestJSONFile(fileName string, startingAbsolutePath string) *Loader {
	if filepath.IsAbs(fileName) {
		panic("fileName shouldn't be absolute")
	}
	if found := nearestFile(fileName, startingAbsolutePath); found != "" {
		c.sources = append(c.sources, &sourceJSONFile{path: found})
	}
	return c
}

func nearestFile(fileName string, start string) string {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		start = wd
	}
	if fi, err := os.Stat(start); err == nil && !fi.IsDir() {
		start = filepath.Dir(start)
	}

	for dir := start; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, fileName)
		if data, err := os.ReadFile(candidate); err == nil && strings.TrimSpace(string(data)) != "" {
			return candidate
		}
		if parent := filepath.Dir(dir); parent == dir {
			return ""
		}
	}
}

// WithEnv registers an environment-variable-backed source. m maps a configuration key (dots denote nesting) to an environment variable name.
func (c *Loader) WithEnv(m map[string]string) *Loader {
	c.sources = append(c.sources, &sourceEnv{keyToEnv: m})
	return c
}

// JSONFiles returns the JSON file paths registered so far, lowest priority first.
func (c *Loader) JSONFiles() []string {
	var paths []string
	for _, src := range c.sources {
		if s, ok := src.(*sourceJSONFile); ok {
			paths = append(paths, ExpandPath(s.path))
		}
	}
	return paths
}

// StrictlyLoad loads configuration from c's sources into dest, from low to high priority, with later sources overwriting earlier values. dest must be a non-nil pointer to a struct.
func (c *Loader) StrictlyLoad(dest any) error {
	if dest == nil {
		return fmt.Errorf("dest must be a non-nil pointer to struct")
	}
	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Ptr || destVal.IsNil() {
		return fmt.Errorf("dest must be a non-nil pointer to struct")
	}
	structVal := reflect.Indirect(destVal)
	if structVal.Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct, got %s", structVal.Kind())
	}

	lookup := c.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	for _, src := range c.sources {
		var prov Providence
		switch s := src.(type) {
		case *sourceMap:
			prov = Providence{SourceType: "default"}
		case *sourceJSONFile:
			prov = Providence{SourceType: "json_file", SourceIdentifier: ExpandPath(s.path)}
		case *sourceEnv:
			s.lookup = lookup
			prov = Providence{SourceType: "env"}
		}

		m, err := src.ToMap()
		if err != nil {
			// Missing and unreadable sources are skipped.
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				continue
			}
			return fmt.Errorf("%s: %w", src.Name(), err)
		}
		if err := applyMapToStruct(structVal, m, "", prov); err != nil {
			return fmt.Errorf("%s: %w", src.Name(), err)
		}
	}
	return nil
}

// applyMapToStruct writes values from m into structVal, matching keys to settable fields case-insensitively and recursing into nested objects. Unknown keys are ignored. When a field
// X is assigned and a sibling XProvidence field exists, prov is recorded there. JSON nulls leave the field as it was.
func applyMapToStruct(structVal reflect.Value, m map[string]any, basePath string, prov Providence) error {
	structType := structVal.Type()

	fieldIndex := map[string]int{}
	for i := 0; i < structType.NumField(); i++ {
		f := structType.Field(i)
		if !structVal.Field(i).CanSet() {
			continue
		}
		key := fieldKey(f)
		if prevIdx, exists := fieldIndex[key]; exists {
			return fmt.Errorf("struct contains case-insensitive field key collision for %q: %s and %s", key, structType.Field(prevIdx).Name, f.Name)
		}
		fieldIndex[key] = i
	}

	for key, raw := range m {
		keyLower := strings.ToLower(key)
		idx, ok := fieldIndex[keyLower]
		if !ok || raw == nil {
			continue
		}

		fVal := structVal.Field(idx)
		path := keyLower
		if basePath != "" {
			path = basePath + "." + keyLower
		}

		if err := setFieldValue(fVal, raw, path, prov); err != nil {
			return err
		}

		if provIdx, ok := fieldIndex[strings.ToLower(structType.Field(idx).Name+"Providence")]; ok {
			setProvidence(structVal.Field(provIdx), prov)
		}
	}
	return nil
}

func setProvidence(pf reflect.Value, prov Providence) {
	provType := reflect.TypeOf(Providence{})
	switch {
	case pf.Kind() == reflect.Ptr && pf.Type().Elem() == provType:
		if pf.IsNil() {
			pf.Set(reflect.New(provType))
		}
		pf.Elem().Set(reflect.ValueOf(prov))
	case pf.Type() == provType:
		pf.Set(reflect.ValueOf(prov))
	}
}

// setFieldValue sets fVal from raw, allocating pointer fields as needed and coercing scalars. Structs are filled from nested objects.
func setFieldValue(fVal reflect.Value, raw any, path string, prov Providence) error {
	if fVal.Kind() == reflect.Ptr {
		if fVal.IsNil() {
			fVal.Set(reflect.New(fVal.Type().Elem()))
		}
		return setFieldValue(fVal.Elem(), raw, path, prov)
	}

	switch fVal.Kind() {
	case reflect.Struct:
		obj, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object for struct field", path)
		}
		return applyMapToStruct(fVal, obj, path, prov)

	case reflect.String, reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64:
		coerced, err := coerceScalar(raw, fVal.Kind(), path)
		if err != nil {
			return err
		}
		switch fVal.Kind() {
		case reflect.String:
			fVal.SetString(coerced.(string))
		case reflect.Bool:
			fVal.SetBool(coerced.(bool))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fVal.SetInt(coerced.(int64))
		case reflect.Float32, reflect.Float64:
			fVal.SetFloat(coerced.(float64))
		}
		return nil

	default:
		return fmt.Errorf("%s: unsupported field kind %s", path, fVal.Kind())
	}
}

// coerceScalar converts raw into a value assignable to a field of targetKind. Strings accept strings, numbers and bools. Bools accept bools and strconv.ParseBool strings. Ints
// accept ints, floats (truncated toward zero) and base-10 strings, and are returned as int64. Floats accept floats, ints and numeric strings, and are returned as float64.
// Whitespace around strings is trimmed before parsing. Errors include path (ex: "server.port").
func coerceScalar(raw any, targetKind reflect.Kind, path string) (any, error) {
	switch targetKind {
	case reflect.String:
		switch v := raw.(type) {
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(v), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
		return nil, fmt.Errorf("%s: cannot coerce %T to string", path, raw)
	case reflect.Bool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%s: cannot parse bool from %q", path, v)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("%s: cannot coerce %T to bool", path, raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case float64:
			return int64(v), nil
		case string:
			parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: cannot parse int from %q", path, v)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("%s: cannot coerce %T to int", path, raw)
	case reflect.Float32, reflect.Float64:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: cannot parse float from %q", path, v)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("%s: cannot coerce %T to float", path, raw)
	}
	return nil, fmt.Errorf("%s: unsupported scalar kind %s", path, targetKind)
}
