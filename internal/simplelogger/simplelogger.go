package simplelogger

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"
)

// EnvLogFile names the env var holding the log file path.
const EnvLogFile = "QUICKTYPOFIX_LOG_FILE"

var mu sync.Mutex

// now is swapped in tests.
var now = time.Now

// Log is a minimal printf-style logger. It appends a timestamped line to the file specified by the QUICKTYPOFIX_LOG_FILE environment variable.
//
// If QUICKTYPOFIX_LOG_FILE is unset/empty or the path can't be opened as a file, Log is a no-op.
func Log(format string, args ...any) {
	write("", format, args...)
}

// Logger tags every line with a fixed prefix (ex: a correction run ID).
type Logger struct {
	prefix string
}

// WithPrefix returns a Logger whose lines start with "[prefix] ".
func WithPrefix(prefix string) Logger {
	return Logger{prefix: prefix}
}

// Log is like the package-level Log, with l's prefix.
func (l Logger) Log(format string, args ...any) {
	write(l.prefix, format, args...)
}

func write(prefix string, format string, args ...any) {
	path := os.Getenv(EnvLogFile)
	if path == "" {
		return
	}

	// Serialize open/write/close to reduce interleaving within a single process.
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	var b bytes.Buffer
	b.WriteString(now().Format(time.RFC3339))
	b.WriteByte(' ')
	if prefix != "" {
		fmt.Fprintf(&b, "[%s] ", prefix)
	}
	_, _ = fmt.Fprintf(&b, format, args...)
	if b.Bytes()[b.Len()-1] != '\n' {
		_ = b.WriteByte('\n')
	}
	_, _ = f.Write(b.Bytes())
}
