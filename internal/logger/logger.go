// Package logger provides levelled logging on top of the standard log
// package. Output is plain text by default or one JSON object per line when
// the format is set to "json".
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a logging severity.
type Level int

// Supported levels, lowest first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel converts a config value such as "warn" into a Level.
// Unknown values fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	mu     sync.RWMutex
	level  = LevelInfo
	asJSON bool
	std    = log.New(os.Stderr, "", log.LstdFlags)
)

// Configure sets the minimum level and output format ("text" or "json").
func Configure(lvl, format string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(lvl)
	asJSON = strings.EqualFold(format, "json")
	if asJSON {
		std.SetFlags(0)
	} else {
		std.SetFlags(log.LstdFlags)
	}
}

// SetOutput sets the output writer. Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

// Enabled reports whether messages at lvl are currently written.
func Enabled(lvl Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return lvl >= level
}

// Debug logs a debug message.
func Debug(format string, args ...any) { write(LevelDebug, format, args...) }

// Info logs an informational message.
func Info(format string, args ...any) { write(LevelInfo, format, args...) }

// Warn logs a warning.
func Warn(format string, args ...any) { write(LevelWarn, format, args...) }

// Error logs an error.
func Error(format string, args ...any) { write(LevelError, format, args...) }

func write(lvl Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if lvl < level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if !asJSON {
		std.Printf("%s: %s", lvl, msg)
		return
	}

	entry := map[string]string{
		"time":    time.Now().UTC().Format(time.RFC3339),
		"level":   lvl.String(),
		"message": msg,
	}
	if data, err := json.Marshal(entry); err == nil {
		std.Print(string(data))
	} else {
		std.Printf("%s: %s", lvl, msg)
	}
}
