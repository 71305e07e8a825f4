package logx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "debug"
	}
}

// ParseLevel maps a config value to a Level. Unknown values yield LevelWarn.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "info":
		return LevelInfo
	case "error":
		return LevelError
	default:
		return LevelWarn
	}
}

// Fields are structured key/value pairs attached to an entry.
type Fields map[string]any

var (
	mu       sync.RWMutex
	minLevel           = LevelWarn
	out      io.Writer = io.Discard
	secrets            = make([]string, 0)
	verbose  bool
)

// SetOutput sets the destination for logs. nil discards them.
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	mu.Lock()
	out = w
	mu.Unlock()
}

// SetMinLevel sets the minimum level to emit.
func SetMinLevel(l Level) { mu.Lock(); minLevel = l; mu.Unlock() }

// SetVerbose toggles verbose output (no truncation of large fields/messages).
func SetVerbose(v bool) { mu.Lock(); verbose = v; mu.Unlock() }

// Verbose returns whether verbose output is enabled.
func Verbose() bool { mu.RLock(); defer mu.RUnlock(); return verbose }

// OpenFile appends logs to path and returns the file for the caller to close.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	SetOutput(f)
	return f, nil
}

// RegisterSecret adds a string to be redacted in outputs.
func RegisterSecret(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	mu.Lock()
	secrets = append(secrets, s)
	mu.Unlock()
}

// StdlogWriter wraps writes as structured JSON lines at a fixed level.
// It applies redaction and optional truncation when verbose is disabled.
func StdlogWriter(level Level, w io.Writer) io.Writer {
	return &stdlogWriter{level: level, w: w}
}

type stdlogWriter struct {
	level Level
	w     io.Writer // nil means the current package output
}

func (sw *stdlogWriter) Write(p []byte) (int, error) {
	dst := sw.w
	if dst == nil {
		dst = current()
	}
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if err := emit(dst, sw.level, string(line), nil); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func current() io.Writer { mu.RLock(); defer mu.RUnlock(); return out }

// Debugf logs a debug message.
func Debugf(format string, args ...any) { _ = emit(current(), LevelDebug, fmt.Sprintf(format, args...), nil) }

// Infof logs an info message.
func Infof(format string, args ...any) { _ = emit(current(), LevelInfo, fmt.Sprintf(format, args...), nil) }

// Warnf logs a warning message.
func Warnf(format string, args ...any) { _ = emit(current(), LevelWarn, fmt.Sprintf(format, args...), nil) }

// Errorf logs an error message.
func Errorf(format string, args ...any) { _ = emit(current(), LevelError, fmt.Sprintf(format, args...), nil) }

// Event logs msg with structured fields.
func Event(lvl Level, msg string, fields Fields) { _ = emit(current(), lvl, msg, fields) }

type entry struct {
	TS     string `json:"ts"`
	Level  string `json:"level"`
	Msg    string `json:"msg"`
	Fields Fields `json:"fields,omitempty"`
}

func emit(w io.Writer, lvl Level, msg string, fields Fields) error {
	mu.RLock()
	ml := minLevel
	v := verbose
	mu.RUnlock()
	if lvl < ml || w == io.Discard {
		return nil
	}
	msg = redact(msg)
	if !v {
		msg = truncate(msg, 2*1024)
	}
	var clean Fields
	if len(fields) > 0 {
		clean = make(Fields, len(fields))
		for k, val := range fields {
			switch x := val.(type) {
			case string:
				x = redact(x)
				if !v {
					x = truncate(x, 2*1024)
				}
				clean[k] = x
			case error:
				clean[k] = redact(x.Error())
			default:
				clean[k] = val
			}
		}
	}
	e := entry{
		TS:     time.Now().Format(time.RFC3339Nano),
		Level:  lvl.String(),
		Msg:    msg,
		Fields: clean,
	}
	b, err := json.Marshal(e)
	if err != nil {
		_, err2 := io.WriteString(w, msg+"\n")
		return err2
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func redact(s string) string {
	mu.RLock()
	defer mu.RUnlock()
	for _, sec := range secrets {
		s = strings.ReplaceAll(s, sec, "[REDACTED]")
	}
	return s
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	// keep last 10 chars to aid context
	suffix := "… [truncated]"
	if limit > len(suffix)+10 {
		return s[:limit-len(suffix)-10] + suffix + s[len(s)-10:]
	}
	return s[:limit]
}
