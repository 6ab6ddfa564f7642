// Package logger is the daemon's slog backend. Every line looks like
//
//	2006-01-02T15:04:05.000Z [LEVEL] message | key=value, key2=value2
//
// and goes to a size-rotated file, plus stderr in console mode. Two levels
// extend the slog set: TRACE (-8) below DEBUG and FAIL (12) above ERROR.
//
// Attributes whose key names a credential or a client address are written
// as [redacted] regardless of value.
package logger

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ///////////////////////////////////////////////
// Levels
// ///////////////////////////////////////////////

const (
	LevelTrace slog.Level = -8
	LevelDebug            = slog.LevelDebug
	LevelInfo             = slog.LevelInfo
	LevelWarn             = slog.LevelWarn
	LevelError            = slog.LevelError
	LevelFail  slog.Level = 12
)

// levels is ordered by severity; a record takes the name of the first
// entry at or above its level.
var levels = []struct {
	level slog.Level
	name  string
}{
	{LevelTrace, "TRACE"},
	{LevelDebug, "DEBUG"},
	{LevelInfo, "INFO"},
	{LevelWarn, "WARN"},
	{LevelError, "ERROR"},
	{LevelFail, "FAIL"},
}

func levelName(l slog.Level) string {
	for _, e := range levels {
		if l <= e.level {
			return e.name
		}
	}
	return "FAIL"
}

// ParseLevel maps a config level name to a level, ignoring case. Unknown
// names give LevelInfo.
func ParseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return LevelWarn
	}
	for _, e := range levels {
		if strings.EqualFold(s, e.name) {
			return e.level
		}
	}
	return LevelInfo
}

// Trace logs at LevelTrace.
func Trace(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}

// Fail logs at LevelFail.
func Fail(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelFail, msg, args...)
}

// ///////////////////////////////////////////////
// Handler
// ///////////////////////////////////////////////

const timeFormat = "2006-01-02T15:04:05.000Z"

// Redacted replaces the value of sensitive attributes.
const Redacted = "[redacted]"

var lineEnding = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// sink is the writer shared by a handler and everything derived from it.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

// Handler is the slog.Handler behind every mediacord logger. Attributes
// added with WithAttrs are formatted once, up front.
type Handler struct {
	out   *sink
	level slog.Level
	// prefix is the open group path, "a.b." or empty.
	prefix string
	// pre holds the formatted WithAttrs attributes.
	pre []byte
}

// NewHandler writes records at or above level to w.
func NewHandler(w io.Writer, level slog.Level) *Handler {
	return &Handler{out: &sink{w: w}, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	line := make([]byte, 0, 160)
	line = r.Time.UTC().AppendFormat(line, timeFormat)
	line = append(line, " ["...)
	line = append(line, levelName(r.Level)...)
	line = append(line, "] "...)
	line = append(line, r.Message...)

	attrs := append([]byte(nil), h.pre...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = appendAttr(attrs, h.prefix, a)
		return true
	})
	if len(attrs) > 0 {
		line = append(line, " | "...)
		line = append(line, attrs...)
	}
	line = append(line, lineEnding...)

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := h.out.w.Write(line)
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	pre := append([]byte(nil), h.pre...)
	for _, a := range attrs {
		pre = appendAttr(pre, h.prefix, a)
	}
	return &Handler{out: h.out, level: h.level, prefix: h.prefix, pre: pre}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{out: h.out, level: h.level, prefix: h.prefix + name + ".", pre: h.pre}
}

// appendAttr writes a as key=value, flattening groups into dotted keys.
// Groups with an empty key are inlined.
func appendAttr(dst []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			dst = appendAttr(dst, prefix, ga)
		}
		return dst
	}

	if len(dst) > 0 {
		dst = append(dst, ", "...)
	}
	dst = append(dst, prefix...)
	dst = append(dst, a.Key...)
	dst = append(dst, '=')
	if sensitive(a.Key) {
		return append(dst, Redacted...)
	}
	return append(dst, a.Value.String()...)
}

func sensitive(key string) bool {
	switch strings.ToLower(key) {
	case "password", "pw", "token", "access_token", "api_key", "remote_endpoint":
		return true
	}
	return false
}

// ///////////////////////////////////////////////
// File Logger
// ///////////////////////////////////////////////

// Options configures [NewLogger].
type Options struct {
	// Path is the log file, rotated when it reaches MaxSizeMB.
	Path      string
	Level     slog.Level
	MaxSizeMB int
	// Console mirrors every line to Stderr (os.Stderr if nil).
	Console bool
	Stderr  io.Writer
}

// NewLogger returns a logger writing to a rotating file. Close the returned
// io.Closer on shutdown.
func NewLogger(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.Path == "" {
		return nil, nil, errors.New("log path is empty")
	}
	file := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
	}

	var w io.Writer = file
	if opts.Console {
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		w = io.MultiWriter(file, stderr)
	}
	return slog.New(NewHandler(w, opts.Level)), file, nil
}

// ReadTail returns the last n lines of the file at path, oldest first.
// The error wraps os.ErrNotExist when there is no file yet.
func ReadTail(path string, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var tail []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		tail = append(tail, strings.TrimRight(sc.Text(), "\r"))
		if len(tail) > n {
			tail = tail[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return strings.Join(tail, "\n"), nil
}
