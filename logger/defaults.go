package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultLogger writes through the shared zerolog sink. The zero value logs
// without a component field.
type DefaultLogger struct {
	component string
}

var Default = &DefaultLogger{}

var (
	mu     sync.RWMutex
	logger = zerolog.New(consoleWriter(os.Stdout)).With().Timestamp().Logger()
	urlRe  = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*:\/\/[a-zA-Z0-9+%/.\-:_?&=#@+~]+`)
)

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 | 15:04:05"}
}

// New returns a logger tagged with the given component, e.g. the source tag.
func New(component string) *DefaultLogger {
	return &DefaultLogger{component: component}
}

// Configure replaces the shared sink. When file is set, JSON lines are also
// written to it and rotated by size.
func Configure(file string) io.Closer {
	var rotator *lumberjack.Logger
	var out io.Writer = consoleWriter(os.Stdout)
	if file != "" {
		rotator = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			LocalTime:  true,
		}
		out = zerolog.MultiLevelWriter(consoleWriter(os.Stdout), rotator)
	}

	mu.Lock()
	logger = zerolog.New(out).With().Timestamp().Logger()
	mu.Unlock()

	if rotator == nil {
		return io.NopCloser(nil)
	}
	return rotator
}

// SetOutput points the shared sink at w. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	logger = zerolog.New(w).With().Timestamp().Logger()
	mu.Unlock()
}

func cleanString(text string) string {
	return urlRe.ReplaceAllString(text, "[redacted url]")
}

func safeLogf(format string, v ...any) string {
	safeLogs := os.Getenv("SAFE_LOGS") == "true"
	safeString := fmt.Sprintf(format, v...)
	if safeLogs {
		return cleanString(safeString)
	}
	return safeString
}

func debugEnabled() bool {
	return os.Getenv("DEBUG") == "true"
}

func (l *DefaultLogger) event(level zerolog.Level) *zerolog.Event {
	mu.RLock()
	base := logger
	mu.RUnlock()

	e := base.WithLevel(level)
	if l.component != "" {
		e = e.Str("component", l.component)
	}
	return e
}

func (l *DefaultLogger) Log(format string) {
	l.event(zerolog.InfoLevel).Msg(safeLogf("%s", format))
}

func (l *DefaultLogger) Logf(format string, v ...any) {
	l.event(zerolog.InfoLevel).Msg(safeLogf(format, v...))
}

func (l *DefaultLogger) Debug(format string) {
	if debugEnabled() {
		l.event(zerolog.DebugLevel).Msg(safeLogf("%s", format))
	}
}

func (l *DefaultLogger) Debugf(format string, v ...any) {
	if debugEnabled() {
		l.event(zerolog.DebugLevel).Msg(safeLogf(format, v...))
	}
}

func (l *DefaultLogger) Error(format string) {
	l.event(zerolog.ErrorLevel).Msg(safeLogf("%s", format))
}

func (l *DefaultLogger) Errorf(format string, v ...any) {
	l.event(zerolog.ErrorLevel).Msg(safeLogf(format, v...))
}

func (l *DefaultLogger) Warn(format string) {
	l.event(zerolog.WarnLevel).Msg(safeLogf("%s", format))
}

func (l *DefaultLogger) Warnf(format string, v ...any) {
	l.event(zerolog.WarnLevel).Msg(safeLogf(format, v...))
}

func (l *DefaultLogger) Fatal(format string) {
	l.event(zerolog.FatalLevel).Msg(safeLogf("%s", format))
	os.Exit(1)
}

func (l *DefaultLogger) Fatalf(format string, v ...any) {
	l.event(zerolog.FatalLevel).Msg(safeLogf(format, v...))
	os.Exit(1)
}
