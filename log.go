package rbe

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// Logger is the structured logger the engine writes its operational
// events through: the CRS setup, then one registration (with the depth of
// its merge cascade) at a time. Enc, Upd and Dec do not log. It wraps zerolog with an optional colored console
// sink and an optional plain file sink, mirroring the level/console/file
// split of the teacher's own logger.
type Logger struct {
	level   zerolog.Level
	console zerolog.Logger
	file    *os.File
	fileLog zerolog.Logger
}

var levelColors = map[zerolog.Level]*color.Color{
	zerolog.DebugLevel: color.New(color.FgCyan),
	zerolog.InfoLevel:  color.New(color.FgGreen),
	zerolog.WarnLevel:  color.New(color.FgYellow),
	zerolog.ErrorLevel: color.New(color.FgRed),
	zerolog.FatalLevel: color.New(color.FgRed, color.Bold),
}

// NewLogger builds a Logger at the given level ("debug", "info", "warn",
// "error", "fatal"), optionally tee-ing to logFile. An empty logFile
// disables the file sink.
func NewLogger(level, logFile string) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	cw.FormatLevel = func(i interface{}) string {
		s, _ := i.(string)
		l, err := zerolog.ParseLevel(s)
		if err != nil {
			return s
		}
		c, ok := levelColors[l]
		if !ok {
			return s
		}
		return c.Sprintf("%-5s", l.String())
	}

	lg := &Logger{
		level:   lvl,
		console: zerolog.New(cw).Level(lvl).With().Timestamp().Logger(),
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("rbe: open log file: %w", err)
		}
		lg.file = f
		lg.fileLog = zerolog.New(f).Level(lvl).With().Timestamp().Logger()
	}

	return lg, nil
}

// NewDiscardLogger returns a Logger that writes nowhere, for tests and
// library embedding that don't want console noise.
func NewDiscardLogger() *Logger {
	return &Logger{
		level:   zerolog.Disabled,
		console: zerolog.New(io.Discard),
	}
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) event(level zerolog.Level, fields map[string]interface{}, msg string) {
	e := l.console.WithLevel(level)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)

	if l.file != nil {
		fe := l.fileLog.WithLevel(level)
		for k, v := range fields {
			fe = fe.Interface(k, v)
		}
		fe.Msg(msg)
	}
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.event(zerolog.DebugLevel, fields, msg)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.event(zerolog.InfoLevel, fields, msg)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.event(zerolog.WarnLevel, fields, msg)
}

func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.event(zerolog.ErrorLevel, fields, msg)
}
