// Package log provides a leveled, structured logger with four levels.
package log

import (
	"fmt"
	"maps"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/datarhei/srtrelay/encoding/json"
)

type Level uint

const (
	Lsilent Level = iota
	Lerror
	Lwarn
	Linfo
	Ldebug
)

var levelNames = [...]string{"SILENT", "ERROR", "WARN", "INFO", "DEBUG"}

func (level Level) String() string {
	if int(level) >= len(levelNames) {
		return fmt.Sprintf("LEVEL(%d)", level)
	}

	return levelNames[level]
}

func (level *Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(level.String())
}

// ParseLevel returns the level for a name like "info" or "warn".
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(n, name) {
			return Level(i), nil
		}
	}

	return Lsilent, fmt.Errorf("unknown log level '%s'", name)
}

type Fields map[string]interface{}

// Logger writes leveled messages with a component name and optional fields
// to a Writer. A message is written if the writer accepts its level.
type Logger interface {
	// WithOutput returns a Logger that writes to w.
	WithOutput(w Writer) Logger

	// WithComponent returns a Logger with the given component name.
	WithComponent(component string) Logger

	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	Debug() Logger
	Info() Logger
	Warn() Logger
	Error() Logger

	// Log writes the message formatted according to fmt.Printf. Without a
	// level the message is written as debug.
	Log(format string, args ...interface{})

	// Write implements io.Writer. Each call is logged as one debug message.
	Write(p []byte) (int, error)

	Close()
}

// Event is a single log message as it is handed to a Writer.
type Event struct {
	Time      time.Time
	Level     Level
	Component string
	Caller    string
	Message   string
	Data      Fields
}

func (e *Event) clone() *Event {
	c := *e
	c.Data = maps.Clone(e.Data)

	if c.Data == nil {
		c.Data = Fields{}
	}

	return &c
}

// logger is immutable. Every With* and level call returns a modified copy,
// so loggers can be shared between goroutines.
type logger struct {
	output     Writer
	modulePath string

	component string
	level     Level
	fields    Fields

	// rejected lists fields that could not be added.
	rejected []string
}

var modulePath = func() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Path
	}

	return ""
}()

// New returns a Logger for the component. It has no output until one is
// set with WithOutput.
func New(component string) Logger {
	return &logger{
		modulePath: modulePath,
		component:  component,
	}
}

func (l *logger) copy() *logger {
	c := *l
	c.fields = maps.Clone(l.fields)
	c.rejected = append([]string(nil), l.rejected...)

	return &c
}

func (l *logger) Close() {
	if l.output != nil {
		l.output.Close()
	}
}

// WithOutput keeps the component, but drops level and fields.
func (l *logger) WithOutput(w Writer) Logger {
	return &logger{
		output:     w,
		modulePath: l.modulePath,
		component:  l.component,
	}
}

func (l *logger) WithComponent(component string) Logger {
	c := l.copy()
	c.component = component

	return c
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return l.WithFields(Fields{key: value})
}

const maxFields = 1024

func (l *logger) WithFields(f Fields) Logger {
	if len(l.fields)+len(f) > maxFields {
		return l
	}

	c := l.copy()
	if c.fields == nil {
		c.fields = make(Fields, len(f))
	}

	for k, v := range f {
		if isFunc(v) {
			c.rejected = append(c.rejected, fmt.Sprintf("can not add field %q", k))
			continue
		}

		c.fields[k] = v
	}

	return c
}

// isFunc reports whether v is a function or a pointer to one. Those can't
// be serialized.
func isFunc(v interface{}) bool {
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t.Kind() == reflect.Func
}

func (l *logger) WithError(err error) Logger {
	if err == nil {
		return l
	}

	return l.WithField("error", err)
}

func (l *logger) withLevel(level Level) Logger {
	c := l.copy()
	c.level = level

	return c
}

func (l *logger) Debug() Logger { return l.withLevel(Ldebug) }
func (l *logger) Info() Logger  { return l.withLevel(Linfo) }
func (l *logger) Warn() Logger  { return l.withLevel(Lwarn) }
func (l *logger) Error() Logger { return l.withLevel(Lerror) }

func (l *logger) Log(format string, args ...interface{}) {
	l.log(2, format, args...)
}

func (l *logger) Write(p []byte) (int, error) {
	l.log(2, "%s", strings.TrimSpace(string(p)))

	return len(p), nil
}

func (l *logger) log(skip int, format string, args ...interface{}) {
	if l.output == nil {
		return
	}

	_, file, line, _ := runtime.Caller(skip)

	e := &Event{
		Time:      time.Now(),
		Level:     l.level,
		Component: l.component,
		Caller:    fmt.Sprintf("%s:%d", strings.TrimPrefix(file, l.modulePath), line),
		Message:   format,
		Data:      maps.Clone(l.fields),
	}

	if e.Data == nil {
		e.Data = Fields{}
	}

	if e.Level == Lsilent {
		e.Level = Ldebug
	}

	if len(args) != 0 {
		e.Message = fmt.Sprintf(format, args...)
	}

	if len(l.rejected) != 0 {
		e.Data["logger_error"] = strings.Join(l.rejected, ", ")
	}

	l.output.Write(e)
}
