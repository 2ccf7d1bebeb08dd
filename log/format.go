package log

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datarhei/srtrelay/encoding/json"
)

// Formatter renders an event for a stream writer.
type Formatter interface {
	Bytes(e *Event) []byte
	String(e *Event) string
}

type jsonFormatter struct{}

// NewJSONFormatter renders an event as one JSON object. Field values that
// are errors or Stringers are rendered as strings.
func NewJSONFormatter() Formatter {
	return jsonFormatter{}
}

func (jsonFormatter) Bytes(e *Event) []byte {
	object := make(map[string]interface{}, len(e.Data)+5)

	for key, value := range e.Data {
		if s, ok := stringValue(value); ok {
			value = s
		}

		object[key] = value
	}

	object["ts"] = e.Time
	object["level"] = e.Level.String()
	object["component"] = e.Component

	if len(e.Caller) != 0 {
		object["caller"] = e.Caller
	}

	if len(e.Message) != 0 {
		object["message"] = e.Message
	}

	data, err := json.Marshal(object)
	if err != nil {
		data, _ = json.Marshal(map[string]interface{}{
			"ts":        e.Time,
			"level":     e.Level.String(),
			"component": e.Component,
			"message":   e.Message,
			"error":     err.Error(),
		})
	}

	return append(data, '\n')
}

func (f jsonFormatter) String(e *Event) string {
	return string(f.Bytes(e))
}

var levelColors = map[Level]string{
	Ldebug: "\033[35m",
	Linfo:  "\033[34m",
	Lwarn:  "\033[33m",
	Lerror: "\033[31m\033[5m",
}

const colorReset = "\033[0m"

type consoleFormatter struct {
	color bool
}

// NewConsoleFormatter renders an event as a line of key=value pairs with
// the fields sorted by key.
func NewConsoleFormatter(useColor bool) Formatter {
	return consoleFormatter{color: useColor}
}

func (f consoleFormatter) Bytes(e *Event) []byte {
	return []byte(f.String(e))
}

func (f consoleFormatter) String(e *Event) string {
	level := e.Level.String()
	if code, ok := levelColors[e.Level]; ok && f.color {
		level = code + level + colorReset
	}

	b := &strings.Builder{}

	f.pair(b, "ts", e.Time.UTC().Format(time.RFC3339))
	f.pair(b, "level", level)
	f.pair(b, "component", strconv.Quote(e.Component))

	if len(e.Message) != 0 {
		f.pair(b, "msg", strconv.Quote(e.Message))
	}

	keys := make([]string, 0, len(e.Data))
	for key := range e.Data {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		f.pair(b, key, consoleValue(e.Data[key]))
	}

	b.WriteByte('\n')

	return b.String()
}

func (f consoleFormatter) pair(b *strings.Builder, key, value string) {
	if b.Len() != 0 {
		b.WriteByte(' ')
	}

	if !f.color {
		b.WriteString(key + "=" + value)
		return
	}

	if key == "error" {
		value = "\033[31m" + value + colorReset
	}

	b.WriteString("\033[90m" + key + "=" + colorReset + value)
}

// consoleValue quotes strings, errors and Stringers. Booleans are written
// bare, everything else as JSON.
func consoleValue(value interface{}) string {
	if b, ok := value.(bool); ok {
		return strconv.FormatBool(b)
	}

	if s, ok := stringValue(value); ok {
		return strconv.Quote(s)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return strconv.Quote(err.Error())
	}

	return string(data)
}

func stringValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case error:
		return v.Error(), true
	case fmt.Stringer:
		return v.String(), true
	}

	return "", false
}
