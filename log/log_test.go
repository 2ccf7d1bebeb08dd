package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoglevelNames(t *testing.T) {
	require.Equal(t, "DEBUG", Ldebug.String())
	require.Equal(t, "ERROR", Lerror.String())
	require.Equal(t, "WARN", Lwarn.String())
	require.Equal(t, "INFO", Linfo.String())
	require.Equal(t, "SILENT", Lsilent.String())
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	require.Equal(t, Lwarn, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestLogColorToNotTTY(t *testing.T) {
	var buffer bytes.Buffer

	w := NewConsoleWriter(&buffer, Linfo, true).(*syncWriter)
	formatter := w.next.(*streamWriter).format.(consoleFormatter)

	require.False(t, formatter.color, "Color should not be used on a buffer")
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    Level
		expected []bool
	}{
		{Lsilent, []bool{false, false, false, false}},
		{Lerror, []bool{false, false, false, true}},
		{Lwarn, []bool{false, false, true, true}},
		{Linfo, []bool{false, true, true, true}},
		{Ldebug, []bool{true, true, true, true}},
	}

	for _, test := range tests {
		t.Run(test.level.String(), func(t *testing.T) {
			var buffer bytes.Buffer

			logger := New("test").WithOutput(NewConsoleWriter(&buffer, test.level, false))

			for i, l := range []Logger{logger.Debug(), logger.Info(), logger.Warn(), logger.Error()} {
				buffer.Reset()
				l.Log("message")
				require.Equal(t, test.expected[i], buffer.Len() != 0, "message %d", i)
			}
		})
	}
}

func TestLogComponent(t *testing.T) {
	var buffer bytes.Buffer

	logger := New("test").WithOutput(NewConsoleWriter(&buffer, Linfo, false))

	logger.Info().Log("info")
	require.Contains(t, buffer.String(), `component="test"`)

	buffer.Reset()

	logger.WithComponent("tset").Info().Log("info")
	require.Contains(t, buffer.String(), `component="tset"`)
}

func TestLogFields(t *testing.T) {
	var buffer bytes.Buffer

	logger := New("test").WithOutput(NewConsoleWriter(&buffer, Linfo, false))

	logger.WithField("client", "127.0.0.1:9000").WithError(errors.New("broken pipe")).Warn().Log("send failed")

	require.Contains(t, buffer.String(), `msg="send failed"`)
	require.Contains(t, buffer.String(), `client="127.0.0.1:9000"`)
	require.Contains(t, buffer.String(), `error="broken pipe"`)
}

func TestLogFieldsAreNotShared(t *testing.T) {
	writer := NewBufferWriter(Linfo, 10)

	logger := New("test").WithOutput(writer).WithField("a", 1)
	logger.WithField("b", 2).Info().Log("first")
	logger.Info().Log("second")

	events := writer.Events()
	require.Equal(t, 2, len(events))
	require.Equal(t, Fields{"a": 1, "b": 2}, events[0].Data)
	require.Equal(t, Fields{"a": 1}, events[1].Data)
}

func TestLogFunctionField(t *testing.T) {
	writer := NewBufferWriter(Linfo, 10)

	logger := New("test").WithOutput(writer)
	logger.WithField("fn", func() {}).Info().Log("hello")

	events := writer.Events()
	require.Equal(t, 1, len(events))
	require.NotContains(t, events[0].Data, "fn")
	require.Contains(t, events[0].Data, "logger_error")
}

func TestLogWithoutOutput(t *testing.T) {
	logger := New("test")

	require.NotPanics(t, func() {
		logger.Info().Log("nothing")
		logger.Close()
	})
}
