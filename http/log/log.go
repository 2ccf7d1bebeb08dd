// Package log adapts the echo logger output to the application logger.
package log

import (
	"io"
	"strings"

	"github.com/datarhei/srtrelay/encoding/json"
)

type logwrapper struct {
	writer io.Writer
}

type logentry struct {
	Message string `json:"message"`
}

// NewWrapper returns a writer that extracts the message of the JSON lines
// echo writes and passes each line of it to writer.
func NewWrapper(writer io.Writer) io.Writer {
	return &logwrapper{
		writer: writer,
	}
}

func (b *logwrapper) Write(p []byte) (int, error) {
	entry := logentry{}
	if err := json.Unmarshal(p, &entry); err == nil && len(entry.Message) != 0 {
		for _, line := range strings.Split(entry.Message, "\n") {
			b.writer.Write([]byte(line))
		}

		return len(p), nil
	}

	return b.writer.Write(p)
}
