package api

// LogEvent represents a log event from the app
type LogEvent map[string]interface{}

// LogQuery are the query parameters for reading the log
type LogQuery struct {
	Format string `query:"format" validate:"omitempty,oneof=console raw"`
	Lines  int    `query:"lines" validate:"gte=0"`
}
