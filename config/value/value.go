// Package value implements the types of configuration values. Each type
// binds to a field of the configuration and parses and validates its
// string representation.
package value

// Value is a configuration value that can be set from a string, e.g. an
// environment variable.
type Value interface {
	String() string

	// Set parses val and stores it. Only syntax errors are reported here,
	// use Validate for checking the content.
	Set(val string) error

	// Validate returns an error describing what's wrong with the current value.
	Validate() error

	// IsEmpty returns whether the value is the empty value of its type.
	IsEmpty() bool
}
