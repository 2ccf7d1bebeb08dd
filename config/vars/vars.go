// Package vars keeps track of configuration values, their environment
// variables and the messages produced while merging and validating them.
package vars

import (
	"fmt"
	"os"
	"strings"

	"github.com/datarhei/srtrelay/config/value"
)

// Variable is the printable description of a registered value.
type Variable struct {
	Value       string
	Name        string
	EnvName     string
	Description string
	Merged      bool
}

type variable struct {
	value       value.Value
	name        string
	description string

	env      []string // primary name first, deprecated names after it
	noEnv    bool
	required bool
	disguise bool // don't reveal the value
	merged   bool // value has been taken from the environment
}

func (v *variable) envName() string {
	if len(v.env) == 0 {
		return ""
	}

	return v.env[0]
}

func (v *variable) describe() Variable {
	d := Variable{
		Value:       v.value.String(),
		Name:        v.name,
		EnvName:     v.envName(),
		Description: v.description,
		Merged:      v.merged,
	}

	if v.disguise {
		d.Value = "***"
	}

	return d
}

// Option modifies a variable on registration.
type Option func(v *variable)

// Env sets the environment variable name. Further names are still read, but
// produce a deprecation warning.
func Env(name string, deprecated ...string) Option {
	return func(v *variable) {
		v.env = append([]string{name}, deprecated...)
	}
}

// NoEnv excludes the variable from merging the environment.
func NoEnv() Option {
	return func(v *variable) {
		v.noEnv = true
	}
}

// Required makes an empty value a validation error.
func Required() Option {
	return func(v *variable) {
		v.required = true
	}
}

// Disguise hides the value in descriptions.
func Disguise() Option {
	return func(v *variable) {
		v.disguise = true
	}
}

type message struct {
	level    string
	variable Variable
	text     string
}

type Variables struct {
	// EnvPrefix is used for deriving the environment variable name from the
	// variable name, e.g. "srt.latency_ms" becomes "PREFIX_SRT_LATENCY_MS".
	// Without a prefix only names given with Env are used.
	EnvPrefix string

	vars     []*variable
	messages []message
}

// Register adds a value under its dotted name. The current content of the
// value is its default.
func (vs *Variables) Register(val value.Value, name, description string, options ...Option) {
	v := &variable{
		value:       val,
		name:        name,
		description: description,
	}

	for _, o := range options {
		o(v)
	}

	if v.noEnv {
		v.env = nil
	} else if len(v.env) == 0 && len(vs.EnvPrefix) != 0 {
		v.env = []string{vs.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))}
	}

	vs.vars = append(vs.vars, v)
}

func (vs *Variables) Get(name string) (string, error) {
	v := vs.find(name)
	if v == nil {
		return "", fmt.Errorf("variable '%s' not found", name)
	}

	return v.value.String(), nil
}

func (vs *Variables) Set(name, val string) error {
	v := vs.find(name)
	if v == nil {
		return fmt.Errorf("variable '%s' not found", name)
	}

	return v.value.Set(val)
}

// Log adds a message for the named variable. Messages for unknown names are
// dropped.
func (vs *Variables) Log(level, name string, format string, args ...interface{}) {
	v := vs.find(name)
	if v == nil {
		return
	}

	vs.messages = append(vs.messages, message{
		level:    level,
		variable: v.describe(),
		text:     fmt.Sprintf(format, args...),
	})
}

// Merge overrides the values with their environment variables, if set.
func (vs *Variables) Merge() {
	for _, v := range vs.vars {
		for i, env := range v.env {
			val, ok := os.LookupEnv(env)
			if !ok {
				continue
			}

			if i != 0 {
				vs.Log("warn", v.name, "deprecated name, please use %s", v.envName())
			}

			if err := v.value.Set(val); err != nil {
				vs.Log("error", v.name, "%s", err.Error())
			}

			v.merged = true

			break
		}
	}
}

// Validate checks every value and adds an error message for each problem.
// Every value also gets an empty info message.
func (vs *Variables) Validate() {
	for _, v := range vs.vars {
		vs.Log("info", v.name, "%s", "")

		if err := v.value.Validate(); err != nil {
			vs.Log("error", v.name, "%s", err.Error())
		}

		if v.required && v.value.IsEmpty() {
			vs.Log("error", v.name, "a value is required")
		}
	}
}

func (vs *Variables) ResetLogs() {
	vs.messages = nil
}

func (vs *Variables) Messages(logger func(level string, v Variable, message string)) {
	for _, m := range vs.messages {
		logger(m.level, m.variable, m.text)
	}
}

func (vs *Variables) HasErrors() bool {
	for _, m := range vs.messages {
		if m.level == "error" {
			return true
		}
	}

	return false
}

// Overrides returns the names of the values taken from the environment.
func (vs *Variables) Overrides() []string {
	names := []string{}

	for _, v := range vs.vars {
		if v.merged {
			names = append(names, v.name)
		}
	}

	return names
}

// List returns all registered values in the order of registration.
func (vs *Variables) List() []Variable {
	list := make([]Variable, 0, len(vs.vars))

	for _, v := range vs.vars {
		list = append(list, v.describe())
	}

	return list
}

func (vs *Variables) find(name string) *variable {
	for _, v := range vs.vars {
		if v.name == name {
			return v
		}
	}

	return nil
}
