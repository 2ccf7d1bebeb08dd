// Package json wraps encoding/json and adds positioned error messages.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(v, prefix, indent)
}

// Unmarshal decodes data into v. Syntax and type errors carry the line and
// character of the offending input.
func Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return FormatError(data, err)
	}

	return nil
}

// FormatError takes the input and the error from Unmarshal and returns an
// error that tells where in the input the error was found.
func FormatError(input []byte, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, character, offsetErr := position(input, syntaxErr.Offset)
		if offsetErr != nil {
			return err
		}

		return fmt.Errorf("syntax error at line %d, character %d: %w", line, character, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, character, offsetErr := position(input, typeErr.Offset)
		if offsetErr != nil {
			return err
		}

		return fmt.Errorf("expect type '%s' for '%s' at line %d, character %d: %w", typeErr.Type.String(), typeErr.Field, line, character, err)
	}

	return err
}

// position returns the line and character of the byte that caused an error.
// The offset of an error counts the bytes read including that byte.
func position(input []byte, offset int64) (line int, character int, err error) {
	if offset > int64(len(input)) || offset < 0 {
		return 0, 0, fmt.Errorf("offset %d is outside of the input", offset)
	}

	if offset == 0 {
		return 1, 1, nil
	}

	index := int(offset - 1)
	before := input[:index]

	line = 1 + bytes.Count(before, []byte{'\n'})
	character = index - bytes.LastIndexByte(before, '\n')

	return line, character, nil
}
