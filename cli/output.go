package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the ledger rejected the operation
	ExitCommandError = 2 // bad flags, config or database
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that are not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Result is an ordered list of key/value pairs printed by a command.
type Result []Field

type Field struct {
	Key   string
	Value interface{}
}

func (r Result) Add(key string, value interface{}) Result {
	return append(r, Field{Key: key, Value: value})
}

// Write prints r as "key: value" lines, or as one JSON object when format
// is "json".
func (r Result) Write(w io.Writer, format string) error {
	if format == "json" {
		obj := make(map[string]interface{}, len(r))
		for _, f := range r {
			obj[f.Key] = f.Value
		}
		return json.NewEncoder(w).Encode(obj)
	}
	for _, f := range r {
		if _, err := fmt.Fprintf(w, "%s: %v\n", f.Key, f.Value); err != nil {
			return err
		}
	}
	return nil
}
