package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ssured/drawbot/internal/persist"
	"github.com/ssured/drawbot/internal/value"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Runtime failure (hub stopped with an error, write failed)
	ExitCommandError = 2 // Command error (bad config, unreachable hub, bad arguments)
)

// Error codes reported in CLI responses.
const (
	ErrCodeGeneric  = "E001" // Generic/unknown error
	ErrCodeConfig   = "E002" // Configuration invalid or unreadable
	ErrCodeConnect  = "E003" // Hub unreachable
	ErrCodeBackend  = "E004" // Backend could not be opened or read
	ErrCodeArgument = "E005" // Invalid subject, property or value
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NodeOutput is the printed form of one node.
type NodeOutput struct {
	Subject value.Subject  `json:"subject"`
	Props   persist.Record `json:"props"`
}

// String renders one "prop state entry" line per property, sorted by
// property name.
func (n NodeOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", n.Subject)
	props := make([]string, 0, len(n.Props))
	for prop := range n.Props {
		props = append(props, prop)
	}
	sort.Strings(props)
	for _, prop := range props {
		v := n.Props[prop]
		entry, err := json.Marshal(value.EncodeEntry(v.Entry))
		if err != nil {
			entry = []byte(fmt.Sprint(v.Entry))
		}
		fmt.Fprintf(&b, "\n  %s\t%s\t%s", prop, v.State, entry)
	}
	return b.String()
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message},
		})
	}
	_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}
