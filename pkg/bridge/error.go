package bridge

import (
	"errors"
	"fmt"
)

const (
	defaultErrorMessage = "an error occurred while processing the command"

	// Protocol messages callers match on.
	MsgNotInitialized      = "Not initialized. Run 'init' first."
	MsgAlreadyInitialized  = "Already initialized"
	MsgConnectionClosed    = "Connection closed"
	MsgNotInitializedClose = "Not initialized"
	MsgExiting             = "Exiting"
	MsgMissingCommand      = `Missing "command" property in JSON`
)

var (
	// ErrEmptyOutput is returned by Client when the processor writes an empty line.
	ErrEmptyOutput = errors.New("empty output")
	// ErrInvalidOutput is returned by Client when the processor writes a line that is not a JSON response.
	ErrInvalidOutput = errors.New("JSON parse error")
	// ErrProcessorClosed is returned by Client once the processor's output has ended.
	ErrProcessorClosed = errors.New("processor closed its output")
)

// Error is an error whose message is written to the caller in the response
// envelope as it is. Errors of other types reach the caller only through the
// fallback message handed to Context.Fail.
//
// Example:
//
//	// Caller receives this exact message
//	return bridge.Errorf("Unknown command: %s", name)
type Error struct {
	err error
}

// Errorf creates an Error with a formatted message. Wrapped errors (%w) stay
// reachable through errors.Is and errors.As.
func Errorf(format string, args ...any) Error {
	return Error{
		err: fmt.Errorf(format, args...),
	}
}

func (e Error) Error() string {
	return e.err.Error()
}

func (e Error) Unwrap() error {
	return e.err
}

// ResponseError is returned by Client when the processor answers with success=false.
type ResponseError struct {
	Command string
	Message string
}

func (e *ResponseError) Error() string {
	return e.Message
}
