package bridge

import (
	"context"
	"encoding/json"

	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

// Handler processes a command. Handlers call c.Next() to delegate to the next
// handler of the chain, which lets validation and state checks run as
// middleware in front of the operation itself.
type Handler func(c *Context)

// Context carries one command through its handler chain and collects the
// response written for it.
type Context struct {
	// Context is cancelled when the processor shuts down or the command deadline passes.
	Context context.Context
	// RequestID correlates log lines and audit records of one command.
	RequestID string
	// Command is the command name of the input line.
	Command string
	// Params is the whole input object the command was read from.
	Params json.RawMessage
	// Logger is scoped to the command.
	Logger log.Logger
	// Response is written to the output once the chain returns.
	Response Response

	handlers  []Handler
	responded bool
	exit      bool
	values    map[string]any
}

// Next runs the next handler of the chain. It returns immediately when the
// chain is exhausted.
func (c *Context) Next() {
	if len(c.handlers) == 0 {
		return
	}

	handler := c.handlers[0]
	c.handlers = c.handlers[1:]
	handler(c)
}

// Succeed sets a successful response carrying payload. A nil payload is omitted.
func (c *Context) Succeed(payload any) {
	c.Response = Response{Success: true, Payload: payload}
	c.responded = true
}

// SucceedWithMessage sets a successful response carrying only message.
func (c *Context) SucceedWithMessage(message string) {
	c.Response = Response{Success: true, Message: message}
	c.responded = true
}

// Fail sets an error response.
//
// When err is an Error its message is sent. Otherwise fallbackMessage is sent,
// or a generic message when fallbackMessage is empty. Handlers forwarding a
// device error verbatim pass err.Error() as the fallback.
func (c *Context) Fail(err error, fallbackMessage string) {
	message := fallbackMessage
	if e, ok := err.(Error); ok {
		message = e.Error()
	}
	if message == "" {
		message = defaultErrorMessage
	}

	if err != nil && c.Logger != nil {
		c.Logger.Debug("command failed", "error", err)
	}
	c.Response = Response{Success: false, Error: message}
	c.responded = true
}

// Exit makes the processor stop after writing this command's response.
func (c *Context) Exit() {
	c.exit = true
}

// Set stores a value for later handlers of the chain.
func (c *Context) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

// Get returns a value stored with Set.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}
