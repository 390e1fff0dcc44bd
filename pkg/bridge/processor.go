package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

const (
	tracerName = "github.com/erc7824/nitrolite/hwbridge/pkg/bridge"

	// Prompt is written after every response when the processor is used interactively.
	Prompt = "> "
)

// CommandEvent describes a processed command. It is handed to
// ProcessorConfig.OnCommandProcessed after the response has been built.
type CommandEvent struct {
	RequestID string
	Command   string
	Success   bool
	Error     string
	Message   string
	// Params is the command object as received, nil when the line did not parse.
	Params    json.RawMessage
	StartedAt time.Time
	Duration  time.Duration
}

// ProcessorConfig configures a Processor. Logger is required.
type ProcessorConfig struct {
	// Logger receives diagnostics. It must not write to the protocol output.
	Logger log.Logger
	// Tracer starts one span per command. Defaults to the global otel tracer.
	Tracer trace.Tracer
	// CommandTimeout bounds every handler chain when positive. Zero waits forever.
	CommandTimeout time.Duration
	// Prompt, when set, receives the interactive prompt after every response.
	Prompt io.Writer
	// OnCommandProcessed is called once per input line, after the response is built.
	OnCommandProcessed func(CommandEvent)
}

// Processor reads one JSON command per line, routes it through the handler
// chain registered for its name and writes exactly one JSON response line for
// it. Commands are processed one at a time in input order.
type Processor struct {
	cfg        ProcessorConfig
	tracer     trace.Tracer
	middleware []Handler
	routes     map[string][]Handler
}

// NewProcessor creates a Processor without routes.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.CommandTimeout < 0 {
		return nil, fmt.Errorf("command timeout cannot be negative: %s", cfg.CommandTimeout)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Processor{
		cfg:    cfg,
		tracer: tracer,
		routes: make(map[string][]Handler),
	}, nil
}

// Handle registers the handler chain for command. Handlers run after the
// middleware registered with Use, in the given order.
//
// Panics if command is empty, no handler is given or a handler is nil.
func (p *Processor) Handle(command string, handlers ...Handler) {
	if command == "" {
		panic("command cannot be empty")
	}
	if len(handlers) == 0 {
		panic(fmt.Sprintf("no handlers given for command %s", command))
	}
	for _, h := range handlers {
		if h == nil {
			panic(fmt.Sprintf("handler cannot be nil for command %s", command))
		}
	}

	p.routes[command] = handlers
}

// Use adds middleware that runs in front of every registered command.
// Unknown commands are answered before middleware runs.
func (p *Processor) Use(middleware Handler) {
	if middleware == nil {
		panic("middleware cannot be nil")
	}
	p.middleware = append(p.middleware, middleware)
}

// Commands returns the registered command names, sorted.
func (p *Processor) Commands() []string {
	names := make([]string, 0, len(p.routes))
	for name := range p.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type inputLine struct {
	data []byte
	err  error
}

// Run processes lines from r until a handler calls Exit, r reaches EOF or ctx
// is cancelled. EOF and Exit return nil. A read or write failure on the
// protocol streams is returned and ends the loop.
//
// A line is only read once the previous response has been written, so no line
// after the one that exited is taken as a command. Buffered reading may still
// have consumed bytes beyond it from r.
func (p *Processor) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	done := make(chan struct{})
	defer close(done)

	next := make(chan struct{})
	lines := make(chan inputLine)
	go readLines(r, next, lines, done)

	requested := false
	for {
		var request chan struct{}
		if !requested {
			request = next
		}

		var in inputLine
		var ok bool
		select {
		case <-ctx.Done():
			p.cfg.Logger.Debug("context done, stopping command processing")
			return ctx.Err()
		case request <- struct{}{}:
			requested = true
			continue
		case in, ok = <-lines:
			if !ok {
				p.cfg.Logger.Debug("input closed, stopping command processing")
				return nil
			}
		}
		if in.err != nil {
			return fmt.Errorf("failed to read command: %w", in.err)
		}
		requested = false

		res, exit := p.Process(ctx, in.data)
		if err := writeResponse(w, res); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if exit {
			return nil
		}
		if p.cfg.Prompt != nil {
			io.WriteString(p.cfg.Prompt, Prompt)
		}
	}
}

// readLines sends the lines of r, without their terminators, until EOF or a
// read error. A last line without a newline is still sent. With a non-nil next
// it reads one line per receive on next; otherwise it reads ahead.
func readLines(r io.Reader, next <-chan struct{}, out chan<- inputLine, done <-chan struct{}) {
	defer close(out)

	br := bufio.NewReader(r)
	for {
		if next != nil {
			select {
			case <-next:
			case <-done:
				return
			}
		}

		data, err := br.ReadBytes('\n')
		if len(data) > 0 {
			data = bytes.TrimSuffix(data, []byte("\n"))
			data = bytes.TrimSuffix(data, []byte("\r"))
			select {
			case out <- inputLine{data: data}:
			case <-done:
				return
			}
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			select {
			case out <- inputLine{err: err}:
			case <-done:
			}
		}
		return
	}
}

func writeResponse(w io.Writer, res Response) error {
	data, err := json.Marshal(res)
	if err != nil {
		// Only an unencodable payload can fail here.
		data, _ = json.Marshal(Response{Success: false, Error: fmt.Sprintf("failed to encode response: %v", err)})
	}
	data = append(data, '\n')

	_, err = w.Write(data)
	return err
}

// Process handles a single input line and returns its response and whether
// the processor should stop. It never panics on handler failures.
func (p *Processor) Process(ctx context.Context, line []byte) (Response, bool) {
	startedAt := time.Now()
	requestID := uuid.NewString()

	ctx, span := p.tracer.Start(ctx, "hwbridge.command", trace.WithAttributes(attribute.String("request_id", requestID)))
	defer span.End()

	baseLogger := p.cfg.Logger.WithKV("requestID", requestID)
	logger := log.NewSpanLogger(baseLogger, log.NewOtelSpanEventRecorder(span))
	c := &Context{
		RequestID: requestID,
		Logger:    logger,
	}

	cmd, err := parseCommand(line)
	if err != nil {
		logger.Debug("invalid command line", "error", err, "line", string(line))
		c.Context = ctx
		c.Fail(err, "")
	} else {
		c.Command = cmd.name
		c.Params = cmd.raw
		c.Logger = logger.WithKV("command", cmd.name)
		span.SetAttributes(attribute.String("command", cmd.name))

		handlers, ok := p.routes[cmd.name]
		if !ok {
			c.Logger.Debug("no handlers found for command")
			c.Context = ctx
			c.Fail(Errorf("Unknown command: %s", cmd.name), "")
		} else {
			if p.cfg.CommandTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, p.cfg.CommandTimeout)
				defer cancel()
			}
			// SetContextLogger attaches the span recorder when the span is valid.
			c.Context = log.SetContextLogger(ctx, baseLogger.WithKV("command", cmd.name))
			c.Logger = log.FromContext(c.Context)
			c.handlers = append(append([]Handler{}, p.middleware...), handlers...)

			c.Logger.Info("processing command")
			p.runChain(c)
		}
	}

	if !c.responded {
		c.Logger.Error("handler chain returned without a response")
		c.Fail(nil, "internal error: no response from handler")
	}

	event := CommandEvent{
		RequestID: requestID,
		Command:   c.Command,
		Success:   c.Response.Success,
		Error:     c.Response.Error,
		Message:   c.Response.Message,
		Params:    c.Params,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
	}
	if event.Success {
		span.SetStatus(codes.Ok, "")
		c.Logger.Info("command processed", "duration", event.Duration)
	} else {
		span.SetStatus(codes.Error, event.Error)
		c.Logger.Info("command failed", "error", event.Error, "duration", event.Duration)
	}
	if p.cfg.OnCommandProcessed != nil {
		p.cfg.OnCommandProcessed(event)
	}

	return c.Response, c.exit
}

func (p *Processor) runChain(c *Context) {
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Error("handler panicked", "panic", r, "stack", string(debug.Stack()))
			c.Fail(Errorf("internal error: %v", r), "")
		}
	}()

	c.Next()
}
