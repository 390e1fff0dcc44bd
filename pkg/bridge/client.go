package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/erc7824/nitrolite/hwbridge/pkg/device"
	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

// Client drives a processor speaking the line protocol, usually a child
// process such as a Trezor Connect helper. Calls are serialized: one command
// is in flight at a time and its response is the next line read.
//
// Example:
//
//	client, err := bridge.StartProcess(ctx, bridge.ProcessConfig{
//	    Command: "deno",
//	    Args:    []string{"run", "-A", "trezor-connect.js"},
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if _, err := client.Init(ctx); err != nil {
//	    return err
//	}
//	addr, err := client.GetAddress(ctx, "m/44'/1'/0'/0/0", "Testnet", false)
type Client struct {
	mu           sync.Mutex
	w            io.Writer
	lines        chan inputLine
	done         chan struct{}
	broken       error
	closer       func() error
	closeTimeout time.Duration
	logger       log.Logger
}

// DefaultCloseTimeout bounds the exit exchange in Close and the wait for the
// child process to end afterwards.
const DefaultCloseTimeout = 5 * time.Second

// NewClient creates a Client writing commands to w and reading responses from r.
func NewClient(r io.Reader, w io.Writer, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	c := &Client{
		w:            w,
		lines:        make(chan inputLine),
		done:         make(chan struct{}),
		closeTimeout: DefaultCloseTimeout,
		logger:       logger,
	}
	go readLines(r, nil, c.lines, c.done)
	return c
}

// ProcessConfig describes the child process started by StartProcess.
type ProcessConfig struct {
	Command string
	Args    []string
	// Stderr receives the child's diagnostics and device prompts. Defaults to os.Stderr.
	Stderr io.Writer
}

// StartProcess starts cfg.Command and returns a Client bound to its stdin and
// stdout. The child is killed when ctx is cancelled.
func StartProcess(ctx context.Context, cfg ProcessConfig, logger log.Logger) (*Client, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("process command cannot be empty")
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open process stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open process stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}
	logger.Info("connector process started", "command", cfg.Command, "pid", cmd.Process.Pid)

	c := NewClient(stdout, stdin, logger)
	c.closer = func() error {
		stdin.Close()

		waitErr := make(chan error, 1)
		go func() { waitErr <- cmd.Wait() }()

		select {
		case err := <-waitErr:
			return err
		case <-time.After(c.closeTimeout):
			logger.Warn("connector process did not exit, killing it", "pid", cmd.Process.Pid)
			if err := cmd.Process.Kill(); err != nil {
				logger.Error("failed to kill connector process", "pid", cmd.Process.Pid, "error", err)
			}
			return <-waitErr
		}
	}
	return c, nil
}

// SetCloseTimeout changes the bound Close applies to the exit exchange and to
// the wait for the child process. Non-positive values restore the default.
func (c *Client) SetCloseTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultCloseTimeout
	}
	c.mu.Lock()
	c.closeTimeout = d
	c.mu.Unlock()
}

// Init sends init and returns the processor's message, if any.
func (c *Client) Init(ctx context.Context) (string, error) {
	res, err := c.call(ctx, Request{Command: "init"})
	if err != nil {
		return "", err
	}
	return res.Message, nil
}

// GetFeatures sends getFeatures.
func (c *Client) GetFeatures(ctx context.Context) (device.Features, error) {
	var features device.Features
	res, err := c.call(ctx, Request{Command: "getFeatures"})
	if err != nil {
		return features, err
	}
	return features, decodePayload(res, &features)
}

// GetPublicKey sends getpk for path and coin.
func (c *Client) GetPublicKey(ctx context.Context, path, coin string) (device.PublicKey, error) {
	var pk device.PublicKey
	res, err := c.call(ctx, Request{Command: "getpk", Path: path, Coin: coin})
	if err != nil {
		return pk, err
	}
	return pk, decodePayload(res, &pk)
}

// GetAddress sends getaddr for path and coin. showOnTrezor is always sent explicitly.
func (c *Client) GetAddress(ctx context.Context, path, coin string, showOnTrezor bool) (device.Address, error) {
	var addr device.Address
	res, err := c.call(ctx, Request{Command: "getaddr", Path: path, Coin: coin, ShowOnTrezor: &showOnTrezor})
	if err != nil {
		return addr, err
	}
	return addr, decodePayload(res, &addr)
}

// CloseConnection sends close and returns the processor's message.
func (c *Client) CloseConnection(ctx context.Context) (string, error) {
	res, err := c.call(ctx, Request{Command: "close"})
	if err != nil {
		return "", err
	}
	return res.Message, nil
}

// Exit sends exit and returns the processor's message. The processor stops
// reading after answering, so every later call fails with ErrProcessorClosed.
func (c *Client) Exit(ctx context.Context) (string, error) {
	res, err := c.call(ctx, Request{Command: "exit"})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.broken = ErrProcessorClosed
	c.mu.Unlock()
	return res.Message, nil
}

// Close sends exit on a best-effort basis, stops reading and waits for the
// child process when there is one.
func (c *Client) Close() error {
	c.mu.Lock()
	healthy := c.broken == nil
	timeout := c.closeTimeout
	c.mu.Unlock()

	if healthy {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := c.Exit(ctx); err != nil {
			c.logger.Debug("exit before close failed", "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken == nil {
		c.broken = ErrProcessorClosed
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if c.closer == nil {
		return nil
	}
	closer := c.closer
	c.closer = nil
	return closer()
}

// call writes req and reads the next response line. A cancelled context
// leaves the client unusable, since the late response would otherwise be read
// as the answer to the next command.
func (c *Client) call(ctx context.Context, req Request) (RawResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res RawResponse
	if c.broken != nil {
		return res, c.broken
	}

	data, err := json.Marshal(req)
	if err != nil {
		return res, fmt.Errorf("failed to marshal %s command: %w", req.Command, err)
	}
	if _, err := c.w.Write(append(data, '\n')); err != nil {
		c.broken = fmt.Errorf("failed to write %s command: %w", req.Command, err)
		return res, c.broken
	}
	c.logger.Debug("command sent", "command", req.Command)

	var in inputLine
	var ok bool
	select {
	case <-ctx.Done():
		c.broken = fmt.Errorf("%s command abandoned: %w", req.Command, ctx.Err())
		return res, ctx.Err()
	case in, ok = <-c.lines:
	}
	if !ok {
		c.broken = ErrProcessorClosed
		return res, c.broken
	}
	if in.err != nil {
		c.broken = fmt.Errorf("failed to read %s response: %w", req.Command, in.err)
		return res, c.broken
	}

	if len(in.data) == 0 {
		return res, fmt.Errorf("%s: %w", req.Command, ErrEmptyOutput)
	}
	if err := json.Unmarshal(in.data, &res); err != nil {
		return res, fmt.Errorf("%s: %w: %v", req.Command, ErrInvalidOutput, err)
	}
	if !res.Success {
		return res, &ResponseError{Command: req.Command, Message: res.failure()}
	}

	return res, nil
}

func decodePayload(res RawResponse, v any) error {
	if len(res.Payload) == 0 {
		return errors.New("response has no payload")
	}
	if err := json.Unmarshal(res.Payload, v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}
