// Package log provides the structured logger used by hwbridge.
//
// The Logger interface has three implementations:
//
//   - ZapLogger: zap-backed, console, logfmt or json encoding
//   - NoopLogger: discards everything
//   - SpanLogger: forwards to another logger and records span events
//
// Loggers travel with the command being processed:
//
//	ctx = log.SetContextLogger(ctx, logger.WithKV("requestId", id))
//	log.FromContext(ctx).Info("Waiting for you to confirm on the device")
//
// Configuration comes from the environment:
//
//   - HWBRIDGE_LOG_FORMAT: console, logfmt or json
//   - HWBRIDGE_LOG_LEVEL: debug, info, warn, error or fatal
//   - HWBRIDGE_LOG_OUTPUT: stderr or a file path
//
// Standard output is never a valid destination. It carries the protocol, and a
// stray log line there would be read by the caller as a response.
package log
