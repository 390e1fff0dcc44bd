// Package device defines the contract between hwbridge and a hardware signing
// device connector, the payloads a connector returns and a scripted
// MockConnector for tests and dry runs.
//
// Every Connector method may block for as long as the person holding the
// device takes to confirm or reject the request. Implementations honour ctx
// cancellation where their transport allows it and never impose a timeout of
// their own.
//
// Disconnect is optional. Connectors that hold no releasable resource simply
// do not implement Disconnector, and callers treat that as a successful no-op.
package device
