// Package bridge implements the line-delimited JSON command protocol used to
// drive a hardware signing device over standard input and output.
//
// A Processor reads one command object per line, for example
//
//	{"command":"getaddr","path":"m/44'/1'/0'/0/0","coin":"Testnet","showOnTrezor":false}
//
// and writes exactly one response object per line:
//
//	{"success":true,"payload":{"path":[...],"serializedPath":"m/44'/1'/0'/0/0","address":"..."}}
//	{"success":false,"error":"Not initialized. Run 'init' first."}
//
// Commands are routed by name to handler chains registered with
// Processor.Handle. Handlers share a Context, call Next to continue the chain
// and finish it with Succeed, SucceedWithMessage or Fail. Malformed lines,
// missing or unknown commands and panicking handlers are answered by the
// processor itself, so every input line yields one response.
//
// Client is the other end of the protocol: it drives a processor running as a
// child process, and ClientConnector lets such a processor stand in for a
// device.Connector.
package bridge
