package bridge

import (
	"encoding/json"
)

// Request is the command envelope read from one input line.
type Request struct {
	Command      string `json:"command"`
	Path         string `json:"path,omitempty"`
	Coin         string `json:"coin,omitempty"`
	ShowOnTrezor *bool  `json:"showOnTrezor,omitempty"`
}

// Response is the envelope written as one output line per command.
type Response struct {
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// RawResponse is a Response as read back by a Client, with the payload left encoded.
type RawResponse struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// failure extracts the error message of an unsuccessful response. Trezor
// Connect reports failures as {"success":false,"payload":{"error":"..."}}, so
// the payload is consulted when the envelope has no error of its own.
func (r RawResponse) failure() string {
	if r.Error != "" {
		return r.Error
	}
	if len(r.Payload) > 0 {
		var p struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(r.Payload, &p); err == nil && p.Error != "" {
			return p.Error
		}
	}
	return defaultErrorMessage
}

// command is a parsed input line: the command name plus the raw object the
// handlers bind their parameters from.
type command struct {
	name string
	raw  json.RawMessage
}

// parseCommand decodes one input line. Errors are Error values carrying the
// protocol messages for malformed JSON and a missing command property.
func parseCommand(line []byte) (command, error) {
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		return command{}, Errorf("Invalid JSON: %s", err.Error())
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return command{}, Errorf(MsgMissingCommand)
	}

	switch name := obj["command"].(type) {
	case string:
		if name == "" {
			return command{}, Errorf(MsgMissingCommand)
		}
		return command{name: name, raw: line}, nil
	case nil:
		return command{}, Errorf(MsgMissingCommand)
	case bool:
		if !name {
			return command{}, Errorf(MsgMissingCommand)
		}
	case float64:
		if name == 0 {
			return command{}, Errorf(MsgMissingCommand)
		}
	}

	// A present non-string command never matches a route.
	raw, _ := json.Marshal(obj["command"])
	return command{}, Errorf("Unknown command: %s", raw)
}
