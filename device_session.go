package main

// SessionState is the lifecycle state of the device session.
type SessionState string

const (
	SessionUninitialized SessionState = "UNINITIALIZED"
	SessionReady         SessionState = "READY"
)

// DeviceSession tracks whether the connector has been initialized. It is
// owned by the command loop and is never touched concurrently. Transitions
// never call the connector.
type DeviceSession struct {
	state    SessionState
	onChange func(SessionState)
}

// NewDeviceSession returns an uninitialized session. onChange, if set, is
// called after every transition that changes the state.
func NewDeviceSession(onChange func(SessionState)) *DeviceSession {
	return &DeviceSession{
		state:    SessionUninitialized,
		onChange: onChange,
	}
}

func (s *DeviceSession) State() SessionState {
	return s.state
}

func (s *DeviceSession) IsInitialized() bool {
	return s.state == SessionReady
}

// MarkInitialized moves the session to READY. It is idempotent.
func (s *DeviceSession) MarkInitialized() {
	s.transition(SessionReady)
}

// MarkUninitialized moves the session back to UNINITIALIZED. It is idempotent.
func (s *DeviceSession) MarkUninitialized() {
	s.transition(SessionUninitialized)
}

func (s *DeviceSession) transition(to SessionState) {
	if s.state == to {
		return
	}
	s.state = to
	if s.onChange != nil {
		s.onChange(to)
	}
}
