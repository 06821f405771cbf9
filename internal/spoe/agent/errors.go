package agent

// ConfigurationError is fatal to the engine: a builder precondition
// was not met, or Start was called on an already-running engine.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "agent: configuration error: " + e.Reason }

// BindError wraps a failure to bind the configured listening port.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string { return "agent: bind " + e.Addr + ": " + e.Err.Error() }
func (e *BindError) Unwrap() error { return e.Err }

// ErrAlreadyStarted is returned by Start on a running engine. It is a
// *ConfigurationError.
var ErrAlreadyStarted error = &ConfigurationError{Reason: "engine already started"}
