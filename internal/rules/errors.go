package rules

import "fmt"

// ConfigError reports a rules document that cannot be used.
// Kind is set when the problem is confined to a single rule.
type ConfigError struct {
	Path string
	Kind string
	Err  error
}

func (e *ConfigError) Error() string {
	source := e.Path
	if source == "" {
		source = "<inline>"
	}
	if e.Kind != "" {
		return fmt.Sprintf("invalid rule %q in %s: %v", e.Kind, source, e.Err)
	}
	return fmt.Sprintf("invalid rules document %s: %v", source, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
