package config

import "fmt"

// ConfigError marks a fatal configuration problem: malformed day/time,
// an unresolved user reference, missing credentials. It always blocks
// loading; nothing downstream ever sees a half-valid Config.
type ConfigError struct {
	Path string // dotted location, e.g. "classes[2].user"
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Path, e.Msg)
}

func configErrf(path, format string, args ...any) error {
	return &ConfigError{Path: path, Msg: fmt.Sprintf(format, args...)}
}
