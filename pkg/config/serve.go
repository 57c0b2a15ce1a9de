package config

import (
	"fmt"
)

// Serve holds the options of the standalone serve command.
type Serve struct {
	// ScriptPath names a TOML conversation script, "-" for stdin.
	ScriptPath string
}

// ReadsStdin reports whether the script comes from standard input.
func (s *Serve) ReadsStdin() bool {
	return s.ScriptPath == "-"
}

// Validate ...
func (s *Serve) Validate() []error {
	var errors []error

	if s.ScriptPath == "" {
		errors = append(errors, fmt.Errorf("'--script' is required, use '-' to read from stdin"))
	}

	return errors
}
