// Package config holds the configuration of a mock server and the
// injectable dependencies it uses to reach the network.
package config

import (
	"fmt"
	"strconv"
	"time"

	"tcpmock/mockingjay/pkg/log"
)

// DefaultTimeout bounds teardown verification and response writes when
// no timeout is configured.
var DefaultTimeout = 5 * time.Second

// Config describes a mock server.
type Config struct {
	Host string
	Port int // 0 picks an ephemeral port

	// Timeout bounds how long verification waits for the conversation to
	// settle and how long a single response write may block.
	Timeout time.Duration

	// TranscriptFile, if set, receives a hex transcript of the accepted connection.
	TranscriptFile string

	Verbose bool
	Logger  *log.Logger
	Deps    *Dependencies
}

// New returns a config listening on the loopback interface at port.
func New(port int) *Config {
	return &Config{
		Host:    "127.0.0.1",
		Port:    port,
		Timeout: DefaultTimeout,
	}
}

// Addr returns the host:port string to listen on.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// GetTimeout returns the configured timeout or DefaultTimeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Validate checks the port range and the timeout.
func (c *Config) Validate() []error {
	var errors []error

	if err := validatePort(c.Port); err != nil {
		errors = append(errors, fmt.Errorf("port: %s", err))
	}

	if c.Timeout < 0 {
		errors = append(errors, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}

	return errors
}
