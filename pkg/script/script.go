// Package script loads conversation scripts for the mock server from TOML.
//
// A script is a list of steps. Each step declares bytes the client must
// send, bytes to reply with, or both:
//
//	[[step]]
//	expect = "HELO example.org\r\n"
//	respond = "250 OK\r\n"
//
//	[[step]]
//	expect_hex = "0000000c"
//	no_reply = true
//
// Consecutive steps without a reply grow the same expectation window.
package script

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Step is one exchange of a conversation.
type Step struct {
	Expect     string `toml:"expect"`
	ExpectHex  string `toml:"expect_hex"`
	Respond    string `toml:"respond"`
	RespondHex string `toml:"respond_hex"`

	// NoReply completes the window without sending anything.
	NoReply bool `toml:"no_reply"`
}

// Script is an ordered list of steps.
type Script struct {
	Steps []Step `toml:"step"`
}

// Target receives the declarations of a script, usually a *mock.Server.
type Target interface {
	Expect(p []byte) error
	Respond(p []byte) error
	RespondNothing()
}

// Parse reads and validates a script.
func Parse(r io.Reader) (*Script, error) {
	var s Script
	md, err := toml.NewDecoder(r).Decode(&s)
	if err != nil {
		return nil, errors.Wrap(err, "decoding script")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown key %q", undecoded[0].String())
	}

	if errs := s.Validate(); len(errs) > 0 {
		return nil, errors.Errorf("invalid script: %v", errs)
	}
	return &s, nil
}

// Load parses the script at path.
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening script %s", path)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading script %s", path)
	}
	return s, nil
}

// Validate checks every step.
func (s *Script) Validate() []error {
	var errs []error
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %s", i+1, err))
		}
	}
	return errs
}

func (st Step) validate() error {
	if st.Expect != "" && st.ExpectHex != "" {
		return fmt.Errorf("expect and expect_hex are mutually exclusive")
	}
	if st.Respond != "" && st.RespondHex != "" {
		return fmt.Errorf("respond and respond_hex are mutually exclusive")
	}
	if st.NoReply && (st.Respond != "" || st.RespondHex != "") {
		return fmt.Errorf("no_reply cannot be combined with a response")
	}
	if st.Expect == "" && st.ExpectHex == "" && st.Respond == "" && st.RespondHex == "" && !st.NoReply {
		return fmt.Errorf("step declares nothing")
	}

	_, _, err := st.Bytes()
	return err
}

// Bytes returns the decoded expectation and response of the step.
func (st Step) Bytes() (expect, respond []byte, err error) {
	expect, err = decode(st.Expect, st.ExpectHex)
	if err != nil {
		return nil, nil, errors.Wrap(err, "expect_hex")
	}
	respond, err = decode(st.Respond, st.RespondHex)
	if err != nil {
		return nil, nil, errors.Wrap(err, "respond_hex")
	}
	return expect, respond, nil
}

func decode(text, hexText string) ([]byte, error) {
	if hexText == "" {
		if text == "" {
			return nil, nil
		}
		return []byte(text), nil
	}
	return hex.DecodeString(hexText)
}

// Apply declares every step on t, in order.
func (s *Script) Apply(t Target) error {
	for i, step := range s.Steps {
		expect, respond, err := step.Bytes()
		if err != nil {
			return errors.Wrapf(err, "step %d", i+1)
		}

		if len(expect) > 0 {
			if err := t.Expect(expect); err != nil {
				return errors.Wrapf(err, "step %d", i+1)
			}
		}

		switch {
		case step.NoReply:
			t.RespondNothing()
		case len(respond) > 0:
			if err := t.Respond(respond); err != nil {
				return errors.Wrapf(err, "step %d", i+1)
			}
		}
	}
	return nil
}
