// Package shared provides the CLI flag definitions and signal handling
// used across mockingjay's commands.
package shared

import (
	"github.com/urfave/cli/v3"

	"tcpmock/mockingjay/pkg/config"
)

const categoryCommon = "common"

// HostFlag is the name of the flag to specify the interface to listen on.
const HostFlag = "host"

// PortFlag is the name of the flag to specify the port to listen on.
const PortFlag = "port"

// VerboseFlag is the name of the flag to enable verbose logging.
const VerboseFlag = "verbose"

// TimeoutFlag is the name of the flag bounding verification and response writes.
const TimeoutFlag = "timeout"

// TranscriptFlag is the name of the flag to record a hex transcript of the connection.
const TranscriptFlag = "transcript"

// GetCommonFlags returns the flags describing the mock server itself.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     HostFlag,
			Aliases:  []string{},
			Usage:    "Local interface to listen on",
			Category: categoryCommon,
			Value:    "127.0.0.1",
			Required: false,
		},
		&cli.IntFlag{
			Name:     PortFlag,
			Aliases:  []string{"p"},
			Usage:    "Local port, 0 picks a free one",
			Category: categoryCommon,
			Required: true,
		},
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
		&cli.DurationFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "How long verification waits for a pending conversation, also bounds each response write",
			Category: categoryCommon,
			Value:    config.DefaultTimeout,
			Required: false,
		},
		&cli.StringFlag{
			Name:     TranscriptFlag,
			Aliases:  []string{"l"},
			Usage:    "Write a hex transcript of the connection to this file",
			Category: categoryCommon,
			Value:    "",
			Required: false,
		},
	}
}
