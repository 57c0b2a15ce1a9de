// Package version provides the version command.
package version

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is overridden at build time with
// -ldflags "-X tcpmock/mockingjay/cmd/version.Version=v1.2.3".
var Version = "unknown"

// GetCommand returns the version command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Program version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return printVersion(output(cmd))
		},
		Flags: []cli.Flag{},
	}
}

func output(cmd *cli.Command) io.Writer {
	if cmd != nil && cmd.Writer != nil {
		return cmd.Writer
	}
	return os.Stdout
}

func printVersion(w io.Writer) error {
	_, err := fmt.Fprintf(w, "mockingjay %s\n", Version)
	return err
}
