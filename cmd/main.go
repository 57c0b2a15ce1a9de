package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"tcpmock/mockingjay/cmd/serve"
	"tcpmock/mockingjay/cmd/version"
	"tcpmock/mockingjay/pkg/log"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.ErrorMsg("%s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "mockingjay",
		Usage: "scripted single-connection TCP mock server",
		Commands: []*cli.Command{
			serve.GetCommand(),
			version.GetCommand(),
		},
	}
}
