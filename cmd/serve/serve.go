// Package serve provides the serve command, which plays one scripted
// conversation against a single client and verifies it.
package serve

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"tcpmock/mockingjay/cmd/shared"
	"tcpmock/mockingjay/pkg/config"
	"tcpmock/mockingjay/pkg/log"
	"tcpmock/mockingjay/pkg/mock"
	"tcpmock/mockingjay/pkg/pipeio"
	"tcpmock/mockingjay/pkg/script"
	"tcpmock/mockingjay/pkg/terminal"
)

const categoryServe = "serve"

const scriptFlag = "script"

// GetCommand returns the serve command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a scripted conversation to one client",
		Description: strings.Join([]string{
			"Listens on host:port, accepts a single client and answers it according to the script.",
			"Exits once the client disconnects, or on interrupt, with a non-zero status if the",
			"conversation did not go exactly as scripted.",
		}, "\n"),
		Action: run,
		Flags:  getFlags(),
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.New(int(cmd.Int(shared.PortFlag)))
	cfg.Host = cmd.String(shared.HostFlag)
	cfg.Timeout = cmd.Duration(shared.TimeoutFlag)
	cfg.Verbose = cmd.Bool(shared.VerboseFlag)
	cfg.TranscriptFile = cmd.String(shared.TranscriptFlag)

	sCfg := &config.Serve{
		ScriptPath: cmd.String(scriptFlag),
	}

	if errors := config.Validate(cfg, sCfg); len(errors) > 0 {
		log.ErrorMsg("Argument validation errors:\n")
		for _, err := range errors {
			log.ErrorMsg(" - %s\n", err)
		}
		return fmt.Errorf("exiting")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	shared.SetupSignalHandling(cancel)

	sc, err := loadScript(ctx, sCfg, os.Stdin)
	if err != nil {
		return err
	}

	return serve(ctx, cfg, sc, nil)
}

func loadScript(ctx context.Context, sCfg *config.Serve, stdin *os.File) (*script.Script, error) {
	if !sCfg.ReadsStdin() {
		return script.Load(sCfg.ScriptPath)
	}

	if terminal.IsInteractive(stdin) {
		return nil, fmt.Errorf("refusing to read the script from a terminal, pipe it in or pass a file")
	}

	in := pipeio.NewStdin(stdin)
	defer in.Close()

	data, err := pipeio.ReadAll(ctx, in)
	if err != nil {
		return nil, errors.Wrap(err, "reading script from stdin")
	}
	return script.Parse(bytes.NewReader(data))
}

// serve runs one session. If ready is not nil it receives the listening
// address once the script has been declared.
func serve(ctx context.Context, cfg *config.Config, sc *script.Script, ready chan<- net.Addr) error {
	srv := mock.New(cfg)
	if err := srv.Before(); err != nil {
		return err
	}

	if err := sc.Apply(srv); err != nil {
		srv.Verify(ctx)
		return errors.Wrap(err, "applying script")
	}

	log.InfoMsg("Listening on %s, %d steps scripted\n", srv.Addr(), len(sc.Steps))
	if ready != nil {
		ready <- srv.Addr()
	}

	select {
	case <-srv.Connected():
		log.InfoMsg("Client connected\n")
	case <-ctx.Done():
	}

	var err error
	if werr := srv.Wait(ctx); werr != nil {
		log.InfoMsg("Interrupted, verifying what was received\n")
		err = srv.Verify(ctx)
	} else {
		err = srv.After()
	}

	if err != nil {
		return err
	}
	log.InfoMsg("Conversation verified\n")
	return nil
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     scriptFlag,
			Aliases:  []string{"s"},
			Usage:    "TOML conversation script, '-' reads it from stdin",
			Category: categoryServe,
			Value:    "",
			Required: false,
		},
	}

	flags = append(flags, shared.GetCommonFlags()...)

	return flags
}
