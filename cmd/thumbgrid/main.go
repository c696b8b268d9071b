// Command thumbgrid drives a thumbnail Loader over an image store.
//
// Usage:
//
//	thumbgrid [-config thumbgrid.yaml] run [-steps N]
//	thumbgrid [-config thumbgrid.yaml] seed <dir>
//
// run lists the images of the configured store, lays them out in a grid and
// replays a simulated scroll session against a Loader while exposing
// Prometheus metrics. seed uploads the images of a local directory to the
// configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := runMain(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "thumbgrid:", err)
		}
		os.Exit(1)
	}
}

func runMain(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("thumbgrid", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: thumbgrid [-config file] run|seed [args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	cfg, err := Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "run":
		return runCommand(ctx, cfg, logger, rest, out)
	case "seed":
		return seedCommand(ctx, cfg, logger, rest, out)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
