// Command particle-host runs a particle through a TOML scenario and prints
// everything the particle sends back.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/particle-runtime/host"
	"github.com/wippyai/particle-runtime/internal/testparticles"
	"github.com/wippyai/particle-runtime/particle"
	"github.com/wippyai/particle-runtime/wasmhost"
)

func main() {
	var (
		verbose     = flag.Bool("v", false, "Log runtime internals to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		list        = flag.Bool("list", false, "List built-in particle types and exit")
		plain       = flag.Bool("plain", false, "Disable colored output")
	)
	flag.Parse()

	if err := testparticles.RegisterAll(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *list {
		for _, name := range particle.Types() {
			fmt.Println(name)
		}
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: particle-host [-v] [-plain] <scenario.toml>")
		fmt.Fprintln(os.Stderr, "       particle-host -i <scenario.toml>  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       particle-host -list")
		os.Exit(1)
	}
	path := flag.Arg(0)

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = logger.Sync() }()
		particle.SetLogger(logger.Named("particle"))
		host.SetLogger(logger.Named("host"))
		wasmhost.SetLogger(logger.Named("wasmhost"))
	}

	tty := term.IsTerminal(int(os.Stdout.Fd()))

	if *interactive {
		if !tty {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	p := printer{w: os.Stdout, styled: tty && !*plain}
	if err := run(context.Background(), path, p); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, p printer) error {
	s, startup, err := openSession(ctx, path)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	p.header(s)
	p.messages(startup)

	failed := 0
	for {
		res, ok := s.runner.Next(ctx)
		if !ok {
			break
		}
		p.result(res)
		if res.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d steps failed", failed, len(s.scenario.Steps))
	}
	return nil
}
