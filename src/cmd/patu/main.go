package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/redhat-et/patu/src/internal/commands"
	cnierrors "github.com/redhat-et/patu/src/internal/errors"
	"github.com/redhat-et/patu/src/internal/log"
)

var (
	version = "dev"
	commit  = "n/a"
	date    = "n/a"
)

func main() {
	// stdout carries the CNI result in every mode
	log.SetForceStdErr(true)

	ctx := commands.NewAppContext(commands.BuildInfo{Version: version, Commit: commit, Date: date})
	if os.Getenv("PATU_DEBUG") != "" {
		ctx.Verbose = true
	}

	if commands.IsPluginMode(os.Getenv) {
		log.SetVerbose(ctx.Verbose)
		exit(commands.RunPlugin(ctx))
	}

	flag.BoolVar(&ctx.Verbose, "verbose", ctx.Verbose, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "patu: CNI plugin with an eBPF socket redirect fast path\n")
		fmt.Fprintf(os.Stderr, "Version: %s (Commit: %s, Date: %s)\n\n", version, commit, date)
		fmt.Fprintf(os.Stderr, "When CNI_COMMAND is set patu runs as a CNI plugin.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  add                     Attach a network namespace\n")
		fmt.Fprintf(os.Stderr, "  del                     Detach a network namespace\n")
		fmt.Fprintf(os.Stderr, "  version                 Print the CNI version document\n")
		fmt.Fprintf(os.Stderr, "  dataplane               Load the socket redirect programs and serve metrics\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	log.SetVerbose(ctx.Verbose)

	cmds := []commands.Runner{
		commands.CreateAddCommand(),
		commands.CreateDelCommand(),
		commands.CreateVersionCommand(),
		commands.CreateDataplaneCommand(),
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	subcommand := args[0]
	for _, cmd := range cmds {
		if cmd.Name() != subcommand {
			continue
		}
		if err := cmd.Init(args[1:], ctx); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				os.Exit(0)
			}
			exit(err)
		}
		exit(cmd.Run())
	}

	log.Fatalf("Unknown subcommand: %s", subcommand)
}

// exit writes the error document to stderr and terminates.
func exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	if werr := cnierrors.Write(os.Stderr, err); werr != nil {
		log.Errorf("Failed to write error document: %v", werr)
	}
	os.Exit(1)
}
