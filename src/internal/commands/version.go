package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/redhat-et/patu/src/internal/plugin"
)

// VersionCommand prints the version document.
type VersionCommand struct {
	fs    *flag.FlagSet
	ctx   *AppContext
	build bool
}

// CreateVersionCommand creates the version subcommand.
func CreateVersionCommand() Runner {
	c := &VersionCommand{fs: flag.NewFlagSet("version", flag.ContinueOnError)}
	c.fs.BoolVar(&c.build, "build", false, "Also print build information to stderr")
	return c
}

func (c *VersionCommand) Name() string {
	return c.fs.Name()
}

func (c *VersionCommand) Init(args []string, ctx *AppContext) error {
	c.ctx = ctx
	return c.fs.Parse(args)
}

func (c *VersionCommand) Run() error {
	if c.build {
		b := c.ctx.Build
		fmt.Fprintf(os.Stderr, "patu %s (Commit: %s, Date: %s)\n", b.Version, b.Commit, b.Date)
	}
	return plugin.Version().Encode(c.ctx.Stdout)
}
