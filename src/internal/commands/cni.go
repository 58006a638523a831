package commands

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/redhat-et/patu/src/internal/config"
	cnierrors "github.com/redhat-et/patu/src/internal/errors"
	"github.com/redhat-et/patu/src/internal/plugin"
)

// DefaultCNIPath is where IPAM plugins are looked up by the direct subcommands.
const DefaultCNIPath = "/opt/cni/bin"

// CNICommand runs ADD or DEL from the command line instead of a runtime.
type CNICommand struct {
	fs      *flag.FlagSet
	ctx     *AppContext
	command plugin.Command

	netns       string
	containerID string
	ifName      string
	cniPath     string
	args        string
	input       string

	env  *plugin.Environment
	conf *config.NetworkConfig
}

// CreateAddCommand creates the add subcommand.
func CreateAddCommand() Runner {
	return newCNICommand("add", plugin.CommandAdd)
}

// CreateDelCommand creates the del subcommand.
func CreateDelCommand() Runner {
	return newCNICommand("del", plugin.CommandDel)
}

func newCNICommand(name string, command plugin.Command) *CNICommand {
	c := &CNICommand{
		fs:      flag.NewFlagSet(name, flag.ContinueOnError),
		command: command,
	}

	c.fs.StringVar(&c.netns, "netns-path", "", "Path to the container network namespace")
	c.fs.StringVar(&c.netns, "n", "", "Shorthand for -netns-path")
	c.fs.StringVar(&c.containerID, "container-id", "", "Container ID")
	c.fs.StringVar(&c.containerID, "c", "", "Shorthand for -container-id")
	c.fs.StringVar(&c.ifName, "interface", "eth0", "Interface name inside the container")
	c.fs.StringVar(&c.ifName, "i", "eth0", "Shorthand for -interface")
	c.fs.StringVar(&c.cniPath, "cni-path", DefaultCNIPath, "Directories searched for IPAM plugins")
	c.fs.StringVar(&c.args, "args", "", "Value of CNI_ARGS")

	c.fs.Usage = func() {
		out := c.fs.Output()
		fmt.Fprintf(out, "Usage: %s %s [options] [network-config-file]\n\n", filepath.Base(os.Args[0]), name)
		fmt.Fprintf(out, "The network config is read from stdin when no file is given.\n\n")
		fmt.Fprintf(out, "Options:\n")
		c.fs.PrintDefaults()
	}
	return c
}

// Name returns the command name.
func (c *CNICommand) Name() string {
	return c.fs.Name()
}

// Init parses the flags and loads the network configuration.
func (c *CNICommand) Init(args []string, ctx *AppContext) error {
	c.ctx = ctx

	if err := c.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return cnierrors.NewEnvError(err.Error())
	}
	if c.fs.NArg() > 1 {
		return cnierrors.NewEnvError("at most one network config file may be given")
	}
	c.input = c.fs.Arg(0)

	c.env = &plugin.Environment{
		Command:     c.command,
		ContainerID: c.containerID,
		Netns:       c.netns,
		IfName:      c.ifName,
		Args:        c.args,
		Path:        c.cniPath,
	}
	if err := c.env.Validate(); err != nil {
		return err
	}

	var err error
	if c.input != "" {
		c.conf, err = config.LoadNetworkConfig(c.input)
	} else {
		c.conf, err = readNetworkConfig(c.stdin())
	}
	return err
}

func (c *CNICommand) stdin() io.Reader {
	if c.ctx.Stdin == nil {
		return os.Stdin
	}
	return c.ctx.Stdin
}

// Run exports the environment for the IPAM delegate and runs the engine.
func (c *CNICommand) Run() error {
	if c.ctx.Setenv != nil {
		if err := c.env.Export(c.ctx.Setenv); err != nil {
			return cnierrors.Wrap(cnierrors.ErrCodeInvalidEnv, "Unable to export CNI environment", err)
		}
	}
	return plugin.NewEngine(c.ctx.deps()).Run(c.env, c.conf, c.ctx.Stdout)
}
