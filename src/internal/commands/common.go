package commands

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/redhat-et/patu/src/internal/config"
	"github.com/redhat-et/patu/src/internal/domain"
	cnierrors "github.com/redhat-et/patu/src/internal/errors"
)

type Runner interface {
	Init(args []string, globalArgs *AppContext) error
	Run() error
	Name() string
}

// AppContext carries the process-wide handles shared by all commands.
type AppContext struct {
	Verbose bool

	Stdin  io.Reader
	Stdout io.Writer

	Getenv func(string) string
	Setenv func(key, value string) error

	Deps *domain.AppDependencies

	Build BuildInfo
}

// BuildInfo is stamped at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewAppContext returns a context bound to the process stdio and environment.
func NewAppContext(build BuildInfo) *AppContext {
	return &AppContext{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Getenv: os.Getenv,
		Setenv: os.Setenv,
		Build:  build,
	}
}

func (c *AppContext) deps() *domain.AppDependencies {
	if c.Deps == nil {
		c.Deps = domain.NewDefaultDependencies()
	}
	return c.Deps
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// readNetworkConfig reads the network configuration from r. A terminal is
// refused so that a misplaced invocation does not hang waiting for input.
func readNetworkConfig(r io.Reader) (*config.NetworkConfig, error) {
	if r == nil || isTerminal(r) {
		return nil, cnierrors.NewIOError("Network config must be provided on stdin", nil)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, cnierrors.NewIOError("Unable to read network config", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, cnierrors.NewIOError("Network config is empty", nil)
	}
	return config.ParseNetworkConfig(data)
}
