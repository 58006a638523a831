package plugin

import (
	"fmt"
	"os"
	"strings"

	cnierrors "github.com/redhat-et/patu/src/internal/errors"
)

// Names of the CNI environment variables.
const (
	EnvCommand     = "CNI_COMMAND"
	EnvContainerID = "CNI_CONTAINERID"
	EnvNetns       = "CNI_NETNS"
	EnvIfName      = "CNI_IFNAME"
	EnvArgs        = "CNI_ARGS"
	EnvPath        = "CNI_PATH"
)

// Environment holds the invocation parameters passed through the environment.
type Environment struct {
	Command     Command
	ContainerID string
	Netns       string
	IfName      string
	Args        string
	Path        string
}

// LoadEnvironment reads and validates the CNI variables through getenv.
// VERSION only needs CNI_COMMAND; every other command needs the container
// id, interface name, plugin path and the namespace.
func LoadEnvironment(getenv func(string) string) (*Environment, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cmd, err := ParseCommand(getenv(EnvCommand))
	if err != nil {
		return nil, err
	}

	env := &Environment{
		Command:     cmd,
		ContainerID: getenv(EnvContainerID),
		Netns:       getenv(EnvNetns),
		IfName:      getenv(EnvIfName),
		Args:        getenv(EnvArgs),
		Path:        getenv(EnvPath),
	}
	if cmd == CommandVersion {
		return env, nil
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

type envVar struct {
	name  string
	value string
}

// Validate checks that the variables required by the command are present.
func (e *Environment) Validate() error {
	required := []envVar{
		{EnvContainerID, e.ContainerID},
		{EnvIfName, e.IfName},
		{EnvPath, e.Path},
	}
	if e.Command.NeedsNetns() {
		required = append(required, envVar{EnvNetns, e.Netns})
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return cnierrors.NewEnvError(fmt.Sprintf("%s was not provided", strings.Join(missing, ", ")))
	}
	return nil
}

// Export writes the variables back through setenv, for the direct
// subcommands whose delegates inherit the process environment.
func (e *Environment) Export(setenv func(key, value string) error) error {
	vars := [][2]string{
		{EnvCommand, e.Command.String()},
		{EnvContainerID, e.ContainerID},
		{EnvNetns, e.Netns},
		{EnvIfName, e.IfName},
		{EnvArgs, e.Args},
		{EnvPath, e.Path},
	}
	for _, kv := range vars {
		if err := setenv(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to set %s: %w", kv[0], err)
		}
	}
	return nil
}
