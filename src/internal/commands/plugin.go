package commands

import (
	"github.com/redhat-et/patu/src/internal/config"
	"github.com/redhat-et/patu/src/internal/log"
	"github.com/redhat-et/patu/src/internal/plugin"
)

// IsPluginMode reports whether the process was started by a container runtime.
func IsPluginMode(getenv func(string) string) bool {
	return getenv(plugin.EnvCommand) != ""
}

// RunPlugin serves one CNI invocation. The returned error is meant to be
// written as the error document.
func RunPlugin(ctx *AppContext) error {
	env, err := plugin.LoadEnvironment(ctx.Getenv)
	if err != nil {
		return err
	}

	var conf *config.NetworkConfig
	if env.Command != plugin.CommandVersion {
		if conf, err = readNetworkConfig(ctx.Stdin); err != nil {
			return err
		}
	}

	log.Debugf("%s for container %s", env.Command, env.ContainerID)
	return plugin.NewEngine(ctx.deps()).Run(env, conf, ctx.Stdout)
}
