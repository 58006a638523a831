// Package commands implements the patu entry points.
//
// Plugin mode is selected whenever CNI_COMMAND is set: the invocation is read
// from the environment and stdin and handed to the plugin engine. Otherwise a
// subcommand runs:
//
//   - add: attach a namespace by hand, as a runtime would with CNI_COMMAND=ADD
//   - del: detach a namespace by hand
//   - version: print the version document
//   - dataplane: load and attach the socket redirect programs and serve metrics
//
// All commands follow the same pattern:
//   - Init(): parse arguments
//   - Run(): execute
//   - Name(): return the command name for routing
//
// # Example Usage
//
//	cmd := commands.CreateAddCommand()
//	if err := cmd.Init([]string{"-n", "/var/run/netns/ns1", "-c", "ctr1", "conf.json"}, ctx); err != nil {
//	    return err
//	}
//	return cmd.Run()
package commands
