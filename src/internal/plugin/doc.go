// Package plugin implements the CNI operations of patu.
//
// An invocation is described by an Environment (read from the CNI_*
// variables) and a NetworkConfig (read from stdin). Engine.Run executes the
// command against the collaborators held in a domain.AppDependencies:
//
//   - ADD allocates an address through the IPAM plugin, creates the shared
//     patu0 gateway, a veth pair into the container namespace, the container
//     routes, a FORWARD accept rule and a host route to the container.
//   - DEL deletes the container interface and releases the address. It
//     always succeeds.
//   - CHECK returns an empty result.
//   - VERSION prints the supported versions without touching anything.
package plugin
