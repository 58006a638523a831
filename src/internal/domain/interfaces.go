// Package domain defines core interfaces for dependency injection and abstraction.
//
// The attachment engine only talks to the kernel, the firewall and the IPAM
// plugin through these interfaces, so it can be exercised without root
// privileges or real network namespaces.
package domain

import (
	"net"

	current "github.com/containernetworking/cni/pkg/types/100"

	"github.com/redhat-et/patu/src/internal/config"
	"github.com/redhat-et/patu/src/internal/networking"
)

// LinkManager issues netlink requests inside one network namespace.
//
// Every mutating operation treats "already exists" as success.
type LinkManager interface {
	// CreateGateway ensures the shared patu0 dummy link exists and is up.
	CreateGateway() (*networking.Link, error)

	// CreateVethPair creates a veth pair whose peerName end lives in the
	// namespace at netnsPath. The host end is returned resolved.
	CreateVethPair(peerName, netnsPath string, mtu int) (host *networking.Link, peer *networking.Link, err error)

	// SetIP assigns address/32 to the link.
	SetIP(index int, address net.IP) error

	// SetUp brings the link up.
	SetUp(index int) error

	// GetLinkInfo resolves a link by name.
	GetLinkInfo(name string) (*networking.Link, error)

	// GetLinkByIndex resolves a link by index.
	GetLinkByIndex(index int) (*networking.Link, error)

	// CreateDefaultRoute installs a default route via gw.
	CreateDefaultRoute(gw net.IP) error

	// CreateDevRoute installs a link-scoped /32 route to dst.
	CreateDevRoute(index int, dst net.IP) error

	// DeleteLink removes the link.
	DeleteLink(index int) error

	// Close releases the underlying socket.
	Close() error
}

// NetlinkFactory opens LinkManagers.
type NetlinkFactory interface {
	// Host returns a manager for the namespace of the calling process.
	Host() (LinkManager, error)

	// InNamespace returns a manager bound to the namespace at path.
	InNamespace(path string) (LinkManager, error)
}

// Firewall installs and removes the per-attachment forward rule.
type Firewall interface {
	AllowForward(vars networking.RuleVars) error
	RemoveForward(vars networking.RuleVars) error
}

// FirewallFactory builds a Firewall for a forward rule template.
type FirewallFactory func(rule string) (Firewall, error)

// IPAMDelegate runs the IPAM plugin of a network configuration.
type IPAMDelegate interface {
	// Add allocates addresses. A configuration without ipam yields an empty result.
	Add(conf *config.NetworkConfig, cniPath string) (*current.Result, error)

	// Del releases addresses held for the container.
	Del(conf *config.NetworkConfig, cniPath string) error
}
