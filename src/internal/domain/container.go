package domain

import (
	"github.com/redhat-et/patu/src/internal/ipam"
	"github.com/redhat-et/patu/src/internal/networking"
)

// AppDependencies is a dependency injection container that holds all application dependencies.
//
// Usage:
//
//	deps := domain.NewDefaultDependencies()
//	engine := plugin.NewEngine(deps)
type AppDependencies struct {
	netlink  NetlinkFactory
	firewall FirewallFactory
	ipam     IPAMDelegate
}

// NewDefaultDependencies creates dependencies backed by the kernel, iptables
// and IPAM plugins on disk.
func NewDefaultDependencies() *AppDependencies {
	return &AppDependencies{
		netlink:  netlinkFactory{},
		firewall: newFirewall,
		ipam:     ipam.NewDelegate(),
	}
}

// NewTestDependencies creates a dependency container with the given implementations.
// A nil firewall factory falls back to the iptables-backed one.
func NewTestDependencies(netlink NetlinkFactory, firewall FirewallFactory, delegate IPAMDelegate) *AppDependencies {
	if firewall == nil {
		firewall = newFirewall
	}
	return &AppDependencies{
		netlink:  netlink,
		firewall: firewall,
		ipam:     delegate,
	}
}

// Netlink returns the netlink manager factory.
func (d *AppDependencies) Netlink() NetlinkFactory {
	return d.netlink
}

// Firewall builds a firewall for the given rule template.
func (d *AppDependencies) Firewall(rule string) (Firewall, error) {
	return d.firewall(rule)
}

// IPAM returns the IPAM delegate.
func (d *AppDependencies) IPAM() IPAMDelegate {
	return d.ipam
}

type netlinkFactory struct{}

func (netlinkFactory) Host() (LinkManager, error) {
	m, err := networking.NewManager()
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (netlinkFactory) InNamespace(path string) (LinkManager, error) {
	m, err := networking.NewManagerInNamespace(path)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func newFirewall(rule string) (Firewall, error) {
	fw, err := networking.NewFirewall(rule)
	if err != nil {
		return nil, err
	}
	return fw, nil
}
