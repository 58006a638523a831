// Package mocks provides mock implementations for testing.
//
// This package should ONLY be imported in test files (_test.go).
// The Go toolchain will automatically exclude this package from production builds
// since it's not imported in any production code.
package mocks

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/redhat-et/patu/src/internal/domain"
	"github.com/redhat-et/patu/src/internal/networking"
)

// MockNetlinkFactory simulates a host namespace plus any number of container
// namespaces. Link indexes are unique across all of them.
//
// Example usage:
//
//	factory := mocks.NewMockNetlinkFactory()
//	ns := factory.AddNamespace("/var/run/netns/test")
//	deps := domain.NewTestDependencies(factory, firewall.Factory(), ipam)
type MockNetlinkFactory struct {
	// HostErr is returned by Host if not nil
	HostErr error

	// HostManager is the simulated host namespace
	HostManager *MockLinkManager

	// Namespaces maps a netns path to its simulated namespace
	Namespaces map[string]*MockLinkManager

	// Track calls for verification in tests
	HostCalls        int
	InNamespaceCalls int

	mu        sync.Mutex
	nextIndex int
}

// NewMockNetlinkFactory creates a factory with an empty host namespace.
func NewMockNetlinkFactory() *MockNetlinkFactory {
	f := &MockNetlinkFactory{
		Namespaces: make(map[string]*MockLinkManager),
		nextIndex:  1,
	}
	f.HostManager = f.newManager()
	return f
}

func (f *MockNetlinkFactory) newManager() *MockLinkManager {
	return &MockLinkManager{
		Links:   make(map[string]*networking.Link),
		factory: f,
	}
}

func (f *MockNetlinkFactory) allocIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.nextIndex
	f.nextIndex++
	return idx
}

// AddNamespace registers a container namespace at path, preloaded with a loopback link.
func (f *MockNetlinkFactory) AddNamespace(path string) *MockLinkManager {
	m := f.newManager()
	m.AddLink("lo")
	f.Namespaces[path] = m
	return m
}

// Host returns the simulated host namespace.
func (f *MockNetlinkFactory) Host() (domain.LinkManager, error) {
	f.HostCalls++
	if f.HostErr != nil {
		return nil, f.HostErr
	}
	return f.HostManager, nil
}

// InNamespace returns the namespace registered at path, or an error like the
// kernel reports for a missing netns file.
func (f *MockNetlinkFactory) InNamespace(path string) (domain.LinkManager, error) {
	f.InNamespaceCalls++
	m, ok := f.Namespaces[path]
	if !ok {
		return nil, fmt.Errorf("failed to open namespace %s: %w", path, os.ErrNotExist)
	}
	return m, nil
}

// MockLinkManager is a mock implementation of the LinkManager interface.
//
// With no function fields set it keeps an in-memory link table, so a sequence
// of calls behaves like the kernel would for a single namespace.
type MockLinkManager struct {
	// CreateGatewayFunc is called by CreateGateway if not nil
	CreateGatewayFunc func() (*networking.Link, error)

	// CreateVethPairFunc is called by CreateVethPair if not nil
	CreateVethPairFunc func(peerName, netnsPath string, mtu int) (*networking.Link, *networking.Link, error)

	// SetIPFunc is called by SetIP if not nil
	SetIPFunc func(index int, address net.IP) error

	// SetUpFunc is called by SetUp if not nil
	SetUpFunc func(index int) error

	// CreateDefaultRouteFunc is called by CreateDefaultRoute if not nil
	CreateDefaultRouteFunc func(gw net.IP) error

	// CreateDevRouteFunc is called by CreateDevRoute if not nil
	CreateDevRouteFunc func(index int, dst net.IP) error

	// DeleteLinkFunc is called by DeleteLink if not nil
	DeleteLinkFunc func(index int) error

	// Links is the simulated link table, keyed by name
	Links map[string]*networking.Link

	// Addresses and Routes record what was configured
	Addresses map[int][]string
	Routes    []string
	Up        map[int]bool

	// Calls lists the invoked operations in order
	Calls      []string
	CloseCalls int

	factory *MockNetlinkFactory
}

// NewMockLinkManager creates a standalone mock with an empty link table.
func NewMockLinkManager() *MockLinkManager {
	return NewMockNetlinkFactory().HostManager
}

func (m *MockLinkManager) record(format string, args ...interface{}) {
	m.Calls = append(m.Calls, fmt.Sprintf(format, args...))
}

// AddLink inserts a link into the table and returns it.
func (m *MockLinkManager) AddLink(name string) *networking.Link {
	link := &networking.Link{
		Index: m.factory.allocIndex(),
		Name:  name,
	}
	link.MAC = fmt.Sprintf("02:00:00:00:00:%02x", link.Index&0xff)
	m.Links[name] = link
	return link
}

func (m *MockLinkManager) byIndex(index int) *networking.Link {
	for _, link := range m.Links {
		if link.Index == index {
			return link
		}
	}
	return nil
}

// CreateGateway creates patu0 unless it already exists.
func (m *MockLinkManager) CreateGateway() (*networking.Link, error) {
	m.record("CreateGateway")
	if m.CreateGatewayFunc != nil {
		return m.CreateGatewayFunc()
	}
	if link, ok := m.Links[networking.GatewayName]; ok {
		return link, nil
	}
	link := m.AddLink(networking.GatewayName)
	m.setUp(link.Index)
	return link, nil
}

// CreateVethPair creates the host end here and the peer in the namespace at netnsPath.
func (m *MockLinkManager) CreateVethPair(peerName, netnsPath string, mtu int) (*networking.Link, *networking.Link, error) {
	m.record("CreateVethPair %s %s %d", peerName, netnsPath, mtu)
	if m.CreateVethPairFunc != nil {
		return m.CreateVethPairFunc(peerName, netnsPath, mtu)
	}

	ns, ok := m.factory.Namespaces[netnsPath]
	if !ok {
		return nil, nil, fmt.Errorf("failed to open namespace %s: %w", netnsPath, os.ErrNotExist)
	}
	if _, exists := ns.Links[peerName]; exists {
		return nil, nil, fmt.Errorf("create veth pair: %s already exists", peerName)
	}

	hostName, err := networking.VethName()
	if err != nil {
		return nil, nil, err
	}
	host := m.AddLink(hostName)
	peer := ns.AddLink(peerName)
	host.ParentIndex = peer.Index
	peer.ParentIndex = host.Index

	return host, &networking.Link{Name: peerName}, nil
}

// SetIP records the address on the link.
func (m *MockLinkManager) SetIP(index int, address net.IP) error {
	m.record("SetIP %d %s", index, address)
	if m.SetIPFunc != nil {
		return m.SetIPFunc(index, address)
	}
	if m.byIndex(index) == nil {
		return fmt.Errorf("set address on link %d: no such device", index)
	}
	if m.Addresses == nil {
		m.Addresses = make(map[int][]string)
	}
	m.Addresses[index] = append(m.Addresses[index], address.String()+"/32")
	return nil
}

// SetUp marks the link up.
func (m *MockLinkManager) SetUp(index int) error {
	m.record("SetUp %d", index)
	if m.SetUpFunc != nil {
		return m.SetUpFunc(index)
	}
	if m.byIndex(index) == nil {
		return fmt.Errorf("set link %d up: no such device", index)
	}
	m.setUp(index)
	return nil
}

func (m *MockLinkManager) setUp(index int) {
	if m.Up == nil {
		m.Up = make(map[int]bool)
	}
	m.Up[index] = true
}

// GetLinkInfo looks the link up by name.
func (m *MockLinkManager) GetLinkInfo(name string) (*networking.Link, error) {
	m.record("GetLinkInfo %s", name)
	if link, ok := m.Links[name]; ok {
		cp := *link
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: %s", networking.ErrLinkNotFound, name)
}

// GetLinkByIndex looks the link up by index.
func (m *MockLinkManager) GetLinkByIndex(index int) (*networking.Link, error) {
	m.record("GetLinkByIndex %d", index)
	if link := m.byIndex(index); link != nil {
		cp := *link
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: index %d", networking.ErrLinkNotFound, index)
}

// CreateDefaultRoute records a default route.
func (m *MockLinkManager) CreateDefaultRoute(gw net.IP) error {
	m.record("CreateDefaultRoute %s", gw)
	if m.CreateDefaultRouteFunc != nil {
		return m.CreateDefaultRouteFunc(gw)
	}
	m.Routes = append(m.Routes, "default via "+gw.String())
	return nil
}

// CreateDevRoute records a link-scoped route.
func (m *MockLinkManager) CreateDevRoute(index int, dst net.IP) error {
	m.record("CreateDevRoute %d %s", index, dst)
	if m.CreateDevRouteFunc != nil {
		return m.CreateDevRouteFunc(index, dst)
	}
	m.Routes = append(m.Routes, fmt.Sprintf("%s/32 dev %d", dst, index))
	return nil
}

// DeleteLink removes the link and, for a veth, its peer.
func (m *MockLinkManager) DeleteLink(index int) error {
	m.record("DeleteLink %d", index)
	if m.DeleteLinkFunc != nil {
		return m.DeleteLinkFunc(index)
	}
	link := m.byIndex(index)
	if link == nil {
		return fmt.Errorf("delete link %d: no such device", index)
	}
	delete(m.Links, link.Name)
	if link.ParentIndex != 0 {
		m.factory.deletePeer(link.ParentIndex)
	}
	return nil
}

func (f *MockNetlinkFactory) deletePeer(index int) {
	managers := []*MockLinkManager{f.HostManager}
	for _, ns := range f.Namespaces {
		managers = append(managers, ns)
	}
	for _, m := range managers {
		if link := m.byIndex(index); link != nil {
			delete(m.Links, link.Name)
			return
		}
	}
}

// Close counts the call.
func (m *MockLinkManager) Close() error {
	m.CloseCalls++
	return nil
}

// MockFirewall is a mock implementation of the Firewall interface.
type MockFirewall struct {
	// AllowForwardFunc is called by AllowForward if not nil
	AllowForwardFunc func(vars networking.RuleVars) error

	// RemoveForwardFunc is called by RemoveForward if not nil
	RemoveForwardFunc func(vars networking.RuleVars) error

	// FactoryErr is returned by the factory if not nil
	FactoryErr error

	// Rule is the template the factory was last called with
	Rule string

	// Allowed holds the rules currently installed
	Allowed []networking.RuleVars

	// Track calls for verification in tests
	AllowForwardCalls  int
	RemoveForwardCalls int
}

// NewMockFirewall creates a firewall mock with default behavior.
func NewMockFirewall() *MockFirewall {
	return &MockFirewall{}
}

// Factory returns a FirewallFactory handing out this mock.
func (m *MockFirewall) Factory() domain.FirewallFactory {
	return func(rule string) (domain.Firewall, error) {
		m.Rule = rule
		if m.FactoryErr != nil {
			return nil, m.FactoryErr
		}
		return m, nil
	}
}

// AllowForward records the rule as installed.
func (m *MockFirewall) AllowForward(vars networking.RuleVars) error {
	m.AllowForwardCalls++
	if m.AllowForwardFunc != nil {
		return m.AllowForwardFunc(vars)
	}
	for _, v := range m.Allowed {
		if v == vars {
			return nil
		}
	}
	m.Allowed = append(m.Allowed, vars)
	return nil
}

// RemoveForward drops the rule if installed.
func (m *MockFirewall) RemoveForward(vars networking.RuleVars) error {
	m.RemoveForwardCalls++
	if m.RemoveForwardFunc != nil {
		return m.RemoveForwardFunc(vars)
	}
	for i, v := range m.Allowed {
		if v == vars {
			m.Allowed = append(m.Allowed[:i], m.Allowed[i+1:]...)
			break
		}
	}
	return nil
}
