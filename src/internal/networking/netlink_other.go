//go:build !linux

package networking

import (
	"errors"
	"net"
)

var errUnsupported = errors.New("netlink is only supported on linux")

// Manager is unavailable outside linux.
type Manager struct{}

func NewManager() (*Manager, error) { return nil, errUnsupported }

func NewManagerInNamespace(string) (*Manager, error) { return nil, errUnsupported }

func (m *Manager) Close() error                  { return nil }
func (m *Manager) CreateGateway() (*Link, error) { return nil, errUnsupported }
func (m *Manager) CreateVethPair(string, string, int) (*Link, *Link, error) {
	return nil, nil, errUnsupported
}
func (m *Manager) SetIP(int, net.IP) error           { return errUnsupported }
func (m *Manager) SetUp(int) error                   { return errUnsupported }
func (m *Manager) GetLinkInfo(string) (*Link, error) { return nil, errUnsupported }
func (m *Manager) GetLinkByIndex(int) (*Link, error) { return nil, errUnsupported }
func (m *Manager) CreateDefaultRoute(net.IP) error   { return errUnsupported }
func (m *Manager) CreateDevRoute(int, net.IP) error  { return errUnsupported }
func (m *Manager) DeleteLink(int) error              { return errUnsupported }
