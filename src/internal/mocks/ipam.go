package mocks

import (
	"net"

	current "github.com/containernetworking/cni/pkg/types/100"

	"github.com/redhat-et/patu/src/internal/config"
)

// MockIPAMDelegate is a mock implementation of the IPAMDelegate interface.
//
// By default Add hands out Address/Gateway and Del succeeds.
type MockIPAMDelegate struct {
	// AddFunc is called by Add if not nil
	AddFunc func(conf *config.NetworkConfig, cniPath string) (*current.Result, error)

	// DelFunc is called by Del if not nil
	DelFunc func(conf *config.NetworkConfig, cniPath string) error

	// Address and Gateway are returned by the default Add. Unparsable
	// values yield zero addresses in the result.
	Address string
	Gateway string

	// Track calls for verification in tests
	AddCalls    int
	DelCalls    int
	LastCNIPath string
}

// NewMockIPAMDelegate creates a delegate handing out 10.200.0.5/24 via 10.200.0.1.
func NewMockIPAMDelegate() *MockIPAMDelegate {
	return &MockIPAMDelegate{
		Address: "10.200.0.5/24",
		Gateway: "10.200.0.1",
	}
}

// Add allocates the configured address.
func (m *MockIPAMDelegate) Add(conf *config.NetworkConfig, cniPath string) (*current.Result, error) {
	m.AddCalls++
	m.LastCNIPath = cniPath
	if m.AddFunc != nil {
		return m.AddFunc(conf, cniPath)
	}
	ipConf := &current.IPConfig{Gateway: net.ParseIP(m.Gateway)}
	if ip, ipNet, err := net.ParseCIDR(m.Address); err == nil {
		ipConf.Address = net.IPNet{IP: ip, Mask: ipNet.Mask}
	}
	return &current.Result{
		CNIVersion: conf.CNIVersion,
		IPs:        []*current.IPConfig{ipConf},
	}, nil
}

// Del releases the address.
func (m *MockIPAMDelegate) Del(conf *config.NetworkConfig, cniPath string) error {
	m.DelCalls++
	m.LastCNIPath = cniPath
	if m.DelFunc != nil {
		return m.DelFunc(conf, cniPath)
	}
	return nil
}
