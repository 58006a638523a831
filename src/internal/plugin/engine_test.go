package plugin

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"

	current "github.com/containernetworking/cni/pkg/types/100"

	"github.com/redhat-et/patu/src/internal/config"
	"github.com/redhat-et/patu/src/internal/domain"
	cnierrors "github.com/redhat-et/patu/src/internal/errors"
	"github.com/redhat-et/patu/src/internal/mocks"
	"github.com/redhat-et/patu/src/internal/networking"
)

const testNetns = "/var/run/netns/c1"

type testHarness struct {
	factory  *mocks.MockNetlinkFactory
	ns       *mocks.MockLinkManager
	firewall *mocks.MockFirewall
	ipam     *mocks.MockIPAMDelegate
	engine   *Engine
	env      *Environment
	conf     *config.NetworkConfig
}

func newHarness(t *testing.T, confJSON string) *testHarness {
	t.Helper()
	if confJSON == "" {
		confJSON = `{"cniVersion":"1.0.0","name":"patu-net","type":"patu","ipam":{"type":"host-local"}}`
	}
	conf, err := config.ParseNetworkConfig([]byte(confJSON))
	if err != nil {
		t.Fatalf("ParseNetworkConfig() error = %v", err)
	}

	h := &testHarness{
		factory:  mocks.NewMockNetlinkFactory(),
		firewall: mocks.NewMockFirewall(),
		ipam:     mocks.NewMockIPAMDelegate(),
		conf:     conf,
		env: &Environment{
			Command:     CommandAdd,
			ContainerID: "abc123",
			Netns:       testNetns,
			IfName:      "eth0",
			Path:        "/opt/cni/bin",
		},
	}
	h.ns = h.factory.AddNamespace(testNetns)
	h.engine = NewEngine(domain.NewTestDependencies(h.factory, h.firewall.Factory(), h.ipam))
	return h
}

func (h *testHarness) hostVeth(t *testing.T) *networking.Link {
	t.Helper()
	for name, link := range h.factory.HostManager.Links {
		if strings.HasPrefix(name, networking.VethPrefix) {
			return link
		}
	}
	t.Fatalf("no host veth in %v", h.factory.HostManager.Links)
	return nil
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestEngine_Add(t *testing.T) {
	h := newHarness(t, "")

	result, err := h.engine.Add(h.env, h.conf)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	hostVeth := h.hostVeth(t)
	eth0 := h.ns.Links["eth0"]
	if eth0 == nil {
		t.Fatal("container interface was not created")
	}

	if len(result.Interfaces) != 3 {
		t.Fatalf("expected 3 interfaces, got %d", len(result.Interfaces))
	}
	if result.Interfaces[0].Name != networking.GatewayName {
		t.Errorf("first interface = %s, want the gateway", result.Interfaces[0].Name)
	}
	if result.Interfaces[1].Name != hostVeth.Name || result.Interfaces[1].Sandbox != "" {
		t.Errorf("unexpected host interface %+v", result.Interfaces[1])
	}
	if result.Interfaces[2].Name != "eth0" || result.Interfaces[2].Sandbox != testNetns || result.Interfaces[2].Mac != eth0.MAC {
		t.Errorf("unexpected container interface %+v", result.Interfaces[2])
	}
	if result.IPs[0].Interface == nil || *result.IPs[0].Interface != 2 {
		t.Errorf("ips[0].interface must point at the container interface")
	}

	gateway := h.factory.HostManager.Links[networking.GatewayName]
	if !contains(h.factory.HostManager.Addresses[gateway.Index], "10.200.0.1/32") {
		t.Errorf("gateway address missing: %v", h.factory.HostManager.Addresses)
	}
	if !h.factory.HostManager.Up[hostVeth.Index] {
		t.Errorf("host veth must be up")
	}
	if !contains(h.ns.Addresses[eth0.Index], "10.200.0.5/32") || !h.ns.Up[eth0.Index] {
		t.Errorf("container interface not configured: addrs=%v up=%v", h.ns.Addresses, h.ns.Up)
	}

	wantNsRoutes := []string{"10.200.0.1/32 dev " + strconv.Itoa(eth0.Index), "default via 10.200.0.1"}
	if strings.Join(h.ns.Routes, ";") != strings.Join(wantNsRoutes, ";") {
		t.Errorf("container routes = %v, want %v", h.ns.Routes, wantNsRoutes)
	}
	if !contains(h.factory.HostManager.Routes, "10.200.0.5/32 dev "+strconv.Itoa(hostVeth.Index)) {
		t.Errorf("host route missing: %v", h.factory.HostManager.Routes)
	}

	if len(h.firewall.Allowed) != 1 || h.firewall.Allowed[0].HostIfname != hostVeth.Name {
		t.Errorf("forward rule not installed for %s: %v", hostVeth.Name, h.firewall.Allowed)
	}
	if h.firewall.Rule != config.DefaultForwardRule {
		t.Errorf("firewall rule = %q, want default", h.firewall.Rule)
	}
	if h.ipam.DelCalls != 0 {
		t.Errorf("IPAM must not be released on success")
	}
	if h.ipam.LastCNIPath != "/opt/cni/bin" {
		t.Errorf("IPAM received path %q", h.ipam.LastCNIPath)
	}
}

func TestEngine_AddOrder(t *testing.T) {
	h := newHarness(t, `{"cniVersion":"1.0.0","name":"n","type":"patu","mtu":9000,"ipam":{"type":"host-local"}}`)

	if _, err := h.engine.Add(h.env, h.conf); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var ops []string
	for _, call := range h.factory.HostManager.Calls {
		ops = append(ops, strings.Fields(call)[0])
	}
	want := []string{"CreateGateway", "SetIP", "CreateVethPair", "SetUp", "CreateDevRoute"}
	if strings.Join(ops, ",") != strings.Join(want, ",") {
		t.Errorf("host operations = %v, want %v", ops, want)
	}
	if !strings.HasSuffix(h.factory.HostManager.Calls[2], " 9000") {
		t.Errorf("veth created with wrong MTU: %s", h.factory.HostManager.Calls[2])
	}
}

func TestEngine_AddCompensation(t *testing.T) {
	boom := errors.New("netlink: operation not permitted")

	tests := []struct {
		name  string
		setup func(h *testHarness)
	}{
		{name: "gateway", setup: func(h *testHarness) {
			h.factory.HostManager.CreateGatewayFunc = func() (*networking.Link, error) { return nil, boom }
		}},
		{name: "gateway address", setup: func(h *testHarness) {
			h.factory.HostManager.SetIPFunc = func(int, net.IP) error { return boom }
		}},
		{name: "veth", setup: func(h *testHarness) {
			h.factory.HostManager.CreateVethPairFunc = func(string, string, int) (*networking.Link, *networking.Link, error) {
				return nil, nil, boom
			}
		}},
		{name: "container address", setup: func(h *testHarness) {
			h.ns.SetIPFunc = func(int, net.IP) error { return boom }
		}},
		{name: "default route", setup: func(h *testHarness) {
			h.ns.CreateDefaultRouteFunc = func(net.IP) error { return boom }
		}},
		{name: "firewall", setup: func(h *testHarness) {
			h.firewall.AllowForwardFunc = func(networking.RuleVars) error { return boom }
		}},
		{name: "firewall init", setup: func(h *testHarness) {
			h.firewall.FactoryErr = boom
		}},
		{name: "host route", setup: func(h *testHarness) {
			h.factory.HostManager.CreateDevRouteFunc = func(int, net.IP) error { return boom }
		}},
		{name: "host socket", setup: func(h *testHarness) {
			h.factory.HostErr = boom
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "")
			tt.setup(h)

			_, err := h.engine.Add(h.env, h.conf)
			if err == nil {
				t.Fatal("expected Add() to fail")
			}
			cniErr := cnierrors.As(err)
			if cniErr.Code != cnierrors.ErrCodeAttach {
				t.Errorf("error code = %d, want %d", cniErr.Code, cnierrors.ErrCodeAttach)
			}
			if !strings.Contains(cniErr.DetailText(), boom.Error()) {
				t.Errorf("details %q lost the original error", cniErr.DetailText())
			}
			if h.ipam.DelCalls != 1 {
				t.Errorf("expected one IPAM release, got %d", h.ipam.DelCalls)
			}
		})
	}
}

func TestEngine_AddIPAMFailure(t *testing.T) {
	h := newHarness(t, "")
	h.ipam.AddFunc = func(*config.NetworkConfig, string) (*current.Result, error) {
		return nil, cnierrors.New(cnierrors.ErrCodeTryAgainLater, "no addresses left")
	}

	_, err := h.engine.Add(h.env, h.conf)
	if code := cnierrors.As(err).Code; code != cnierrors.ErrCodeTryAgainLater {
		t.Errorf("IPAM error code = %d, want it passed through", code)
	}
	if h.factory.HostCalls != 0 || h.factory.InNamespaceCalls != 0 {
		t.Errorf("no netlink calls expected after an IPAM failure")
	}
}

func TestEngine_AddBadIPAMResult(t *testing.T) {
	tests := []struct {
		name    string
		address string
		gateway string
	}{
		{name: "no gateway", address: "10.200.0.5/24"},
		{name: "bad address", address: "not-an-ip", gateway: "10.200.0.1"},
		{name: "ipv6 gateway", address: "10.200.0.5/24", gateway: "fd00::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "")
			h.ipam.Address = tt.address
			h.ipam.Gateway = tt.gateway

			_, err := h.engine.Add(h.env, h.conf)
			if code := cnierrors.As(err).Code; code != cnierrors.ErrCodeAttach {
				t.Errorf("error code = %d, want %d", code, cnierrors.ErrCodeAttach)
			}
			if h.factory.HostCalls != 0 {
				t.Errorf("no netlink calls expected for an unusable IPAM result")
			}
			if h.ipam.DelCalls != 1 {
				t.Errorf("allocation must be released")
			}
		})
	}
}

func TestEngine_AddIncompatibleVersion(t *testing.T) {
	h := newHarness(t, `{"cniVersion":"0.4.0","name":"n","type":"patu"}`)

	_, err := h.engine.Add(h.env, h.conf)
	if code := cnierrors.As(err).Code; code != cnierrors.ErrCodeIncompatibleVersion {
		t.Errorf("error code = %d, want %d", code, cnierrors.ErrCodeIncompatibleVersion)
	}
	if h.ipam.AddCalls != 0 {
		t.Errorf("IPAM must not be called")
	}
}

func TestEngine_AddThenDel(t *testing.T) {
	h := newHarness(t, "")

	if _, err := h.engine.Add(h.env, h.conf); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	h.env.Command = CommandDel
	if err := h.engine.Del(h.env, h.conf); err != nil {
		t.Fatalf("Del() error = %v", err)
	}

	if len(h.ns.Links) != 1 || h.ns.Links["lo"] == nil {
		t.Errorf("container namespace not clean: %v", h.ns.Links)
	}
	for name := range h.factory.HostManager.Links {
		if name != networking.GatewayName {
			t.Errorf("host link %s left behind", name)
		}
	}
	if len(h.firewall.Allowed) != 0 {
		t.Errorf("forward rules left behind: %v", h.firewall.Allowed)
	}
	if h.ipam.DelCalls != 1 {
		t.Errorf("expected one IPAM release, got %d", h.ipam.DelCalls)
	}
}

func TestEngine_DelIdempotent(t *testing.T) {
	t.Run("missing namespace", func(t *testing.T) {
		h := newHarness(t, "")
		h.env.Netns = "/var/run/netns/gone"

		for i := 0; i < 2; i++ {
			if err := h.engine.Del(h.env, h.conf); err != nil {
				t.Fatalf("Del() error = %v", err)
			}
		}
		if h.ipam.DelCalls != 0 || h.factory.HostCalls != 0 || h.firewall.RemoveForwardCalls != 0 {
			t.Errorf("no side effects expected for a missing namespace")
		}
	})

	t.Run("missing interface", func(t *testing.T) {
		h := newHarness(t, "")

		for i := 0; i < 2; i++ {
			if err := h.engine.Del(h.env, h.conf); err != nil {
				t.Fatalf("Del() error = %v", err)
			}
		}
		if h.ipam.DelCalls != 0 || len(h.ns.Links) != 1 {
			t.Errorf("no side effects expected for a missing interface")
		}
	})

	t.Run("delete failure is swallowed", func(t *testing.T) {
		h := newHarness(t, "")
		if _, err := h.engine.Add(h.env, h.conf); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		h.ns.DeleteLinkFunc = func(int) error { return errors.New("EBUSY") }
		h.ipam.DelFunc = func(*config.NetworkConfig, string) error { return errors.New("IPAM Error") }

		if err := h.engine.Del(h.env, h.conf); err != nil {
			t.Errorf("Del() must not fail, got %v", err)
		}
	})
}

func TestEngine_RunVersion(t *testing.T) {
	// No dependencies: VERSION must not touch any collaborator.
	engine := NewEngine(nil)
	var out bytes.Buffer

	if err := engine.Run(&Environment{Command: CommandVersion}, nil, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := `{"cniVersion":"1.0.0","supportedVersions":["1.0.0"]}` + "\n"
	if out.String() != want {
		t.Errorf("version output = %q, want %q", out.String(), want)
	}
}

func TestEngine_RunCheckAndDel(t *testing.T) {
	h := newHarness(t, "")
	var out bytes.Buffer

	h.env.Command = CommandCheck
	if err := h.engine.Run(h.env, h.conf, &out); err != nil {
		t.Fatalf("Run(CHECK) error = %v", err)
	}
	var check map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &check); err != nil {
		t.Fatalf("check output %q is not JSON: %v", out.String(), err)
	}
	if check["cniVersion"] != "1.0.0" || check["ips"] != nil || check["interfaces"] != nil {
		t.Errorf("check output = %q, want an empty result", out.String())
	}
	if h.factory.HostCalls != 0 || h.factory.InNamespaceCalls != 0 || h.ipam.AddCalls != 0 {
		t.Errorf("CHECK must not touch any collaborator")
	}

	out.Reset()
	h.env.Command = CommandDel
	if err := h.engine.Run(h.env, h.conf, &out); err != nil {
		t.Fatalf("Run(DEL) error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("DEL must not print anything, got %q", out.String())
	}
}

func TestEngine_RunAdd(t *testing.T) {
	h := newHarness(t, `{"cniVersion":"1.0.0","name":"n","type":"patu","ipam":{"type":"host-local"},"dns":{"nameservers":["10.96.0.10"]}}`)
	var out bytes.Buffer

	if err := h.engine.Run(h.env, h.conf, &out); err != nil {
		t.Fatalf("Run(ADD) error = %v", err)
	}
	var result current.Result
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("ADD output %q is not a result: %v", out.String(), err)
	}
	if result.CNIVersion != "1.0.0" || len(result.Interfaces) != 3 || result.Interfaces[0].Name != "patu0" {
		t.Errorf("unexpected interfaces in %s", out.String())
	}
	if result.Interfaces[2].Sandbox != testNetns {
		t.Errorf("container sandbox = %q, want %q", result.Interfaces[2].Sandbox, testNetns)
	}
	if len(result.IPs) != 1 || result.IPs[0].Address.String() != "10.200.0.5/24" || !result.IPs[0].Gateway.Equal(net.ParseIP("10.200.0.1")) {
		t.Errorf("unexpected ips in %s", out.String())
	}
	if len(result.DNS.Nameservers) != 1 || result.DNS.Nameservers[0] != "10.96.0.10" {
		t.Errorf("dns from the config missing in %s", out.String())
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{version: "1.0.0"},
		{version: "1.0.1"},
		{version: "1.1.0", wantErr: true},
		{version: "0.4.0", wantErr: true},
		{version: "", wantErr: true},
		{version: "one.zero", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := checkVersion(tt.version)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkVersion(%q) error = %v, wantErr %v", tt.version, err, tt.wantErr)
			}
			if err != nil && cnierrors.As(err).Code != cnierrors.ErrCodeIncompatibleVersion {
				t.Errorf("error code = %d, want %d", cnierrors.As(err).Code, cnierrors.ErrCodeIncompatibleVersion)
			}
		})
	}
}
