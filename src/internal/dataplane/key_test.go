package dataplane

import (
	"net/netip"
	"testing"
	"testing/quick"
)

func TestKeysConverge(t *testing.T) {
	f := func(local, remote [4]byte, localPort, remotePort uint16) bool {
		tuple := Tuple{
			LocalIP:    netip.AddrFrom4(local),
			LocalPort:  localPort,
			RemoteIP:   netip.AddrFrom4(remote),
			RemotePort: remotePort,
		}
		return EstablishedKey(tuple) == MessageKey(tuple.Reverse()) &&
			EstablishedKey(tuple.Reverse()) == MessageKey(tuple)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestSockKey_Tuple(t *testing.T) {
	f := func(local, remote [4]byte, localPort, remotePort uint16) bool {
		tuple := Tuple{
			LocalIP:    netip.AddrFrom4(local),
			LocalPort:  localPort,
			RemoteIP:   netip.AddrFrom4(remote),
			RemotePort: remotePort,
		}
		return EstablishedKey(tuple).Tuple() == tuple
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestEstablishedKey_Layout(t *testing.T) {
	tuple := Tuple{
		LocalIP:    netip.MustParseAddr("10.200.0.5"),
		LocalPort:  8080,
		RemoteIP:   netip.MustParseAddr("10.200.0.6"),
		RemotePort: 41000,
	}
	key := EstablishedKey(tuple)

	if got := addrField(key.RemoteIP4); got != tuple.LocalIP {
		t.Errorf("remote_ip4 = %s, want the local address", got)
	}
	if got := portValue(key.RemotePort); got != 8080 {
		t.Errorf("remote_port = %d, want 8080", got)
	}
	if key.RemotePort > 0xffff || key.LocalPort > 0xffff {
		t.Errorf("ports must fit the low 16 bits: %+v", key)
	}
	if tuple.String() != "10.200.0.5:8080 -> 10.200.0.6:41000" {
		t.Errorf("String() = %s", tuple.String())
	}
}

func TestIPField_Mapped(t *testing.T) {
	mapped := netip.MustParseAddr("::ffff:10.0.0.1")
	if ipField(mapped) != ipField(netip.MustParseAddr("10.0.0.1")) {
		t.Errorf("IPv4-mapped addresses must encode like plain IPv4")
	}
}
