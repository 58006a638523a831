package dataplane

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// SockKey mirrors struct sock_key in bpf/patu.c. Addresses hold the raw
// network-order bytes of the IPv4 address, ports the network-order port in
// the low 16 bits, exactly as the programs store them.
type SockKey struct {
	RemoteIP4  uint32
	LocalIP4   uint32
	RemotePort uint32
	LocalPort  uint32
}

// Tuple is a TCP connection as seen from one socket.
type Tuple struct {
	LocalIP    netip.Addr
	LocalPort  uint16
	RemoteIP   netip.Addr
	RemotePort uint16
}

// Reverse returns the tuple as seen by the peer socket.
func (t Tuple) Reverse() Tuple {
	return Tuple{
		LocalIP:    t.RemoteIP,
		LocalPort:  t.RemotePort,
		RemoteIP:   t.LocalIP,
		RemotePort: t.LocalPort,
	}
}

func (t Tuple) String() string {
	return fmt.Sprintf("%s -> %s",
		netip.AddrPortFrom(t.LocalIP, t.LocalPort),
		netip.AddrPortFrom(t.RemoteIP, t.RemotePort))
}

// EstablishedKey is the key patu_sockops inserts for a socket with tuple t.
// Local and remote are swapped so that the peer finds it.
func EstablishedKey(t Tuple) SockKey {
	return SockKey{
		RemoteIP4:  ipField(t.LocalIP),
		LocalIP4:   ipField(t.RemoteIP),
		RemotePort: portField(t.LocalPort),
		LocalPort:  portField(t.RemotePort),
	}
}

// MessageKey is the key patu_skmsg looks up for a message sent by a socket
// with tuple t.
func MessageKey(t Tuple) SockKey {
	return SockKey{
		RemoteIP4:  ipField(t.RemoteIP),
		LocalIP4:   ipField(t.LocalIP),
		RemotePort: portField(t.RemotePort),
		LocalPort:  portField(t.LocalPort),
	}
}

// Tuple recovers the tuple of the socket stored under k.
func (k SockKey) Tuple() Tuple {
	return Tuple{
		LocalIP:    addrField(k.RemoteIP4),
		LocalPort:  portValue(k.RemotePort),
		RemoteIP:   addrField(k.LocalIP4),
		RemotePort: portValue(k.LocalPort),
	}
}

func ipField(addr netip.Addr) uint32 {
	b := addr.Unmap().As4()
	return binary.NativeEndian.Uint32(b[:])
}

func addrField(v uint32) netip.Addr {
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

func portField(port uint16) uint32 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], port)
	return uint32(binary.NativeEndian.Uint16(b[:]))
}

func portValue(v uint32) uint16 {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], uint16(v))
	return binary.BigEndian.Uint16(b[:])
}
