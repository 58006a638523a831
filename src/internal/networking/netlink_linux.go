package networking

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/vishvananda/netlink/nl"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"github.com/redhat-et/patu/src/internal/log"
)

// Manager issues rtnetlink requests over one socket. Every call sends a single
// request and blocks until the kernel acknowledges it.
//
// A Manager built by NewManagerInNamespace keeps operating inside that
// namespace for its whole lifetime. A Manager is not safe for concurrent use.
type Manager struct {
	sock *nl.NetlinkSocket
	pid  uint32
}

// NewManager opens a routing socket in the current network namespace.
func NewManager() (*Manager, error) {
	sock, err := nl.GetNetlinkSocketAt(netns.None(), netns.None(), unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("failed to open netlink socket: %w", err)
	}

	pid, err := sock.GetPid()
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to get netlink socket pid: %w", err)
	}

	return &Manager{sock: sock, pid: pid}, nil
}

// Close releases the socket.
func (m *Manager) Close() error {
	if m.sock != nil {
		m.sock.Close()
		m.sock = nil
	}
	return nil
}

// execute sends req and collects the payloads of resType replies until the
// kernel acknowledges the request.
func (m *Manager) execute(req *nl.NetlinkRequest, resType uint16) ([][]byte, error) {
	if m.sock == nil {
		return nil, errors.New("netlink socket is closed")
	}
	if err := m.sock.Send(req); err != nil {
		return nil, fmt.Errorf("failed to send netlink request: %w", err)
	}

	var results [][]byte
	for {
		msgs, from, err := m.sock.Receive()
		if err != nil {
			return nil, fmt.Errorf("failed to receive netlink response: %w", err)
		}
		if from.Pid != nl.PidKernel {
			return nil, fmt.Errorf("wrong sender portid %d, expected %d", from.Pid, nl.PidKernel)
		}

		for _, msg := range msgs {
			if msg.Header.Seq != req.Seq {
				return nil, fmt.Errorf("wrong sequence number %d, expected %d", msg.Header.Seq, req.Seq)
			}
			if msg.Header.Pid != m.pid {
				continue
			}

			done, err := parseResponse(msg)
			if done {
				return results, err
			}
			if resType != 0 && msg.Header.Type != resType {
				return nil, fmt.Errorf("unexpected netlink message type %d", msg.Header.Type)
			}
			results = append(results, msg.Data)
		}
	}
}

// parseResponse reports whether msg terminates the exchange and, if so, the
// error carried by it.
func parseResponse(msg syscall.NetlinkMessage) (bool, error) {
	switch msg.Header.Type {
	case unix.NLMSG_DONE:
		return true, nil
	case unix.NLMSG_ERROR:
		if len(msg.Data) < 4 {
			return true, errors.New("truncated netlink error message")
		}
		errno := int32(nl.NativeEndian().Uint32(msg.Data[0:4]))
		if errno == 0 {
			return true, nil
		}
		return true, syscall.Errno(-errno)
	}
	return false, nil
}

// ack executes a mutating request. EEXIST counts as success so that repeated
// creation is idempotent.
func (m *Manager) ack(req *nl.NetlinkRequest, what string) error {
	_, err := m.execute(req, 0)
	if errors.Is(err, unix.EEXIST) {
		log.Debugf("%s: already exists", what)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// CreateGateway creates the patu0 dummy link (up) if absent and returns it resolved.
func (m *Manager) CreateGateway() (*Link, error) {
	if err := m.ack(newGatewayRequest(GatewayName), "create gateway "+GatewayName); err != nil {
		return nil, err
	}
	return m.GetLinkInfo(GatewayName)
}

// CreateVethPair creates a veth pair. The end named peerName is created
// directly inside the namespace at netnsPath; the host end gets a random name.
// The host link is returned resolved, the container link only carries its name.
func (m *Manager) CreateVethPair(peerName, netnsPath string, mtu int) (*Link, *Link, error) {
	hostName, err := VethName()
	if err != nil {
		return nil, nil, err
	}

	ns, err := netns.GetFromPath(netnsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open namespace %s: %w", netnsPath, err)
	}
	defer ns.Close()

	req := newVethRequest(peerName, hostName, int(ns), mtu)
	if err := m.ack(req, "create veth pair "+hostName+"/"+peerName); err != nil {
		return nil, nil, err
	}

	host, err := m.GetLinkInfo(hostName)
	if err != nil {
		return nil, nil, err
	}
	return host, &Link{Name: peerName}, nil
}

// SetIP assigns address/32 to the link.
func (m *Manager) SetIP(index int, address net.IP) error {
	req, err := newAddressRequest(index, address)
	if err != nil {
		return err
	}
	return m.ack(req, fmt.Sprintf("set address %s on link %d", address, index))
}

// SetUp raises IFF_UP on the link.
func (m *Manager) SetUp(index int) error {
	return m.ack(newSetUpRequest(index), fmt.Sprintf("set link %d up", index))
}

// GetLinkInfo resolves a link by name. Exactly one link must match.
func (m *Manager) GetLinkInfo(name string) (*Link, error) {
	return m.getLink(newGetLinkRequest(0, name), name)
}

// GetLinkByIndex resolves a link by index.
func (m *Manager) GetLinkByIndex(index int) (*Link, error) {
	return m.getLink(newGetLinkRequest(index, ""), fmt.Sprintf("index %d", index))
}

func (m *Manager) getLink(req *nl.NetlinkRequest, what string) (*Link, error) {
	msgs, err := m.execute(req, unix.RTM_NEWLINK)
	if errors.Is(err, unix.ENODEV) {
		return nil, fmt.Errorf("%w: %s", ErrLinkNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("get link %s: %w", what, err)
	}

	switch len(msgs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrLinkNotFound, what)
	case 1:
		return parseLink(msgs[0])
	default:
		return nil, fmt.Errorf("more than one interface matches %s", what)
	}
}

// CreateDefaultRoute installs 0.0.0.0/0 via gw in the main table.
func (m *Manager) CreateDefaultRoute(gw net.IP) error {
	req, err := newDefaultRouteRequest(gw)
	if err != nil {
		return err
	}
	return m.ack(req, "create default route via "+gw.String())
}

// CreateDevRoute installs dst/32 with link scope out of the given link.
func (m *Manager) CreateDevRoute(index int, dst net.IP) error {
	req, err := newDevRouteRequest(index, dst)
	if err != nil {
		return err
	}
	return m.ack(req, fmt.Sprintf("create route to %s dev %d", dst, index))
}

// DeleteLink deletes the link; the kernel removes its addresses and routes.
func (m *Manager) DeleteLink(index int) error {
	return m.ack(newDeleteLinkRequest(index), fmt.Sprintf("delete link %d", index))
}
