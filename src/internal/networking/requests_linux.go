package networking

import (
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

const createFlags = unix.NLM_F_CREATE | unix.NLM_F_EXCL | unix.NLM_F_ACK

func newGatewayRequest(name string) *nl.NetlinkRequest {
	req := nl.NewNetlinkRequest(unix.RTM_NEWLINK, createFlags)

	msg := nl.NewIfInfomsg(unix.AF_UNSPEC)
	msg.Flags = unix.IFF_UP
	msg.Change = unix.IFF_UP
	req.AddData(msg)
	req.AddData(nl.NewRtAttr(unix.IFLA_IFNAME, nl.ZeroTerminated(name)))

	linkInfo := nl.NewRtAttr(unix.IFLA_LINKINFO, nil)
	linkInfo.AddRtAttr(nl.IFLA_INFO_KIND, nl.NonZeroTerminated("dummy"))
	req.AddData(linkInfo)

	return req
}

// newVethRequest builds an RTM_NEWLINK for a veth pair. The main link is the
// container end, created in the namespace behind nsFd; the peer is the host end.
func newVethRequest(containerName, hostName string, nsFd, mtu int) *nl.NetlinkRequest {
	req := nl.NewNetlinkRequest(unix.RTM_NEWLINK, createFlags)

	req.AddData(nl.NewIfInfomsg(unix.AF_UNSPEC))
	req.AddData(nl.NewRtAttr(unix.IFLA_MTU, nl.Uint32Attr(uint32(mtu))))
	req.AddData(nl.NewRtAttr(unix.IFLA_IFNAME, nl.ZeroTerminated(containerName)))
	req.AddData(nl.NewRtAttr(unix.IFLA_NET_NS_FD, nl.Uint32Attr(uint32(nsFd))))

	linkInfo := nl.NewRtAttr(unix.IFLA_LINKINFO, nil)
	linkInfo.AddRtAttr(nl.IFLA_INFO_KIND, nl.NonZeroTerminated("veth"))
	data := linkInfo.AddRtAttr(nl.IFLA_INFO_DATA, nil)
	peer := data.AddRtAttr(nl.VETH_INFO_PEER, nil)
	nl.NewIfInfomsgChild(peer, unix.AF_UNSPEC)
	peer.AddRtAttr(unix.IFLA_IFNAME, nl.ZeroTerminated(hostName))
	peer.AddRtAttr(unix.IFLA_MTU, nl.Uint32Attr(uint32(mtu)))
	req.AddData(linkInfo)

	return req
}

func newAddressRequest(index int, address net.IP) (*nl.NetlinkRequest, error) {
	v4 := address.To4()
	if v4 == nil {
		return nil, fmt.Errorf("not an IPv4 address: %s", address)
	}

	req := nl.NewNetlinkRequest(unix.RTM_NEWADDR, createFlags)

	msg := nl.NewIfAddrmsg(unix.AF_INET)
	msg.Prefixlen = 32
	msg.Index = uint32(index)
	req.AddData(msg)
	req.AddData(nl.NewRtAttr(unix.IFA_LOCAL, v4))
	req.AddData(nl.NewRtAttr(unix.IFA_ADDRESS, v4))
	req.AddData(nl.NewRtAttr(unix.IFA_BROADCAST, v4))

	return req, nil
}

func newSetUpRequest(index int) *nl.NetlinkRequest {
	req := nl.NewNetlinkRequest(unix.RTM_SETLINK, unix.NLM_F_ACK)

	msg := nl.NewIfInfomsg(unix.AF_UNSPEC)
	msg.Index = int32(index)
	msg.Flags = unix.IFF_UP
	msg.Change = unix.IFF_UP
	req.AddData(msg)

	return req
}

// newGetLinkRequest filters by name when name is set, otherwise by index.
func newGetLinkRequest(index int, name string) *nl.NetlinkRequest {
	req := nl.NewNetlinkRequest(unix.RTM_GETLINK, unix.NLM_F_ACK)

	msg := nl.NewIfInfomsg(unix.AF_UNSPEC)
	msg.Index = int32(index)
	req.AddData(msg)
	req.AddData(nl.NewRtAttr(unix.IFLA_EXT_MASK, nl.Uint32Attr(uint32(nl.RTEXT_FILTER_VF))))
	if name != "" {
		req.AddData(nl.NewRtAttr(unix.IFLA_IFNAME, nl.ZeroTerminated(name)))
	}

	return req
}

func newDefaultRouteRequest(gw net.IP) (*nl.NetlinkRequest, error) {
	v4 := gw.To4()
	if v4 == nil {
		return nil, fmt.Errorf("not an IPv4 gateway: %s", gw)
	}

	req := nl.NewNetlinkRequest(unix.RTM_NEWROUTE, createFlags)

	msg := nl.NewRtMsg()
	msg.Family = unix.AF_INET
	msg.Protocol = unix.RTPROT_STATIC
	req.AddData(msg)
	req.AddData(nl.NewRtAttr(unix.RTA_GATEWAY, v4))

	return req, nil
}

func newDevRouteRequest(index int, dst net.IP) (*nl.NetlinkRequest, error) {
	v4 := dst.To4()
	if v4 == nil {
		return nil, fmt.Errorf("not an IPv4 destination: %s", dst)
	}

	req := nl.NewNetlinkRequest(unix.RTM_NEWROUTE, createFlags)

	msg := nl.NewRtMsg()
	msg.Family = unix.AF_INET
	msg.Protocol = unix.RTPROT_STATIC
	msg.Scope = unix.RT_SCOPE_LINK
	msg.Dst_len = 32
	req.AddData(msg)
	req.AddData(nl.NewRtAttr(unix.RTA_OIF, nl.Uint32Attr(uint32(index))))
	req.AddData(nl.NewRtAttr(unix.RTA_DST, v4))

	return req, nil
}

func newDeleteLinkRequest(index int) *nl.NetlinkRequest {
	req := nl.NewNetlinkRequest(unix.RTM_DELLINK, unix.NLM_F_ACK)

	msg := nl.NewIfInfomsg(unix.AF_UNSPEC)
	msg.Index = int32(index)
	req.AddData(msg)

	return req
}

// parseLink decodes an RTM_NEWLINK payload.
func parseLink(data []byte) (*Link, error) {
	if len(data) < unix.SizeofIfInfomsg {
		return nil, errors.New("truncated link message")
	}
	msg := nl.DeserializeIfInfomsg(data)
	attrs, err := nl.ParseRouteAttr(data[unix.SizeofIfInfomsg:])
	if err != nil {
		return nil, fmt.Errorf("failed to parse link attributes: %w", err)
	}

	link := &Link{Index: int(msg.Index)}
	for _, attr := range attrs {
		switch attr.Attr.Type {
		case unix.IFLA_IFNAME:
			link.Name = unix.ByteSliceToString(attr.Value)
		case unix.IFLA_ADDRESS:
			link.MAC = FormatMAC(attr.Value)
		case unix.IFLA_LINK:
			if len(attr.Value) >= 4 {
				link.ParentIndex = int(nl.NativeEndian().Uint32(attr.Value[:4]))
			}
		}
	}
	return link, nil
}
