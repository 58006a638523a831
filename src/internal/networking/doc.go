// Package networking wires a container namespace to the host.
//
// # Netlink
//
// Manager owns one rtnetlink socket and performs synchronous request/ack
// exchanges on it: creating the patu0 gateway and veth pairs, assigning /32
// addresses, raising links, installing routes and deleting links. Every
// mutating call blocks until the kernel acknowledges it; EEXIST is treated as
// success where a create is expected to be idempotent.
//
// NewManagerInNamespace opens the socket inside a target network namespace.
// The calling thread switches into the namespace only for the duration of the
// socket creation and always returns to its original namespace. Switches are
// serialized by a package mutex.
//
// # Firewall
//
// Firewall installs one filter/FORWARD accept rule per host veth. The rule is
// a template that may reference {{host_ifname}}, {{container_id}} and
// {{ifname}}.
//
// # Example Usage
//
//	host, err := networking.NewManager()
//	if err != nil {
//	    return err
//	}
//	defer host.Close()
//
//	gw, err := host.CreateGateway()
//	if err != nil {
//	    return err
//	}
//	if err := host.SetIP(gw.Index, net.ParseIP("10.200.0.1")); err != nil {
//	    return err
//	}
package networking
