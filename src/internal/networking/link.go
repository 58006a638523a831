package networking

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
)

const (
	// GatewayName is the host dummy link that carries every pod gateway address.
	GatewayName = "patu0"

	// VethPrefix prefixes every generated host-side veth name.
	VethPrefix = "veth"

	vethEntropyBytes = 4
)

// ErrLinkNotFound is returned when a link lookup matches nothing.
var ErrLinkNotFound = errors.New("link not found")

// Link is a resolved network interface.
type Link struct {
	Index int
	Name  string
	// MAC is the lowercase colon separated hardware address, empty when unknown.
	MAC string
	// ParentIndex is the IFLA_LINK index; for a veth this is the peer end.
	ParentIndex int
}

func (l *Link) String() string {
	return fmt.Sprintf("%s (index=%d, mac=%s)", l.Name, l.Index, l.MAC)
}

// VethName returns a random host-side veth name: "veth" and eight lowercase hex digits.
func VethName() (string, error) {
	entropy := make([]byte, vethEntropyBytes)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("failed to generate veth name: %w", err)
	}
	return VethPrefix + hex.EncodeToString(entropy), nil
}

// FormatMAC formats a hardware address attribute. Only the first six bytes are used.
func FormatMAC(b []byte) string {
	if len(b) > 6 {
		b = b[:6]
	}
	return strings.ToLower(net.HardwareAddr(b).String())
}
