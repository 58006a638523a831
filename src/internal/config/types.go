package config

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DefaultMTU is applied to both ends of the veth pair when the network config has no mtu.
	DefaultMTU = 1500
	// DefaultForwardRule accepts everything arriving from the host-side veth.
	DefaultForwardRule = "-i {{" + TmplHostIfname + "}} -j ACCEPT"

	DefaultObjectPath   = "/opt/patu/bpf/patu.o"
	DefaultCgroupPath   = "/sys/fs/cgroup"
	DefaultPinPath      = "/sys/fs/bpf/patu"
	DefaultMaxEntries   = 65535
	DefaultListenAddr   = "127.0.0.1:9099"
	DefaultPollInterval = 15 * time.Second
	DefaultPodCIDR      = "10.200.0.0/16"
)

// Template variables available to the forward rule.
const (
	TmplHostIfname  = "host_ifname"
	TmplContainerID = "container_id"
	TmplIfname      = "ifname"
)

// NetworkConfig is the single-plugin network configuration read from stdin.
type NetworkConfig struct {
	// CNIVersion is the CNI specification version of this document.
	CNIVersion string `json:"cniVersion" validate:"required,cni_version"`
	// Name is the network name.
	Name string `json:"name" validate:"required"`
	// DisableCheck tells the runtime CHECK should not be called.
	DisableCheck bool `json:"disableCheck,omitempty"`

	PluginConfig

	// raw is the document exactly as it was received; delegates get these bytes.
	raw []byte
}

// PluginConfig holds the per-plugin fields of a network configuration.
type PluginConfig struct {
	// Type matches the name of the plugin binary.
	Type string `json:"type" validate:"required"`
	// Capabilities the runtime enabled for this plugin.
	Capabilities map[string]interface{} `json:"capabilities,omitempty"`
	// IPMasq asks for IP masquerading on the host.
	IPMasq bool `json:"ipMasq,omitempty"`
	// IPAM is the address management delegate configuration.
	IPAM *IPAMConfig `json:"ipam,omitempty" validate:"omitempty"`
	// DNS is the resolver configuration.
	DNS *DNS `json:"dns,omitempty" validate:"omitempty"`
	// RawPrevResult is the result of the previous plugin in a chain.
	RawPrevResult map[string]interface{} `json:"prevResult,omitempty"`

	// MTU of the veth pair (default 1500).
	MTU int `json:"mtu,omitempty" validate:"omitempty,min=68,max=65535"`
	// ForwardRule is the filter/FORWARD rule spec installed per host veth.
	ForwardRule string `json:"forwardRule,omitempty" validate:"omitempty,forward_rule"`
}

// DNS carries resolver settings. It converts to types.DNS of the CNI library.
type DNS struct {
	Nameservers []string `json:"nameservers,omitempty" validate:"omitempty,dive,ip"`
	Domain      string   `json:"domain,omitempty" validate:"omitempty,dnsname"`
	Search      []string `json:"search,omitempty" validate:"omitempty,dive,dnsname"`
	Options     []string `json:"options,omitempty"`
}

// IPAMConfig names the IPAM delegate. All other keys are passed through in the raw document.
type IPAMConfig struct {
	Type string `json:"type" validate:"required,excludesall=/"`
}

// ConfigList is a network configuration list holding several plugins.
type ConfigList struct {
	CNIVersion   string         `json:"cniVersion" validate:"required,cni_version"`
	Name         string         `json:"name" validate:"required"`
	DisableCheck bool           `json:"disableCheck,omitempty"`
	Plugins      []*PluginEntry `json:"plugins" validate:"required,min=1,dive"`
}

// PluginEntry is one element of ConfigList.Plugins. The document is kept
// verbatim so it can be turned into a NetworkConfig for that plugin.
type PluginEntry struct {
	Type string `json:"type" validate:"required"`
	Raw  json.RawMessage
}

// UnmarshalJSON keeps the raw plugin document next to its type.
func (p *PluginEntry) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	p.Type = head.Type
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the plugin document back unchanged.
func (p *PluginEntry) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return json.Marshal(struct {
			Type string `json:"type"`
		}{p.Type})
	}
	return p.Raw, nil
}

// DataplaneConfig configures the privileged fast-path daemon.
type DataplaneConfig struct {
	// ObjectPath is the compiled BPF object holding patu_sockops, patu_skmsg and tcp_conns.
	ObjectPath string `toml:"object_path" validate:"required"`
	// CgroupPath is the cgroup v2 directory the sockops program attaches to.
	CgroupPath string `toml:"cgroup_path" validate:"required"`
	// PinPath is the bpffs directory the redirect map is pinned under.
	PinPath string `toml:"pin_path" validate:"required"`
	// MaxEntries is the redirect map capacity.
	MaxEntries uint32 `toml:"max_entries" validate:"min=1,max=1048576"`
	// ListenAddr is the health/metrics listen address, empty disables the HTTP server.
	ListenAddr string `toml:"listen_addr" validate:"omitempty,hostname_port"`
	// PollInterval is how often the map size gauge is refreshed.
	PollInterval Duration `toml:"poll_interval"`
	// PodCIDR limits redirection to peers inside this IPv4 network, empty redirects every peer.
	PodCIDR string `toml:"pod_cidr" validate:"omitempty,cidrv4"`
}

// Duration is a time.Duration that decodes from strings like "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultDataplaneConfig returns the daemon defaults.
func DefaultDataplaneConfig() *DataplaneConfig {
	return &DataplaneConfig{
		ObjectPath:   DefaultObjectPath,
		CgroupPath:   DefaultCgroupPath,
		PinPath:      DefaultPinPath,
		MaxEntries:   DefaultMaxEntries,
		ListenAddr:   DefaultListenAddr,
		PollInterval: Duration{DefaultPollInterval},
		PodCIDR:      DefaultPodCIDR,
	}
}
