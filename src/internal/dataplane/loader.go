package dataplane

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"

	"github.com/redhat-et/patu/src/internal/config"
	"github.com/redhat-et/patu/src/internal/log"
)

// Names of the objects in bpf/patu.o.
const (
	MapName        = "tcp_conns"
	SockopsProgram = "patu_sockops"
	SkMsgProgram   = "patu_skmsg"
)

// Loader owns the loaded collection and its attachments.
type Loader struct {
	cfg *config.DataplaneConfig

	mu         sync.Mutex
	collection *ebpf.Collection
	sockops    link.Link
	skmsg      bool
}

// NewLoader creates a loader for the configured object file.
func NewLoader(cfg *config.DataplaneConfig) *Loader {
	return &Loader{cfg: cfg}
}

// Load reads the object file, sizes and pins the redirect map and loads
// both programs into the kernel.
func (l *Loader) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.collection != nil {
		return errors.New("dataplane already loaded")
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("failed to remove memlock rlimit: %w", err)
	}

	spec, err := ebpf.LoadCollectionSpec(l.cfg.ObjectPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", l.cfg.ObjectPath, err)
	}
	if err := prepareSpec(spec, l.cfg); err != nil {
		return err
	}

	podNet, podMask, err := podNetwork(l.cfg.PodCIDR)
	if err != nil {
		return err
	}
	if err := spec.RewriteConstants(map[string]interface{}{
		"pod_net":  podNet,
		"pod_mask": podMask,
	}); err != nil {
		return fmt.Errorf("failed to set pod network: %w", err)
	}

	if err := os.MkdirAll(l.cfg.PinPath, 0o755); err != nil {
		return fmt.Errorf("failed to create pin path %s: %w", l.cfg.PinPath, err)
	}

	coll, err := ebpf.NewCollectionWithOptions(spec, ebpf.CollectionOptions{
		Maps: ebpf.MapOptions{PinPath: l.cfg.PinPath},
	})
	if err != nil {
		var verr *ebpf.VerifierError
		if errors.As(err, &verr) {
			log.Errorf("Verifier rejected the dataplane programs:\n%+v", verr)
		}
		return fmt.Errorf("failed to load dataplane collection: %w", err)
	}

	l.collection = coll
	log.Infof("Loaded dataplane from %s, map %s pinned under %s", l.cfg.ObjectPath, MapName, l.cfg.PinPath)
	return nil
}

// prepareSpec checks the object layout and applies the configured capacity.
func prepareSpec(spec *ebpf.CollectionSpec, cfg *config.DataplaneConfig) error {
	m, ok := spec.Maps[MapName]
	if !ok {
		return fmt.Errorf("map %s not found in %s", MapName, cfg.ObjectPath)
	}
	if m.Type != ebpf.SockHash {
		return fmt.Errorf("map %s has type %s, expected %s", MapName, m.Type, ebpf.SockHash)
	}
	m.MaxEntries = uint32(cfg.MaxEntries)
	m.Pinning = ebpf.PinByName

	for _, name := range []string{SockopsProgram, SkMsgProgram} {
		if _, ok := spec.Programs[name]; !ok {
			return fmt.Errorf("program %s not found in %s", name, cfg.ObjectPath)
		}
	}
	return nil
}

// podNetwork returns the pod_net and pod_mask constants for cidr in the byte
// order the programs compare addresses in. An empty cidr matches every peer.
func podNetwork(cidr string) (uint32, uint32, error) {
	if cidr == "" {
		return 0, 0, nil
	}
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil || !prefix.Addr().Is4() {
		return 0, 0, fmt.Errorf("invalid pod network %q", cidr)
	}
	mask := net.CIDRMask(prefix.Bits(), 32)
	return ipField(prefix.Masked().Addr()), binary.NativeEndian.Uint32(mask), nil
}

// Attach hooks patu_skmsg into the map and then patu_sockops into the cgroup,
// so no socket reaches the map before its verdict program is in place.
func (l *Loader) Attach() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.collection == nil {
		return errors.New("dataplane is not loaded")
	}

	sockops, err := attachHooks(&collectionHooks{coll: l.collection, cgroupPath: l.cfg.CgroupPath})
	if err != nil {
		return err
	}
	l.skmsg = true
	l.sockops = sockops

	log.Infof("Attached %s to map %s and %s to cgroup %s", SkMsgProgram, MapName, SockopsProgram, l.cfg.CgroupPath)
	return nil
}

// hooks attaches the two programs of a loaded collection.
type hooks interface {
	attachSkMsg() error
	detachSkMsg() error
	attachSockops() (link.Link, error)
}

// attachHooks attaches sk_msg before sockops. A failed sockops attach
// detaches sk_msg again.
func attachHooks(h hooks) (link.Link, error) {
	if err := h.attachSkMsg(); err != nil {
		return nil, fmt.Errorf("failed to attach %s to %s: %w", SkMsgProgram, MapName, err)
	}
	sockops, err := h.attachSockops()
	if err != nil {
		err = fmt.Errorf("failed to attach %s: %w", SockopsProgram, err)
		if derr := h.detachSkMsg(); derr != nil {
			err = errors.Join(err, fmt.Errorf("detach %s: %w", SkMsgProgram, derr))
		}
		return nil, err
	}
	return sockops, nil
}

type collectionHooks struct {
	coll       *ebpf.Collection
	cgroupPath string
}

func (c *collectionHooks) attachSkMsg() error {
	return link.RawAttachProgram(link.RawAttachProgramOptions{
		Target:  c.coll.Maps[MapName].FD(),
		Program: c.coll.Programs[SkMsgProgram],
		Attach:  ebpf.AttachSkMsgVerdict,
	})
}

func (c *collectionHooks) detachSkMsg() error {
	return link.RawDetachProgram(link.RawDetachProgramOptions{
		Target:  c.coll.Maps[MapName].FD(),
		Program: c.coll.Programs[SkMsgProgram],
		Attach:  ebpf.AttachSkMsgVerdict,
	})
}

func (c *collectionHooks) attachSockops() (link.Link, error) {
	l, err := link.AttachCgroup(link.CgroupOptions{
		Path:    c.cgroupPath,
		Attach:  ebpf.AttachCGroupSockOps,
		Program: c.coll.Programs[SockopsProgram],
	})
	if err != nil {
		return nil, fmt.Errorf("cgroup %s: %w", c.cgroupPath, err)
	}
	return l, nil
}

// Attached reports whether both programs are attached.
func (l *Loader) Attached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sockops != nil && l.skmsg
}

// Map returns the redirect map, or nil before Load.
func (l *Loader) Map() *ebpf.Map {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.collection == nil {
		return nil
	}
	return l.collection.Maps[MapName]
}

// Close detaches both programs, unpins the map and releases the collection.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.collection == nil {
		return nil
	}

	var errs []error
	m := l.collection.Maps[MapName]

	if l.sockops != nil {
		if err := l.sockops.Close(); err != nil {
			errs = append(errs, fmt.Errorf("detach %s: %w", SockopsProgram, err))
		}
		l.sockops = nil
	}
	if l.skmsg {
		h := &collectionHooks{coll: l.collection}
		if err := h.detachSkMsg(); err != nil {
			errs = append(errs, fmt.Errorf("detach %s: %w", SkMsgProgram, err))
		}
		l.skmsg = false
	}
	if err := m.Unpin(); err != nil {
		errs = append(errs, fmt.Errorf("unpin %s: %w", MapName, err))
	}

	l.collection.Close()
	l.collection = nil

	log.Infof("Dataplane detached")
	return errors.Join(errs...)
}
