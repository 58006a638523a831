package networking

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/vishvananda/netns"

	"github.com/redhat-et/patu/src/internal/log"
)

// nsMu serializes namespace switches within the process.
var nsMu sync.Mutex

// NewManagerInNamespace opens a Manager whose socket lives in the network
// namespace at path. The calling thread enters the namespace only while the
// socket is created and is always moved back to its original namespace.
func NewManagerInNamespace(path string) (*Manager, error) {
	nsMu.Lock()
	defer nsMu.Unlock()

	runtime.LockOSThread()

	home, err := netns.Get()
	if err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to get current namespace: %w", err)
	}
	defer home.Close()

	target, err := netns.GetFromPath(path)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to open namespace %s: %w", path, err)
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		restoreNamespace(home)
		return nil, fmt.Errorf("failed to enter namespace %s: %w", path, err)
	}

	m, err := NewManager()
	if !restoreNamespace(home) {
		if m != nil {
			_ = m.Close()
		}
		return nil, fmt.Errorf("failed to return from namespace %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("namespace %s: %w", path, err)
	}

	log.Debugf("Opened netlink socket in namespace %s", path)
	return m, nil
}

// restoreNamespace moves the locked thread back home. On failure the thread
// stays locked so the runtime discards it instead of reusing it.
func restoreNamespace(home netns.NsHandle) bool {
	if err := netns.Set(home); err != nil {
		log.Errorf("Failed to restore network namespace: %v", err)
		return false
	}
	runtime.UnlockOSThread()
	return true
}
