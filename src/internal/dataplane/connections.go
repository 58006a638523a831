package dataplane

import (
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
)

// KeyIterator walks map keys. *ebpf.Map implements it.
type KeyIterator interface {
	NextKey(key, nextKeyOut interface{}) error
}

// Connection is one socket tracked by the redirect map.
type Connection struct {
	Local  string `json:"local"`
	Remote string `json:"remote"`
}

// ListKeys returns up to limit distinct keys of the redirect map (all when
// limit <= 0).
//
// When the cursor key is deleted during the walk the kernel restarts from the
// first key. Keys already returned are skipped then, and the deleted cursor is
// dropped from the result. The walk is aborted with ebpf.ErrIterationAborted
// after more than maxEntries steps (no bound when maxEntries is 0).
func ListKeys(m KeyIterator, limit int, maxEntries uint32) ([]SockKey, error) {
	var (
		order     []SockKey
		present   = make(map[SockKey]bool)
		count     int
		replaying bool
		cur       *SockKey
		next      SockKey
	)

	collect := func() []SockKey {
		keys := make([]SockKey, 0, count)
		for _, k := range order {
			if present[k] {
				keys = append(keys, k)
			}
		}
		return keys
	}

	for steps := uint64(0); limit <= 0 || count < limit; steps++ {
		if maxEntries > 0 && steps > uint64(maxEntries) {
			return collect(), fmt.Errorf("failed to iterate %s: %w", MapName, ebpf.ErrIterationAborted)
		}

		var err error
		if cur == nil {
			err = m.NextKey(nil, &next)
		} else {
			err = m.NextKey(cur, &next)
		}
		if errors.Is(err, ebpf.ErrKeyNotExist) {
			break
		}
		if err != nil {
			return collect(), fmt.Errorf("failed to iterate %s: %w", MapName, err)
		}

		k := next
		if _, seen := present[k]; seen {
			if !replaying && cur != nil && present[*cur] {
				present[*cur] = false
				count--
			}
			replaying = true
		} else {
			present[k] = true
			order = append(order, k)
			count++
			replaying = false
		}
		cur = &k
	}
	return collect(), nil
}

// ConnectionOf describes the socket stored under k.
func ConnectionOf(k SockKey) Connection {
	t := k.Tuple()
	return Connection{
		Local:  fmt.Sprintf("%s:%d", t.LocalIP, t.LocalPort),
		Remote: fmt.Sprintf("%s:%d", t.RemoteIP, t.RemotePort),
	}
}
