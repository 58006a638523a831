// Package log provides simple leveled logging for patu.
//
// Output is colored and prefixed with the level: DEBUG, INFO, WARN and ERROR.
// Debug messages are only printed in verbose mode.
//
// When patu runs as a CNI plugin its stdout belongs to the container runtime,
// so the dispatcher routes every level to stderr:
//
//	log.SetForceStdErr(true)
//	log.Debugf("creating veth pair for %s", ifname)
//
// The package uses global state guarded by a mutex, so it is safe to call
// from the dataplane daemon's goroutines.
package log
