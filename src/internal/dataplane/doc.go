// Package dataplane loads and attaches the socket redirect programs and
// reports on the connections they track.
//
// Two programs share the tcp_conns sockhash. patu_sockops runs on TCP
// establishment in the cgroup and inserts the socket under a key built from
// its own tuple with the roles swapped. patu_skmsg runs on every sendmsg of a
// tracked socket and redirects the payload into the receive queue of the
// socket stored under the key built from the sender's tuple. When the lookup
// misses the message takes the normal path, so a full map only costs speed.
//
// Nothing in the CNI plugin calls into this package. The programs are
// installed once per host by "patu dataplane".
package dataplane
