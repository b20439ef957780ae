// Package ros implements the per-node runtime of a client library for
// a distributed robotics middleware: independent processes ("nodes")
// exchange typed messages over named topics and perform request/response
// calls over named services, coordinated by a central directory (the
// "master") reached over an XML-RPC-over-HTTP protocol, with peer data
// transport over a custom framed binary protocol on TCP.
//
// A Node is returned by New and threaded explicitly into every call
// site — there is no process-wide singleton. Call Advertise, Subscribe,
// AdvertiseService, or NewServiceClient to create endpoints; call Shutdown
// to tear the node down, unregistering every endpoint from the master.
//
// The wire codec lives in package wire, the TCP frame discipline in
// package frame, the master RPC client in package masterclient, the
// XML-RPC-over-HTTP transport in package xmlrpc, and the cooperative
// dispatcher in package spinner. This package wires them together into
// the node runtime, publishers, subscribers, and service endpoints
// described in the specification.
package ros
