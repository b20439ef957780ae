package ros

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-ros/rosnode/wire"
)

// errShuttingDown is returned by node operations once Shutdown has
// begun, per spec §7 taxonomy item 6 ("shutdown-in-progress: further
// operations fail immediately").
var errShuttingDown = errors.New("ros: node is shutting down")

// zeroTime clears a previously set deadline; kept as a package value
// since net.Conn.SetReadDeadline wants a time.Time, not a duration.
var zeroTime time.Time

func fmtTCPURI(host string, port int) string {
	return fmt.Sprintf("tcp://%s:%d", host, port)
}

func fmtRPCURI(host string, port int) string {
	return fmt.Sprintf("rosrpc://%s:%d", host, port)
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// md5Compatible implements the wildcard rule from spec §4.2: an md5sum
// of "*" on either side (the peer's header or want) is always accepted.
// The header's type field is not consulted.
func md5Compatible(header *wire.Header, want string) bool {
	got, _ := header.Get(wire.KeyMD5Sum)
	return got == "*" || want == "*" || got == want
}
