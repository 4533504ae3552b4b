package publisher

import (
	"fmt"
	"time"

	"github.com/karolbe/ha-cp-ups/internal/ups"
)

// Result is the outcome of one publish cycle.
//
// Every failure path of a cycle maps to exactly one Result; none of them
// stop the loop.
type Result int

const (
	// ResultPublished means the broker acknowledged the snapshot.
	ResultPublished Result = iota
	// ResultNotConnected means the session was down and nothing was fetched.
	ResultNotConnected
	// ResultNoStatus means the status source had no snapshot this tick.
	ResultNoStatus
	// ResultEncodeFailed means the snapshot could not be serialised.
	ResultEncodeFailed
	// ResultRejected means the publish completed with a non-success return code.
	ResultRejected
	// ResultFailed means the publish call itself failed.
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultPublished:
		return "published"
	case ResultNotConnected:
		return "not_connected"
	case ResultNoStatus:
		return "no_status"
	case ResultEncodeFailed:
		return "encode_failed"
	case ResultRejected:
		return "rejected"
	case ResultFailed:
		return "failed"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Published reports whether the cycle delivered a snapshot to the broker.
func (r Result) Published() bool {
	return r == ResultPublished
}

// Cycle describes one completed publish cycle, as seen by observers.
type Cycle struct {
	At       time.Time
	Topic    string
	Result   Result
	Snapshot ups.Snapshot // nil when no snapshot was fetched
	Payload  []byte       // nil when nothing was encoded
	Err      error
}
