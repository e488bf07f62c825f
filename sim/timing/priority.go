package timing

import (
	"fmt"
	"math"
)

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec = float64

// Infinity is a time that is never reached.
var Infinity = VTimeInSec(math.Inf(1))

// Tier groups priorities into bands. All handlers or instances of a lower
// tier fire before any of a higher tier, whatever their values.
type Tier int

// Priority tiers. The zero value is TierNormal.
const (
	TierBefore Tier = iota - 1
	TierNormal
	TierAfter
)

func (t Tier) String() string {
	switch t {
	case TierBefore:
		return "before"
	case TierNormal:
		return "normal"
	case TierAfter:
		return "after"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Priority is the ordering key of event instances and event handlers.
//
// Priorities are ordered by tier first, then by value (a higher value comes
// first), then by sequence number (a lower one comes first). Sequence numbers
// are unique within their scope, so two distinct priorities never compare as
// equal.
type Priority struct {
	Tier  Tier
	Value float64
	Seq   uint64
}

// Before tells if p comes strictly before o.
func (p Priority) Before(o Priority) bool {
	if p.Tier != o.Tier {
		return p.Tier < o.Tier
	}

	if p.Value != o.Value {
		return p.Value > o.Value
	}

	return p.Seq < o.Seq
}

func (p Priority) String() string {
	return fmt.Sprintf("%s/%g/#%d", p.Tier, p.Value, p.Seq)
}
