// Package model provides entity templates built on the kernel: sources that
// create items, servers that process them with pooled resources, and sinks
// that collect them.
package model

import (
	"github.com/sarchlab/flowsim/sim/timing"
)

// An Item is a unit of work that flows from a source to a sink.
type Item struct {
	ID        string
	CreatedAt timing.VTimeInSec
}
