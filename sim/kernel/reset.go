package kernel

import (
	"fmt"

	"github.com/sarchlab/flowsim/sim/simerr"
)

// Reset returns the kernel to time 0. The options may change the seed and
// the stream modes.
//
// The scheduler is cleared first, then the master stream and every
// sub-stream are reseeded, then every entity and finally every other
// resettable component is reset, each in registration order. Breakpoints and
// pending run requests are dropped.
func (k *Kernel) Reset(opts ...Option) error {
	if !k.singleRunLock.TryLock() {
		return simerr.InvalidOperation("kernel %s: reset while running", k.name)
	}
	defer k.singleRunLock.Unlock()

	for _, opt := range opts {
		opt(k)
	}

	k.scheduler.Reset()
	k.writeNow(0)
	k.processedEvents.Store(0)
	k.target = 0

	k.streams.Reset(k.seed, k.antithetic, k.nonStochastic)

	k.breakpoints = nil
	k.bpSeq = 0
	k.clearRequests()
	k.setState(Stopped)
	k.initialized = true

	for _, e := range k.entities {
		if err := e.Reset(); err != nil {
			return fmt.Errorf("resetting entity %s: %w", e.ID(), err)
		}
	}

	for _, r := range k.resettables {
		if err := r.Reset(); err != nil {
			return fmt.Errorf("resetting %T: %w", r, err)
		}
	}

	return nil
}
