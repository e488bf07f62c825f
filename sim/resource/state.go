package resource

import (
	"github.com/sarchlab/flowsim/sim/simerr"
)

// ResourceState is the saved content of one resource.
type ResourceState struct {
	Free   bool
	Holder string
}

type identified interface {
	ID() string
}

// SaveState captures the free flag and holder ID of every resource. Holders
// must have an ID. Pending reservations are not saved.
func (m *Manager) SaveState() (any, error) {
	state := make(map[string]ResourceState, len(m.resources))

	for _, r := range m.resources {
		rs := ResourceState{Free: r.free}

		if r.holder != nil {
			h, ok := r.holder.(identified)
			if !ok {
				return nil, simerr.Argument(
					"holder of resource %s has no ID", r.id)
			}

			rs.Holder = h.ID()
		}

		state[r.id] = rs
	}

	return state, nil
}

// LoadState restores content captured by SaveState. Holders are looked up
// among the kernel entities. Pending reservations are dropped.
func (m *Manager) LoadState(state any) error {
	saved, ok := state.(map[string]ResourceState)
	if !ok {
		return simerr.Argument("manager %s: unexpected state %T", m.name, state)
	}

	if !m.Initialized() {
		return simerr.Initialization("manager %s: load before initialization", m.name)
	}

	for _, r := range m.resources {
		rs, found := saved[r.id]
		if !found {
			continue
		}

		var holder any
		if rs.Holder != "" {
			e, found := m.k.Entity(rs.Holder)
			if !found {
				return simerr.Argument(
					"holder %s of resource %s is not registered", rs.Holder, r.id)
			}

			holder = e
		}

		r.booking = nil
		r.holder = holder
		r.free = holder == nil
	}

	for _, res := range m.reservations {
		res.finished = true
		res.cancelled = true
	}

	m.reservations = nil

	return nil
}
