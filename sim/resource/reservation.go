package resource

import (
	"github.com/sarchlab/flowsim/sim/timing"
)

// PickupFunc is called when a reservation has collected everything it
// requires. Returning false declines the bundle: the resources go back to the
// pool and the reservation ends.
type PickupFunc func(r *Reservation) bool

// AcceptFunc decides if a resource can serve a reservation.
type AcceptFunc func(r *Resource) bool

// A Reservation is a pending request for a bundle of resources.
type Reservation struct {
	orderer   any
	types     []string
	required  map[string]int
	missing   map[string]int
	collected map[string][]*Resource
	pickup    PickupFunc
	accept    map[string]AcceptFunc
	priority  timing.Priority

	finished  bool
	consumed  bool
	cancelled bool
	manager   *Manager
}

// Orderer returns the party that requested the resources.
func (r *Reservation) Orderer() any {
	return r.orderer
}

// Priority returns the priority of the reservation.
func (r *Reservation) Priority() timing.Priority {
	return r.priority
}

// Types returns the requested types in request order.
func (r *Reservation) Types() []string {
	return append([]string(nil), r.types...)
}

// Required returns the requested count of a type.
func (r *Reservation) Required(typ string) int {
	return r.required[typ]
}

// Missing returns how many resources of a type are still to be booked.
func (r *Reservation) Missing(typ string) int {
	return r.missing[typ]
}

// MissingTotal returns how many resources are still to be booked.
func (r *Reservation) MissingTotal() int {
	n := 0
	for _, typ := range r.types {
		n += r.missing[typ]
	}

	return n
}

// Resources returns the resources booked or collected for a type.
func (r *Reservation) Resources(typ string) []*Resource {
	return append([]*Resource(nil), r.collected[typ]...)
}

// All returns every booked or collected resource in request order.
func (r *Reservation) All() []*Resource {
	var out []*Resource
	for _, typ := range r.types {
		out = append(out, r.collected[typ]...)
	}

	return out
}

// Finished tells if the reservation has ended, by pickup, decline, or
// cancellation.
func (r *Reservation) Finished() bool {
	return r.finished
}

// Collected tells if the orderer took the resources.
func (r *Reservation) Collected() bool {
	return r.consumed
}

// Cancelled tells if the reservation was cancelled.
func (r *Reservation) Cancelled() bool {
	return r.cancelled
}

// Cancel withdraws a pending reservation. Booked resources return to the pool.
// It returns false if the reservation has already ended.
func (r *Reservation) Cancel() bool {
	if r.finished {
		return false
	}

	r.unbookAll()
	r.cancelled = true
	r.finished = true

	if r.manager != nil {
		r.manager.remove(r)
		r.manager.Update()
	}

	return true
}

func (r *Reservation) wants(res *Resource) bool {
	if r.missing[res.typ] == 0 {
		return false
	}

	accept := r.accept[res.typ]

	return accept == nil || accept(res)
}

func (r *Reservation) book(res *Resource) {
	res.free = false
	res.booking = r
	r.missing[res.typ]--
	r.collected[res.typ] = append(r.collected[res.typ], res)
}

func (r *Reservation) unbook(res *Resource) {
	list := r.collected[res.typ]
	for i, candidate := range list {
		if candidate == res {
			r.collected[res.typ] = append(list[:i:i], list[i+1:]...)
			r.missing[res.typ]++

			break
		}
	}

	res.booking = nil
	res.free = true
}

func (r *Reservation) unbookAll() {
	for _, res := range r.All() {
		r.unbook(res)
	}
}

func (r *Reservation) consume() {
	for _, res := range r.All() {
		res.booking = nil
		res.holder = r.orderer
	}

	r.consumed = true
	r.finished = true
}
