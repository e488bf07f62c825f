// Package resource arbitrates shared units among the entities that request
// them.
//
// A Manager owns a pool of resources and a priority-ordered list of
// reservations. Whenever the pool or the list changes, the manager books free
// resources for the most important reservations first and hands complete
// bundles to their orderers.
package resource

// A Resource is a unit that can be held by one orderer at a time.
type Resource struct {
	id      string
	typ     string
	free    bool
	holder  any
	booking *Reservation
	manager *Manager
}

// NewResource creates a free resource that is not managed yet.
func NewResource(id, typ string) *Resource {
	return &Resource{id: id, typ: typ, free: true}
}

// ID returns the identifier of the resource.
func (r *Resource) ID() string {
	return r.id
}

// Type returns the type of the resource.
func (r *Resource) Type() string {
	return r.typ
}

// IsFree tells if the resource is neither booked nor held.
func (r *Resource) IsFree() bool {
	return r.free
}

// Holder returns the orderer that holds the resource, or nil.
func (r *Resource) Holder() any {
	return r.holder
}

// IsBooked tells if the resource is assigned to a reservation that has not
// been picked up yet.
func (r *Resource) IsBooked() bool {
	return r.booking != nil
}

// Manager returns the manager of the resource, or nil.
func (r *Resource) Manager() *Manager {
	return r.manager
}

// Release returns a held resource to its pool and lets the manager match it
// to waiting reservations. Releasing a resource that is not held does
// nothing.
func (r *Resource) Release() {
	if r.holder == nil {
		return
	}

	r.holder = nil
	r.free = true

	if r.manager != nil {
		r.manager.Update()
	}
}
