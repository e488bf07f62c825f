package resource

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

// A Manager matches the resources of its pool to reservations.
type Manager struct {
	name     string
	k        *kernel.Kernel
	stealing bool
	logger   *logrus.Logger

	resources    []*Resource
	reservations []*Reservation
	seq          uint64

	updating bool
	dirty    bool
}

// A ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStealing lets reservations take booked resources away from less
// important reservations that have not picked them up yet.
func WithStealing() ManagerOption {
	return func(m *Manager) {
		m.stealing = true
	}
}

// WithLogger sets the logger of the manager.
func WithLogger(logger *logrus.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a manager with an empty pool.
func NewManager(name string, opts ...ManagerOption) *Manager {
	m := &Manager{
		name:   name,
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Name returns the name of the manager.
func (m *Manager) Name() string {
	return m.name
}

// ID returns the name of the manager.
func (m *Manager) ID() string {
	return m.name
}

// Stealing tells if stealing is enabled.
func (m *Manager) Stealing() bool {
	return m.stealing
}

// Initialize binds the manager to a kernel, which resets it with the
// simulation.
func (m *Manager) Initialize(k *kernel.Kernel) {
	m.k = k
	k.AddResettable(m)
}

// Initialized tells if the manager is bound to a kernel.
func (m *Manager) Initialized() bool {
	return m.k != nil
}

// Resources returns the managed resources in registration order.
func (m *Manager) Resources() []*Resource {
	return append([]*Resource(nil), m.resources...)
}

// Reservations returns the pending reservations in priority order.
func (m *Manager) Reservations() []*Reservation {
	return append([]*Reservation(nil), m.reservations...)
}

// Manage adds a resource to the pool.
func (m *Manager) Manage(r *Resource) error {
	if r.manager != nil {
		return simerr.Argument(
			"resource %s is already managed by %s", r.id, r.manager.name)
	}

	r.manager = m
	m.resources = append(m.resources, r)

	if m.Initialized() {
		m.Update()
	}

	return nil
}

// UnManage removes a resource from the pool.
//
// Unmanaging a resource that is not in the pool does nothing. A resource that
// is booked or held stays in the pool unless forced, which requires stealing.
// A forced booked resource is taken away from its reservation.
func (m *Manager) UnManage(r *Resource, force bool) error {
	if r.manager != m {
		return nil
	}

	if !r.free {
		if !force {
			return nil
		}

		if !m.stealing {
			return simerr.Argument(
				"manager %s: forced unmanage of %s needs stealing", m.name, r.id)
		}

		if r.booking != nil {
			r.booking.unbook(r)
			defer m.Update()
		}
	}

	for i, candidate := range m.resources {
		if candidate == r {
			m.resources = append(m.resources[:i:i], m.resources[i+1:]...)
			break
		}
	}

	r.manager = nil
	r.free = r.holder == nil

	return nil
}

// A SeizeRequest describes the resources an orderer asks for.
type SeizeRequest struct {
	Orderer  any
	Counts   map[string]int
	Pickup   PickupFunc
	Accept   map[string]AcceptFunc
	Priority float64
}

// A SeizeOption completes a SeizeRequest.
type SeizeOption func(*SeizeRequest)

// WithPickup sets the pickup callback.
func WithPickup(fn PickupFunc) SeizeOption {
	return func(req *SeizeRequest) {
		req.Pickup = fn
	}
}

// WithAcceptance sets the acceptance predicate of a type.
func WithAcceptance(typ string, fn AcceptFunc) SeizeOption {
	return func(req *SeizeRequest) {
		if req.Accept == nil {
			req.Accept = make(map[string]AcceptFunc)
		}

		req.Accept[typ] = fn
	}
}

// WithPriority sets the priority of the reservation. Higher values are served
// first.
func WithPriority(p float64) SeizeOption {
	return func(req *SeizeRequest) {
		req.Priority = p
	}
}

// Seize submits a reservation and matches it at once if possible.
func (m *Manager) Seize(req SeizeRequest) (*Reservation, error) {
	if !m.Initialized() {
		return nil, simerr.Initialization(
			"manager %s: seize before initialization", m.name)
	}

	if len(req.Counts) == 0 {
		return nil, simerr.Argument("manager %s: empty seize request", m.name)
	}

	types := make([]string, 0, len(req.Counts))
	for typ, n := range req.Counts {
		if n <= 0 {
			return nil, simerr.Argument(
				"manager %s: non-positive count %d of type %s", m.name, n, typ)
		}

		types = append(types, typ)
	}

	sort.Strings(types)

	m.seq++
	res := &Reservation{
		orderer:   req.Orderer,
		types:     types,
		required:  make(map[string]int, len(types)),
		missing:   make(map[string]int, len(types)),
		collected: make(map[string][]*Resource, len(types)),
		pickup:    req.Pickup,
		accept:    req.Accept,
		priority:  timing.Priority{Value: req.Priority, Seq: m.seq},
		manager:   m,
	}

	for _, typ := range types {
		res.required[typ] = req.Counts[typ]
		res.missing[typ] = req.Counts[typ]
	}

	m.insert(res)
	m.Update()

	return res, nil
}

// SeizeOne asks for one specific resource of the pool.
func (m *Manager) SeizeOne(
	orderer any,
	r *Resource,
	opts ...SeizeOption,
) (*Reservation, error) {
	if r.manager != m {
		return nil, simerr.Argument(
			"manager %s does not manage resource %s", m.name, r.id)
	}

	req := SeizeRequest{Orderer: orderer, Counts: map[string]int{r.typ: 1}}
	for _, opt := range opts {
		opt(&req)
	}

	accept := req.Accept[r.typ]
	WithAcceptance(r.typ, func(candidate *Resource) bool {
		return candidate == r && (accept == nil || accept(candidate))
	})(&req)

	return m.Seize(req)
}

// SeizeN asks for n resources of one type.
func (m *Manager) SeizeN(
	orderer any,
	typ string,
	n int,
	opts ...SeizeOption,
) (*Reservation, error) {
	return m.SeizeGroup(orderer, map[string]int{typ: n}, opts...)
}

// SeizeGroup asks for a bundle of resources of several types.
func (m *Manager) SeizeGroup(
	orderer any,
	counts map[string]int,
	opts ...SeizeOption,
) (*Reservation, error) {
	req := SeizeRequest{Orderer: orderer, Counts: counts}
	for _, opt := range opts {
		opt(&req)
	}

	return m.Seize(req)
}

func (m *Manager) insert(res *Reservation) {
	i := sort.Search(len(m.reservations), func(i int) bool {
		return res.priority.Before(m.reservations[i].priority)
	})

	m.reservations = append(m.reservations, nil)
	copy(m.reservations[i+1:], m.reservations[i:])
	m.reservations[i] = res
}

func (m *Manager) remove(res *Reservation) {
	for i, candidate := range m.reservations {
		if candidate == res {
			m.reservations = append(m.reservations[:i:i], m.reservations[i+1:]...)
			return
		}
	}
}

// Update matches free resources to pending reservations. Calls made while a
// match is in progress, for example from a pickup callback, repeat the match
// once the current one is over.
func (m *Manager) Update() {
	if m.updating {
		m.dirty = true
		return
	}

	m.updating = true
	defer func() { m.updating = false }()

	for {
		m.dirty = false

		for m.matchPass() {
		}

		if !m.dirty {
			return
		}
	}
}

// matchPass walks the reservations in priority order once. It returns true if
// the pass must restart from the most important reservation.
func (m *Manager) matchPass() bool {
	for _, res := range m.Reservations() {
		if res.finished {
			continue
		}

		for _, r := range m.resources {
			if r.free && res.wants(r) {
				res.book(r)
			}
		}

		if res.MissingTotal() > 0 {
			continue
		}

		m.remove(res)

		if res.pickup == nil || res.pickup(res) {
			res.consume()
			continue
		}

		res.unbookAll()
		res.finished = true

		return true
	}

	return m.stealing && m.stealPass()
}

// stealPass moves at most one booked resource from a reservation to a more
// important one that needs it.
func (m *Manager) stealPass() bool {
	for i, taker := range m.reservations {
		if taker.finished || taker.MissingTotal() == 0 {
			continue
		}

		for _, loser := range m.reservations[i+1:] {
			if loser.finished || !taker.priority.Before(loser.priority) {
				continue
			}

			for _, r := range loser.All() {
				if !taker.wants(r) {
					continue
				}

				loser.unbook(r)
				taker.book(r)

				m.logger.WithFields(logrus.Fields{
					"manager":  m.name,
					"resource": r.id,
				}).Debug("resource stolen")

				return true
			}
		}
	}

	return false
}

// Reset frees every resource and drops all reservations.
func (m *Manager) Reset() error {
	for _, r := range m.resources {
		r.free = true
		r.holder = nil
		r.booking = nil
	}

	for _, res := range m.reservations {
		res.finished = true
		res.cancelled = true
	}

	m.reservations = nil
	m.seq = 0

	return nil
}
