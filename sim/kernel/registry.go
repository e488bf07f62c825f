package kernel

import (
	"github.com/sarchlab/flowsim/sim/simerr"
)

// A Resettable is a component that returns to its initial condition when the
// kernel is reset.
type Resettable interface {
	Reset() error
}

// An Entity is a named simulation participant.
type Entity interface {
	Resettable
	ID() string
}

// A StateHolder is an entity whose content can be saved and restored.
type StateHolder interface {
	SaveState() (any, error)
	LoadState(state any) error
}

// AddEntity registers an entity. An entity with an existing ID replaces the
// previous one in its registration slot.
func (k *Kernel) AddEntity(e Entity) error {
	if !k.initialized {
		return simerr.Initialization(
			"kernel %s: entity %q added before the first reset", k.name, e.ID())
	}

	id := e.ID()
	if slot, found := k.entityIndex[id]; found {
		k.logger.WithField("entity", id).
			Warn("entity registered twice, replacing the previous one")

		k.entities[slot] = e

		return nil
	}

	k.entityIndex[id] = len(k.entities)
	k.entities = append(k.entities, e)

	return nil
}

// Entity returns the entity with the given ID.
func (k *Kernel) Entity(id string) (Entity, bool) {
	slot, found := k.entityIndex[id]
	if !found {
		return nil, false
	}

	return k.entities[slot], true
}

// Entities returns all entities in registration order.
func (k *Kernel) Entities() []Entity {
	out := make([]Entity, len(k.entities))
	copy(out, k.entities)

	return out
}

// EntitiesOf returns the entities of type T in registration order.
func EntitiesOf[T any](k *Kernel) []T {
	var out []T

	for _, e := range k.entities {
		if t, ok := e.(T); ok {
			out = append(out, t)
		}
	}

	return out
}

// AddResettable registers a component that is not an entity but must be
// reset with the kernel. Components are reset after all entities, in
// registration order. Registering the same component twice has no effect.
func (k *Kernel) AddResettable(r Resettable) {
	for _, existing := range k.resettables {
		if existing == r {
			return
		}
	}

	k.resettables = append(k.resettables, r)
}
