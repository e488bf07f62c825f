// Package queueing provides FIFO buffers that entities exchange items
// through.
package queueing

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

// HookPosBufPush marks when an element is pushed into the buffer.
var HookPosBufPush = &hooking.HookPos{Name: "Buffer Push"}

// HookPosBufPop marks when an element is popped from the buffer.
var HookPosBufPop = &hooking.HookPos{Name: "Buffer Pop"}

// A Buffer is a fifo queue for anything
type Buffer interface {
	kernel.Entity
	kernel.StateHolder
	hooking.Hookable

	// Pushed is raised synchronously after every push. The instance payload
	// is the pushed element.
	Pushed() *timing.Event

	CanPush() bool
	// Push appends an element. It panics if the buffer is full and returns
	// the first error of the Pushed handlers.
	Push(e any) error
	Pop() any
	Peek() any
	Capacity() int
	Size() int
	Clear()
}

// BufferBuilder is a builder for Buffer.
type BufferBuilder struct {
	kernel   *kernel.Kernel
	capacity int
}

// MakeBufferBuilder returns a builder for unbounded buffers.
func MakeBufferBuilder() BufferBuilder {
	return BufferBuilder{capacity: -1}
}

// WithKernel defines the kernel the buffer is registered to.
func (b BufferBuilder) WithKernel(k *kernel.Kernel) BufferBuilder {
	b.kernel = k
	return b
}

// WithCapacity defines the capacity of the buffer. A negative capacity means
// unbounded.
func (b BufferBuilder) WithCapacity(capacity int) BufferBuilder {
	b.capacity = capacity
	return b
}

// Build builds a new Buffer and registers it as an entity.
func (b BufferBuilder) Build(name string) (Buffer, error) {
	if b.kernel == nil {
		return nil, simerr.Argument("buffer %s: no kernel", name)
	}

	buffer := &bufferImpl{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		capacity:     b.capacity,
		kernel:       b.kernel,
		pushed:       timing.NewEvent(name + ".Pushed"),
	}

	err := b.kernel.AddEntity(buffer)
	if err != nil {
		return nil, err
	}

	return buffer, nil
}

type bufferImpl struct {
	*hooking.HookableBase

	name     string
	elements []any
	capacity int
	kernel   *kernel.Kernel
	pushed   *timing.Event
}

// ID returns the name of the buffer.
func (b *bufferImpl) ID() string {
	return b.name
}

func (b *bufferImpl) Reset() error {
	b.elements = nil
	return nil
}

// SaveState returns a copy of the buffered elements.
func (b *bufferImpl) SaveState() (any, error) {
	return append([]any(nil), b.elements...), nil
}

// LoadState replaces the buffered elements.
func (b *bufferImpl) LoadState(state any) error {
	elements, ok := state.([]any)
	if !ok {
		return simerr.Argument("buffer %s: unexpected state %T", b.name, state)
	}

	b.elements = append([]any(nil), elements...)

	return nil
}

func (b *bufferImpl) Pushed() *timing.Event {
	return b.pushed
}

func (b *bufferImpl) CanPush() bool {
	return b.capacity < 0 || len(b.elements) < b.capacity
}

func (b *bufferImpl) Push(e any) error {
	if !b.CanPush() {
		logrus.WithField("buffer", b.name).Panic("buffer overflow")
	}

	b.elements = append(b.elements, e)

	if b.NumHooks() > 0 {
		b.InvokeHook(hooking.HookCtx{
			Domain: b,
			Pos:    HookPosBufPush,
			Now:    b.kernel.Now(),
			Item:   e,
		})
	}

	_, err := b.pushed.RaiseNew(timing.WithArgs(e))

	return err
}

func (b *bufferImpl) Pop() any {
	if len(b.elements) == 0 {
		return nil
	}

	e := b.elements[0]
	b.elements = b.elements[1:]

	if b.NumHooks() > 0 {
		b.InvokeHook(hooking.HookCtx{
			Domain: b,
			Pos:    HookPosBufPop,
			Now:    b.kernel.Now(),
			Item:   e,
		})
	}

	return e
}

func (b *bufferImpl) Peek() any {
	if len(b.elements) == 0 {
		return nil
	}

	return b.elements[0]
}

func (b *bufferImpl) Capacity() int {
	return b.capacity
}

func (b *bufferImpl) Size() int {
	return len(b.elements)
}

func (b *bufferImpl) Clear() {
	b.elements = nil
}
