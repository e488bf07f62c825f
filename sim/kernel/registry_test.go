package kernel

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/flowsim/sim/timing"
)

type counterEntity struct {
	id    string
	k     *Kernel
	count int
	times []VTimeInSec
	evt   *timing.Event
}

func newCounterEntity(id string, k *Kernel) *counterEntity {
	c := &counterEntity{id: id, k: k, evt: timing.NewEvent(id + ".Tick")}
	c.evt.Subscribe(c.tick)

	return c
}

func (c *counterEntity) ID() string {
	return c.id
}

func (c *counterEntity) Reset() error {
	c.count = 0
	c.times = nil

	_, err := c.k.AddEvent(c.k.Stream(c.id).Exponential(1), c.evt)

	return err
}

func (c *counterEntity) tick(*timing.EventInstance) error {
	c.count++
	c.times = append(c.times, c.k.Now())

	if c.count >= 5 {
		return nil
	}

	_, err := c.k.AddEvent(c.k.Stream(c.id).Exponential(1), c.evt)

	return err
}

func (c *counterEntity) SaveState() (any, error) {
	return c.count, nil
}

func (c *counterEntity) LoadState(state any) error {
	n, ok := state.(int)
	if !ok {
		return errors.New("bad state")
	}

	c.count = n

	return nil
}

var _ = Describe("Registry", func() {
	var (
		mockCtrl *gomock.Controller
		k        *Kernel
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		k = New(WithSeed(1))
		Expect(k.Reset()).To(Succeed())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should keep registration order and replace duplicates in place", func() {
		a := NewMockEntity(mockCtrl)
		a.EXPECT().ID().Return("a").AnyTimes()
		b := NewMockEntity(mockCtrl)
		b.EXPECT().ID().Return("b").AnyTimes()
		a2 := NewMockEntity(mockCtrl)
		a2.EXPECT().ID().Return("a").AnyTimes()

		Expect(k.AddEntity(a)).To(Succeed())
		Expect(k.AddEntity(b)).To(Succeed())
		Expect(k.AddEntity(a2)).To(Succeed())

		Expect(k.Entities()).To(Equal([]Entity{a2, b}))

		found, ok := k.Entity("a")
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(a2))

		_, ok = k.Entity("c")
		Expect(ok).To(BeFalse())
	})

	It("should enumerate entities by type", func() {
		mock := NewMockEntity(mockCtrl)
		mock.EXPECT().ID().Return("m").AnyTimes()
		c := newCounterEntity("c", k)

		Expect(k.AddEntity(mock)).To(Succeed())
		Expect(k.AddEntity(c)).To(Succeed())

		Expect(EntitiesOf[*counterEntity](k)).To(Equal([]*counterEntity{c}))
		Expect(EntitiesOf[StateHolder](k)).To(HaveLen(1))
	})

	It("should reset entities, then other components, in order", func() {
		a := NewMockEntity(mockCtrl)
		a.EXPECT().ID().Return("a").AnyTimes()
		b := NewMockEntity(mockCtrl)
		b.EXPECT().ID().Return("b").AnyTimes()
		r := NewMockResettable(mockCtrl)

		Expect(k.AddEntity(a)).To(Succeed())
		Expect(k.AddEntity(b)).To(Succeed())
		k.AddResettable(r)
		k.AddResettable(r)

		gomock.InOrder(
			a.EXPECT().Reset().Return(nil),
			b.EXPECT().Reset().Return(nil),
			r.EXPECT().Reset().Return(nil),
		)

		Expect(k.Reset(WithSeed(7))).To(Succeed())
		Expect(k.Seed()).To(Equal(int64(7)))
	})

	It("should report a failing entity reset", func() {
		a := NewMockEntity(mockCtrl)
		a.EXPECT().ID().Return("a").AnyTimes()
		a.EXPECT().Reset().Return(errors.New("broken"))

		Expect(k.AddEntity(a)).To(Succeed())

		err := k.Reset()

		Expect(err).To(MatchError(ContainSubstring("resetting entity a")))
	})
})

var _ = Describe("Reproducibility", func() {
	runOnce := func(k *Kernel) map[string][]VTimeInSec {
		out := make(map[string][]VTimeInSec)
		for _, e := range EntitiesOf[*counterEntity](k) {
			out[e.ID()] = e.times
		}

		return out
	}

	build := func(seed int64, ids ...string) *Kernel {
		k := New(WithSeed(seed))
		Expect(k.Reset()).To(Succeed())

		for _, id := range ids {
			Expect(k.AddEntity(newCounterEntity(id, k))).To(Succeed())
		}

		Expect(k.Reset()).To(Succeed())
		Expect(k.RunToEnd()).To(Succeed())

		return k
	}

	It("should produce identical runs for the same seed", func() {
		k1 := build(42, "x", "y")
		k2 := build(42, "x", "y")

		Expect(runOnce(k1)).To(Equal(runOnce(k2)))
		Expect(k1.ProcessedEvents()).To(Equal(uint64(10)))
	})

	It("should not depend on entity creation order", func() {
		k1 := build(42, "x", "y")
		k2 := build(42, "y", "x")

		Expect(runOnce(k1)).To(Equal(runOnce(k2)))
	})

	It("should differ for another seed", func() {
		k1 := build(42, "x")
		k2 := build(43, "x")

		Expect(runOnce(k1)).NotTo(Equal(runOnce(k2)))
	})

	It("should repeat a run after reset", func() {
		k := build(42, "x", "y")
		first := runOnce(k)

		Expect(k.Reset()).To(Succeed())
		Expect(k.Now()).To(Equal(0.0))
		Expect(k.ProcessedEvents()).To(Equal(uint64(0)))
		Expect(k.RunToEnd()).To(Succeed())

		Expect(runOnce(k)).To(Equal(first))
	})

	It("should use the non-stochastic mode on reset", func() {
		k := New(WithSeed(42))
		Expect(k.Reset(WithNonStochasticMode(true))).To(Succeed())
		c := newCounterEntity("x", k)
		Expect(k.AddEntity(c)).To(Succeed())
		Expect(k.Reset()).To(Succeed())

		Expect(k.RunToEnd()).To(Succeed())

		Expect(k.NonStochasticMode()).To(BeTrue())
		Expect(c.times).To(Equal([]VTimeInSec{1, 2, 3, 4, 5}))
	})
})
