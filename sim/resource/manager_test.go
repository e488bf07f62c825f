package resource

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/simerr"
)

type orderer struct {
	id string
}

func (o *orderer) ID() string   { return o.id }
func (o *orderer) Reset() error { return nil }

var _ = Describe("Manager", func() {
	var (
		k      *kernel.Kernel
		m      *Manager
		worker *Resource
		low    *orderer
		high   *orderer
	)

	BeforeEach(func() {
		k = kernel.New()
		Expect(k.Reset()).To(Succeed())

		m = NewManager("pool")
		m.Initialize(k)

		worker = NewResource("w1", "worker")
		low = &orderer{id: "low"}
		high = &orderer{id: "high"}
	})

	It("should reject seizing before initialization", func() {
		_, err := NewManager("other").SeizeN(low, "worker", 1)

		Expect(errors.Is(err, simerr.ErrInitialization)).To(BeTrue())
	})

	It("should reject non-positive counts", func() {
		_, err := m.SeizeN(low, "worker", 0)
		Expect(errors.Is(err, simerr.ErrArgument)).To(BeTrue())

		_, err = m.SeizeGroup(low, map[string]int{"worker": 1, "tool": -1})
		Expect(errors.Is(err, simerr.ErrArgument)).To(BeTrue())

		_, err = m.SeizeGroup(low, nil)
		Expect(errors.Is(err, simerr.ErrArgument)).To(BeTrue())

		Expect(m.Reservations()).To(BeEmpty())
	})

	It("should hand a free resource to a reservation at once", func() {
		Expect(m.Manage(worker)).To(Succeed())

		res, err := m.SeizeN(low, "worker", 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Finished()).To(BeTrue())
		Expect(res.Collected()).To(BeTrue())
		Expect(worker.IsFree()).To(BeFalse())
		Expect(worker.Holder()).To(BeIdenticalTo(low))
	})

	It("should serve the higher priority first", func() {
		r10, err := m.SeizeN(low, "worker", 1, WithPriority(10))
		Expect(err).NotTo(HaveOccurred())
		r20, err := m.SeizeN(high, "worker", 1, WithPriority(20))
		Expect(err).NotTo(HaveOccurred())

		Expect(m.Manage(worker)).To(Succeed())

		Expect(r20.Collected()).To(BeTrue())
		Expect(r10.Finished()).To(BeFalse())
		Expect(r10.Missing("worker")).To(Equal(1))
		Expect(worker.Holder()).To(BeIdenticalTo(high))

		worker.Release()

		Expect(r10.Collected()).To(BeTrue())
		Expect(worker.Holder()).To(BeIdenticalTo(low))
	})

	It("should serve equal priorities in submission order", func() {
		first, _ := m.SeizeN(low, "worker", 1, WithPriority(5))
		second, _ := m.SeizeN(high, "worker", 1, WithPriority(5))

		Expect(m.Manage(worker)).To(Succeed())

		Expect(first.Collected()).To(BeTrue())
		Expect(second.Collected()).To(BeFalse())
	})

	It("should honor acceptance predicates", func() {
		other := NewResource("w2", "worker")
		Expect(m.Manage(worker)).To(Succeed())
		Expect(m.Manage(other)).To(Succeed())

		res, err := m.SeizeN(low, "worker", 1,
			WithAcceptance("worker", func(r *Resource) bool {
				return r.ID() == "w2"
			}))

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Resources("worker")).To(Equal([]*Resource{other}))
		Expect(worker.IsFree()).To(BeTrue())
	})

	It("should seize one specific resource", func() {
		other := NewResource("w2", "worker")
		Expect(m.Manage(worker)).To(Succeed())
		Expect(m.Manage(other)).To(Succeed())

		res, err := m.SeizeOne(low, other)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Collected()).To(BeTrue())
		Expect(other.Holder()).To(BeIdenticalTo(low))
		Expect(worker.IsFree()).To(BeTrue())

		_, err = m.SeizeOne(low, NewResource("x", "worker"))
		Expect(errors.Is(err, simerr.ErrArgument)).To(BeTrue())
	})

	It("should wait for a complete group", func() {
		tool := NewResource("t1", "tool")
		Expect(m.Manage(worker)).To(Succeed())

		res, err := m.SeizeGroup(low, map[string]int{"worker": 1, "tool": 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Finished()).To(BeFalse())
		Expect(res.Missing("tool")).To(Equal(1))
		Expect(res.MissingTotal()).To(Equal(1))
		Expect(worker.IsBooked()).To(BeTrue())
		Expect(worker.IsFree()).To(BeFalse())

		Expect(m.Manage(tool)).To(Succeed())

		Expect(res.Collected()).To(BeTrue())
		Expect(res.All()).To(ConsistOf(worker, tool))
	})

	It("should restart matching after a declined pickup", func() {
		Expect(m.Manage(worker)).To(Succeed())
		worker.free = false
		worker.holder = &orderer{id: "previous"}

		declined, _ := m.SeizeN(high, "worker", 1, WithPriority(9),
			WithPickup(func(*Reservation) bool { return false }))
		accepted, _ := m.SeizeN(low, "worker", 1, WithPriority(1))

		worker.Release()

		Expect(declined.Finished()).To(BeTrue())
		Expect(declined.Collected()).To(BeFalse())
		Expect(accepted.Collected()).To(BeTrue())
		Expect(worker.Holder()).To(BeIdenticalTo(low))
		Expect(m.Reservations()).To(BeEmpty())
	})

	It("should let a pickup callback seize again", func() {
		Expect(m.Manage(worker)).To(Succeed())
		worker.free = false
		worker.holder = &orderer{id: "previous"}

		var next *Reservation
		_, err := m.SeizeN(low, "worker", 1, WithPickup(func(r *Reservation) bool {
			next, _ = m.SeizeN(high, "worker", 1)
			return true
		}))
		Expect(err).NotTo(HaveOccurred())

		worker.Release()

		Expect(next).NotTo(BeNil())
		Expect(next.Finished()).To(BeFalse())

		worker.Release()

		Expect(next.Collected()).To(BeTrue())
	})

	It("should cancel a reservation", func() {
		tool := NewResource("t1", "tool")
		Expect(m.Manage(worker)).To(Succeed())
		res, _ := m.SeizeGroup(low, map[string]int{"worker": 1, "tool": 1})

		Expect(res.Cancel()).To(BeTrue())
		Expect(res.Cancel()).To(BeFalse())

		Expect(worker.IsFree()).To(BeTrue())
		Expect(m.Manage(tool)).To(Succeed())
		Expect(tool.IsFree()).To(BeTrue())
	})

	Context("managing", func() {
		It("should reject a resource managed twice", func() {
			Expect(m.Manage(worker)).To(Succeed())

			Expect(errors.Is(m.Manage(worker), simerr.ErrArgument)).To(BeTrue())
			Expect(errors.Is(NewManager("b").Manage(worker), simerr.ErrArgument)).
				To(BeTrue())
		})

		It("should ignore unknown resources", func() {
			Expect(m.UnManage(worker, false)).To(Succeed())
			Expect(m.UnManage(worker, true)).To(Succeed())
		})

		It("should keep a booked resource unless forced", func() {
			Expect(m.Manage(worker)).To(Succeed())
			res, _ := m.SeizeGroup(low, map[string]int{"worker": 1, "tool": 1})

			Expect(m.UnManage(worker, false)).To(Succeed())
			Expect(m.Resources()).To(ContainElement(worker))

			err := m.UnManage(worker, true)
			Expect(errors.Is(err, simerr.ErrArgument)).To(BeTrue())
			Expect(res.Missing("worker")).To(Equal(0))
		})

		It("should release a free resource", func() {
			Expect(m.Manage(worker)).To(Succeed())

			Expect(m.UnManage(worker, false)).To(Succeed())

			Expect(m.Resources()).To(BeEmpty())
			Expect(worker.Manager()).To(BeNil())
		})
	})

	Context("with stealing", func() {
		BeforeEach(func() {
			m = NewManager("stealing", WithStealing())
			m.Initialize(k)
		})

		It("should take a booked resource from a lower priority", func() {
			tool := NewResource("t1", "tool")
			Expect(m.Manage(worker)).To(Succeed())

			loser, _ := m.SeizeGroup(low,
				map[string]int{"worker": 1, "tool": 1}, WithPriority(1))
			Expect(worker.IsBooked()).To(BeTrue())

			taker, _ := m.SeizeGroup(high,
				map[string]int{"worker": 1, "tool": 1}, WithPriority(5))

			Expect(loser.Missing("worker")).To(Equal(1))
			Expect(loser.Finished()).To(BeFalse())
			Expect(loser.Cancelled()).To(BeFalse())
			Expect(taker.Missing("worker")).To(Equal(0))

			Expect(m.Manage(tool)).To(Succeed())

			Expect(taker.Collected()).To(BeTrue())
			Expect(loser.Finished()).To(BeFalse())
		})

		It("should not steal when the taker rejects the resource", func() {
			Expect(m.Manage(worker)).To(Succeed())
			loser, _ := m.SeizeGroup(low,
				map[string]int{"worker": 1, "tool": 1}, WithPriority(1))

			_, _ = m.SeizeN(high, "worker", 1, WithPriority(5),
				WithAcceptance("worker", func(*Resource) bool { return false }))

			Expect(loser.Missing("worker")).To(Equal(0))
		})

		It("should not steal from a higher priority", func() {
			Expect(m.Manage(worker)).To(Succeed())
			holder, _ := m.SeizeGroup(high,
				map[string]int{"worker": 1, "tool": 1}, WithPriority(5))

			_, _ = m.SeizeN(low, "worker", 1, WithPriority(1))

			Expect(holder.Missing("worker")).To(Equal(0))
		})

		It("should force unmanage a booked resource", func() {
			Expect(m.Manage(worker)).To(Succeed())
			res, _ := m.SeizeGroup(low, map[string]int{"worker": 1, "tool": 1})

			Expect(m.UnManage(worker, true)).To(Succeed())

			Expect(res.Missing("worker")).To(Equal(1))
			Expect(m.Resources()).To(BeEmpty())
			Expect(worker.IsFree()).To(BeTrue())
		})
	})

	It("should reset with the kernel", func() {
		Expect(m.Manage(worker)).To(Succeed())
		_, _ = m.SeizeN(low, "worker", 1)
		pending, _ := m.SeizeN(high, "worker", 1)

		Expect(k.Reset()).To(Succeed())

		Expect(worker.IsFree()).To(BeTrue())
		Expect(worker.Holder()).To(BeNil())
		Expect(m.Reservations()).To(BeEmpty())
		Expect(pending.Cancelled()).To(BeTrue())
	})

	It("should save and load resource state", func() {
		Expect(k.AddEntity(low)).To(Succeed())
		Expect(m.Manage(worker)).To(Succeed())
		_, _ = m.SeizeN(low, "worker", 1)

		state, err := m.SaveState()
		Expect(err).NotTo(HaveOccurred())

		Expect(m.Reset()).To(Succeed())
		Expect(worker.IsFree()).To(BeTrue())

		Expect(m.LoadState(state)).To(Succeed())

		Expect(worker.IsFree()).To(BeFalse())
		Expect(worker.Holder()).To(BeIdenticalTo(low))
	})
})
