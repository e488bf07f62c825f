package statemachine

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

var _ = Describe("Machine", func() {
	var (
		m *Machine
		k *kernel.Kernel
	)

	BeforeEach(func() {
		var err error
		m, err = New("server", []string{"Idle", "Busy", "Broken"}, "Idle")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Allow("Idle", "Busy")).To(Succeed())
		Expect(m.Allow("Busy", "Idle", "Broken")).To(Succeed())

		k = kernel.New()
		Expect(k.Reset()).To(Succeed())
		m.Attach(k)
	})

	It("should reject bad definitions", func() {
		_, err := New("x", []string{"A"}, "B")
		Expect(errors.Is(err, simerr.ErrArgument)).To(BeTrue())

		_, err = New("x", []string{"A", "A"}, "A")
		Expect(errors.Is(err, simerr.ErrArgument)).To(BeTrue())

		Expect(errors.Is(m.Allow("Idle", "Gone"), simerr.ErrArgument)).To(BeTrue())
	})

	It("should refuse transitions outside the whitelist", func() {
		ok, err := m.SwitchState("Broken")

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(m.Current()).To(Equal("Idle"))
		Expect(m.History()).To(BeEmpty())
	})

	It("should notify handlers in priority order", func() {
		var seen []string
		m.OnTransition(func(t Transition) error {
			seen = append(seen, "late:"+t.To)
			return nil
		})
		m.OnTransition(func(t Transition) error {
			seen = append(seen, "early:"+t.From)
			return nil
		}, timing.WithHandlerPriority(1))

		ok, err := m.SwitchState("Busy")

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(m.Current()).To(Equal("Busy"))
		Expect(m.Previous()).To(Equal("Idle"))
		Expect(seen).To(Equal([]string{"early:Idle", "late:Busy"}))
	})

	It("should switch silently", func() {
		called := false
		m.OnTransition(func(Transition) error {
			called = true
			return nil
		})

		Expect(m.SwitchStateSilently("Busy")).To(BeTrue())
		Expect(called).To(BeFalse())
		Expect(m.History()).To(HaveLen(1))
	})

	It("should return handler errors", func() {
		boom := errors.New("boom")
		m.OnTransition(func(Transition) error { return boom })

		ok, err := m.SwitchState("Busy")

		Expect(ok).To(BeTrue())
		Expect(err).To(MatchError(boom))
	})

	It("should schedule transitions", func() {
		_, err := m.ScheduleSwitch(2, "Busy")
		Expect(err).NotTo(HaveOccurred())
		_, err = m.ScheduleSwitch(3, "Idle")
		Expect(err).NotTo(HaveOccurred())

		Expect(k.RunToEnd()).To(Succeed())

		Expect(m.Current()).To(Equal("Idle"))
		Expect(m.History()).To(Equal([]Transition{
			{From: "Idle", To: "Busy", Time: 2},
			{From: "Busy", To: "Idle", Time: 3},
		}))
	})

	It("should check the whitelist when a scheduled transition is due", func() {
		_, err := m.ScheduleSwitch(1, "Broken")
		Expect(err).NotTo(HaveOccurred())

		Expect(k.RunToEnd()).To(Succeed())

		Expect(m.Current()).To(Equal("Idle"))
	})

	It("should need a kernel to schedule", func() {
		detached, err := New("d", []string{"A"}, "A")
		Expect(err).NotTo(HaveOccurred())

		_, err = detached.ScheduleSwitch(1, "A")

		Expect(errors.Is(err, simerr.ErrInitialization)).To(BeTrue())
	})

	It("should reset with the kernel", func() {
		_, _ = m.SwitchState("Busy")

		Expect(k.Reset()).To(Succeed())

		Expect(m.Current()).To(Equal("Idle"))
		Expect(m.Previous()).To(BeEmpty())
		Expect(m.History()).To(BeEmpty())
	})
})
