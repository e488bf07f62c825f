package task

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/simerr"
)

type fixedTime float64

func (f fixedTime) Now() float64 { return float64(f) }

var _ = Describe("Sequencer", func() {
	var (
		s      *Sequencer
		logger *logrus.Logger
		hook   *test.Hook
	)

	BeforeEach(func() {
		logger, hook = test.NewNullLogger()
		s = NewSequencer("server", fixedTime(4))
	})

	It("should run one task at a time", func() {
		a := New("a", WithLogger(logger))
		b := New("b", WithLogger(logger))

		Expect(s.Enqueue(a)).To(Succeed())
		Expect(s.Enqueue(b)).To(Succeed())

		Expect(s.Active()).To(BeIdenticalTo(a))
		Expect(s.Pending()).To(Equal([]*Task{b}))
		Expect(b.Started()).To(BeFalse())

		a.Finish()

		Expect(s.Active()).To(BeIdenticalTo(b))
		Expect(s.Pending()).To(BeEmpty())

		b.Finish()

		Expect(s.Active()).To(BeNil())
	})

	It("should assign unique IDs", func() {
		a := New("work")
		b := New("work")

		Expect(s.Enqueue(a)).To(Succeed())
		Expect(s.Enqueue(b)).To(Succeed())

		Expect(a.ID()).To(Equal("server-1"))
		Expect(b.ID()).To(Equal("server-2"))
	})

	It("should keep a declined task at the head until retried", func() {
		ready := false
		a := New("a", WithStartFunc(func() bool { return ready }))
		b := New("b")

		Expect(s.Enqueue(a)).To(Succeed())
		Expect(s.Enqueue(b)).To(Succeed())

		Expect(s.Active()).To(BeNil())
		Expect(s.Pending()).To(Equal([]*Task{a, b}))

		ready = true
		s.Retry()

		Expect(s.Active()).To(BeIdenticalTo(a))
	})

	It("should not start a task out of turn", func() {
		a := New("a", WithLogger(logger))
		b := New("b", WithLogger(logger))
		Expect(s.Enqueue(a)).To(Succeed())
		Expect(s.Enqueue(b)).To(Succeed())

		Expect(b.Start()).To(BeFalse())

		Expect(s.Active()).To(BeIdenticalTo(a))
		Expect(hook.LastEntry().Message).To(Equal("task started out of turn"))
	})

	It("should reject tasks owned elsewhere", func() {
		a := New("a")
		Expect(NewSequencer("other", nil).Enqueue(a)).To(Succeed())

		err := s.Enqueue(a)

		Expect(errors.Is(err, simerr.ErrInvalidOperation)).To(BeTrue())
	})

	It("should invoke task hooks", func() {
		tracer := hooking.NewBusyTimeTracer(fixedTime(4), nil)
		counter := hooking.NewTaskCountTracer(nil)
		s.AcceptHook(tracer)
		s.AcceptHook(counter)

		a := New("serve")
		Expect(s.Enqueue(a)).To(Succeed())

		Expect(tracer.Busy()).To(BeTrue())
		Expect(counter.Started("serve")).To(Equal(uint64(1)))

		a.Finish()

		Expect(tracer.Busy()).To(BeFalse())
		Expect(counter.Ended("serve")).To(Equal(uint64(1)))
	})

	It("should reset", func() {
		a := New("a")
		b := New("b")
		Expect(s.Enqueue(a)).To(Succeed())
		Expect(s.Enqueue(b)).To(Succeed())

		Expect(s.Reset()).To(Succeed())

		Expect(s.Active()).To(BeNil())
		Expect(s.Pending()).To(BeEmpty())

		c := New("c")
		Expect(s.Enqueue(c)).To(Succeed())
		Expect(c.ID()).To(Equal("server-1"))
	})
})
