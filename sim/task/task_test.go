package task

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

var _ = Describe("Task", func() {
	var (
		buf    *bytes.Buffer
		logger *logrus.Logger
	)

	BeforeEach(func() {
		buf = new(bytes.Buffer)
		logger = logrus.New()
		logger.SetOutput(buf)
	})

	It("should start and finish once", func() {
		var calls []string
		t := New("load",
			WithLogger(logger),
			WithFinishFunc(func() { calls = append(calls, "finish") }))
		t.OnStart(func(*Task) { calls = append(calls, "onStart") })
		t.OnFinish(func(*Task) { calls = append(calls, "onFinish") })

		Expect(t.Start()).To(BeTrue())
		Expect(t.Start()).To(BeTrue())
		t.Finish()
		t.Finish()

		Expect(t.Started()).To(BeTrue())
		Expect(t.Finished()).To(BeTrue())
		Expect(calls).To(Equal([]string{"onStart", "onFinish", "finish"}))
		Expect(buf.String()).To(ContainSubstring("task already started"))
		Expect(buf.String()).To(ContainSubstring("task already finished"))
	})

	It("should let the start callback decline", func() {
		accept := false
		onStart := 0
		t := New("load", WithLogger(logger),
			WithStartFunc(func() bool { return accept }))
		t.OnStart(func(*Task) { onStart++ })

		Expect(t.Start()).To(BeFalse())
		Expect(t.Started()).To(BeFalse())
		Expect(onStart).To(Equal(0))

		accept = true

		Expect(t.Start()).To(BeTrue())
		Expect(onStart).To(Equal(1))
	})
})
