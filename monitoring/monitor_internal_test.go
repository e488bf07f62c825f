package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/queueing"
	"github.com/sarchlab/flowsim/sim/resource"
	"github.com/sarchlab/flowsim/sim/timing"
)

type sampleEntity struct {
	Name    string
	Counter int
}

func (e *sampleEntity) ID() string {
	return e.Name
}

func (e *sampleEntity) Reset() error {
	e.Counter = 0
	return nil
}

func newBuffer(k *kernel.Kernel, name string, capacity, size int) queueing.Buffer {
	b, err := queueing.MakeBufferBuilder().
		WithKernel(k).
		WithCapacity(capacity).
		Build(name)
	Expect(err).NotTo(HaveOccurred())

	for i := 0; i < size; i++ {
		Expect(b.Push(i)).To(Succeed())
	}

	return b
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		k      *kernel.Kernel
		router http.Handler
	)

	request := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, v any) {
		Expect(json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	BeforeEach(func() {
		k = kernel.New(kernel.WithName("test"))
		Expect(k.Reset()).To(Succeed())

		m = NewMonitor()
		m.RegisterKernel(k)
		router = m.Router()
	})

	It("should report the kernel state", func() {
		_, err := k.AddEventAt(3, timing.NewEvent("e"))
		Expect(err).NotTo(HaveOccurred())
		Expect(k.Run(2)).To(Succeed())

		rec := request(http.MethodGet, "/api/state")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp stateRsp
		decode(rec, &rsp)
		Expect(rsp.Name).To(Equal("test"))
		Expect(rsp.State).To(Equal(kernel.TimeElapsed.String()))
		Expect(rsp.Now).To(Equal(2.0))
		Expect(*rsp.NextEvent).To(Equal(3.0))
	})

	It("should report the time", func() {
		rec := request(http.MethodGet, "/api/now")

		Expect(rec.Body.String()).To(MatchJSON(`{"now": 0}`))
	})

	It("should pause the kernel", func() {
		rec := request(http.MethodPost, "/api/pause")

		Expect(rec.Code).To(Equal(http.StatusOK))

		e := timing.NewEvent("e")
		_, err := k.AddEventAt(1, e)
		Expect(err).NotTo(HaveOccurred())
		Expect(k.Run(5)).To(Succeed())
		Expect(k.State()).To(Equal(kernel.Paused))
	})

	It("should only accept control requests as POST", func() {
		for _, path := range []string{
			"/api/pause", "/api/interrupt", "/api/continue", "/api/stop", "/api/run/3",
		} {
			rec := request(http.MethodGet, path)

			Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed), path)
		}

		Expect(k.State()).To(Equal(kernel.Stopped))
	})

	It("should not serve assets for unknown API paths", func() {
		rec := request(http.MethodGet, "/api/nothing")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should refuse to continue a stopped kernel", func() {
		rec := request(http.MethodPost, "/api/continue")

		Expect(rec.Code).To(Equal(http.StatusConflict))
	})

	It("should run to a target", func() {
		_, err := k.AddEventAt(10, timing.NewEvent("e"))
		Expect(err).NotTo(HaveOccurred())

		rec := request(http.MethodPost, "/api/run/4")

		Expect(rec.Code).To(Equal(http.StatusAccepted))
		Eventually(k.State).Should(Equal(kernel.TimeElapsed))
		Expect(k.Now()).To(Equal(4.0))
	})

	It("should reject a malformed target", func() {
		rec := request(http.MethodPost, "/api/run/soon")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should list and serialize entities", func() {
		Expect(k.AddEntity(&sampleEntity{Name: "e1", Counter: 3})).To(Succeed())

		rec := request(http.MethodGet, "/api/entities")
		Expect(rec.Body.String()).To(MatchJSON(`["e1"]`))

		rec = request(http.MethodGet, "/api/entity/e1")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Counter"))

		rec = request(http.MethodGet, "/api/entity/e2")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should serialize a field", func() {
		Expect(k.AddEntity(&sampleEntity{Name: "e1", Counter: 3})).To(Succeed())

		q := url.PathEscape(`{"entity_id":"e1","field_name":"Counter"}`)
		rec := request(http.MethodGet, "/api/field/"+q)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("3"))
	})

	It("should list buffers", func() {
		m.RegisterBuffer(newBuffer(k, "b1", 10, 2))
		m.RegisterBuffer(newBuffer(k, "b2", 2, 1))

		rec := request(http.MethodGet, "/api/buffers?sort=level")

		var rsp []bufferRsp
		decode(rec, &rsp)
		Expect(rsp).To(Equal([]bufferRsp{{"b1", 2, 10}, {"b2", 1, 2}}))

		rec = request(http.MethodGet, "/api/buffers?limit=1")

		decode(rec, &rsp)
		Expect(rsp).To(Equal([]bufferRsp{{"b2", 1, 2}}))
	})

	It("should reject a bad sort method", func() {
		rec := request(http.MethodGet, "/api/buffers?sort=name")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should report resource pools", func() {
		pool := resource.NewManager("desks")
		pool.Initialize(k)
		Expect(pool.Manage(resource.NewResource("d1", "desk"))).To(Succeed())
		Expect(pool.Manage(resource.NewResource("d2", "desk"))).To(Succeed())
		_, err := pool.SeizeN("someone", "desk", 1)
		Expect(err).NotTo(HaveOccurred())
		m.RegisterResourceManager(pool)

		rec := request(http.MethodGet, "/api/pools")

		var rsp []poolRsp
		decode(rec, &rsp)
		Expect(rsp).To(Equal([]poolRsp{{"desks", 2, 1, 0}}))
	})

	It("should report 404 without a pacer", func() {
		rec := request(http.MethodGet, "/api/pacer")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("items", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)
		other := m.CreateProgressBar("other", 1)
		m.CompleteProgressBar(other)

		rec := request(http.MethodGet, "/api/progress")

		var rsp []progressRsp
		decode(rec, &rsp)
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].ID).To(Equal("bar-1"))
		Expect(rsp[0].Finished).To(Equal(uint64(2)))
		Expect(rsp[0].InProgress).To(Equal(uint64(1)))
	})

	It("should serve the web page", func() {
		rec := request(http.MethodGet, "/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})
})

var _ = Describe("Buffer selection", func() {
	It("should page through buffers", func() {
		k := kernel.New()
		Expect(k.Reset()).To(Succeed())

		buffers := []queueing.Buffer{
			newBuffer(k, "a", 4, 1),
			newBuffer(k, "b", 4, 3),
			newBuffer(k, "c", -1, 2),
		}

		selected := sortAndSelectBuffers(buffers, "percent", 2, 1)

		Expect(selected).To(HaveLen(2))
		Expect(selected[0].ID()).To(Equal("a"))
		Expect(selected[1].ID()).To(Equal("c"))
		Expect(sortAndSelectBuffers(buffers, "level", 0, 5)).To(BeEmpty())
	})
})

var _ = Describe("SimTimeProgress", func() {
	It("should follow the simulated time", func() {
		k := kernel.New()
		Expect(k.Reset()).To(Succeed())

		m := NewMonitor()
		progress := NewSimTimeProgress(m, "run", 10)
		k.AcceptHook(progress)

		_, err := k.AddEventAt(3.5, timing.NewEvent("e"))
		Expect(err).NotTo(HaveOccurred())
		_, err = k.AddEventAt(20, timing.NewEvent("late"))
		Expect(err).NotTo(HaveOccurred())

		Expect(k.Run(4)).To(Succeed())
		Expect(progress.Bar().Finished).To(Equal(uint64(4)))

		Expect(k.Run(10)).To(Succeed())
		Expect(progress.Bar().Total).To(Equal(uint64(10)))
		Expect(progress.Bar().Finished).To(Equal(uint64(10)))
	})
})
