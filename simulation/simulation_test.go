package simulation

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flowsim/datarecording"
	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/resource"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

var _ = Describe("Simulation", func() {
	var (
		simulation *Simulation
		tick       *timing.Event
		ticks      []timing.VTimeInSec
	)

	scheduleTicks := func(k *kernel.Kernel, times ...timing.VTimeInSec) {
		for _, t := range times {
			_, err := k.AddEventAt(t, tick, timing.WithLog())
			Expect(err).NotTo(HaveOccurred())
		}
	}

	BeforeEach(func() {
		ticks = nil
		tick = timing.NewEvent("tick")
		tick.Subscribe(func(inst *timing.EventInstance) error {
			ticks = append(ticks, inst.Time())
			return nil
		})
	})

	AfterEach(func() {
		if simulation != nil {
			simulation.Terminate()
			simulation = nil
		}
	})

	It("should reject a monitor port without monitoring", func() {
		_, err := MakeBuilder().
			WithoutMonitoring().
			WithMonitorPort(8080).
			Build()

		Expect(err).To(MatchError(simerr.ErrArgument))
	})

	It("should reject a bad real-time speed", func() {
		_, err := MakeBuilder().
			WithoutMonitoring().
			WithoutRecording().
			WithRealTime(time.Millisecond, 0).
			Build()

		Expect(err).To(MatchError(simerr.ErrArgument))
	})

	It("should build a reset kernel", func() {
		var err error
		simulation, err = MakeBuilder().
			WithoutMonitoring().
			WithoutRecording().
			WithName("sim").
			WithSeed(42).
			WithNonStochasticMode().
			Build()
		Expect(err).NotTo(HaveOccurred())

		k := simulation.Kernel()
		Expect(k.Initialized()).To(BeTrue())
		Expect(k.Name()).To(Equal("sim"))
		Expect(k.Seed()).To(Equal(int64(42)))
		Expect(k.NonStochasticMode()).To(BeTrue())
		Expect(simulation.ID()).NotTo(BeEmpty())
		Expect(simulation.DataRecorder()).To(BeNil())
		Expect(simulation.Monitor()).To(BeNil())
		Expect(simulation.Pacer()).To(BeNil())
	})

	It("should run until the given time", func() {
		var err error
		simulation, err = MakeBuilder().
			WithoutMonitoring().
			WithoutRecording().
			Build()
		Expect(err).NotTo(HaveOccurred())

		scheduleTicks(simulation.Kernel(), 1, 2, 3)

		Expect(simulation.Run(context.Background(), 2.5)).To(Succeed())

		Expect(ticks).To(Equal([]timing.VTimeInSec{1, 2}))
		Expect(simulation.Kernel().Now()).To(Equal(2.5))
	})

	It("should record logged events", func() {
		dir := GinkgoT().TempDir()
		output := filepath.Join(dir, "trace")

		var err error
		simulation, err = MakeBuilder().
			WithoutMonitoring().
			WithOutputFileName(output).
			Build()
		Expect(err).NotTo(HaveOccurred())

		scheduleTicks(simulation.Kernel(), 1, 2)
		_, err = simulation.Kernel().AddEventAt(3, timing.NewEvent("quiet"))
		Expect(err).NotTo(HaveOccurred())

		Expect(simulation.Run(context.Background(), timing.Infinity)).To(Succeed())
		simulation.Terminate()
		simulation = nil

		Expect(output + ".sqlite3").To(BeARegularFile())

		reader, err := datarecording.OpenTrace(output + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		_, total, err := reader.Read(context.Background(),
			datarecording.EventTableName, datarecording.Page{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2))
	})

	It("should pace the run in real time", func() {
		var err error
		simulation, err = MakeBuilder().
			WithoutMonitoring().
			WithoutRecording().
			WithRealTime(time.Millisecond, 1000).
			Build()
		Expect(err).NotTo(HaveOccurred())

		scheduleTicks(simulation.Kernel(), 0.5, 1.5, 10)

		Expect(simulation.Run(context.Background(), 2)).To(Succeed())

		Expect(ticks).To(Equal([]timing.VTimeInSec{0.5, 1.5}))
		Expect(simulation.Kernel().Now()).To(BeNumerically(">=", 2))
		Expect(simulation.Pacer().Stats().Iterations).To(BeNumerically(">=", 2))
	})

	It("should serve the monitor", func() {
		var err error
		simulation, err = MakeBuilder().
			WithoutRecording().
			Build()
		Expect(err).NotTo(HaveOccurred())

		pool := resource.NewManager("pool")
		simulation.RegisterResourceManager(pool)
		Expect(pool.Initialized()).To(BeTrue())

		rsp, err := http.Get(simulation.Monitor().URL() + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(MatchJSON(`{"now": 0}`))
	})

	It("should stop when the context is cancelled", func() {
		var err error
		simulation, err = MakeBuilder().
			WithoutMonitoring().
			WithoutRecording().
			Build()
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		again := timing.NewEvent("again")
		again.Subscribe(func(*timing.EventInstance) error {
			if simulation.Kernel().Now() >= 5 {
				cancel()
			}

			_, err := simulation.Kernel().AddEvent(1, again)
			return err
		})
		_, err = simulation.Kernel().AddEventAt(0, again)
		Expect(err).NotTo(HaveOccurred())

		Expect(simulation.Run(ctx, timing.Infinity)).To(Succeed())

		Expect(simulation.Kernel().State()).To(Equal(kernel.Stopped))
		Expect(simulation.Kernel().Now()).To(BeNumerically(">=", 5))
	})
})

var _ = AfterSuite(func() {
	matches, _ := filepath.Glob("flowsim_*.sqlite3")
	for _, m := range matches {
		os.Remove(m)
	}
})
