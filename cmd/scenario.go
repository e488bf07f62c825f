package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/sarchlab/flowsim/config"
	"github.com/sarchlab/flowsim/sim/model"
	"github.com/sarchlab/flowsim/sim/queueing"
	"github.com/sarchlab/flowsim/sim/resource"
	"github.com/sarchlab/flowsim/simulation"
)

// network holds the entities built from a scenario.
type network struct {
	sources []*model.Source
	servers []*model.Server
	sinks   []*model.Sink
}

func buildNetwork(
	s *simulation.Simulation,
	scenario *config.Scenario,
) (*network, error) {
	k := s.Kernel()
	n := &network{}

	queues := make(map[string]queueing.Buffer)
	for _, spec := range scenario.Queues {
		capacity := spec.Capacity
		if capacity == 0 {
			capacity = -1
		}

		b, err := queueing.MakeBufferBuilder().
			WithKernel(k).
			WithCapacity(capacity).
			Build(spec.Name)
		if err != nil {
			return nil, err
		}

		queues[spec.Name] = b
		s.RegisterBuffer(b)
	}

	pools := make(map[string]*resource.Manager)
	for _, spec := range scenario.Pools {
		pool, err := buildPool(s, spec)
		if err != nil {
			return nil, err
		}

		pools[spec.Name] = pool
	}

	sinks := make(map[string]*model.Sink)
	for _, name := range scenario.Sinks {
		sink, err := model.NewSink(k, name)
		if err != nil {
			return nil, err
		}

		sinks[name] = sink
		n.sinks = append(n.sinks, sink)
	}

	for _, spec := range scenario.Servers {
		b := model.MakeServerBuilder().
			WithKernel(k).
			WithInput(queues[spec.Input]).
			WithOutput(sinks[spec.Output]).
			WithServiceTime(spec.ServiceTime)

		if spec.Pool != "" {
			b = b.WithResource(pools[spec.Pool], spec.Resource)
		}

		server, err := b.Build(spec.Name)
		if err != nil {
			return nil, err
		}

		n.servers = append(n.servers, server)
	}

	for _, spec := range scenario.Sources {
		opts := []model.SourceOption{
			model.WithInterval(spec.Interval),
			model.WithStartDelay(spec.StartDelay),
			model.WithMaxCount(spec.MaxCount),
		}

		if spec.Output != "" {
			opts = append(opts, model.WithOutput(queues[spec.Output]))
		}

		src, err := model.NewSource(k, spec.Name, opts...)
		if err != nil {
			return nil, err
		}

		n.sources = append(n.sources, src)
	}

	return n, nil
}

func buildPool(
	s *simulation.Simulation,
	spec config.PoolSpec,
) (*resource.Manager, error) {
	var opts []resource.ManagerOption
	if spec.Stealing {
		opts = append(opts, resource.WithStealing())
	}

	opts = append(opts, resource.WithLogger(s.Kernel().Logger()))

	pool := resource.NewManager(spec.Name, opts...)
	s.RegisterResourceManager(pool)

	types := make([]string, 0, len(spec.Resources))
	for typ := range spec.Resources {
		types = append(types, typ)
	}

	sort.Strings(types)

	for _, typ := range types {
		for i := 1; i <= spec.Resources[typ]; i++ {
			r := resource.NewResource(fmt.Sprintf("%s.%s-%d", spec.Name, typ, i), typ)

			if err := pool.Manage(r); err != nil {
				return nil, err
			}
		}
	}

	return pool, nil
}

func (n *network) printSummary(w io.Writer, s *simulation.Simulation) {
	k := s.Kernel()
	now := k.Now()

	fmt.Fprintf(w, "state: %s\n", k.State())
	fmt.Fprintf(w, "time: %g\n", now)
	fmt.Fprintf(w, "events: %d\n", k.ProcessedEvents())

	for _, src := range n.sources {
		fmt.Fprintf(w, "source %s: created %d\n", src.ID(), src.Created())
	}

	for _, srv := range n.servers {
		utilization := 0.0
		if now > 0 {
			utilization = srv.BusyTime() / now
		}

		fmt.Fprintf(w, "server %s: served %d, utilization %.3f\n",
			srv.ID(), srv.Served(), utilization)
	}

	for _, sink := range n.sinks {
		fmt.Fprintf(w, "sink %s: received %d, mean flow time %g\n",
			sink.ID(), sink.Count(), sink.MeanFlowTime())
	}
}
