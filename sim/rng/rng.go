// Package rng provides deterministic, isolated random number streams.
//
// Every stream is seeded from a master seed and the stream identifier, so a
// stream produces the same sequence whatever order streams are created or
// used in.
package rng

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
)

// DeriveSeed returns the seed of the stream with the given identifier:
// master XOR fnv1a64(id).
func DeriveSeed(id string, master int64) int64 {
	return master ^ fnv1a64(id)
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))

	return int64(h.Sum64())
}

// A Stream is a random number generator bound to an identifier.
//
// In antithetic mode, uniform draws u are replaced by 1-u. In non-stochastic
// mode the stream keeps drawing numbers, but distribution code consulting
// NonStochastic should return expected values instead.
//
// Streams are not safe for concurrent use.
type Stream struct {
	id            string
	direct        bool
	seed          int64
	antithetic    bool
	nonStochastic bool
	rand          *rand.Rand
}

// NewStream creates a stream seeded from the master seed.
func NewStream(id string, master int64, antithetic, nonStochastic bool) *Stream {
	s := &Stream{id: id}
	s.Reset(master, antithetic, nonStochastic)

	return s
}

// Reset reseeds the stream. After a reset, the stream repeats the sequence
// it produced after the last reset with the same arguments.
func (s *Stream) Reset(master int64, antithetic, nonStochastic bool) {
	s.seed = master
	if !s.direct {
		s.seed = DeriveSeed(s.id, master)
	}

	s.antithetic = antithetic
	s.nonStochastic = nonStochastic
	s.rand = rand.New(rand.NewSource(s.seed))
}

// ID returns the identifier of the stream.
func (s *Stream) ID() string {
	return s.id
}

// Seed returns the derived seed of the stream.
func (s *Stream) Seed() int64 {
	return s.seed
}

// Antithetic tells if uniform draws are mirrored.
func (s *Stream) Antithetic() bool {
	return s.antithetic
}

// NonStochastic tells if distributions should return expected values.
func (s *Stream) NonStochastic() bool {
	return s.nonStochastic
}

// Float64 returns a uniform number in [0, 1), or in (0, 1] when antithetic.
func (s *Stream) Float64() float64 {
	u := s.rand.Float64()
	if s.antithetic {
		return 1 - u
	}

	return u
}

// Intn returns a uniform integer in [0, n). It panics if n <= 0.
func (s *Stream) Intn(n int) int {
	v := s.rand.Intn(n)
	if s.antithetic {
		return n - 1 - v
	}

	return v
}

// ExpFloat64 returns an exponentially distributed number with rate 1. It is
// drawn by inversion of Float64, so antithetic streams produce the mirrored
// quantile.
func (s *Stream) ExpFloat64() float64 {
	v := 1 - s.Float64()
	if v <= 0 {
		v = math.SmallestNonzeroFloat64
	}

	return -math.Log(v)
}

// NormFloat64 returns a standard normally distributed number. Antithetic
// streams mirror it around 0.
func (s *Stream) NormFloat64() float64 {
	v := s.rand.NormFloat64()
	if s.antithetic {
		return -v
	}

	return v
}

// Exponential draws from an exponential distribution with the given mean. In
// non-stochastic mode it returns the mean.
func (s *Stream) Exponential(mean float64) float64 {
	if s.nonStochastic {
		return mean
	}

	return s.ExpFloat64() * mean
}

// NewMasterStream creates a stream seeded with the master seed itself.
func NewMasterStream(master int64, antithetic, nonStochastic bool) *Stream {
	s := &Stream{id: "master", direct: true}
	s.Reset(master, antithetic, nonStochastic)

	return s
}

// A Partition owns the streams of one simulation: a master stream and
// sub-streams keyed by identifier.
type Partition struct {
	master        int64
	antithetic    bool
	nonStochastic bool
	masterStream  *Stream
	streams       map[string]*Stream
}

// NewPartition creates a partition without sub-streams.
func NewPartition(master int64, antithetic, nonStochastic bool) *Partition {
	return &Partition{
		master:        master,
		antithetic:    antithetic,
		nonStochastic: nonStochastic,
		masterStream:  NewMasterStream(master, antithetic, nonStochastic),
		streams:       make(map[string]*Stream),
	}
}

// Master returns the stream seeded with the master seed.
func (p *Partition) Master() *Stream {
	return p.masterStream
}

// Stream returns the stream with the given identifier. The same identifier
// always returns the same stream.
func (p *Partition) Stream(id string) *Stream {
	if s, ok := p.streams[id]; ok {
		return s
	}

	s := NewStream(id, p.master, p.antithetic, p.nonStochastic)
	p.streams[id] = s

	return s
}

// IDs returns the identifiers of all streams, sorted.
func (p *Partition) IDs() []string {
	ids := make([]string, 0, len(p.streams))
	for id := range p.streams {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Reset reseeds the master stream, then every sub-stream.
func (p *Partition) Reset(master int64, antithetic, nonStochastic bool) {
	p.master = master
	p.antithetic = antithetic
	p.nonStochastic = nonStochastic

	p.masterStream.Reset(master, antithetic, nonStochastic)

	for _, id := range p.IDs() {
		p.streams[id].Reset(master, antithetic, nonStochastic)
	}
}
