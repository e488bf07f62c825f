// Package id provides deterministic identifiers for simulation objects.
package id

import (
	"strconv"
	"sync/atomic"
)

// IDGenerator generates identifiers. Identifiers handed out by one generator
// never repeat until the generator is reset.
type IDGenerator interface {
	Generate() string
	Reset()
}

// NewIDGenerator returns a generator that produces "1", "2", "3", ...
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewPrefixedIDGenerator returns a generator that produces "prefix-1",
// "prefix-2", ...
func NewPrefixedIDGenerator(prefix string) IDGenerator {
	return &sequentialIDGenerator{prefix: prefix + "-"}
}

type sequentialIDGenerator struct {
	prefix string
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	id := g.prefix + strconv.FormatUint(idNumber, 10)

	return id
}

func (g *sequentialIDGenerator) Reset() {
	atomic.StoreUint64(&g.nextID, 0)
}
