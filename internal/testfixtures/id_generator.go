package testfixtures

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces deterministic identifiers. The default format is
// "prefix-N"; NewUUIDGenerator yields name-based UUIDs shaped like the ids
// the server issues.
type IDGenerator struct {
	mu      sync.Mutex
	counter uint64
	format  func(n uint64) string
}

// NewIDGenerator yields prefix-1, prefix-2, ... An empty prefix means "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{format: func(n uint64) string {
		return fmt.Sprintf("%s-%d", prefix, n)
	}}
}

// NewUUIDGenerator yields version 5 UUIDs derived from seed and a counter,
// so the same seed always produces the same sequence.
func NewUUIDGenerator(seed string) *IDGenerator {
	namespace := uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed))
	return &IDGenerator{format: func(n uint64) string {
		return uuid.NewSHA1(namespace, []byte(strconv.FormatUint(n, 10))).String()
	}}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return g.format(g.counter)
}

// NextFunc adapts the generator to the idGenerator func() string that
// services take.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Reset restarts the sequence.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.counter = 0
	g.mu.Unlock()
}
