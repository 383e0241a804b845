package cpctt

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Decisions that can be made at a node of the search tree.
type searchDecision string

const (
	decisionFailed    searchDecision = "dead end"
	decisionSolved    searchDecision = "solution"
	decisionIncumbent searchDecision = "new incumbent"
	decisionBranched  searchDecision = "branched"
)

// SearchMiddleware receives the decision taken at every explored node.
// This hook should not contain algorithm business logic to ensure loose
// coupling; it exists for tracing and experimentation.
type SearchMiddleware interface {
	Decision(searchDecision)
}

type dummyMiddleware struct{}

func (d dummyMiddleware) Decision(searchDecision) {}

// DecisionCounter tallies decisions per kind. Safe for concurrent workers.
type DecisionCounter struct {
	mu     sync.Mutex
	counts map[searchDecision]int64
}

func NewDecisionCounter() *DecisionCounter {
	return &DecisionCounter{counts: make(map[searchDecision]int64)}
}

func (c *DecisionCounter) Decision(d searchDecision) {
	c.mu.Lock()
	c.counts[d]++
	c.mu.Unlock()
}

// Count returns how often a decision has been recorded.
func (c *DecisionCounter) Count(d searchDecision) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[d]
}

// debugTracer forwards incumbent improvements to a logger. Branch and
// failure decisions are far too hot to log individually, so they are only
// counted and emitted on Flush.
type debugTracer struct {
	log *logrus.Entry

	mu       sync.Mutex
	branched int64
	failed   int64
}

func newDebugTracer(log *logrus.Entry) *debugTracer {
	return &debugTracer{log: log}
}

func (t *debugTracer) Decision(d searchDecision) {
	switch d {
	case decisionIncumbent:
		t.log.Debug("new incumbent in sub-search")
	case decisionBranched:
		t.mu.Lock()
		t.branched++
		t.mu.Unlock()
	case decisionFailed:
		t.mu.Lock()
		t.failed++
		t.mu.Unlock()
	}
}

// Flush logs the accumulated node counters and resets them.
func (t *debugTracer) Flush() {
	t.mu.Lock()
	branched, failed := t.branched, t.failed
	t.branched, t.failed = 0, 0
	t.mu.Unlock()
	t.log.WithFields(logrus.Fields{
		"branched": branched,
		"failed":   failed,
	}).Debug("sub-search finished")
}
