package cpctt

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// SearchStats are cumulative counters of one or more tree searches.
type SearchStats struct {
	Nodes     int64
	Failures  int64
	Solutions int64
}

// Merge folds the counters of another search into this one.
func (st *SearchStats) Merge(o SearchStats) {
	st.Nodes += o.Nodes
	st.Failures += o.Failures
	st.Solutions += o.Solutions
}

type searchOptions struct {
	branch  brancher
	mid     SearchMiddleware
	workers int

	// stop at the first solution instead of exhausting the tree
	firstOnly bool
}

// runSearch explores the binary search tree rooted at root. With cost >= 0 it
// runs branch-and-bound on that variable: every solution bounds the remaining
// tree and the best one is returned. With cost < 0 it is a plain DFS.
// A nil space is returned when no solution was found before ctx expired.
//
// Worker goroutines share a LIFO of open nodes; with workers == 1 the
// exploration order is deterministic.
func runSearch(ctx context.Context, root *Space, cost IntVar, opt searchOptions) (*Space, SearchStats) {
	if opt.workers <= 0 {
		panic("number of workers may not be lower than one")
	}
	if opt.mid == nil {
		opt.mid = dummyMiddleware{}
	}

	e := &searcher{
		cost:    cost,
		opt:     opt,
		workers: opt.workers,
	}
	e.cond = sync.NewCond(&e.mu)
	e.stack = []*Space{root.Clone()}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// wake blocked workers when the deadline hits
	go func() {
		<-ctx.Done()
		e.mu.Lock()
		e.closed = true
		e.cond.Broadcast()
		e.mu.Unlock()
	}()

	g := new(errgroup.Group)
	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			e.work(ctx)
			return nil
		})
	}
	g.Wait()
	cancel()

	return e.best, e.stats
}

type searcher struct {
	mu   sync.Mutex
	cond *sync.Cond

	stack   []*Space
	idle    int
	workers int
	closed  bool

	cost     IntVar
	hasBound bool
	bound    int // maximum cost value still admitted

	best  *Space
	stats SearchStats
	opt   searchOptions
}

func (e *searcher) work(ctx context.Context) {
	for {
		node, hasBound, bound, ok := e.next()
		if !ok {
			return
		}

		if hasBound {
			node.removeAbove(e.cost, bound)
		}
		status := node.Status()

		e.mu.Lock()
		e.stats.Nodes++
		switch status {
		case StatusFailed:
			e.stats.Failures++
			e.mu.Unlock()
			e.opt.mid.Decision(decisionFailed)

		case StatusSolved:
			e.stats.Solutions++
			improved := false
			if e.cost < 0 {
				e.best = node
				improved = true
				e.closed = true
			} else {
				z := node.Value(e.cost)
				if !e.hasBound || z <= e.bound {
					e.best = node
					e.hasBound = true
					e.bound = z - 1
					improved = true
				}
				if e.opt.firstOnly {
					e.closed = true
				}
			}
			e.cond.Broadcast()
			e.mu.Unlock()
			e.opt.mid.Decision(decisionSolved)
			if improved {
				e.opt.mid.Decision(decisionIncumbent)
			}

		case StatusBranch:
			x, v := e.opt.branch.pick(node)
			right := node.Clone()
			right.Post(neqConst{x: x, v: v})
			node.Post(pin{x: x, v: v})
			// LIFO: the equality child is explored first
			e.stack = append(e.stack, right, node)
			e.cond.Broadcast()
			e.mu.Unlock()
			e.opt.mid.Decision(decisionBranched)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// next pops an open node, blocking while other workers may still produce
// work. The bound is snapshotted under the same lock so a node is never
// explored against a stale incumbent.
func (e *searcher) next() (node *Space, hasBound bool, bound int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if e.closed {
			return nil, false, 0, false
		}
		if n := len(e.stack); n > 0 {
			node = e.stack[n-1]
			e.stack = e.stack[:n-1]
			return node, e.hasBound, e.bound, true
		}
		e.idle++
		if e.idle == e.workers {
			e.closed = true
			e.cond.Broadcast()
			return nil, false, 0, false
		}
		e.cond.Wait()
		e.idle--
	}
}
