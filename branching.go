package cpctt

import (
	"sync"

	"golang.org/x/exp/rand"
)

// selectable branching strategies
type BranchStrategy int

const (
	// BRANCH_DEGREE_MIN picks the unassigned variable with the highest
	// constraint degree and tries its smallest value first. Good for
	// driving towards a feasible assignment quickly.
	BRANCH_DEGREE_MIN BranchStrategy = 0

	// BRANCH_RANDOM picks both variable and value uniformly at random.
	// Seeded per sub-search, so successive searches are reproducibly
	// distinct.
	BRANCH_RANDOM BranchStrategy = 1
)

// A brancher selects the next (variable, value) decision for a space at
// StatusBranch. pick is only called when at least one of the brancher's
// variables is unassigned.
type brancher interface {
	pick(s *Space) (IntVar, int)
}

// newBrancher builds a brancher over the given decision variables.
// The seed is only used by BRANCH_RANDOM.
func newBrancher(strategy BranchStrategy, vars []IntVar, seed uint64) brancher {
	switch strategy {
	case BRANCH_DEGREE_MIN:
		return &degreeMinBrancher{vars: vars}
	case BRANCH_RANDOM:
		return &randomBrancher{vars: vars, rng: rand.New(rand.NewSource(seed))}
	default:
		panic("provided branching strategy unknown")
	}
}

type degreeMinBrancher struct {
	vars []IntVar
}

func (b *degreeMinBrancher) pick(s *Space) (IntVar, int) {
	best := IntVar(-1)
	bestDegree := -1
	for _, x := range b.vars {
		if s.Fixed(x) {
			continue
		}
		if d := s.degree(x); d > bestDegree {
			best = x
			bestDegree = d
		}
	}
	if best < 0 {
		panic("pick called with all variables assigned")
	}
	return best, s.Min(best)
}

type randomBrancher struct {
	vars []IntVar

	// guarded: parallel workers share one brancher per sub-search
	mu  sync.Mutex
	rng *rand.Rand
}

func (b *randomBrancher) pick(s *Space) (IntVar, int) {
	open := make([]IntVar, 0, len(b.vars))
	for _, x := range b.vars {
		if !s.Fixed(x) {
			open = append(open, x)
		}
	}
	if len(open) == 0 {
		panic("pick called with all variables assigned")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	x := open[b.rng.Intn(len(open))]
	v := s.doms[x].nth(b.rng.Intn(s.Size(x)))
	return x, v
}
