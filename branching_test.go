package cpctt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegreeMinBrancherPrefersConstrainedVariables(t *testing.T) {
	s := NewSpace()
	free := s.NewVar(0, 5)
	busy := s.NewVar(0, 5)
	other := s.NewVar(0, 5)
	s.Post(less{x: busy, y: other})
	s.Post(neqVar{x: busy, y: other})
	require.Equal(t, StatusBranch, s.Status())

	b := newBrancher(BRANCH_DEGREE_MIN, []IntVar{free, busy}, 0)
	x, v := b.pick(s)
	assert.Equal(t, busy, x)
	assert.Equal(t, s.Min(busy), v)
}

func TestDegreeMinBrancherSkipsAssigned(t *testing.T) {
	s := NewSpace()
	a := s.NewVar(0, 5)
	b := s.NewVar(0, 5)
	s.assign(a, 2)
	require.Equal(t, StatusBranch, s.Status())

	br := newBrancher(BRANCH_DEGREE_MIN, []IntVar{a, b}, 0)
	x, _ := br.pick(s)
	assert.Equal(t, b, x)
}

func TestRandomBrancherIsSeeded(t *testing.T) {
	build := func() *Space {
		s := NewSpace()
		for i := 0; i < 8; i++ {
			s.NewVar(0, 9)
		}
		require.Equal(t, StatusBranch, s.Status())
		return s
	}
	vars := func() []IntVar {
		xs := make([]IntVar, 8)
		for i := range xs {
			xs[i] = IntVar(i)
		}
		return xs
	}

	s1, s2 := build(), build()
	b1 := newBrancher(BRANCH_RANDOM, vars(), 42)
	b2 := newBrancher(BRANCH_RANDOM, vars(), 42)

	// identical seeds must replay the identical decision sequence
	for i := 0; i < 20; i++ {
		x1, v1 := b1.pick(s1)
		x2, v2 := b2.pick(s2)
		assert.Equal(t, x1, x2)
		assert.Equal(t, v1, v2)
	}
}

func TestRandomBrancherPicksWithinDomain(t *testing.T) {
	s := NewSpace()
	x := s.NewVar(0, 9)
	s.remove(x, 0)
	s.remove(x, 5)
	require.Equal(t, StatusBranch, s.Status())

	b := newBrancher(BRANCH_RANDOM, []IntVar{x}, 3)
	for i := 0; i < 50; i++ {
		picked, v := b.pick(s)
		assert.Equal(t, x, picked)
		assert.True(t, s.Has(x, v))
	}
}

func TestNewBrancherUnknownStrategyPanics(t *testing.T) {
	assert.Panics(t, func() {
		newBrancher(BranchStrategy(99), nil, 0)
	})
}
