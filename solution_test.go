package cpctt

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolutionKeyOrdering(t *testing.T) {
	feasibleCheap := solutionKey{violations: 0, cost: 3}
	feasibleDear := solutionKey{violations: 0, cost: 9}
	slightlyBroken := solutionKey{violations: 1, cost: 0}
	veryBroken := solutionKey{violations: 4, cost: 0}

	assert.True(t, feasibleCheap.improves(feasibleDear))
	assert.False(t, feasibleDear.improves(feasibleCheap))
	assert.True(t, feasibleDear.improves(slightlyBroken))
	assert.True(t, slightlyBroken.improves(veryBroken))

	// infeasible states with equal violations do not compare on cost
	a := solutionKey{violations: 2, cost: 1}
	b := solutionKey{violations: 2, cost: 100}
	assert.False(t, a.improves(b))
	assert.False(t, b.improves(a))
	assert.True(t, a.atLeastAsGood(b))
	assert.True(t, b.atLeastAsGood(a))

	// among feasible states, lateral moves are at least as good
	assert.True(t, feasibleCheap.atLeastAsGood(feasibleCheap))
	assert.False(t, feasibleDear.atLeastAsGood(feasibleCheap))
}

func TestAssignmentWriteFormat(t *testing.T) {
	in := mustECTT(t, compactnessECTT)
	a := Evaluate(in, []int{0, 1})

	var buf bytes.Buffer
	require.NoError(t, a.Write(&buf))
	assert.Equal(t, "c1 r1 0 0\nc2 r1 0 1\n", buf.String())
}

func TestAssignmentWriteJSON(t *testing.T) {
	in := mustECTT(t, compactnessECTT)
	a := Evaluate(in, []int{0, 2})

	var buf bytes.Buffer
	require.NoError(t, a.WriteJSON(&buf))

	var summary map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))
	assert.Equal(t, 0, summary["duplicates"])
	assert.Equal(t, 0, summary["conflicts"])
	assert.Equal(t, 2, summary["curriculum_compactness_cost"])
	assert.Equal(t, 4, summary["cost"])
}

func TestAssignmentWriteDebugListsComponents(t *testing.T) {
	in := mustECTT(t, compactnessECTT)
	a := Evaluate(in, []int{0, 2})

	var buf bytes.Buffer
	a.WriteDebug(&buf)
	out := buf.String()
	assert.Contains(t, out, "Room capacity")
	assert.Contains(t, out, "Curr. compact.")
	assert.Contains(t, out, "Tot.")
}
