package cpctt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solveOptimal runs an exhaustive branch-and-bound on the hard-constrained
// model and returns the optimal state.
func solveOptimal(t *testing.T, in *Instance) (*Model, *Assignment) {
	t.Helper()
	root := NewLnsSpace(NewModel(in))
	require.NotEqual(t, StatusFailed, root.S.Status())

	work := root.Clone()
	work.PostHardConstraints()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sol, _ := runSearch(ctx, work.S, work.Z, searchOptions{
		branch:  newBrancher(BRANCH_DEGREE_MIN, work.Roomslot, 0),
		workers: 1,
	})
	require.NotNil(t, sol, "expected a feasible optimum within the test budget")

	solved := work.withSpace(sol).Model
	return solved, newAssignment(solved)
}

// the trivial instance has exactly one placement, at zero cost
func TestModelTrivialInstance(t *testing.T) {
	in := mustECTT(t, trivialECTT)
	m, a := solveOptimal(t, in)

	assert.Equal(t, 0, a.Cost)
	assert.Equal(t, []int{0}, a.Roomslot)
	assert.True(t, a.Feasible())
	assert.Zero(t, m.Violations())
}

// the big room fits everyone: no capacity, stability or working-days cost
func TestModelCapacityInstance(t *testing.T) {
	in := mustECTT(t, capacityECTT)
	_, a := solveOptimal(t, in)

	assert.True(t, a.Feasible())
	assert.Equal(t, 0, a.RoomCapacityCost)
	assert.Equal(t, 0, a.RoomStabilityCost)
	assert.Equal(t, 0, a.MinWorkingDaysCost)
	assert.Equal(t, 0, a.CurriculumCompactnessCost)
	assert.Equal(t, 0, a.Cost)

	// both lectures in the big room, on distinct days
	big := in.RoomIndex("rBig")
	assert.Equal(t, big, a.RoomOf(0))
	assert.Equal(t, big, a.RoomOf(1))
	assert.NotEqual(t, a.PeriodOf(0)/in.PeriodsPerDay, a.PeriodOf(1)/in.PeriodsPerDay)
}

// the optimum places the curriculum's two lectures in adjacent periods
func TestModelCompactnessInstance(t *testing.T) {
	in := mustECTT(t, compactnessECTT)
	_, a := solveOptimal(t, in)

	assert.True(t, a.Feasible())
	assert.Equal(t, 0, a.CurriculumCompactnessCost)
	assert.Equal(t, 0, a.Cost)

	gap := a.PeriodOf(0) - a.PeriodOf(1)
	if gap < 0 {
		gap = -gap
	}
	assert.Equal(t, 1, gap, "the two lectures must be adjacent")
}

// two courses sharing a teacher must end up in distinct periods
func TestModelTeacherConflictInstance(t *testing.T) {
	in := mustECTT(t, teacherECTT)
	_, a := solveOptimal(t, in)

	assert.True(t, a.Feasible())
	assert.Equal(t, 0, a.Cost)
	assert.NotEqual(t, a.PeriodOf(0), a.PeriodOf(1))
}

// derived variables must agree with the decision variable on every solved
// state
func TestModelDerivationCorrectness(t *testing.T) {
	in := mustECTT(t, playgroundECTT)
	m, _ := solveOptimal(t, in)

	rooms := len(in.Rooms)
	for l := 0; l < in.TotalLectures(); l++ {
		rs := m.S.Value(m.Roomslot[l])
		assert.Equal(t, rs/rooms, m.S.Value(m.Period[l]))
		assert.Equal(t, rs%rooms, m.S.Value(m.Room[l]))
		assert.Equal(t, m.S.Value(m.Period[l])/in.PeriodsPerDay, m.S.Value(m.Day[l]))
		assert.Equal(t, m.S.Value(m.Period[l])%in.PeriodsPerDay, m.S.Value(m.Timeslot[l]))
	}
}

// the objective must equal the weighted sum of the four components
func TestModelCostAdditivity(t *testing.T) {
	in := mustECTT(t, playgroundECTT)
	m, a := solveOptimal(t, in)

	weighted := roomCapacityWeight*a.RoomCapacityCost +
		roomStabilityWeight*a.RoomStabilityCost +
		minWorkingDaysWeight*a.MinWorkingDaysCost +
		curriculumCompactnessWeight*a.CurriculumCompactnessCost
	assert.Equal(t, weighted, a.Cost)
	assert.Equal(t, a.Cost, m.S.Value(m.Z))
}

// a solved hard-constrained state realizes the feasibility definition
func TestModelFeasibilityDefinition(t *testing.T) {
	in := mustECTT(t, playgroundECTT)
	m, a := solveOptimal(t, in)

	assert.Equal(t, in.TotalLectures(), m.S.Value(m.Duplicates))
	assert.Equal(t, 0, m.S.Value(m.Conflicts))
	for l := 0; l < in.TotalLectures(); l++ {
		assert.True(t, in.Available(in.CourseOf(l), a.PeriodOf(l)))
	}
	// intra-course periods strictly ordered
	for c := range in.Courses {
		start := in.StartOf(c)
		for k := 1; k < in.Courses[c].Lectures; k++ {
			assert.Less(t, a.PeriodOf(start+k-1), a.PeriodOf(start+k))
		}
	}
}

// reordering courses in the file must not change the reachable optimum
func TestModelSymmetryBreakingIdempotence(t *testing.T) {
	_, a1 := solveOptimal(t, mustECTT(t, compactnessECTT))
	_, a2 := solveOptimal(t, mustECTT(t, compactnessSwappedECTT))
	assert.Equal(t, a1.Cost, a2.Cost)
}

// the evaluator and the CP model must agree on a complete assignment
func TestModelAgreesWithEvaluator(t *testing.T) {
	in := mustECTT(t, playgroundECTT)
	_, a := solveOptimal(t, in)

	e := Evaluate(in, a.Roomslot)
	assert.Equal(t, a.Duplicates, e.Duplicates)
	assert.Equal(t, a.Conflicts, e.Conflicts)
	assert.Equal(t, a.RoomCapacityCost, e.RoomCapacityCost)
	assert.Equal(t, a.RoomStabilityCost, e.RoomStabilityCost)
	assert.Equal(t, a.MinWorkingDaysCost, e.MinWorkingDaysCost)
	assert.Equal(t, a.CurriculumCompactnessCost, e.CurriculumCompactnessCost)
	assert.Equal(t, a.Cost, e.Cost)
}
