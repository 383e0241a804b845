package cpctt

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// The constrain policies applicable when building a neighbor.
type ConstrainPolicy int

const (
	// POLICY_LOOSE admits lateral moves: while infeasible, conflicts may not
	// grow and duplicate roomslots must strictly decrease; once feasible, the
	// cost is capped at the reference (plus slack).
	POLICY_LOOSE ConstrainPolicy = 0

	// POLICY_STRICT requires strict improvement, no lateral moves.
	POLICY_STRICT ConstrainPolicy = 1

	// POLICY_SA is loose with a temperature-dependent slack.
	POLICY_SA ConstrainPolicy = 2

	// POLICY_NONE posts nothing.
	POLICY_NONE ConstrainPolicy = 3
)

// LnsSpace augments the timetabling model with the operations large
// neighborhood search needs: partially pinning a fresh space to a reference
// solution, and posting dominance constraints relative to it.
type LnsSpace struct {
	*Model
}

// NewLnsSpace wraps a model.
func NewLnsSpace(m *Model) *LnsSpace { return &LnsSpace{Model: m} }

// Clone clones the underlying space.
func (c *LnsSpace) Clone() *LnsSpace { return &LnsSpace{Model: c.Model.Clone()} }

// withSpace views another space (typically a solved descendant) through the
// same variable handles.
func (c *LnsSpace) withSpace(s *Space) *LnsSpace {
	m := *c.Model
	m.S = s
	return &LnsSpace{Model: &m}
}

// RelaxableVars is the number of decision variables a relaxation may free.
func (c *LnsSpace) RelaxableVars() int { return len(c.Roomslot) }

// Relax pins a subset of target's roomslot variables to the values they hold
// in the receiver (which must be solved), leaving at least budget of them
// free. Which variables stay free is decided by the active violations while
// infeasible and by the cost decomposition once feasible; on a feasible
// receiver, random trades the cost-directed choice for pure diversification
// (it has no effect while infeasible). Returns the number of free
// variables, which can exceed budget when resolving a conflict drags in its
// whole period.
func (c *LnsSpace) Relax(target *LnsSpace, budget int, random bool, rng *rand.Rand) int {
	L := c.In.TotalLectures()
	free := make([]bool, L)
	freed := 0

	switch {
	case c.Violations() > 0:
		if c.S.Value(c.Conflicts) > 0 {
			freed = c.relaxConflicts(target, free, rng)
		} else {
			c.relaxDuplicates(free)
		}
	case random:
		// pure diversification: the random top-up below does all the work
	default:
		freed = c.relaxCostComponent(free, budget, rng)
	}

	// top up with uniformly random frozen lectures until budget more
	// variables are free than the directed pass produced
	total := freed + budget
	if total > L {
		total = L
	}
	count := freed
	for _, l := range rng.Perm(L) {
		if count >= total {
			break
		}
		if !free[l] {
			free[l] = true
			count++
		}
	}

	// everything else keeps its value in the reference solution
	for l := 0; l < L; l++ {
		if !free[l] {
			target.S.Post(pin{x: target.Roomslot[l], v: c.S.Value(c.Roomslot[l])})
		}
	}
	return count
}

// relaxConflicts frees one random conflicting lecture together with every
// lecture sharing its period from the same or a conflicting course, and has
// the target insist that this particular conflict gets resolved.
func (c *LnsSpace) relaxConflicts(target *LnsSpace, free []bool, rng *rand.Rand) int {
	L := c.In.TotalLectures()
	var conflicting []int
	for l := 0; l < L; l++ {
		if c.S.Value(c.ConflictingLectures[l]) > 0 {
			conflicting = append(conflicting, l)
		}
	}
	if len(conflicting) == 0 {
		return 0
	}

	toFix := conflicting[rng.Intn(len(conflicting))]
	free[toFix] = true
	freed := 1
	target.PostHardConflictsFor(toFix)

	course := c.In.CourseOf(toFix)
	period := c.S.Value(c.Period[toFix])
	for l := 0; l < L; l++ {
		if l == toFix || free[l] || c.S.Value(c.Period[l]) != period {
			continue
		}
		other := c.In.CourseOf(l)
		if other == course || c.In.Conflict(course, other) {
			free[l] = true
			freed++
		}
	}
	return freed
}

// relaxDuplicates is deliberately a no-op: duplicate roomslots are rare
// enough that the random top-up resolves them, and a directed pass never
// earned its keep. The guard structure stays so the search behaves the same.
func (c *LnsSpace) relaxDuplicates(free []bool) {}

// relaxCostComponent draws one cost component, with probability proportional
// to its weighted contribution to the objective, and frees the variables
// associated with that component until the budget is consumed.
func (c *LnsSpace) relaxCostComponent(free []bool, budget int, rng *rand.Rand) int {
	weights := []float64{
		float64(c.S.Value(c.RoomCapacityCost) * roomCapacityWeight),
		float64(c.S.Value(c.RoomStabilityCost) * roomStabilityWeight),
		float64(c.S.Value(c.CurriculumCompactnessCost) * curriculumCompactnessWeight),
		float64(c.S.Value(c.MinWorkingDaysCost) * minWorkingDaysWeight),
	}
	picker := sampleuv.NewWeighted(weights, rand.NewSource(rng.Uint64()))
	component, ok := picker.Take()
	if !ok {
		// zero cost: nothing to direct the relaxation at
		return 0
	}

	switch component {
	case 0:
		return c.relaxRoomCapacity(free, budget)
	case 1:
		return c.relaxRoomStability(free, budget, rng)
	case 2:
		return c.relaxCompactness(free, budget, rng)
	default:
		return c.relaxWorkingDays(free, budget, rng)
	}
}

func (c *LnsSpace) relaxRoomCapacity(free []bool, budget int) int {
	freed := 0
	for l := 0; l < c.In.TotalLectures() && budget >= 1; l++ {
		if c.S.Value(c.RoomCapacityDeviation[l]) > 0 && !free[l] {
			free[l] = true
			freed++
			budget--
		}
	}
	return freed
}

// relaxRoomStability frees whole courses at a time: moving only part of a
// course between rooms cannot reduce the number of rooms it uses.
func (c *LnsSpace) relaxRoomStability(free []bool, budget int, rng *rand.Rand) int {
	var unstable []int
	for course := range c.In.Courses {
		if c.S.Value(c.RoomStabilityDeviation[course]) > 0 {
			unstable = append(unstable, course)
		}
	}
	shuffle(unstable, rng)

	freed := 0
	for _, course := range unstable {
		if budget < 1 {
			break
		}
		// the budget check stays outside the lecture loop to avoid
		// splitting a course
		for k := 0; k < c.In.Courses[course].Lectures; k++ {
			l := c.In.StartOf(course) + k
			if !free[l] {
				free[l] = true
				freed++
				budget--
			}
		}
	}
	return freed
}

func (c *LnsSpace) relaxCompactness(free []bool, budget int, rng *rand.Rand) int {
	var isolatedLectures []int
	for l := 0; l < c.In.TotalLectures(); l++ {
		if !free[l] && c.S.Value(c.LectureCompactness[l]) != 0 {
			isolatedLectures = append(isolatedLectures, l)
		}
	}
	shuffle(isolatedLectures, rng)

	freed := 0
	for _, l := range isolatedLectures {
		if budget < 1 {
			break
		}
		free[l] = true
		freed++
		budget--
	}
	return freed
}

func (c *LnsSpace) relaxWorkingDays(free []bool, budget int, rng *rand.Rand) int {
	freed := 0
	for course := range c.In.Courses {
		if budget < 1 {
			break
		}
		if c.S.Value(c.MinWorkingDaysDeviation[course]) == 0 {
			continue
		}
		lectures := make([]int, c.In.Courses[course].Lectures)
		for k := range lectures {
			lectures[k] = c.In.StartOf(course) + k
		}
		shuffle(lectures, rng)
		for _, l := range lectures {
			if budget < 1 {
				break
			}
			if !free[l] {
				free[l] = true
				freed++
				budget--
			}
		}
	}
	return freed
}

// Constrain posts the dominance relation of the given policy relative to a
// reference solution onto the receiver.
func (n *LnsSpace) Constrain(ref *LnsSpace, policy ConstrainPolicy, delta int) {
	if policy == POLICY_NONE {
		return
	}
	strict := policy == POLICY_STRICT

	if ref.Violations() > 0 {
		// while infeasible, push the two violation classes down:
		// conflicts weakly (strictly under the strict policy), duplicate
		// roomslots strictly
		if ref.S.Value(ref.Conflicts) == 0 {
			n.PostHardConflicts()
		} else {
			bound := ref.S.Value(ref.Conflicts)
			if strict {
				bound--
			}
			n.S.Post(atMost{x: n.Conflicts, v: bound})
		}
		if ref.S.Value(ref.Duplicates) == ref.In.TotalLectures() {
			n.PostHardDuplicates()
		} else {
			n.S.Post(atLeast{x: n.Duplicates, v: ref.S.Value(ref.Duplicates) + 1})
		}
		return
	}

	n.PostHardConstraints()
	bound := ref.S.Value(ref.Z) + delta
	if strict {
		bound = ref.S.Value(ref.Z) - 1
	}
	n.S.Post(atMost{x: n.Z, v: bound})
}

func shuffle(xs []int, rng *rand.Rand) {
	rng.Shuffle(len(xs), func(i, j int) {
		xs[i], xs[j] = xs[j], xs[i]
	})
}
