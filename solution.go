package cpctt

import (
	"encoding/json"
	"fmt"
	"io"
)

// Assignment is a completed search state extracted from a solved space: one
// roomslot per lecture plus the violation counters and the cost breakdown.
type Assignment struct {
	in *Instance

	// Roomslot holds period*rooms + room for each lecture.
	Roomslot []int

	// Duplicates counts lectures sharing a roomslot with an earlier one;
	// Conflicts counts unresolved period conflicts. Both are zero for a
	// feasible timetable.
	Duplicates int
	Conflicts  int

	RoomCapacityCost          int
	RoomStabilityCost         int
	MinWorkingDaysCost        int
	CurriculumCompactnessCost int

	// Cost is the weighted objective.
	Cost int
}

// newAssignment reads a solved model into a plain value.
func newAssignment(m *Model) *Assignment {
	in := m.In
	a := &Assignment{
		in:                        in,
		Roomslot:                  make([]int, in.TotalLectures()),
		Duplicates:                in.TotalLectures() - m.S.Value(m.Duplicates),
		Conflicts:                 m.S.Value(m.Conflicts),
		RoomCapacityCost:          m.S.Value(m.RoomCapacityCost),
		RoomStabilityCost:         m.S.Value(m.RoomStabilityCost),
		MinWorkingDaysCost:        m.S.Value(m.MinWorkingDaysCost),
		CurriculumCompactnessCost: m.S.Value(m.CurriculumCompactnessCost),
		Cost:                      m.S.Value(m.Z),
	}
	for l := range a.Roomslot {
		a.Roomslot[l] = m.S.Value(m.Roomslot[l])
	}
	return a
}

// Violations is the distance from feasibility.
func (a *Assignment) Violations() int { return a.Duplicates + a.Conflicts }

// Feasible reports whether the assignment satisfies all hard constraints.
func (a *Assignment) Feasible() bool { return a.Violations() == 0 }

// Key returns the lexicographic comparison key (violations, cost).
func (a *Assignment) Key() solutionKey {
	return solutionKey{violations: a.Violations(), cost: a.Cost}
}

// PeriodOf returns the period of lecture l.
func (a *Assignment) PeriodOf(l int) int { return a.Roomslot[l] / len(a.in.Rooms) }

// RoomOf returns the room of lecture l.
func (a *Assignment) RoomOf(l int) int { return a.Roomslot[l] % len(a.in.Rooms) }

// Write emits the solution in the exchange format: one line per lecture with
// course name, room name, day and period within the day.
func (a *Assignment) Write(w io.Writer) error {
	for l, rs := range a.Roomslot {
		period := rs / len(a.in.Rooms)
		room := rs % len(a.in.Rooms)
		_, err := fmt.Fprintf(w, "%s %s %d %d\n",
			a.in.Courses[a.in.CourseOf(l)].Name,
			a.in.Rooms[room].Name,
			period/a.in.PeriodsPerDay,
			period%a.in.PeriodsPerDay)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteDebug emits the per-component costs and the objective.
func (a *Assignment) WriteDebug(w io.Writer) {
	fmt.Fprintln(w, "-----------------------")
	fmt.Fprintf(w, "Room capacity\t%d (x%d)\n", a.RoomCapacityCost, roomCapacityWeight)
	fmt.Fprintf(w, "Room stability\t%d (x%d)\n", a.RoomStabilityCost, roomStabilityWeight)
	fmt.Fprintf(w, "Min w. days\t%d (x%d)\n", a.MinWorkingDaysCost, minWorkingDaysWeight)
	fmt.Fprintf(w, "Curr. compact.\t%d (x%d)\n", a.CurriculumCompactnessCost, curriculumCompactnessWeight)
	fmt.Fprintf(w, "Conflicts\t%d\n", a.Conflicts)
	fmt.Fprintf(w, "Duplicates\t%d\n", a.Duplicates)
	fmt.Fprintln(w, "-----------------------")
	fmt.Fprintf(w, "Tot.\t\t%d\n", a.Cost)
}

// WriteJSON emits the machine-readable summary object.
func (a *Assignment) WriteJSON(w io.Writer) error {
	summary := struct {
		Duplicates                int `json:"duplicates"`
		Conflicts                 int `json:"conflicts"`
		Cost                      int `json:"cost"`
		RoomCapacityCost          int `json:"room_capacity_cost"`
		RoomStabilityCost         int `json:"room_stability_cost"`
		MinWorkingDaysCost        int `json:"min_working_days_cost"`
		CurriculumCompactnessCost int `json:"curriculum_compactness_cost"`
	}{
		Duplicates:                a.Duplicates,
		Conflicts:                 a.Conflicts,
		Cost:                      a.Cost,
		RoomCapacityCost:          a.RoomCapacityCost,
		RoomStabilityCost:         a.RoomStabilityCost,
		MinWorkingDaysCost:        a.MinWorkingDaysCost,
		CurriculumCompactnessCost: a.CurriculumCompactnessCost,
	}
	enc := json.NewEncoder(w)
	return enc.Encode(summary)
}

// solutionKey orders search states lexicographically: fewer violations
// first, and among feasible states, lower cost. Costs of infeasible states
// are not compared.
type solutionKey struct {
	violations int
	cost       int
}

// improves reports strict lexicographic improvement over o.
func (k solutionKey) improves(o solutionKey) bool {
	if k.violations != o.violations {
		return k.violations < o.violations
	}
	return k.violations == 0 && k.cost < o.cost
}

// atLeastAsGood additionally admits lateral moves.
func (k solutionKey) atLeastAsGood(o solutionKey) bool {
	if k.violations != o.violations {
		return k.violations < o.violations
	}
	if k.violations == 0 {
		return k.cost <= o.cost
	}
	return true
}
