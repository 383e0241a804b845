package cpctt

// Soft-cost weights of the standard formulation.
const (
	roomCapacityWeight          = 1 // per standing student
	roomStabilityWeight         = 1 // per extra room used by a course
	minWorkingDaysWeight        = 5 // per day below the minimum
	curriculumCompactnessWeight = 2 // per isolated lecture within a day
)

// Model is the CP formulation of a timetabling instance: one decision
// variable per lecture encoding its (period, room) slot, the derived
// auxiliary variables, and the soft-cost decomposition. The struct is a thin
// view over a Space; Clone copies the space and keeps the variable handles,
// so every clone reads and constrains its own copy of the same variables.
type Model struct {
	In *Instance
	S  *Space

	// decision: roomslot[l] = period*rooms + room
	Roomslot []IntVar

	// derived, functionally determined by roomslot
	Period   []IntVar
	Room     []IntVar
	Day      []IntVar
	Timeslot []IntVar

	// infeasibility accounting, soft during early search
	ConflictingLectures []IntVar
	Conflicts           IntVar
	Duplicates          IntVar

	// soft-cost decomposition
	RoomCapacityDeviation          []IntVar
	RoomStabilityDeviation         []IntVar
	MinWorkingDaysDeviation        []IntVar
	CurriculumCompactnessDeviation []IntVar
	LectureCompactness             []IntVar

	RoomCapacityCost          IntVar
	RoomStabilityCost         IntVar
	MinWorkingDaysCost        IntVar
	CurriculumCompactnessCost IntVar
	Z                         IntVar
}

// NewModel builds the root model for an instance.
func NewModel(in *Instance) *Model {
	m := &Model{In: in, S: NewSpace()}
	s := m.S

	L := in.TotalLectures()
	R := len(in.Rooms)
	P := in.Periods()

	m.Roomslot = newVars(s, L, 0, R*P-1)
	m.Period = newVars(s, L, 0, P-1)
	m.Room = newVars(s, L, 0, R-1)
	m.Day = newVars(s, L, 0, in.Days-1)
	m.Timeslot = newVars(s, L, 0, in.PeriodsPerDay-1)

	// channel the auxiliary variables to the decision variable
	for l := 0; l < L; l++ {
		rooms, ppd := R, in.PeriodsPerDay
		s.Post(mapping{x: m.Roomslot[l], y: m.Period[l], f: func(v int) int { return v / rooms }})
		s.Post(mapping{x: m.Roomslot[l], y: m.Room[l], f: func(v int) int { return v % rooms }})
		s.Post(mapping{x: m.Period[l], y: m.Day[l], f: func(v int) int { return v / ppd }})
		s.Post(mapping{x: m.Period[l], y: m.Timeslot[l], f: func(v int) int { return v % ppd }})
	}

	// lectures of a course are interchangeable: order them to break the
	// permutation symmetry, on periods and (redundantly) on roomslots
	for c := range in.Courses {
		start := in.StartOf(c)
		for l1 := 0; l1 < in.Courses[c].Lectures-1; l1++ {
			for l2 := l1 + 1; l2 < in.Courses[c].Lectures; l2++ {
				s.Post(less{x: m.Period[start+l1], y: m.Period[start+l2]})
				s.Post(less{x: m.Roomslot[start+l1], y: m.Roomslot[start+l2]})
			}
		}
	}

	// availabilities: forbid unavailable periods, and the implied roomslots
	for c := range in.Courses {
		for p := 0; p < P; p++ {
			if in.Available(c, p) {
				continue
			}
			for k := 0; k < in.Courses[c].Lectures; k++ {
				l := in.StartOf(c) + k
				s.Post(neqConst{x: m.Period[l], v: p})
				for r := 0; r < R; r++ {
					s.Post(neqConst{x: m.Roomslot[l], v: p*R + r})
				}
			}
		}
	}

	// room occupancy, kept soft: count the distinct roomslots
	m.Duplicates = s.NewVar(0, L)
	s.Post(nvalues{xs: m.Roomslot, n: m.Duplicates})

	// conflicts, kept soft: for every conflicting course pair the shortfall
	// between the lectures involved and the distinct periods they occupy
	var pairCards []IntVar
	pairLectures := 0
	for c1 := 0; c1 < len(in.Courses)-1; c1++ {
		for c2 := c1 + 1; c2 < len(in.Courses); c2++ {
			if !in.Conflict(c1, c2) {
				continue
			}
			periods := append(m.periodsOf(c1), m.periodsOf(c2)...)
			card := s.NewVar(0, len(periods))
			s.Post(nvalues{xs: periods, n: card})
			pairCards = append(pairCards, card)
			pairLectures += len(periods)
		}
	}
	m.Conflicts = s.NewVar(0, maxInt(pairLectures, 0))
	s.Post(linear{
		xs:     pairCards,
		coeffs: repeat(-1, len(pairCards)),
		offset: pairLectures,
		y:      m.Conflicts,
	})

	// per-lecture conflict counters, for the relaxation heuristic
	m.ConflictingLectures = make([]IntVar, L)
	for l := 0; l < L; l++ {
		c1 := in.CourseOf(l)
		var candidates []IntVar
		for _, c2 := range in.ConflictsOf(c1) {
			candidates = append(candidates, m.periodsOf(c2)...)
		}
		m.ConflictingLectures[l] = s.NewVar(0, len(candidates))
		if len(candidates) > 0 {
			s.Post(countEq{xs: candidates, y: m.Period[l], n: m.ConflictingLectures[l]})
		}
	}

	// room capacity: standing students of each lecture
	m.RoomCapacityDeviation = make([]IntVar, L)
	capacities := make([]int, R)
	for r := range in.Rooms {
		capacities[r] = in.Rooms[r].Capacity
	}
	for l := 0; l < L; l++ {
		students := in.Courses[in.CourseOf(l)].Students
		m.RoomCapacityDeviation[l] = s.NewVar(0, students)
		s.Post(mapping{x: m.Room[l], y: m.RoomCapacityDeviation[l], f: func(r int) int {
			if over := students - capacities[r]; over > 0 {
				return over
			}
			return 0
		}})
	}
	m.RoomCapacityCost = s.NewVar(0, sumStudents(in))
	s.Post(linear{
		xs:     m.RoomCapacityDeviation,
		coeffs: repeat(1, L),
		y:      m.RoomCapacityCost,
	})

	// room stability: distinct rooms per course, one of which is free
	m.RoomStabilityDeviation = make([]IntVar, len(in.Courses))
	stabilityMax := 0
	for c := range in.Courses {
		hi := minInt(in.Courses[c].Lectures, R)
		m.RoomStabilityDeviation[c] = s.NewVar(0, hi)
		s.Post(nvalues{xs: m.roomsOf(c), n: m.RoomStabilityDeviation[c]})
		stabilityMax += hi
	}
	m.RoomStabilityCost = s.NewVar(0, maxInt(stabilityMax-len(in.Courses), 0))
	s.Post(linear{
		xs:     m.RoomStabilityDeviation,
		coeffs: repeat(1, len(in.Courses)),
		offset: -len(in.Courses),
		y:      m.RoomStabilityCost,
	})

	// minimum working days: shortfall of distinct teaching days per course
	m.MinWorkingDaysDeviation = make([]IntVar, len(in.Courses))
	mwdMax := 0
	for c := range in.Courses {
		mwd := in.Courses[c].MinWorkingDays
		days := s.NewVar(0, minInt(in.Courses[c].Lectures, in.Days))
		s.Post(nvalues{xs: m.daysOf(c), n: days})
		m.MinWorkingDaysDeviation[c] = s.NewVar(0, mwd)
		s.Post(mapping{x: days, y: m.MinWorkingDaysDeviation[c], f: func(d int) int {
			if d < mwd {
				return mwd - d
			}
			return 0
		}})
		mwdMax += mwd
	}
	m.MinWorkingDaysCost = s.NewVar(0, mwdMax)
	s.Post(linear{
		xs:     m.MinWorkingDaysDeviation,
		coeffs: repeat(1, len(in.Courses)),
		y:      m.MinWorkingDaysCost,
	})

	// curriculum compactness: a lecture with no curriculum sibling in an
	// adjacent period of the same day is isolated
	m.CurriculumCompactnessDeviation = make([]IntVar, len(in.Curricula))
	for q := range in.Curricula {
		lectures := m.lecturesOfCurriculum(q)
		violations := make([]IntVar, len(lectures))
		for i, l := range lectures {
			others := make([]IntVar, 0, len(lectures)-1)
			for j, o := range lectures {
				if j != i {
					others = append(others, m.Period[o])
				}
			}
			if len(others) == 0 {
				// a curriculum with a single lecture has nothing to compact
				violations[i] = s.NewVar(0, 0)
				continue
			}
			violations[i] = s.NewVar(0, 1)
			s.Post(isolated{
				x:             m.Period[l],
				others:        others,
				periodsPerDay: in.PeriodsPerDay,
				b:             violations[i],
			})
		}
		m.CurriculumCompactnessDeviation[q] = s.NewVar(0, len(lectures))
		s.Post(linear{
			xs:     violations,
			coeffs: repeat(1, len(violations)),
			y:      m.CurriculumCompactnessDeviation[q],
		})
	}
	m.CurriculumCompactnessCost = s.NewVar(0, L)
	s.Post(linear{
		xs:     m.CurriculumCompactnessDeviation,
		coeffs: repeat(1, len(in.Curricula)),
		y:      m.CurriculumCompactnessCost,
	})

	// per-lecture isolation marker for the relaxation heuristic: isolated
	// with respect to all curriculum siblings across the lecture's curricula
	m.LectureCompactness = make([]IntVar, L)
	for l := 0; l < L; l++ {
		siblings := m.curriculumSiblings(l)
		if len(siblings) == 0 {
			m.LectureCompactness[l] = s.NewVar(0, 0)
			continue
		}
		m.LectureCompactness[l] = s.NewVar(0, 1)
		s.Post(isolated{
			x:             m.Period[l],
			others:        siblings,
			periodsPerDay: in.PeriodsPerDay,
			b:             m.LectureCompactness[l],
		})
	}

	// objective
	zMax := roomCapacityWeight*sumStudents(in) +
		roomStabilityWeight*maxInt(stabilityMax-len(in.Courses), 0) +
		minWorkingDaysWeight*mwdMax +
		curriculumCompactnessWeight*L
	m.Z = s.NewVar(0, zMax)
	s.Post(linear{
		xs: []IntVar{m.RoomCapacityCost, m.RoomStabilityCost, m.MinWorkingDaysCost, m.CurriculumCompactnessCost},
		coeffs: []int{
			roomCapacityWeight, roomStabilityWeight, minWorkingDaysWeight, curriculumCompactnessWeight,
		},
		y: m.Z,
	})

	return m
}

// Clone copies the underlying space; variable handles carry over.
func (m *Model) Clone() *Model {
	c := *m
	c.S = m.S.Clone()
	return &c
}

// Violations is the distance from feasibility of a solved model:
// unresolved roomslot duplicates plus period conflicts.
func (m *Model) Violations() int {
	return (m.In.TotalLectures() - m.S.Value(m.Duplicates)) + m.S.Value(m.Conflicts)
}

// PostHardConflicts forbids any two lectures of conflicting courses from
// sharing a period.
func (m *Model) PostHardConflicts() {
	in := m.In
	for c1 := 0; c1 < len(in.Courses)-1; c1++ {
		for c2 := c1 + 1; c2 < len(in.Courses); c2++ {
			if !in.Conflict(c1, c2) {
				continue
			}
			m.S.Post(distinct{xs: append(m.periodsOf(c1), m.periodsOf(c2)...)})
		}
	}
}

// PostHardDuplicates forbids two lectures from sharing a roomslot.
func (m *Model) PostHardDuplicates() {
	m.S.Post(distinct{xs: m.Roomslot})
	m.S.Post(pin{x: m.Duplicates, v: m.In.TotalLectures()}) // necessarily
}

// PostHardConstraints upgrades both violation classes to hard constraints.
func (m *Model) PostHardConstraints() {
	m.PostHardConflicts()
	m.PostHardDuplicates()
}

// PostHardConflictsFor forces the resolution of every conflict the given
// lecture is involved in.
func (m *Model) PostHardConflictsFor(lecture int) {
	in := m.In
	m.S.Post(pin{x: m.ConflictingLectures[lecture], v: 0})

	course := in.CourseOf(lecture)
	m.S.Post(distinct{xs: m.periodsOf(course)})

	for _, c := range in.ConflictsOf(course) {
		for k := 0; k < in.Courses[c].Lectures; k++ {
			m.S.Post(neqVar{x: m.Period[lecture], y: m.Period[in.StartOf(c)+k]})
		}
	}
}

func (m *Model) periodsOf(c int) []IntVar {
	start := m.In.StartOf(c)
	return append([]IntVar(nil), m.Period[start:start+m.In.Courses[c].Lectures]...)
}

func (m *Model) roomsOf(c int) []IntVar {
	start := m.In.StartOf(c)
	return append([]IntVar(nil), m.Room[start:start+m.In.Courses[c].Lectures]...)
}

func (m *Model) daysOf(c int) []IntVar {
	start := m.In.StartOf(c)
	return append([]IntVar(nil), m.Day[start:start+m.In.Courses[c].Lectures]...)
}

// lecturesOfCurriculum lists the flat lecture indices of a curriculum.
func (m *Model) lecturesOfCurriculum(q int) []int {
	var lectures []int
	for _, c := range m.In.Curricula[q].Members {
		for k := 0; k < m.In.Courses[c].Lectures; k++ {
			lectures = append(lectures, m.In.StartOf(c)+k)
		}
	}
	return lectures
}

// curriculumSiblings collects the period variables of every other lecture
// sharing a curriculum with l.
func (m *Model) curriculumSiblings(l int) []IntVar {
	seen := make(map[int]bool)
	for _, q := range m.In.CurriculaOf(m.In.CourseOf(l)) {
		for _, o := range m.lecturesOfCurriculum(q) {
			if o != l {
				seen[o] = true
			}
		}
	}
	siblings := make([]IntVar, 0, len(seen))
	for o := 0; o < m.In.TotalLectures(); o++ {
		if seen[o] {
			siblings = append(siblings, m.Period[o])
		}
	}
	return siblings
}

func newVars(s *Space, n, lo, hi int) []IntVar {
	vars := make([]IntVar, n)
	for i := range vars {
		vars[i] = s.NewVar(lo, hi)
	}
	return vars
}

func repeat(v, n int) []int {
	vs := make([]int, n)
	for i := range vs {
		vs[i] = v
	}
	return vs
}

func sumStudents(in *Instance) int {
	total := 0
	for l := 0; l < in.TotalLectures(); l++ {
		total += in.Courses[in.CourseOf(l)].Students
	}
	return total
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
