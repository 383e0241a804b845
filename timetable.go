package cpctt

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Timetable is the exchange-format view of a solution: a course x period
// matrix where 0 means "not teaching" and r+1 means room index r. Only this
// matrix uses the shifted room convention; everything else in the solver is
// 0-based.
type Timetable struct {
	in *Instance
	T  [][]int
}

// NewTimetable returns an empty timetable for an instance.
func NewTimetable(in *Instance) *Timetable {
	t := &Timetable{in: in, T: make([][]int, len(in.Courses))}
	for c := range t.T {
		t.T[c] = make([]int, in.Periods())
	}
	return t
}

// ReadTimetable parses "course room day period" lines, one per lecture.
func ReadTimetable(in *Instance, r io.Reader) (*Timetable, error) {
	t := NewTimetable(in)
	tok := newTokenReader(r)
	for l := 0; l < in.TotalLectures(); l++ {
		courseName, err := tok.word()
		if err != nil {
			return nil, errors.Wrap(err, "truncated solution")
		}
		roomName, err := tok.word()
		if err != nil {
			return nil, errors.Wrap(err, "truncated solution")
		}
		day, err := tok.integer()
		if err != nil {
			return nil, err
		}
		period, err := tok.integer()
		if err != nil {
			return nil, err
		}
		c := in.CourseIndex(courseName)
		room := in.RoomIndex(roomName)
		if c < 0 || room < 0 {
			return nil, errors.Errorf("solution references unknown course %q or room %q", courseName, roomName)
		}
		if day < 0 || day >= in.Days || period < 0 || period >= in.PeriodsPerDay {
			return nil, errors.Errorf("lecture of %s out of range (day %d, period %d)", courseName, day, period)
		}
		p := day*in.PeriodsPerDay + period
		if t.T[c][p] != 0 {
			return nil, errors.Errorf("course %s scheduled twice at period %d", courseName, p)
		}
		t.T[c][p] = room + 1
	}
	return t, nil
}

// Write emits the exchange format.
func (t *Timetable) Write(w io.Writer) error {
	for c := range t.T {
		for p, r := range t.T[c] {
			if r == 0 {
				continue
			}
			_, err := fmt.Fprintf(w, "%s %s %d %d\n",
				t.in.Courses[c].Name, t.in.Rooms[r-1].Name,
				p/t.in.PeriodsPerDay, p%t.in.PeriodsPerDay)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckFeasibility verifies lecture counts, availabilities, conflicts and
// room occupancy of an externally produced timetable.
func (t *Timetable) CheckFeasibility() error {
	in := t.in
	for c := range t.T {
		lectures := 0
		for p, r := range t.T[c] {
			if r == 0 {
				continue
			}
			lectures++
			if !in.Available(c, p) {
				return errors.Errorf("lecture of %s at unavailable period %d", in.Courses[c].Name, p)
			}
		}
		if lectures != in.Courses[c].Lectures {
			return errors.Errorf("wrong number of lectures for %s: %d instead of %d",
				in.Courses[c].Name, lectures, in.Courses[c].Lectures)
		}
	}
	for p := 0; p < in.Periods(); p++ {
		occupied := make(map[int]string) // room -> course
		for c := range t.T {
			r := t.T[c][p]
			if r == 0 {
				continue
			}
			if other, taken := occupied[r]; taken {
				return errors.Errorf("room %s hosts both %s and %s at period %d",
					in.Rooms[r-1].Name, other, in.Courses[c].Name, p)
			}
			occupied[r] = in.Courses[c].Name
		}
		for c1 := 0; c1 < len(in.Courses)-1; c1++ {
			if t.T[c1][p] == 0 {
				continue
			}
			for c2 := c1 + 1; c2 < len(in.Courses); c2++ {
				if t.T[c2][p] != 0 && in.Conflict(c1, c2) {
					return errors.Errorf("conflicting courses %s and %s share period %d",
						in.Courses[c1].Name, in.Courses[c2].Name, p)
				}
			}
		}
	}
	return nil
}

// Assignment flattens the matrix into per-lecture roomslots (lectures of a
// course ordered by period, matching the symmetry breaking) and evaluates
// the costs.
func (t *Timetable) Assignment() *Assignment {
	in := t.in
	roomslot := make([]int, in.TotalLectures())
	for c := range t.T {
		var periods []int
		for p, r := range t.T[c] {
			if r != 0 {
				periods = append(periods, p)
			}
		}
		sort.Ints(periods)
		for k, p := range periods {
			roomslot[in.StartOf(c)+k] = p*len(in.Rooms) + (t.T[c][p] - 1)
		}
	}
	return Evaluate(in, roomslot)
}

// Evaluate computes violations and the full cost breakdown of an arbitrary
// per-lecture roomslot vector, independently of any search state.
func Evaluate(in *Instance, roomslot []int) *Assignment {
	L := in.TotalLectures()
	R := len(in.Rooms)
	a := &Assignment{in: in, Roomslot: append([]int(nil), roomslot...)}

	period := make([]int, L)
	room := make([]int, L)
	for l, rs := range roomslot {
		period[l] = rs / R
		room[l] = rs % R
	}

	// duplicates
	slots := make(map[int]bool, L)
	for _, rs := range roomslot {
		slots[rs] = true
	}
	a.Duplicates = L - len(slots)

	// conflicts
	for c1 := 0; c1 < len(in.Courses)-1; c1++ {
		for c2 := c1 + 1; c2 < len(in.Courses); c2++ {
			if !in.Conflict(c1, c2) {
				continue
			}
			seen := make(map[int]bool)
			count := 0
			for _, c := range []int{c1, c2} {
				for k := 0; k < in.Courses[c].Lectures; k++ {
					seen[period[in.StartOf(c)+k]] = true
					count++
				}
			}
			a.Conflicts += count - len(seen)
		}
	}

	// room capacity
	for l := 0; l < L; l++ {
		if over := in.Courses[in.CourseOf(l)].Students - in.Rooms[room[l]].Capacity; over > 0 {
			a.RoomCapacityCost += over
		}
	}

	// room stability and minimum working days
	for c := range in.Courses {
		rooms := make(map[int]bool)
		days := make(map[int]bool)
		for k := 0; k < in.Courses[c].Lectures; k++ {
			l := in.StartOf(c) + k
			rooms[room[l]] = true
			days[period[l]/in.PeriodsPerDay] = true
		}
		a.RoomStabilityCost += len(rooms) - 1
		if short := in.Courses[c].MinWorkingDays - len(days); short > 0 {
			a.MinWorkingDaysCost += short
		}
	}

	// curriculum compactness
	for q := range in.Curricula {
		var lectures []int
		for _, c := range in.Curricula[q].Members {
			for k := 0; k < in.Courses[c].Lectures; k++ {
				lectures = append(lectures, in.StartOf(c)+k)
			}
		}
		if len(lectures) < 2 {
			continue
		}
		periods := make(map[int]bool, len(lectures))
		for _, l := range lectures {
			periods[period[l]] = true
		}
		for _, l := range lectures {
			// a sibling in the adjacent period is never l itself, so the
			// curriculum's period set decides adjacency directly
			p := period[l]
			adjacent := false
			if p%in.PeriodsPerDay != 0 && periods[p-1] {
				adjacent = true
			}
			if p%in.PeriodsPerDay != in.PeriodsPerDay-1 && periods[p+1] {
				adjacent = true
			}
			if !adjacent {
				a.CurriculumCompactnessCost++
			}
		}
	}

	a.Cost = roomCapacityWeight*a.RoomCapacityCost +
		roomStabilityWeight*a.RoomStabilityCost +
		minWorkingDaysWeight*a.MinWorkingDaysCost +
		curriculumCompactnessWeight*a.CurriculumCompactnessCost
	return a
}

// Statistics prints the aggregate features of an instance: scalar sizes,
// conflict density, availability, room suitability and occupation, and the
// seat-overuse bound. No per-curriculum load figure is printed.
func (in *Instance) Statistics(w io.Writer) {
	courses := len(in.Courses)
	L := in.TotalLectures()
	periods := in.Periods()

	courseConflicts, lectureConflicts := 0, 0
	for c1 := 0; c1 < courses-1; c1++ {
		for c2 := c1 + 1; c2 < courses; c2++ {
			if in.Conflict(c1, c2) {
				courseConflicts++
				lectureConflicts += in.Courses[c1].Lectures * in.Courses[c2].Lectures
			}
		}
	}
	for c := 0; c < courses; c++ {
		lectureConflicts += in.Courses[c].Lectures * (in.Courses[c].Lectures - 1) / 2
	}
	coursePairs := courses * (courses - 1) / 2
	lecturePairs := L * (L - 1) / 2

	availPerCourse := make([]float64, courses)
	availPerLecture := make([]float64, courses)
	for c := 0; c < courses; c++ {
		for p := 0; p < periods; p++ {
			if in.Available(c, p) {
				availPerCourse[c]++
				availPerLecture[c] += float64(in.Courses[c].Lectures)
			}
		}
	}

	suitPerCourse, suitPerLecture := 0, 0
	totalSeats := 0
	for r := range in.Rooms {
		totalSeats += in.Rooms[r].Capacity
		for c := 0; c < courses; c++ {
			if in.Rooms[r].Capacity >= in.Courses[c].Students && !in.Undesired(c, r) {
				suitPerCourse++
				suitPerLecture += in.Courses[c].Lectures
			}
		}
	}

	totalStudents := 0
	for l := 0; l < L; l++ {
		totalStudents += in.Courses[in.CourseOf(l)].Students
	}

	fmt.Fprintf(w, "Scalar data: courses = %d, total lectures = %d, rooms = %d, periods_per_day = %d, days = %d, curricula = %d\n",
		courses, L, len(in.Rooms), in.PeriodsPerDay, in.Days, len(in.Curricula))
	fmt.Fprintf(w, "Conflict density = %.1f%%/%.1f%%\n",
		pct(float64(courseConflicts), float64(coursePairs)),
		pct(float64(lectureConflicts), float64(lecturePairs)))
	fmt.Fprintf(w, "Teachers' availability = %.1f%%/%.1f%%\n",
		pct(floats.Sum(availPerCourse), float64(courses*periods)),
		pct(floats.Sum(availPerLecture), float64(L*periods)))
	fmt.Fprintf(w, "Rooms' suitability = %.1f%%/%.1f%%\n",
		pct(float64(suitPerCourse), float64(len(in.Rooms)*courses)),
		pct(float64(suitPerLecture), float64(len(in.Rooms)*L)))
	fmt.Fprintf(w, "Room occupation: per room %.1f%%, per seat %.1f%%\n",
		pct(float64(L), float64(len(in.Rooms)*periods)),
		pct(float64(totalStudents), float64(totalSeats*periods)))
	fmt.Fprintf(w, "Seat overuse lower bound: %d\n", in.SeatOveruse())
}

// SeatOveruse is a lower bound on the room capacity cost: match the largest
// lectures with the largest roomslots and sum what still stands.
func (in *Instance) SeatOveruse() int {
	var roomslotSize, lectureSize []int
	for r := range in.Rooms {
		for p := 0; p < in.Periods(); p++ {
			roomslotSize = append(roomslotSize, in.Rooms[r].Capacity)
		}
	}
	for l := 0; l < in.TotalLectures(); l++ {
		lectureSize = append(lectureSize, in.Courses[in.CourseOf(l)].Students)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(roomslotSize)))
	sort.Sort(sort.Reverse(sort.IntSlice(lectureSize)))

	overuse := 0
	for i, size := range lectureSize {
		if i >= len(roomslotSize) {
			overuse += size
			continue
		}
		if size > roomslotSize[i] {
			overuse += size - roomslotSize[i]
		}
	}
	return overuse
}

func pct(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return 100 * num / den
}
