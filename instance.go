package cpctt

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Course is a taught course: a block of identical lectures to be scheduled.
type Course struct {
	Name           string
	Teacher        string
	Lectures       int
	MinWorkingDays int
	Students       int
	DoubleLectures bool
}

// Room is a teaching room with a seating capacity.
type Room struct {
	Name     string
	Capacity int
}

// Curriculum is a set of courses followed by the same group of students.
// Members are course indices into Instance.Courses.
type Curriculum struct {
	Name    string
	Members []int
}

// Instance is the immutable problem data: courses, rooms, curricula, the
// availability and conflict tables, and the flat lecture index maps. It is
// shared by reference across every space cloned from the same root.
type Instance struct {
	Name          string
	Courses       []Course
	Rooms         []Room
	Days          int
	PeriodsPerDay int
	Curricula     []Curriculum

	// daily lecture load bounds as read from the header; neither the model
	// nor the statistics use them
	MinDailyLectures int
	MaxDailyLectures int

	availability [][]bool // course x period
	conflict     [][]bool // course x course, symmetric, reflexive-free
	conflictList [][]int  // course -> conflicting courses
	curriculaOf  [][]int  // course -> curricula containing it
	undesired    [][]bool // course x room, from ROOM_CONSTRAINTS

	lectureCourse []int // lecture -> course
	lectureRank   []int // lecture -> rank within its course
	startLecture  []int // course -> first lecture index
	totalLectures int

	courseIndex map[string]int
	roomIndex   map[string]int
}

// Periods returns the total number of periods (day-major enumeration).
func (in *Instance) Periods() int { return in.Days * in.PeriodsPerDay }

// TotalLectures returns the number of lectures over all courses.
func (in *Instance) TotalLectures() int { return in.totalLectures }

// Available reports whether course c may be scheduled at period p.
func (in *Instance) Available(c, p int) bool { return in.availability[c][p] }

// Conflict reports whether two courses may not overlap in time.
func (in *Instance) Conflict(c1, c2 int) bool { return in.conflict[c1][c2] }

// ConflictsOf returns the courses conflicting with c.
func (in *Instance) ConflictsOf(c int) []int { return in.conflictList[c] }

// CurriculaOf returns the curricula containing course c.
func (in *Instance) CurriculaOf(c int) []int { return in.curriculaOf[c] }

// CourseOf returns the course of flat lecture index l.
func (in *Instance) CourseOf(l int) int { return in.lectureCourse[l] }

// RankOf returns the rank of lecture l within its course.
func (in *Instance) RankOf(l int) int { return in.lectureRank[l] }

// StartOf returns the first flat lecture index of course c.
func (in *Instance) StartOf(c int) int { return in.startLecture[c] }

// CourseIndex resolves a course name, -1 if unknown.
func (in *Instance) CourseIndex(name string) int {
	if i, ok := in.courseIndex[name]; ok {
		return i
	}
	return -1
}

// RoomIndex resolves a room name, -1 if unknown.
func (in *Instance) RoomIndex(name string) int {
	if i, ok := in.roomIndex[name]; ok {
		return i
	}
	return -1
}

// Undesired reports whether room r is marked unsuitable for course c.
func (in *Instance) Undesired(c, r int) bool { return in.undesired[c][r] }

// LoadInstance reads an instance file, dispatching on the filename suffix.
func LoadInstance(path string) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open instance file %s", path)
	}
	defer f.Close()

	var in *Instance
	switch {
	case strings.HasSuffix(path, ".ectt"):
		in, err = ParseECTT(f)
	case strings.HasSuffix(path, ".ctt"):
		in, err = ParseCTT(f)
	default:
		return nil, errors.Errorf("unknown input format for %s (must be .ectt or .ctt)", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "malformed instance file %s", path)
	}
	if err := in.checkFeasibility(); err != nil {
		return nil, errors.Wrapf(err, "instance %s", path)
	}
	return in, nil
}

// ParseECTT reads the extended single-file format.
func ParseECTT(r io.Reader) (*Instance, error) {
	t := newTokenReader(r)
	in := &Instance{}

	var courses, rooms, curricula, unavail, roomCons int
	var err error
	if in.Name, err = t.tagged("Name:"); err != nil {
		return nil, err
	}
	if courses, err = t.taggedInt("Courses:"); err != nil {
		return nil, err
	}
	if rooms, err = t.taggedInt("Rooms:"); err != nil {
		return nil, err
	}
	if in.Days, err = t.taggedInt("Days:"); err != nil {
		return nil, err
	}
	if in.PeriodsPerDay, err = t.taggedInt("Periods_per_day:"); err != nil {
		return nil, err
	}
	if curricula, err = t.taggedInt("Curricula:"); err != nil {
		return nil, err
	}
	if _, err = t.word(); err != nil { // Min_Max_Daily_Lectures:
		return nil, err
	}
	if in.MinDailyLectures, err = t.integer(); err != nil {
		return nil, err
	}
	if in.MaxDailyLectures, err = t.integer(); err != nil {
		return nil, err
	}
	if unavail, err = t.taggedInt("UnavailabilityConstraints:"); err != nil {
		return nil, err
	}
	if roomCons, err = t.taggedInt("RoomConstraints:"); err != nil {
		return nil, err
	}

	if err := in.allocate(courses, rooms, curricula); err != nil {
		return nil, err
	}

	if _, err := t.word(); err != nil { // COURSES:
		return nil, err
	}
	for c := 0; c < courses; c++ {
		if err := in.readCourse(t, c, true); err != nil {
			return nil, err
		}
	}

	if _, err := t.word(); err != nil { // ROOMS:
		return nil, err
	}
	for r := 0; r < rooms; r++ {
		if err := in.readRoom(t, r, true); err != nil {
			return nil, err
		}
	}

	if _, err := t.word(); err != nil { // CURRICULA:
		return nil, err
	}
	for q := 0; q < curricula; q++ {
		if err := in.readCurriculum(t, q); err != nil {
			return nil, err
		}
	}

	if _, err := t.word(); err != nil { // UNAVAILABILITY_CONSTRAINTS:
		return nil, err
	}
	for i := 0; i < unavail; i++ {
		if err := in.readUnavailability(t); err != nil {
			return nil, err
		}
	}

	if _, err := t.word(); err != nil { // ROOM_CONSTRAINTS:
		return nil, err
	}
	for i := 0; i < roomCons; i++ {
		courseName, err := t.word()
		if err != nil {
			return nil, err
		}
		roomName, err := t.word()
		if err != nil {
			return nil, err
		}
		c := in.CourseIndex(courseName)
		r := in.RoomIndex(roomName)
		if c < 0 || r < 0 {
			return nil, errors.Errorf("room constraint references unknown course %q or room %q", courseName, roomName)
		}
		in.undesired[c][r] = true
	}

	in.finish()
	return in, nil
}

// ParseCTT reads the legacy format: no room constraints, no daily lecture
// bounds, shorter course and room rows.
func ParseCTT(r io.Reader) (*Instance, error) {
	t := newTokenReader(r)
	in := &Instance{}

	var courses, rooms, curricula, unavail int
	var err error
	if in.Name, err = t.tagged("Name:"); err != nil {
		return nil, err
	}
	if courses, err = t.taggedInt("Courses:"); err != nil {
		return nil, err
	}
	if rooms, err = t.taggedInt("Rooms:"); err != nil {
		return nil, err
	}
	if in.Days, err = t.taggedInt("Days:"); err != nil {
		return nil, err
	}
	if in.PeriodsPerDay, err = t.taggedInt("Periods_per_day:"); err != nil {
		return nil, err
	}
	if curricula, err = t.taggedInt("Curricula:"); err != nil {
		return nil, err
	}
	if unavail, err = t.taggedInt("Constraints:"); err != nil {
		return nil, err
	}

	if err := in.allocate(courses, rooms, curricula); err != nil {
		return nil, err
	}

	if _, err := t.word(); err != nil { // COURSES:
		return nil, err
	}
	for c := 0; c < courses; c++ {
		if err := in.readCourse(t, c, false); err != nil {
			return nil, err
		}
	}

	if _, err := t.word(); err != nil { // ROOMS:
		return nil, err
	}
	for r := 0; r < rooms; r++ {
		if err := in.readRoom(t, r, false); err != nil {
			return nil, err
		}
	}

	if _, err := t.word(); err != nil { // CURRICULA:
		return nil, err
	}
	for q := 0; q < curricula; q++ {
		if err := in.readCurriculum(t, q); err != nil {
			return nil, err
		}
	}

	if _, err := t.word(); err != nil { // UNAVAILABILITY_CONSTRAINTS:
		return nil, err
	}
	for i := 0; i < unavail; i++ {
		if err := in.readUnavailability(t); err != nil {
			return nil, err
		}
	}

	in.finish()
	return in, nil
}

func (in *Instance) allocate(courses, rooms, curricula int) error {
	if courses <= 0 || rooms <= 0 || in.Days <= 0 || in.PeriodsPerDay <= 0 {
		return errors.New("header declares a non-positive dimension")
	}
	in.Courses = make([]Course, courses)
	in.Rooms = make([]Room, rooms)
	in.Curricula = make([]Curriculum, curricula)
	in.availability = make([][]bool, courses)
	in.conflict = make([][]bool, courses)
	in.conflictList = make([][]int, courses)
	in.curriculaOf = make([][]int, courses)
	in.undesired = make([][]bool, courses)
	for c := 0; c < courses; c++ {
		in.availability[c] = make([]bool, in.Periods())
		for p := range in.availability[c] {
			in.availability[c][p] = true
		}
		in.conflict[c] = make([]bool, courses)
		in.undesired[c] = make([]bool, rooms)
	}
	in.courseIndex = make(map[string]int, courses)
	in.roomIndex = make(map[string]int, rooms)
	return nil
}

func (in *Instance) readCourse(t *tokenReader, c int, extended bool) error {
	course := &in.Courses[c]
	var err error
	if course.Name, err = t.word(); err != nil {
		return err
	}
	if course.Teacher, err = t.word(); err != nil {
		return err
	}
	if course.Lectures, err = t.integer(); err != nil {
		return err
	}
	if course.MinWorkingDays, err = t.integer(); err != nil {
		return err
	}
	if course.Students, err = t.integer(); err != nil {
		return err
	}
	if extended {
		dl, err := t.integer()
		if err != nil {
			return err
		}
		course.DoubleLectures = dl != 0
	}
	if course.Lectures < 1 || course.MinWorkingDays < 1 || course.Students < 0 {
		return errors.Errorf("course %s has out-of-range fields", course.Name)
	}
	if _, dup := in.courseIndex[course.Name]; dup {
		return errors.Errorf("duplicate course name %s", course.Name)
	}
	in.courseIndex[course.Name] = c
	return nil
}

// readRoom normalizes rooms to 0-based contiguous indices. The legacy
// convention of reserving index 0 for "not teaching" exists only in the
// timetable matrix, never here.
func (in *Instance) readRoom(t *tokenReader, r int, extended bool) error {
	room := &in.Rooms[r]
	var err error
	if room.Name, err = t.word(); err != nil {
		return err
	}
	if room.Capacity, err = t.integer(); err != nil {
		return err
	}
	if extended {
		if _, err := t.integer(); err != nil { // location, unused
			return err
		}
	}
	if _, dup := in.roomIndex[room.Name]; dup {
		return errors.Errorf("duplicate room name %s", room.Name)
	}
	in.roomIndex[room.Name] = r
	return nil
}

func (in *Instance) readCurriculum(t *tokenReader, q int) error {
	cu := &in.Curricula[q]
	var err error
	if cu.Name, err = t.word(); err != nil {
		return err
	}
	size, err := t.integer()
	if err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		name, err := t.word()
		if err != nil {
			return err
		}
		c1 := in.CourseIndex(name)
		if c1 < 0 {
			return errors.Errorf("curriculum %s references unknown course %q", cu.Name, name)
		}
		// courses sharing a curriculum conflict pairwise
		for _, c2 := range cu.Members {
			in.addConflict(c1, c2)
		}
		cu.Members = append(cu.Members, c1)
		in.curriculaOf[c1] = append(in.curriculaOf[c1], q)
	}
	return nil
}

func (in *Instance) readUnavailability(t *tokenReader) error {
	name, err := t.word()
	if err != nil {
		return err
	}
	day, err := t.integer()
	if err != nil {
		return err
	}
	period, err := t.integer()
	if err != nil {
		return err
	}
	c := in.CourseIndex(name)
	if c < 0 {
		return errors.Errorf("unavailability constraint references unknown course %q", name)
	}
	p := day*in.PeriodsPerDay + period
	if day < 0 || day >= in.Days || period < 0 || period >= in.PeriodsPerDay {
		return errors.Errorf("unavailability constraint for %s out of range (day %d, period %d)", name, day, period)
	}
	in.availability[c][p] = false
	return nil
}

// finish derives the same-teacher conflicts and the lecture index maps.
func (in *Instance) finish() {
	for c1 := 0; c1 < len(in.Courses)-1; c1++ {
		for c2 := c1 + 1; c2 < len(in.Courses); c2++ {
			if in.Courses[c1].Teacher == in.Courses[c2].Teacher {
				in.addConflict(c1, c2)
			}
		}
	}
	in.startLecture = make([]int, len(in.Courses))
	for c, course := range in.Courses {
		in.startLecture[c] = in.totalLectures
		for l := 0; l < course.Lectures; l++ {
			in.lectureCourse = append(in.lectureCourse, c)
			in.lectureRank = append(in.lectureRank, l)
		}
		in.totalLectures += course.Lectures
	}
}

func (in *Instance) addConflict(c1, c2 int) {
	if c1 == c2 || in.conflict[c1][c2] {
		return
	}
	in.conflict[c1][c2] = true
	in.conflict[c2][c1] = true
	in.conflictList[c1] = append(in.conflictList[c1], c2)
	in.conflictList[c2] = append(in.conflictList[c2], c1)
}

// checkFeasibility rejects instances where a course has fewer available
// periods than lectures to schedule.
func (in *Instance) checkFeasibility() error {
	for c, course := range in.Courses {
		possible := 0
		for p := 0; p < in.Periods(); p++ {
			if in.availability[c][p] {
				possible++
			}
		}
		if possible < course.Lectures {
			return errors.Errorf("course %s is infeasible: %d lectures but only %d available periods",
				course.Name, course.Lectures, possible)
		}
	}
	return nil
}

// tokenReader yields whitespace-separated tokens, the way the formats are
// defined.
type tokenReader struct {
	s *bufio.Scanner
}

func newTokenReader(r io.Reader) *tokenReader {
	s := bufio.NewScanner(r)
	s.Split(bufio.ScanWords)
	return &tokenReader{s: s}
}

func (t *tokenReader) word() (string, error) {
	if !t.s.Scan() {
		if err := t.s.Err(); err != nil {
			return "", err
		}
		return "", errors.New("unexpected end of file")
	}
	return t.s.Text(), nil
}

func (t *tokenReader) integer() (int, error) {
	w, err := t.word()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(w)
	if err != nil {
		return 0, errors.Errorf("expected integer, found %q", w)
	}
	return n, nil
}

// tagged reads a "Key: value" pair and rejects any other key in its place.
func (t *tokenReader) tagged(tag string) (string, error) {
	key, err := t.word()
	if err != nil {
		return "", err
	}
	if key != tag {
		return "", errors.Errorf("expected header %q, found %q", tag, key)
	}
	return t.word()
}

func (t *tokenReader) taggedInt(tag string) (int, error) {
	key, err := t.word()
	if err != nil {
		return 0, err
	}
	if key != tag {
		return 0, errors.Errorf("expected header %q, found %q", tag, key)
	}
	return t.integer()
}
