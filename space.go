package cpctt

// IntVar is a handle to an integer variable of a Space. Handles remain valid
// across Clone, which is what makes relax-by-pinning cheap: the same handle
// addresses the corresponding variable in every clone of a root space.
type IntVar int

// SpaceStatus is the outcome of propagating a space to fixpoint.
type SpaceStatus int

const (
	// StatusFailed means a domain was wiped out.
	StatusFailed SpaceStatus = iota
	// StatusSolved means every variable is assigned.
	StatusSolved
	// StatusBranch means the space is at fixpoint with open choices left.
	StatusBranch
)

// A propagator narrows the domains of its variables. Propagators are
// immutable after construction and therefore shared between clones; all
// mutable search state lives in the Space's domains.
type propagator interface {
	// vars lists the variables whose domain changes re-schedule this propagator.
	vars() []IntVar

	// propagate narrows domains through the tell methods of s.
	// It returns false when it wiped out a domain.
	propagate(s *Space) bool
}

// Space is a constraint-programming search node: variable domains plus the
// propagators posted on them. Search proceeds by cloning a space, telling the
// clone something new (a branching decision, a pin, a bound) and propagating
// to fixpoint.
type Space struct {
	doms  []domain
	props []propagator
	subs  [][]int32 // variable -> indices of subscribed propagators

	agenda []int32
	queued []bool
	failed bool
}

// NewSpace returns an empty space.
func NewSpace() *Space {
	return &Space{}
}

// NewVar creates a variable with domain {lo, ..., hi}.
func (s *Space) NewVar(lo, hi int) IntVar {
	if lo < 0 || hi < lo {
		panic("variable bounds must satisfy 0 <= lo <= hi")
	}
	d := newDomain(hi + 1)
	d.removeBelow(lo)
	s.doms = append(s.doms, d)
	s.subs = append(s.subs, nil)
	return IntVar(len(s.doms) - 1)
}

// Post registers a propagator and schedules it for the next Status call.
func (s *Space) Post(p propagator) {
	idx := int32(len(s.props))
	s.props = append(s.props, p)
	s.queued = append(s.queued, false)
	for _, x := range p.vars() {
		s.subs[x] = append(s.subs[x], idx)
	}
	s.schedule(idx)
}

// Clone produces an independent copy: domains are deep-copied, propagators
// (immutable) are shared, posting lists are copied so that constraints posted
// on the clone never leak into the original.
func (s *Space) Clone() *Space {
	c := &Space{
		doms:   make([]domain, len(s.doms)),
		props:  make([]propagator, len(s.props)),
		subs:   make([][]int32, len(s.subs)),
		queued: make([]bool, len(s.queued)),
		failed: s.failed,
	}
	for i := range s.doms {
		c.doms[i] = s.doms[i].clone()
	}
	copy(c.props, s.props)
	for i := range s.subs {
		c.subs[i] = append([]int32(nil), s.subs[i]...)
	}
	c.agenda = append([]int32(nil), s.agenda...)
	copy(c.queued, s.queued)
	return c
}

// Status propagates to fixpoint and classifies the space.
func (s *Space) Status() SpaceStatus {
	if s.failed {
		return StatusFailed
	}
	for len(s.agenda) > 0 {
		idx := s.agenda[0]
		s.agenda = s.agenda[1:]
		s.queued[idx] = false
		if !s.props[idx].propagate(s) {
			s.failed = true
			return StatusFailed
		}
	}
	for i := range s.doms {
		if !s.doms[i].fixed() {
			return StatusBranch
		}
	}
	return StatusSolved
}

// Failed reports whether a previous tell or propagation wiped out a domain.
func (s *Space) Failed() bool { return s.failed }

// Fixed reports whether x is assigned.
func (s *Space) Fixed(x IntVar) bool { return s.doms[x].fixed() }

// Value returns the assigned value of x.
func (s *Space) Value(x IntVar) int { return s.doms[x].value() }

// Min returns the smallest value in the domain of x.
func (s *Space) Min(x IntVar) int { return s.doms[x].min() }

// Max returns the largest value in the domain of x.
func (s *Space) Max(x IntVar) int { return s.doms[x].max() }

// Size returns the cardinality of the domain of x.
func (s *Space) Size(x IntVar) int { return s.doms[x].size() }

// Has reports whether v is in the domain of x.
func (s *Space) Has(x IntVar, v int) bool { return s.doms[x].has(v) }

// degree is the number of propagators subscribed to x.
func (s *Space) degree(x IntVar) int { return len(s.subs[x]) }

// tell methods: each narrows one domain, marks the space failed on wipeout
// and re-schedules the subscribers of the touched variable. They return
// false only on failure, so chained tells read naturally.

func (s *Space) assign(x IntVar, v int) bool {
	if s.doms[x].assign(v) {
		return s.changed(x)
	}
	return true
}

func (s *Space) remove(x IntVar, v int) bool {
	if s.doms[x].remove(v) {
		return s.changed(x)
	}
	return true
}

func (s *Space) removeAbove(x IntVar, v int) bool {
	if s.doms[x].removeAbove(v) {
		return s.changed(x)
	}
	return true
}

func (s *Space) removeBelow(x IntVar, v int) bool {
	if s.doms[x].removeBelow(v) {
		return s.changed(x)
	}
	return true
}

func (s *Space) changed(x IntVar) bool {
	if s.doms[x].empty() {
		s.failed = true
		return false
	}
	for _, idx := range s.subs[x] {
		s.schedule(idx)
	}
	return true
}

func (s *Space) schedule(idx int32) {
	if s.queued[idx] {
		return
	}
	s.queued[idx] = true
	s.agenda = append(s.agenda, idx)
}
