package cpctt

// Concrete propagators for the constraint surface the timetabling model
// needs: equality/ordering relations, distinct, occurrence counting,
// number-of-values, functional mappings and bounds-consistent linear sums.
// Propagation strength follows the usual trade-off: strong enough to fail
// early on the hard constraints, cheap enough to run at every node. All
// auxiliary variables become assigned once the decision variables are, which
// is what Status relies on to report StatusSolved.

// pin assigns a variable to a constant. Used for branching decisions and for
// freezing variables during relaxation.
type pin struct {
	x IntVar
	v int
}

func (p pin) vars() []IntVar { return nil }

func (p pin) propagate(s *Space) bool {
	return s.assign(p.x, p.v)
}

// neqConst removes a constant from a variable's domain.
type neqConst struct {
	x IntVar
	v int
}

func (p neqConst) vars() []IntVar { return nil }

func (p neqConst) propagate(s *Space) bool {
	return s.remove(p.x, p.v)
}

// atMost caps a variable from above: x <= v.
type atMost struct {
	x IntVar
	v int
}

func (p atMost) vars() []IntVar { return nil }

func (p atMost) propagate(s *Space) bool {
	return s.removeAbove(p.x, p.v)
}

// atLeast bounds a variable from below: x >= v.
type atLeast struct {
	x IntVar
	v int
}

func (p atLeast) vars() []IntVar { return nil }

func (p atLeast) propagate(s *Space) bool {
	return s.removeBelow(p.x, p.v)
}

// less enforces x < y with bounds reasoning.
type less struct {
	x, y IntVar
}

func (p less) vars() []IntVar { return []IntVar{p.x, p.y} }

func (p less) propagate(s *Space) bool {
	if !s.removeAbove(p.x, s.Max(p.y)-1) {
		return false
	}
	return s.removeBelow(p.y, s.Min(p.x)+1)
}

// neqVar enforces x != y once either side is assigned.
type neqVar struct {
	x, y IntVar
}

func (p neqVar) vars() []IntVar { return []IntVar{p.x, p.y} }

func (p neqVar) propagate(s *Space) bool {
	if s.Fixed(p.x) {
		if !s.remove(p.y, s.Value(p.x)) {
			return false
		}
	}
	if s.Fixed(p.y) {
		return s.remove(p.x, s.Value(p.y))
	}
	return true
}

// distinct is the value-based alldifferent: an assigned variable's value is
// removed from every sibling.
type distinct struct {
	xs []IntVar
}

func (p distinct) vars() []IntVar { return p.xs }

func (p distinct) propagate(s *Space) bool {
	for i, x := range p.xs {
		if !s.Fixed(x) {
			continue
		}
		v := s.Value(x)
		for j, y := range p.xs {
			if i == j {
				continue
			}
			if !s.remove(y, v) {
				return false
			}
		}
	}
	return true
}

// mapping channels y = f(x) with value consistency in both directions.
// It covers the roomslot -> period/room/day/timeslot derivations, element
// indexing into constant arrays, and max(0, c - x) shortfalls.
type mapping struct {
	x, y IntVar
	f    func(v int) int
}

func (p mapping) vars() []IntVar { return []IntVar{p.x, p.y} }

func (p mapping) propagate(s *Space) bool {
	// forward: keep only x values whose image is still possible,
	// collecting the support of y as we go
	support := make(map[int]bool, s.Size(p.x))
	ok := true
	s.doms[p.x].forEach(func(v int) bool {
		if s.Has(p.y, p.f(v)) {
			support[p.f(v)] = true
		}
		return true
	})
	s.doms[p.x].clone().forEach(func(v int) bool {
		if !s.Has(p.y, p.f(v)) {
			if !s.remove(p.x, v) {
				ok = false
				return false
			}
		}
		return true
	})
	if !ok {
		return false
	}
	// backward: y must be the image of some remaining x value
	s.doms[p.y].clone().forEach(func(w int) bool {
		if !support[w] {
			if !s.remove(p.y, w) {
				ok = false
				return false
			}
		}
		return true
	})
	return ok
}

// countEq binds n to the number of variables in xs equal to the value of y.
// Pruning is strongest when y is assigned; in particular n = 0 with y
// assigned removes y's value from every counted variable, which is what
// forces the resolution of a chosen conflict during relaxation.
type countEq struct {
	xs []IntVar
	y  IntVar
	n  IntVar
}

func (p countEq) vars() []IntVar { return append(append([]IntVar(nil), p.xs...), p.y, p.n) }

func (p countEq) propagate(s *Space) bool {
	if !s.Fixed(p.y) {
		return s.removeAbove(p.n, len(p.xs))
	}
	v := s.Value(p.y)
	lb, ub := 0, 0
	for _, x := range p.xs {
		if !s.Has(x, v) {
			continue
		}
		ub++
		if s.Fixed(x) {
			lb++
		}
	}
	if !s.removeBelow(p.n, lb) || !s.removeAbove(p.n, ub) {
		return false
	}
	// enforcement: no counted variable may take v anymore
	if s.Max(p.n) == 0 {
		for _, x := range p.xs {
			if !s.remove(x, v) {
				return false
			}
		}
	}
	return true
}

// nvalues binds n to the number of distinct values taken by xs.
// Bounds: the assigned variables already realize their distinct values, and
// each unassigned variable can add at most one more.
type nvalues struct {
	xs []IntVar
	n  IntVar
}

func (p nvalues) vars() []IntVar { return append(append([]IntVar(nil), p.xs...), p.n) }

func (p nvalues) propagate(s *Space) bool {
	seen := make(map[int]bool, len(p.xs))
	unassigned := 0
	for _, x := range p.xs {
		if s.Fixed(x) {
			seen[s.Value(x)] = true
		} else {
			unassigned++
		}
	}
	lb := len(seen)
	ub := len(seen) + unassigned
	if len(p.xs) < ub {
		ub = len(p.xs)
	}
	if !s.removeBelow(p.n, lb) {
		return false
	}
	return s.removeAbove(p.n, ub)
}

// linear enforces y = offset + sum(coeffs[i] * xs[i]) with bounds
// consistency in both directions. Coefficients may be negative.
type linear struct {
	xs     []IntVar
	coeffs []int
	offset int
	y      IntVar
}

func (p linear) vars() []IntVar { return append(append([]IntVar(nil), p.xs...), p.y) }

func (p linear) propagate(s *Space) bool {
	n := len(p.xs)
	lo := make([]int, n)
	hi := make([]int, n)
	sumLo, sumHi := p.offset, p.offset
	for i, x := range p.xs {
		a, b := s.Min(x), s.Max(x)
		c := p.coeffs[i]
		if c >= 0 {
			lo[i], hi[i] = c*a, c*b
		} else {
			lo[i], hi[i] = c*b, c*a
		}
		sumLo += lo[i]
		sumHi += hi[i]
	}
	if !s.removeBelow(p.y, sumLo) || !s.removeAbove(p.y, sumHi) {
		return false
	}
	yLo, yHi := s.Min(p.y), s.Max(p.y)
	for i, x := range p.xs {
		c := p.coeffs[i]
		if c == 0 {
			continue
		}
		// bounds of the i-th term implied by y and the other terms
		tLo := yLo - (sumHi - hi[i])
		tHi := yHi - (sumLo - lo[i])
		if c > 0 {
			if !s.removeBelow(x, ceilDiv(tLo, c)) || !s.removeAbove(x, floorDiv(tHi, c)) {
				return false
			}
		} else {
			if !s.removeBelow(x, ceilDiv(tHi, c)) || !s.removeAbove(x, floorDiv(tLo, c)) {
				return false
			}
		}
	}
	return true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}

// isolated binds a 0/1 variable to whether the lecture at period x has no
// sibling lecture of its curriculum in the adjacent period within the same
// day. others are the periods of the curriculum's remaining lectures.
// Deciding isolation generally needs all periods assigned; a single sibling
// already assigned next door decides it early.
type isolated struct {
	x             IntVar // period of the lecture
	others        []IntVar
	periodsPerDay int
	b             IntVar // 1 iff isolated
}

func (p isolated) vars() []IntVar { return append(append([]IntVar(nil), p.others...), p.x, p.b) }

func (p isolated) propagate(s *Space) bool {
	if !s.Fixed(p.x) {
		return true
	}
	v := s.Value(p.x)
	before, after := -1, -1
	if v%p.periodsPerDay != 0 {
		before = v - 1
	}
	if v%p.periodsPerDay != p.periodsPerDay-1 {
		after = v + 1
	}
	allFixed := true
	for _, o := range p.others {
		if !s.Fixed(o) {
			allFixed = false
			continue
		}
		w := s.Value(o)
		if w == before || w == after {
			return s.assign(p.b, 0)
		}
	}
	if allFixed {
		return s.assign(p.b, 1)
	}
	return true
}
