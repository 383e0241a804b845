package cpctt

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

var (
	// ErrRootFailed means the instance's constraints wiped out the root
	// domains before any search took place.
	ErrRootFailed = errors.New("root space failed after propagation")

	// ErrNoSolution means the deadline passed without any solution.
	ErrNoSolution = errors.New("no solution found")
)

// initialDeadline bounds the first attempt at a fully feasible construction
// before falling back to the soft formulation.
const initialDeadline = 5 * time.Second

// Engine drives the destroy/repair loop: construct an initial solution, then
// repeatedly relax the current one into a fresh clone of the root, repair it
// with a bounded branch-and-bound, and accept or reject the result under the
// configured policy.
type Engine struct {
	cfg  LnsConfig
	root *LnsSpace
	rng  *rand.Rand
	log  *logrus.Entry
	mid  SearchMiddleware

	stats   SearchStats
	restart uint64

	// best is the incumbent, current the reference the next relaxation
	// starts from; both are solved and never mutated again
	best    *LnsSpace
	current *LnsSpace

	temperature float64
	intensity   int
	idle        int
	accepted    int
}

// NewEngine builds the root model for the instance and an engine around it.
// A nil logger disables logging.
func NewEngine(in *Instance, cfg LnsConfig, log *logrus.Entry) *Engine {
	if log == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		log = logrus.NewEntry(silent)
	}
	return &Engine{
		cfg:  cfg,
		root: NewLnsSpace(NewModel(in)),
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		log:  log,
		mid:  dummyMiddleware{},
	}
}

// SetMiddleware attaches a hook receiving every inner-search decision.
func (e *Engine) SetMiddleware(mid SearchMiddleware) { e.mid = mid }

// Stats returns the counters accumulated over all inner searches so far.
func (e *Engine) Stats() SearchStats { return e.stats }

// Solve runs the meta-loop until ctx expires (or the configured iteration
// cap is reached) and returns the best assignment found.
func (e *Engine) Solve(ctx context.Context) (*Assignment, error) {
	if e.root.S.Status() == StatusFailed {
		return nil, ErrRootFailed
	}
	if err := e.initialSolution(ctx); err != nil {
		return nil, err
	}

	e.temperature = e.cfg.Temperature
	e.intensity = e.cfg.InitFreeVariables
	e.idle = 0
	e.accepted = 0

	iterations := 0
	for {
		select {
		case <-ctx.Done():
			return e.finish()
		default:
		}
		if e.cfg.IterationCap > 0 && iterations >= e.cfg.IterationCap {
			return e.finish()
		}
		iterations++
		e.iterate(ctx)
	}
}

func (e *Engine) finish() (*Assignment, error) {
	if e.best == nil {
		return nil, ErrNoSolution
	}
	return newAssignment(e.best.Model), nil
}

// initialSolution tries the hard-constrained model under a short deadline,
// then falls back to the soft formulation and waits for whatever comes first.
func (e *Engine) initialSolution(ctx context.Context) error {
	strategy := BRANCH_DEGREE_MIN
	if e.cfg.RandomBranching {
		strategy = BRANCH_RANDOM
	}

	full := e.root.Clone()
	full.PostHardConstraints()
	ictx, cancel := context.WithTimeout(ctx, initialDeadline)
	sol, st := runSearch(ictx, full.S, -1, searchOptions{
		branch:    newBrancher(strategy, full.Roomslot, e.nextSeed()),
		mid:       e.mid,
		workers:   e.cfg.Workers,
		firstOnly: true,
	})
	cancel()
	e.stats.Merge(st)
	origin := full

	if sol == nil {
		relaxed := e.root.Clone()
		sol, st = runSearch(ctx, relaxed.S, -1, searchOptions{
			branch:    newBrancher(strategy, relaxed.Roomslot, e.nextSeed()),
			mid:       e.mid,
			workers:   e.cfg.Workers,
			firstOnly: true,
		})
		e.stats.Merge(st)
		origin = relaxed
	}
	if sol == nil {
		return ErrNoSolution
	}

	e.current = origin.withSpace(sol)
	e.best = e.current
	e.log.WithFields(logrus.Fields{
		"violations": e.current.Violations(),
		"cost":       e.current.S.Value(e.current.Z),
	}).Debug("initial solution")
	return nil
}

// iterate performs one destroy/repair step.
func (e *Engine) iterate(ctx context.Context) {
	neighbor := e.root.Clone()
	random := e.rng.Float64() < e.cfg.RandomRelaxation
	freed := e.current.Relax(neighbor, e.intensity, random, e.rng)

	delta := 0
	if e.cfg.Policy == POLICY_SA && e.current.Violations() == 0 {
		delta = e.saDelta()
	}
	neighbor.Constrain(e.current, e.cfg.Policy, delta)

	ictx, cancel := context.WithTimeout(ctx, time.Duration(freed*e.cfg.MsPerVariable)*time.Millisecond)
	sol, st := runSearch(ictx, neighbor.S, neighbor.Z, searchOptions{
		branch:  newBrancher(BRANCH_RANDOM, neighbor.Roomslot, e.nextSeed()),
		mid:     e.mid,
		workers: e.cfg.Workers,
	})
	cancel()
	e.stats.Merge(st)

	improvedBest := false
	if sol != nil {
		e.accepted++
		n := neighbor.withSpace(sol)
		key := solutionKey{violations: n.Violations(), cost: n.S.Value(n.Z)}

		switch {
		case key.improves(e.key(e.best)):
			e.best = n
			e.current = n
			improvedBest = true
			e.log.WithFields(logrus.Fields{
				"violations": key.violations,
				"cost":       key.cost,
				"intensity":  e.intensity,
			}).Debug("new best solution")
		case e.acceptsAsCurrent(key):
			e.current = n
		}
	}

	if improvedBest {
		e.idle = 0
		e.intensity = e.cfg.InitFreeVariables
	} else {
		e.idle++
	}

	if e.accepted >= e.cfg.NeighborsAccepted {
		e.temperature = math.Max(e.cfg.MinTemperature, e.temperature*e.cfg.CoolingRate)
		e.accepted = 0
		e.log.WithField("temperature", e.temperature).Debug("cooled down")
	}

	if e.idle > e.cfg.MaxIdleIterations {
		if e.intensity < e.maxIntensity() {
			e.intensity++
			e.idle = 0
			e.log.WithField("intensity", e.intensity).Debug("raised relaxation intensity")
		} else {
			e.perturb(ctx)
			e.intensity = e.cfg.InitFreeVariables
			e.idle = 0
		}
	}
}

// acceptsAsCurrent decides whether a non-best neighbor replaces current.
func (e *Engine) acceptsAsCurrent(key solutionKey) bool {
	switch e.cfg.Policy {
	case POLICY_SA, POLICY_NONE:
		return true
	case POLICY_STRICT:
		return key.improves(e.key(e.current))
	default:
		return key.atLeastAsGood(e.key(e.current))
	}
}

// perturb installs a fresh current obtained by a large random relaxation,
// searching without a deadline until anything at all is found.
func (e *Engine) perturb(ctx context.Context) {
	e.log.Debug("stagnation at maximum intensity, perturbing")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		neighbor := e.root.Clone()
		e.current.Relax(neighbor, 2*e.maxIntensity(), true, e.rng)
		sol, st := runSearch(ctx, neighbor.S, neighbor.Z, searchOptions{
			branch:    newBrancher(BRANCH_RANDOM, neighbor.Roomslot, e.nextSeed()),
			mid:       e.mid,
			workers:   e.cfg.Workers,
			firstOnly: true,
		})
		e.stats.Merge(st)
		if sol != nil {
			e.current = neighbor.withSpace(sol)
			return
		}
	}
}

func (e *Engine) key(s *LnsSpace) solutionKey {
	return solutionKey{violations: s.Violations(), cost: s.S.Value(s.Z)}
}

// saDelta computes the slack ceil(-T*ln(p)) the SA policy admits.
func (e *Engine) saDelta() int {
	p := e.cfg.DeltaProbability
	if p <= 0 {
		p = 1 - e.rng.Float64() // uniform in (0, 1]
	}
	return int(math.Ceil(-e.temperature * math.Log(p)))
}

// maxIntensity is the intensity ceiling: a fraction of the lecture count,
// never below the starting intensity.
func (e *Engine) maxIntensity() int {
	limit := int(math.Ceil(e.cfg.MaxFreeVariables * float64(e.root.RelaxableVars())))
	if limit < e.cfg.InitFreeVariables {
		limit = e.cfg.InitFreeVariables
	}
	return limit
}

// nextSeed derives a fresh seed so successive sub-searches are reproducibly
// distinct.
func (e *Engine) nextSeed() uint64 {
	e.restart++
	return e.cfg.Seed + e.restart
}
