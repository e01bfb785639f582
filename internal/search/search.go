// Package search implements the tabu-search/simulated-annealing driver
// that allocates fleet sizes across lines to maximize the worst-served
// neighborhoods' accessibility subject to a user-cost constraint.
package search

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adam-rumpf/social-transit-solver/internal/constraint"
	"github.com/adam-rumpf/social-transit-solver/internal/memo"
	"github.com/adam-rumpf/social-transit-solver/internal/metrics"
	"github.com/adam-rumpf/social-transit-solver/internal/network"
	"github.com/adam-rumpf/social-transit-solver/internal/objective"
)

var log = logrus.StandardLogger()

// ErrNoEscape is returned by Solve when the neighborhood search collapses
// to a single, banned neighbor and the attractive pool is empty, leaving no
// way to continue.
var ErrNoEscape = errors.New("search: neighborhood exhausted with no attractive solution to escape to")

// Search owns every piece of mutable state the TS/SA driver touches:
// the current and best solutions, tabu tenure vectors, SA temperature and
// tenure scalars, the attractive-solution pool, and the vehicle-type usage
// totals the move feasibility checks consult.
type Search struct {
	net *network.Network
	obj *objective.Objective
	con *constraint.Constraint
	memo *memo.Memo

	eventLog *EventLog
	memPath   string
	finalPath string
	solPath   string

	params Params
	rng    *rand.Rand

	addTenure  []float64
	dropTenure []float64

	solCurrent []int
	solBest    []int
	objCurrent float64
	objBest    float64

	iteration int
	nonimpIn  int
	nonimpOut int
	tenure    float64
	temperature float64

	attractive []AttractiveSolution

	currentVehicles []int
}

// New builds a Search from a freshly-loaded or resumed MemoryState.
func New(net *network.Network, obj *objective.Objective, con *constraint.Constraint, m *memo.Memo, eventLog *EventLog, memPath, finalPath, solPath string, params Params, state MemoryState, seed int64) *Search {
	s := &Search{
		net:       net,
		obj:       obj,
		con:       con,
		memo:      m,
		eventLog:  eventLog,
		memPath:   memPath,
		finalPath: finalPath,
		solPath:   solPath,
		params:    params,
		rng:       rand.New(rand.NewSource(seed)),

		addTenure:  state.AddTenure,
		dropTenure: state.DropTenure,
		solCurrent: state.SolCurrent,
		solBest:    state.SolBest,
		objCurrent: state.ObjCurrent,
		objBest:    state.ObjBest,
		iteration:  state.Iteration,
		nonimpIn:   state.NonimpIn,
		nonimpOut:  state.NonimpOut,
		tenure:     state.Tenure,
		temperature: state.Temperature,
		attractive: state.Attractive,
	}
	if s.addTenure == nil {
		s.addTenure = make([]float64, net.NumLines())
	}
	if s.dropTenure == nil {
		s.dropTenure = make([]float64, net.NumLines())
	}
	s.currentVehicles = make([]int, len(net.Vehicles))
	s.vehicleTotals()
	return s
}

// NewMemoryState builds the MemoryState for a fresh (non-pickup) search,
// warm-starting from the initial solution log's last row.
func NewMemoryState(net *network.Network, params Params, initialSol []int, initialObj float64) MemoryState {
	return MemoryState{
		AddTenure:   make([]float64, net.NumLines()),
		DropTenure:  make([]float64, net.NumLines()),
		SolCurrent:  initialSol,
		SolBest:     append([]int(nil), initialSol...),
		ObjCurrent:  initialObj,
		ObjBest:     initialObj,
		Iteration:   0,
		NonimpIn:    0,
		NonimpOut:   0,
		Tenure:      params.TenureInit,
		Temperature: params.T0,
	}
}

func (s *Search) vehicleTotals() {
	for i := range s.currentVehicles {
		s.currentVehicles[i] = 0
	}
	for i, fleet := range s.solCurrent {
		s.currentVehicles[s.net.Lines[i].VehicleType] += fleet
	}
}

// Solve runs the outer loop until max_iterations is reached, ctx is
// cancelled, or the neighborhood collapses with no escape.
func (s *Search) Solve(ctx context.Context) error {
	for s.iteration < s.params.MaxIterations {
		select {
		case <-ctx.Done():
			if err := s.persist(); err != nil {
				return err
			}
			if err := s.eventLog.Halt(s.iteration); err != nil {
				return err
			}
			return ctx.Err()
		default:
		}

		start := time.Now()
		if err := s.iterate(start); err != nil {
			return err
		}
	}
	return s.persist()
}

func (s *Search) iterate(start time.Time) error {
	res := s.neighborhoodSearch()

	if res.Singleton {
		s.memo.Ban(s.solCurrent)
		log.WithField("iteration", s.iteration).Warn("neighborhood collapsed to a single candidate, banning current solution")
		if len(s.attractive) == 0 {
			return ErrNoEscape
		}
		s.jumpToAttractive()
		return s.logAndAdvance(res, EventEmptyNeighborhood, false, 0, start, true)
	}

	baseSol := append([]int(nil), s.solCurrent...)
	delta := res.Best.Obj - s.objCurrent
	newBest := false
	eventCase := EventRejected
	saProb := 0.0

	if delta < 0 {
		s.solCurrent = s.makeMoveFrom(baseSol, res.Best.Move)
		s.objCurrent = res.Best.Obj
		s.tenure = s.params.TenureInit
		s.nonimpOut = 0
		s.vehicleTotals()
		s.markReverseTabu(res.Best.Move)
		if s.objCurrent < s.objBest {
			s.objBest = s.objCurrent
			s.solBest = append([]int(nil), s.solCurrent...)
			newBest = true
		}
		eventCase = EventImprovement
	} else {
		s.nonimpIn++
		s.nonimpOut++
		saProb = math.Exp(-delta / s.temperature)
		if s.rng.Float64() < saProb {
			s.nonimpIn = 0
			s.tenure *= s.params.TenureFactor
			s.solCurrent = s.makeMoveFrom(baseSol, res.Best.Move)
			s.objCurrent = res.Best.Obj
			s.vehicleTotals()
			eventCase = EventAcceptedBySA
			if res.HasSecond {
				s.pushAttractive(s.makeMoveFrom(baseSol, res.Second.Move), res.Second.Obj)
			}
		} else {
			s.pushAttractive(s.makeMoveFrom(baseSol, res.Best.Move), res.Best.Obj)
		}
	}

	jump := false
	if s.nonimpIn > s.params.NonimpInMax {
		s.nonimpIn = 0
		s.nonimpOut++
		s.tenure *= s.params.TenureFactor
		if len(s.attractive) > 0 {
			s.jumpToAttractive()
			jump = true
		}
	}
	if s.nonimpOut > s.params.NonimpOutMax {
		s.tenure = s.params.TenureInit
	}

	s.decayTenures()
	s.temperature *= s.params.TempFactor

	return s.logAndAdvance(res, eventCase, newBest, saProb, start, jump)
}

func (s *Search) logAndAdvance(res neighborhoodResult, eventCase EventCase, newBest bool, saProb float64, start time.Time, jump ...bool) error {
	j := false
	if len(jump) > 0 {
		j = jump[0]
	}
	s.iteration++

	ev := IterationEvent{
		Iteration:   s.iteration,
		Tenure:      s.tenure,
		Temperature: s.temperature,
		ObjCurrent:  s.objCurrent,
		ObjBest:     s.objBest,
		NewBest:     newBest,
		EventCase:   eventCase,
		SAProb:      saProb,
		Jump:        j,
		NonimpIn:    s.nonimpIn,
		NonimpOut:   s.nonimpOut,
		AddID:       res.Best.Move.AddID,
		DropID:      res.Best.Move.DropID,
		ObjLookups:  res.ObjLookups,
		ConLookups:  res.ConLookups,
		ObjEvals:    res.ObjEvals,
		ConEvals:    res.ConEvals,
		AddFirst:    res.AddFirst,
		DropFirst:   res.DropFirst,
		AddSecond:   res.AddSecond,
		DropSecond:  res.DropSecond,
		Swaps:       res.Swaps,
		Duration:    time.Since(start),
	}
	s.recordMetrics(ev)

	if err := s.eventLog.LogIteration(ev, s.solCurrent); err != nil {
		return err
	}
	return s.persist()
}

func (s *Search) recordMetrics(ev IterationEvent) {
	metrics.IterationsTotal.WithLabelValues(ev.EventCase.String()).Inc()
	metrics.IterationDuration.Observe(ev.Duration.Seconds())
	metrics.ObjectiveCurrent.Set(ev.ObjCurrent)
	metrics.ObjectiveBest.Set(ev.ObjBest)
	metrics.Temperature.Set(ev.Temperature)
	metrics.Tenure.Set(ev.Tenure)
	metrics.AttractivePoolSize.Set(float64(len(s.attractive)))
	metrics.MemoLookupsTotal.WithLabelValues("objective", "hit").Add(float64(ev.ObjLookups))
	metrics.MemoLookupsTotal.WithLabelValues("objective", "miss").Add(float64(ev.ObjEvals))
	metrics.MemoLookupsTotal.WithLabelValues("constraint", "hit").Add(float64(ev.ConLookups))
	metrics.MemoLookupsTotal.WithLabelValues("constraint", "miss").Add(float64(ev.ConEvals))
}

// markReverseTabu sets the tenure that forbids immediately undoing an
// improving move: DROP becomes tabu on a line that was just ADDed, and
// vice versa.
func (s *Search) markReverseTabu(mv Move) {
	if mv.AddID >= 0 {
		s.dropTenure[mv.AddID] = s.tenure
	}
	if mv.DropID >= 0 {
		s.addTenure[mv.DropID] = s.tenure
	}
}

func (s *Search) decayTenures() {
	for i := range s.addTenure {
		if s.addTenure[i] > 0 {
			s.addTenure[i]--
		}
		if s.dropTenure[i] > 0 {
			s.dropTenure[i]--
		}
	}
}

func (s *Search) makeMoveFrom(base []int, mv Move) []int {
	sol := append([]int(nil), base...)
	if mv.AddID >= 0 {
		sol[mv.AddID] += s.params.Step
	}
	if mv.DropID >= 0 {
		sol[mv.DropID] -= s.params.Step
	}
	return sol
}

// pushAttractive adds a solution to the diversification pool, trimming a
// uniformly random element (which may be the one just added) if the pool
// grows past N_att.
func (s *Search) pushAttractive(sol []int, obj float64) {
	s.attractive = append(s.attractive, AttractiveSolution{Sol: sol, Obj: obj})
	if len(s.attractive) > s.params.AttractiveMax {
		drop := s.rng.Intn(len(s.attractive))
		s.attractive = append(s.attractive[:drop], s.attractive[drop+1:]...)
	}
}

// jumpToAttractive removes a uniformly random solution from the pool and
// adopts it as the current solution.
func (s *Search) jumpToAttractive() {
	if len(s.attractive) == 0 {
		return
	}
	idx := s.rng.Intn(len(s.attractive))
	picked := s.attractive[idx]
	s.attractive = append(s.attractive[:idx], s.attractive[idx+1:]...)
	s.solCurrent = picked.Sol
	s.objCurrent = picked.Obj
	s.vehicleTotals()
}

func (s *Search) persist() error {
	state := MemoryState{
		AddTenure:   s.addTenure,
		DropTenure:  s.dropTenure,
		SolCurrent:  s.solCurrent,
		SolBest:     s.solBest,
		ObjCurrent:  s.objCurrent,
		ObjBest:     s.objBest,
		Iteration:   s.iteration,
		NonimpIn:    s.nonimpIn,
		NonimpOut:   s.nonimpOut,
		Tenure:      s.tenure,
		Temperature: s.temperature,
		Attractive:  s.attractive,
	}
	if err := SaveMemory(s.memPath, s.finalPath, state); err != nil {
		return err
	}
	if s.solPath != "" {
		if err := s.memo.Save(s.solPath); err != nil {
			return err
		}
	}
	return nil
}

// ExhaustiveSearch runs the post-pass described for when the exhaustive
// flag is set: starting from the best-known solution, repeatedly apply the
// strictly-best feasible single ADD or DROP until none improves.
func (s *Search) ExhaustiveSearch() error {
	s.solCurrent = append([]int(nil), s.solBest...)
	s.objCurrent = s.objBest
	s.vehicleTotals()

	for {
		bestMove, bestObj, found := s.bestNeighbor()
		if !found || bestObj >= s.objCurrent {
			break
		}
		s.solCurrent = s.makeMove(bestMove)
		s.objCurrent = bestObj
		s.vehicleTotals()
		if s.objCurrent < s.objBest {
			s.objBest = s.objCurrent
			s.solBest = append([]int(nil), s.solCurrent...)
		}
	}
	return s.persist()
}

// bestNeighbor enumerates every feasible single ADD and DROP of the
// configured step and returns the strictly best one.
func (s *Search) bestNeighbor() (Move, float64, bool) {
	found := false
	var best Move
	bestObj := math.Inf(1)
	var lookups, evals int

	for i := 0; i < s.net.NumLines(); i++ {
		if s.addFeasible(i) {
			mv := Move{AddID: i, DropID: -1}
			obj := s.objEval(s.makeMove(mv), &lookups, &evals)
			rec := s.conEval(s.makeMove(mv), &lookups, &evals)
			if rec.Feas == memo.Feasible && obj < bestObj {
				best, bestObj, found = mv, obj, true
			}
		}
		if s.dropFeasible(i) {
			mv := Move{AddID: -1, DropID: i}
			obj := s.objEval(s.makeMove(mv), &lookups, &evals)
			rec := s.conEval(s.makeMove(mv), &lookups, &evals)
			if rec.Feas == memo.Feasible && obj < bestObj {
				best, bestObj, found = mv, obj, true
			}
		}
	}
	return best, bestObj, found
}

// Exhaustive reports whether the search parameters request the exhaustive
// post-pass once the iteration budget is spent.
func (s *Search) Exhaustive() bool {
	return s.params.Exhaustive
}

// SolutionBest returns the best-known solution and its objective value.
func (s *Search) SolutionBest() ([]int, float64) {
	return s.solBest, s.objBest
}
