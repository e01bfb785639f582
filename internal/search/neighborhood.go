package search

import (
	"math"

	"github.com/adam-rumpf/social-transit-solver/internal/memo"
	"github.com/adam-rumpf/social-transit-solver/internal/pqueue"
)

// Move is a candidate fleet change: an ADD on a line, a DROP on a line, or
// a SWAP combining both. -1 on either side means "none".
type Move struct {
	AddID  int
	DropID int
}

// candidate pairs a move with the objective value of the solution it
// produces.
type candidate struct {
	Move Move
	Obj  float64
}

// neighborhoodResult is what one call to neighborhoodSearch found: the two
// best surviving neighbors (by ascending objective), plus the lookup/eval
// counters the event log records, plus the singleton-neighbor signal that
// tells Solve to ban the current solution and jump to a random attractive
// solution, or to stop with ErrNoEscape when the attractive pool is empty.
type neighborhoodResult struct {
	Best      candidate
	Second    candidate
	HasSecond bool
	Singleton bool

	AddFirst, DropFirst, AddSecond, DropSecond, Swaps int
	ObjLookups, ConLookups, ObjEvals, ConEvals         int
}

func (s *Search) addFeasible(i int) bool {
	line := s.net.Lines[i]
	if s.solCurrent[i]+s.params.Step > line.MaxFleet {
		return false
	}
	t := line.VehicleType
	return s.currentVehicles[t]+s.params.Step <= s.net.Vehicles[t].MaxFleet
}

func (s *Search) dropFeasible(i int) bool {
	line := s.net.Lines[i]
	if s.solCurrent[i]-s.params.Step < line.MinFleet {
		return false
	}
	t := line.VehicleType
	return s.currentVehicles[t]-s.params.Step >= 0
}

// swapFeasible reports whether trading step vehicles from dropID to addID
// keeps both lines within their individual fleet bounds. Vehicle-type
// totals are untouched by a same-type swap, so there is nothing further to
// check there.
func (s *Search) swapFeasible(addID, dropID int) bool {
	if addID == dropID {
		return false
	}
	if s.net.Lines[addID].VehicleType != s.net.Lines[dropID].VehicleType {
		return false
	}
	if s.solCurrent[addID]+s.params.Step > s.net.Lines[addID].MaxFleet {
		return false
	}
	if s.solCurrent[dropID]-s.params.Step < s.net.Lines[dropID].MinFleet {
		return false
	}
	return true
}

// objEval returns the objective value of sol, consulting the memo first.
func (s *Search) objEval(sol []int, lookups, evals *int) float64 {
	if _, obj, ok := s.memo.GetQuick(sol); ok {
		*lookups++
		return obj
	}
	obj := s.obj.Calculate(sol)
	*evals++
	s.memo.PutPartial(sol, obj, 0)
	return obj
}

// conEval returns the full memo record for sol, running the constraint
// check if it has not been evaluated yet.
func (s *Search) conEval(sol []int, lookups, evals *int) memo.Record {
	if rec, ok := s.memo.Get(sol); ok && rec.Feas != memo.Unknown {
		*lookups++
		return rec
	}
	feas, ucc := s.con.Calculate(sol)
	*evals++
	s.memo.PatchFeas(sol, feas, memo.UserCost{Riding: ucc.Riding, Walking: ucc.Walking, Waiting: ucc.Waiting}, 0)
	rec, _ := s.memo.Get(sol)
	return rec
}

// tabu reports whether a move on line i is currently tabu, honoring the
// aspiration criterion: a tabu move is allowed through if its objective
// would beat the best-known solution.
func (s *Search) tabu(tenure []float64, i int, obj float64) bool {
	return tenure[i] > 0 && obj >= s.objBest
}

// neighborhoodSearch runs the two-pass candidate generation plus the SWAP
// pass described by the search driver's move model, returning the best and
// second-best surviving neighbors.
func (s *Search) neighborhoodSearch() neighborhoodResult {
	res := neighborhoodResult{Best: candidate{Move: Move{AddID: -1, DropID: -1}, Obj: math.Inf(1)}}

	order := s.rng.Perm(s.net.NumLines())

	resampled := false
	for {
		addHeap := make(pqueue.PriorityQueue[int], 0)
		dropHeap := make(pqueue.PriorityQueue[int], 0)
		visited := 0

		for _, i := range order {
			visited++
			if addHeap.Len() >= s.params.AddLim1 && dropHeap.Len() >= s.params.DropLim1 {
				break
			}
			if addHeap.Len() < s.params.AddLim1 && s.addFeasible(i) {
				mv := Move{AddID: i, DropID: -1}
				obj := s.objEval(s.makeMove(mv), &res.ObjLookups, &res.ObjEvals)
				if !s.tabu(s.addTenure, i, obj) {
					addHeap.PushItem(i, obj)
				}
			}
			if dropHeap.Len() < s.params.DropLim1 && s.dropFeasible(i) {
				mv := Move{AddID: -1, DropID: i}
				obj := s.objEval(s.makeMove(mv), &res.ObjLookups, &res.ObjEvals)
				if !s.tabu(s.dropTenure, i, obj) {
					dropHeap.PushItem(i, obj)
				}
			}
		}

		res.AddFirst, res.DropFirst = addHeap.Len(), dropHeap.Len()
		addSurvivors := s.drainSurvivors(&addHeap, s.params.AddLim2, func(i int) Move { return Move{AddID: i, DropID: -1} }, &res.ConLookups, &res.ConEvals)
		dropSurvivors := s.drainSurvivors(&dropHeap, s.params.DropLim2, func(i int) Move { return Move{AddID: -1, DropID: i} }, &res.ConLookups, &res.ConEvals)

		total := len(addSurvivors) + len(dropSurvivors)
		unexplored := visited < len(order)

		if total < 2 && unexplored && !resampled {
			for i := range s.addTenure {
				s.addTenure[i] = 0
				s.dropTenure[i] = 0
			}
			order = s.rng.Perm(s.net.NumLines())
			resampled = true
			continue
		}

		if total == 1 && !s.anyTabu() {
			res.Singleton = true
			return res
		}

		swapSurvivors := s.swapPass(addSurvivors, dropSurvivors, &res.Swaps, &res.ObjLookups, &res.ObjEvals, &res.ConLookups, &res.ConEvals)
		res.AddSecond, res.DropSecond = len(addSurvivors), len(dropSurvivors)

		final := make(pqueue.PriorityQueue[candidate], 0)
		for _, c := range addSurvivors {
			final.PushItem(c, c.Obj)
		}
		for _, c := range dropSurvivors {
			final.PushItem(c, c.Obj)
		}
		for _, c := range swapSurvivors {
			final.PushItem(c, c.Obj)
		}

		if final.Len() == 0 {
			res.Singleton = true
			return res
		}
		best, _ := final.PopItem()
		res.Best = best
		if final.Len() > 0 {
			second, _ := final.PopItem()
			res.Second = second
			res.HasSecond = true
		}
		return res
	}
}

func (s *Search) anyTabu() bool {
	for i := range s.addTenure {
		if s.addTenure[i] > 0 || s.dropTenure[i] > 0 {
			return true
		}
	}
	return false
}

// drainSurvivors pops candidates from heap in ascending objective order,
// running the constraint check on any whose feasibility is still unknown,
// and keeps the first limit that survive.
func (s *Search) drainSurvivors(heap *pqueue.PriorityQueue[int], limit int, build func(int) Move, lookups, evals *int) []candidate {
	survivors := make([]candidate, 0, limit)
	for heap.Len() > 0 && len(survivors) < limit {
		i, obj := heap.PopItem()
		mv := build(i)
		sol := s.makeMove(mv)
		rec := s.conEval(sol, lookups, evals)
		if rec.Feas != memo.Feasible {
			continue
		}
		survivors = append(survivors, candidate{Move: mv, Obj: obj})
	}
	return survivors
}

// swapPass walks the two survivor lists in a triangular pattern, pairing
// each ADD survivor with DROP survivors up to the same rank, and keeps the
// first N_swap feasible, evaluated combinations.
func (s *Search) swapPass(addSurvivors, dropSurvivors []candidate, swaps, objLookups, objEvals, conLookups, conEvals *int) []candidate {
	out := make([]candidate, 0, s.params.SwapLim)
	for oi := 0; oi < len(addSurvivors) && len(out) < s.params.SwapLim; oi++ {
		addID := addSurvivors[oi].Move.AddID
		limit := oi + 1
		if limit > len(dropSurvivors) {
			limit = len(dropSurvivors)
		}
		for di := 0; di < limit && len(out) < s.params.SwapLim; di++ {
			dropID := dropSurvivors[di].Move.DropID
			if !s.swapFeasible(addID, dropID) {
				continue
			}
			mv := Move{AddID: addID, DropID: dropID}
			sol := s.makeMove(mv)
			obj := s.objEval(sol, objLookups, objEvals)
			rec := s.conEval(sol, conLookups, conEvals)
			if rec.Feas != memo.Feasible {
				continue
			}
			out = append(out, candidate{Move: mv, Obj: obj})
			*swaps++
		}
	}
	return out
}

// makeMove applies a move to the current solution and returns the result
// without mutating s.solCurrent.
func (s *Search) makeMove(mv Move) []int {
	sol := make([]int, len(s.solCurrent))
	copy(sol, s.solCurrent)
	if mv.AddID >= 0 {
		sol[mv.AddID] += s.params.Step
	}
	if mv.DropID >= 0 {
		sol[mv.DropID] -= s.params.Step
	}
	return sol
}
