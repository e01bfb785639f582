// Package constraint evaluates user-cost feasibility for a candidate fleet
// allocation, warm-starting the nonlinear assignment model between calls.
package constraint

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/adam-rumpf/social-transit-solver/internal/assignment"
	"github.com/adam-rumpf/social-transit-solver/internal/memo"
	"github.com/adam-rumpf/social-transit-solver/internal/network"
)

// UserCostComponents is the riding/walking/waiting breakdown produced by
// Calculate, in solution-log column order.
type UserCostComponents struct {
	Riding  float64
	Walking float64
	Waiting float64
}

// Params holds the feasibility bound and the weighting of each user-cost
// component, read from the user cost parameter file.
type Params struct {
	InitialUserCost   float64
	PercentIncrease   float64
	RidingWeight      float64
	WalkingWeight     float64
	WaitingWeight     float64
}

// LoadParams reads the user cost parameter file: a leading comment line
// followed by six label/value rows (row 3 is unused, matching
// original_source/constraints.cpp).
func LoadParams(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // skip comment line

	values := make([]string, 0, 6)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			break
		}
		values = append(values, strings.TrimSpace(fields[1]))
	}
	if err := scanner.Err(); err != nil {
		return Params{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(values) < 6 {
		return Params{}, fmt.Errorf("%s: expected 6 parameter rows, got %d", path, len(values))
	}

	var p Params
	var parseErr error
	parse := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && parseErr == nil {
			parseErr = err
		}
		return v
	}

	p.InitialUserCost = parse(values[0])
	p.PercentIncrease = parse(values[1])
	// values[2] is unused (row 3, skipped by the original).
	p.RidingWeight = parse(values[3])
	p.WalkingWeight = parse(values[4])
	p.WaitingWeight = parse(values[5])
	if parseErr != nil {
		return Params{}, parseErr
	}
	return p, nil
}

// Constraint wraps the nonlinear assignment model and evaluates user-cost
// feasibility for a fleet allocation.
type Constraint struct {
	net        *network.Network
	assignment *assignment.NonlinearAssignment
	params     Params

	warm assignment.Solution // carried between calls to warm-start the Frank-Wolfe loop
}

// New binds a Constraint to a network, its nonlinear assignment model, and
// its feasibility parameters.
func New(net *network.Network, model *assignment.NonlinearAssignment, params Params) *Constraint {
	return &Constraint{
		net:        net,
		assignment: model,
		params:     params,
		warm:       assignment.Solution{Flows: make([]float64, len(net.CoreArcs))},
	}
}

// Calculate evaluates the assignment model for sol, warm-started from the
// previous call's result, and returns whether the resulting user cost
// stays within the feasibility bound along with its components. A negative
// PercentIncrease disables the bound entirely: the Frank-Wolfe solve and
// the constraint check are both skipped and feasibility is reported as
// Unknown with zero user-cost components.
func (c *Constraint) Calculate(sol []int) (feas memo.Feasibility, ucc UserCostComponents) {
	if c.params.PercentIncrease < 0 {
		return memo.Unknown, UserCostComponents{}
	}

	c.warm = c.assignment.Calculate(sol, c.warm)

	ucc = c.userCostComponents()
	total := c.params.RidingWeight*ucc.Riding + c.params.WalkingWeight*ucc.Walking + c.params.WaitingWeight*ucc.Waiting
	feas = memo.Infeasible
	if total <= (1+c.params.PercentIncrease)*c.params.InitialUserCost {
		feas = memo.Feasible
	}
	return feas, ucc
}

func (c *Constraint) userCostComponents() UserCostComponents {
	flows := c.warm.Flows
	riding := lo.SumBy(c.net.LineArcs, func(a *network.Arc) float64 {
		return flows[a.ID] * a.Cost
	})
	walking := lo.SumBy(c.net.WalkingArcs, func(a *network.Arc) float64 {
		return flows[a.ID] * a.Cost
	})
	return UserCostComponents{Riding: riding, Walking: walking, Waiting: c.warm.Waiting}
}
