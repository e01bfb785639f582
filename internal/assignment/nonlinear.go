package assignment

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/adam-rumpf/social-transit-solver/internal/network"
)

// NonlinearParams holds the conical-congestion Frank-Wolfe tuning values
// read from the assignment parameter file.
type NonlinearParams struct {
	ErrorTol      float64
	FlowTol       float64
	WaitingTol    float64
	MaxIterations int
	ConicalAlpha  float64
	ConicalBeta   float64
}

// LoadNonlinearParams reads the assignment parameter file: one leading
// comment line followed by seven label/value rows (row 5 is unused by the
// model and is skipped, matching original_source/assignment_nonlinear.cpp).
func LoadNonlinearParams(path string) (NonlinearParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return NonlinearParams{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var p NonlinearParams
	scanner := bufio.NewScanner(f)
	scanner.Scan() // skip the leading comment line

	values := make([]string, 0, 7)
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
		return NonlinearParams{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(values) < 7 {
		return NonlinearParams{}, fmt.Errorf("%s: expected 7 parameter rows, got %d", path, len(values))
	}

	if p.ErrorTol, err = strconv.ParseFloat(values[0], 64); err != nil {
		return p, err
	}
	if p.FlowTol, err = strconv.ParseFloat(values[1], 64); err != nil {
		return p, err
	}
	if p.WaitingTol, err = strconv.ParseFloat(values[2], 64); err != nil {
		return p, err
	}
	maxIter, err := strconv.Atoi(values[3])
	if err != nil {
		return p, err
	}
	p.MaxIterations = maxIter
	// values[4] is unused (row 5, skipped by the original).
	if p.ConicalAlpha, err = strconv.ParseFloat(values[5], 64); err != nil {
		return p, err
	}
	if p.ConicalBeta, err = strconv.ParseFloat(values[6], 64); err != nil {
		return p, err
	}
	return p, nil
}

// NonlinearAssignment linearizes the congested assignment model via the
// Frank-Wolfe algorithm, using ConstantAssignment as its inner submodel.
type NonlinearAssignment struct {
	net    *network.Network
	sub    *ConstantAssignment
	params NonlinearParams
}

// NewNonlinearAssignment binds the model to a network and its tuning
// parameters.
func NewNonlinearAssignment(net *network.Network, params NonlinearParams) *NonlinearAssignment {
	return &NonlinearAssignment{net: net, sub: NewConstantAssignment(net), params: params}
}

// Calculate runs the Frank-Wolfe loop to a fixed point (or iteration cap)
// for the given fleet vector, warm-started from initial.
func (n *NonlinearAssignment) Calculate(fleet []int, initial Solution) Solution {
	net := n.net
	p := n.params

	capacities := make([]float64, len(net.CoreArcs))
	for i := range capacities {
		capacities[i] = math.Inf(1)
	}
	for _, a := range net.LineArcs {
		capacities[a.ID] = net.Lines[a.Line].Capacity(fleet[a.Line])
	}

	arcCosts := make([]float64, len(net.CoreArcs))
	for _, a := range net.CoreArcs {
		arcCosts[a.ID] = n.arcCost(a.ID, initial.Flows[a.ID], capacities[a.ID])
	}

	previous := n.sub.Calculate(fleet, arcCosts)

	iteration := 0
	errBound := math.Inf(1)
	flowChange, waitChange := math.Inf(1), math.Inf(1)

	for iteration < p.MaxIterations && errBound > p.ErrorTol && (flowChange > p.FlowTol || waitChange > p.WaitingTol) {
		iteration++

		for _, a := range net.CoreArcs {
			arcCosts[a.ID] = n.arcCost(a.ID, previous.Flows[a.ID], capacities[a.ID])
		}

		next := n.sub.Calculate(fleet, arcCosts)

		errBound = n.objError(capacities, previous.Flows, previous.Waiting, next.Flows, next.Waiting)
		flowChange, waitChange = n.solutionUpdate(1-(1.0/float64(iteration)), &previous, next)
	}

	log.WithField("iterations", iteration).Debug("nonlinear assignment converged")
	return previous
}

// arcCost evaluates the conical congestion function for one arc.
func (n *NonlinearAssignment) arcCost(id int, flow, capacity float64) float64 {
	if capacity == 0 {
		return math.Inf(1)
	}
	base := n.net.CoreArcs[id].Cost
	if capacity >= math.Inf(1) || flow == 0 {
		return base
	}
	ratio := 1 - (flow / capacity)
	alpha, beta := n.params.ConicalAlpha, n.params.ConicalBeta
	return base * (2 + math.Sqrt(math.Pow(alpha*ratio, 2)+math.Pow(beta, 2)) - (alpha * ratio) - beta)
}

// objError bounds the absolute error between two successive linearized
// solutions, used as the Frank-Wolfe loop's stopping criterion.
func (n *NonlinearAssignment) objError(capacities, flowsOld []float64, waitOld float64, flowsNew []float64, waitNew float64) float64 {
	total := waitOld - waitNew
	for _, a := range n.net.CoreArcs {
		total += n.arcCost(a.ID, flowsOld[a.ID], capacities[a.ID]) * (flowsOld[a.ID] - flowsNew[a.ID])
	}
	return math.Abs(total)
}

// solutionUpdate advances current toward next by the successive-average
// weight lambda, updating current in place, and returns the maximum
// elementwise flow change and the waiting time change.
func (n *NonlinearAssignment) solutionUpdate(lambda float64, current *Solution, next Solution) (flowChange, waitChange float64) {
	updated := lambda*current.Waiting + (1-lambda)*next.Waiting
	waitChange = math.Abs(current.Waiting - updated)
	current.Waiting = updated

	for i := range current.Flows {
		updated := lambda*current.Flows[i] + (1-lambda)*next.Flows[i]
		if d := math.Abs(current.Flows[i] - updated); d > flowChange {
			flowChange = d
		}
		current.Flows[i] = updated
	}
	return flowChange, waitChange
}
