package assignment_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adam-rumpf/social-transit-solver/internal/assignment"
	"github.com/adam-rumpf/social-transit-solver/internal/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoStopNetwork builds a fixture matching spec §8 scenario (a): two stops
// joined by a single line, with all demand flowing from A to B.
func twoStopNetwork(t *testing.T) *network.Network {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	write("problem_data.tsv", "# comment\nName\tHorizon\nDemo\t1440\n")
	write("node_data.tsv",
		"ID\tName\tType\tLine\tValue\n"+
			"0\tStopA\t0\t-1\t0\n"+
			"1\tStopB\t0\t-1\t0\n"+
			"2\tBoardA\t1\t0\t0\n"+
			"3\tBoardB\t1\t0\t0\n")
	write("vehicle_data.tsv", "Type\tName\tUB\tSeating\tCost\n0\tBus\t20\t40\t1000\n")
	write("transit_data.tsv", "ID\tName\tType\tFleet\tCircuit\tScaling\tLB\tUB\n0\tLineX\t0\t5\t60\t0.5\t0\t10\n")
	write("arc_data.tsv",
		"ID\tType\tLine\tTail\tHead\tTime\n"+
			"0\t1\t0\t0\t2\t1.0\n"+
			"1\t0\t0\t2\t3\t10.0\n"+
			"2\t2\t0\t3\t1\t1.0\n")
	write("od_data.tsv", "ID\tOrigin\tDestination\tVolume\n0\t0\t1\t50\n")

	net, err := network.Load(dir)
	require.NoError(t, err)
	return net
}

func TestConstantAssignmentCarriesDemand(t *testing.T) {
	net := twoStopNetwork(t)
	model := assignment.NewConstantAssignment(net)

	fleet := []int{5}
	arcCosts := make([]float64, len(net.CoreArcs))
	for _, a := range net.CoreArcs {
		arcCosts[a.ID] = a.Cost
	}

	sol := model.Calculate(fleet, arcCosts)

	require.Len(t, sol.Flows, len(net.CoreArcs))
	for _, a := range net.CoreArcs {
		assert.InDelta(t, 50.0, sol.Flows[a.ID], 1e-6, "arc %d should carry all 50 units of demand", a.ID)
	}
	assert.Greater(t, sol.Waiting, 0.0)
}

func TestConstantAssignmentZeroFleetStarvesLine(t *testing.T) {
	net := twoStopNetwork(t)
	model := assignment.NewConstantAssignment(net)

	fleet := []int{0}
	arcCosts := make([]float64, len(net.CoreArcs))
	for _, a := range net.CoreArcs {
		arcCosts[a.ID] = a.Cost
	}

	sol := model.Calculate(fleet, arcCosts)

	for _, a := range net.CoreArcs {
		assert.Equal(t, 0.0, sol.Flows[a.ID], "a line with zero fleet carries no flow")
	}
}
