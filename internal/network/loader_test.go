package network_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adam-rumpf/social-transit-solver/internal/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile is a small test helper that writes a TSV fixture to dir/name.
func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// A minimal two-stop, one-line, one-facility, one-population network,
// matching the shape of spec §8 scenario (a): two stops A and B with a
// single bus line between them.
func writeFixture(t *testing.T) string {
	dir := t.TempDir()

	writeFile(t, dir, "problem_data.tsv", "# comment\nName\tHorizon\nDemo\t1440\n")
	writeFile(t, dir, "node_data.tsv",
		"ID\tName\tType\tLine\tValue\n"+
			"0\tStopA\t0\t-1\t0\n"+
			"1\tStopB\t0\t-1\t0\n"+
			"2\tBoardA\t1\t0\t0\n"+
			"3\tBoardB\t1\t0\t0\n"+
			"4\tPop1\t2\t-1\t100\n"+
			"5\tFac1\t3\t-1\t1\n")
	writeFile(t, dir, "vehicle_data.tsv",
		"Type\tName\tUB\tSeating\tCost\n"+
			"0\tBus\t20\t40\t1000\n")
	writeFile(t, dir, "transit_data.tsv",
		"ID\tName\tType\tFleet\tCircuit\tScaling\tLB\tUB\n"+
			"0\tLineX\t0\t5\t60\t0.5\t0\t10\n")
	writeFile(t, dir, "arc_data.tsv",
		"ID\tType\tLine\tTail\tHead\tTime\n"+
			"0\t1\t0\t0\t2\t1.0\n"+ // boarding A
			"1\t0\t0\t2\t3\t10.0\n"+ // line arc
			"2\t2\t0\t3\t1\t1.0\n"+ // alighting B
			"3\t4\t-1\t4\t0\t5.0\n"+ // access pop->stop A
			"4\t4\t-1\t0\t5\t5.0\n") // access stop A->fac
	writeFile(t, dir, "od_data.tsv",
		"ID\tOrigin\tDestination\tVolume\n"+
			"0\t0\t1\t50\n")

	return dir
}

func TestLoadBuildsNetwork(t *testing.T) {
	dir := writeFixture(t)

	net, err := network.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 1440.0, net.Horizon)
	assert.Len(t, net.StopNodes, 2)
	assert.Len(t, net.BoardingNodes, 2)
	assert.Len(t, net.PopulationNodes, 1)
	assert.Len(t, net.FacilityNodes, 1)
	assert.Len(t, net.Vehicles, 1)
	require.Len(t, net.Lines, 1)

	line := net.Lines[0]
	assert.Equal(t, 0, line.VehicleType)
	assert.Equal(t, 0, line.MinFleet)
	assert.Equal(t, 10, line.MaxFleet)
	assert.Equal(t, 60.0, line.Circuit)
	assert.Equal(t, 40.0, line.Seating)
	assert.InDelta(t, 5.0/60.0, line.Frequency(5), 1e-9)
	assert.InDelta(t, 12.0, line.Headway(5), 1e-9)
	assert.True(t, line.Headway(0) > 1e300) // +Inf
	assert.Len(t, line.BoardingArcs, 1)
	assert.Len(t, line.LineArcs, 1)

	require.Len(t, net.CoreArcs, 3)
	assert.Greater(t, net.CoreArcs[0].Cost, 1.0) // boarding arc padded by epsilon
	assert.Greater(t, net.CoreArcs[2].Cost, 1.0) // alighting arc padded by epsilon
	assert.Equal(t, 10.0, net.CoreArcs[1].Cost)  // line arc cost untouched

	assert.Len(t, net.AccessArcs, 2)

	demandNode := net.Nodes[net.StopNodes[1]]
	assert.Equal(t, 50.0, demandNode.IncomingDemand[0])
}

func TestLoadMissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := network.Load(dir)
	assert.Error(t, err)
}
