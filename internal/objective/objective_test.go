package objective_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/adam-rumpf/social-transit-solver/internal/network"
	"github.com/adam-rumpf/social-transit-solver/internal/objective"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// accessNetwork builds a network with one line connecting two stops, two
// population centers (one reached only through the line, one reached by a
// fixed direct walk), and one facility — enough structure for the fleet
// size to move the gravity metric through the line-served population.
func accessNetwork(t *testing.T) *network.Network {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "problem_data.tsv", "# comment\nName\tHorizon\nDemo\t1440\n")
	writeFile(t, dir, "node_data.tsv",
		"ID\tName\tType\tLine\tValue\n"+
			"0\tStopA\t0\t-1\t0\n"+
			"1\tStopB\t0\t-1\t0\n"+
			"2\tBoardA\t1\t0\t0\n"+
			"3\tBoardB\t1\t0\t0\n"+
			"4\tPop1\t2\t-1\t100\n"+
			"5\tPop2\t2\t-1\t100\n"+
			"6\tFac1\t3\t-1\t1\n")
	writeFile(t, dir, "vehicle_data.tsv", "Type\tName\tUB\tSeating\tCost\n0\tBus\t20\t40\t1000\n")
	writeFile(t, dir, "transit_data.tsv", "ID\tName\tType\tFleet\tCircuit\tScaling\tLB\tUB\n0\tLineX\t0\t5\t60\t0.5\t0\t10\n")
	writeFile(t, dir, "arc_data.tsv",
		"ID\tType\tLine\tTail\tHead\tTime\n"+
			"0\t1\t0\t0\t2\t1.0\n"+
			"1\t0\t0\t2\t3\t10.0\n"+
			"2\t2\t0\t3\t1\t1.0\n"+
			"3\t4\t-1\t4\t0\t5.0\n"+ // pop1 -> stop A
			"4\t4\t-1\t1\t6\t5.0\n"+ // stop B -> facility
			"5\t4\t-1\t5\t6\t100.0\n") // pop2 -> facility, direct and fleet-independent
	writeFile(t, dir, "od_data.tsv", "ID\tOrigin\tDestination\tVolume\n0\t0\t1\t50\n")

	net, err := network.Load(dir)
	require.NoError(t, err)
	return net
}

func writeObjectiveParams(t *testing.T, lowest int, exponent, multiplier float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "objective_data.tsv")
	content := "# comment\n" +
		"Unused\t0\n" +
		"Lowest Metrics\t" + strconv.Itoa(lowest) + "\n" +
		"Gravity Exponent\t" + strconv.FormatFloat(exponent, 'f', -1, 64) + "\n" +
		"Multiplier\t" + strconv.FormatFloat(multiplier, 'f', -1, 64) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParams(t *testing.T) {
	p, err := objective.LoadParams(writeObjectiveParams(t, 1, 2.0, 1.0))
	require.NoError(t, err)

	assert.Equal(t, 1, p.LowestMetrics)
	assert.Equal(t, 2.0, p.GravityExponent)
	assert.Equal(t, 1.0, p.Multiplier)
}

func TestObjectiveCalculateIsNegative(t *testing.T) {
	net := accessNetwork(t)
	params, err := objective.LoadParams(writeObjectiveParams(t, 1, 2.0, 1.0))
	require.NoError(t, err)

	obj := objective.New(net, params)
	value := obj.Calculate([]int{5})

	assert.Less(t, value, 0.0)
}

func TestObjectiveRespondsToFleetSize(t *testing.T) {
	net := accessNetwork(t)
	params, err := objective.LoadParams(writeObjectiveParams(t, 1, 2.0, 1.0))
	require.NoError(t, err)

	obj := objective.New(net, params)
	sparse := obj.Calculate([]int{1})
	frequent := obj.Calculate([]int{10})

	// Pop1's distance to the facility runs through the line, so its headway
	// (and hence the gravity metric that depends on it) changes with fleet
	// size; Pop2's direct walk does not, so the two fleet sizes must differ.
	assert.NotEqual(t, sparse, frequent)
}

