package constraint_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/adam-rumpf/social-transit-solver/internal/assignment"
	"github.com/adam-rumpf/social-transit-solver/internal/constraint"
	"github.com/adam-rumpf/social-transit-solver/internal/memo"
	"github.com/adam-rumpf/social-transit-solver/internal/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func twoStopNetwork(t *testing.T) *network.Network {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "problem_data.tsv", "# comment\nName\tHorizon\nDemo\t1440\n")
	writeFile(t, dir, "node_data.tsv",
		"ID\tName\tType\tLine\tValue\n"+
			"0\tStopA\t0\t-1\t0\n"+
			"1\tStopB\t0\t-1\t0\n"+
			"2\tBoardA\t1\t0\t0\n"+
			"3\tBoardB\t1\t0\t0\n")
	writeFile(t, dir, "vehicle_data.tsv", "Type\tName\tUB\tSeating\tCost\n0\tBus\t20\t40\t1000\n")
	writeFile(t, dir, "transit_data.tsv", "ID\tName\tType\tFleet\tCircuit\tScaling\tLB\tUB\n0\tLineX\t0\t5\t60\t0.5\t0\t10\n")
	writeFile(t, dir, "arc_data.tsv",
		"ID\tType\tLine\tTail\tHead\tTime\n"+
			"0\t1\t0\t0\t2\t1.0\n"+
			"1\t0\t0\t2\t3\t10.0\n"+
			"2\t2\t0\t3\t1\t1.0\n")
	writeFile(t, dir, "od_data.tsv", "ID\tOrigin\tDestination\tVolume\n0\t0\t1\t50\n")

	net, err := network.Load(dir)
	require.NoError(t, err)
	return net
}

func writeAssignmentParams(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assignment_data.tsv")
	content := "# comment\n" +
		"Error Tolerance\t0.01\n" +
		"Flow Tolerance\t0.01\n" +
		"Waiting Tolerance\t0.01\n" +
		"Max Iterations\t20\n" +
		"Unused\t0\n" +
		"Conical Alpha\t0.15\n" +
		"Conical Beta\t4.0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeUserCostParams(t *testing.T, dir string, initial, percentIncrease float64) string {
	t.Helper()
	path := filepath.Join(dir, "user_cost_data.tsv")
	content := "# comment\n" +
		"Initial User Cost\t" + floatStr(initial) + "\n" +
		"Percent Increase\t" + floatStr(percentIncrease) + "\n" +
		"Unused\t0\n" +
		"Riding Weight\t1.0\n" +
		"Walking Weight\t1.0\n" +
		"Waiting Weight\t1.0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func floatStr(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func TestConstraintFeasibleWithGenerousBound(t *testing.T) {
	net := twoStopNetwork(t)
	params, err := assignment.LoadNonlinearParams(writeAssignmentParams(t))
	require.NoError(t, err)
	model := assignment.NewNonlinearAssignment(net, params)

	dir := t.TempDir()
	ucParams, err := constraint.LoadParams(writeUserCostParams(t, dir, 100000, 1.0))
	require.NoError(t, err)

	c := constraint.New(net, model, ucParams)
	feas, ucc := c.Calculate([]int{5})

	assert.Equal(t, memo.Feasible, feas)
	assert.Greater(t, ucc.Riding, 0.0)
}

func TestConstraintInfeasibleWithTightBound(t *testing.T) {
	net := twoStopNetwork(t)
	params, err := assignment.LoadNonlinearParams(writeAssignmentParams(t))
	require.NoError(t, err)
	model := assignment.NewNonlinearAssignment(net, params)

	dir := t.TempDir()
	ucParams, err := constraint.LoadParams(writeUserCostParams(t, dir, 1.0, 0.0))
	require.NoError(t, err)

	c := constraint.New(net, model, ucParams)
	feas, _ := c.Calculate([]int{5})

	assert.Equal(t, memo.Infeasible, feas)
}

func TestConstraintUnknownWithNegativePercentIncrease(t *testing.T) {
	net := twoStopNetwork(t)
	params, err := assignment.LoadNonlinearParams(writeAssignmentParams(t))
	require.NoError(t, err)
	model := assignment.NewNonlinearAssignment(net, params)

	dir := t.TempDir()
	ucParams, err := constraint.LoadParams(writeUserCostParams(t, dir, 1.0, -1.0))
	require.NoError(t, err)

	c := constraint.New(net, model, ucParams)
	feas, ucc := c.Calculate([]int{5})

	assert.Equal(t, memo.Unknown, feas)
	assert.Equal(t, constraint.UserCostComponents{}, ucc)
}
