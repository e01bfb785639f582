package assignment_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adam-rumpf/social-transit-solver/internal/assignment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAssignmentParams(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "assignment_data.tsv")
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

func TestLoadNonlinearParams(t *testing.T) {
	p, err := assignment.LoadNonlinearParams(writeAssignmentParams(t))
	require.NoError(t, err)

	assert.Equal(t, 0.01, p.ErrorTol)
	assert.Equal(t, 0.01, p.FlowTol)
	assert.Equal(t, 0.01, p.WaitingTol)
	assert.Equal(t, 20, p.MaxIterations)
	assert.Equal(t, 0.15, p.ConicalAlpha)
	assert.Equal(t, 4.0, p.ConicalBeta)
}

func TestNonlinearAssignmentConvergesOnUncongestedNetwork(t *testing.T) {
	net := twoStopNetwork(t)
	params, err := assignment.LoadNonlinearParams(writeAssignmentParams(t))
	require.NoError(t, err)

	model := assignment.NewNonlinearAssignment(net, params)
	initial := assignment.Solution{Flows: make([]float64, len(net.CoreArcs))}

	sol := model.Calculate([]int{5}, initial)

	for _, a := range net.CoreArcs {
		assert.InDelta(t, 50.0, sol.Flows[a.ID], 1e-3)
	}
}
