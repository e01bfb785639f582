package memo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adam-rumpf/social-transit-solver/internal/memo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGetFull(t *testing.T) {
	m := memo.New()
	sol := []int{3, 5, 2}

	assert.False(t, m.Exists(sol))

	rec := memo.Record{
		Feas:    memo.Feasible,
		UC:      memo.UserCost{Riding: 1, Walking: 2, Waiting: 3},
		ConTime: 0.5,
		Obj:     -10,
		ObjTime: 0.1,
	}
	m.PutFull(sol, rec)

	assert.True(t, m.Exists(sol))
	got, ok := m.Get(sol)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestPartialThenPatch(t *testing.T) {
	m := memo.New()
	sol := []int{1, 1}

	m.PutPartial(sol, -5.0, 0.02)

	feas, obj, ok := m.GetQuick(sol)
	require.True(t, ok)
	assert.Equal(t, memo.Unknown, feas)
	assert.Equal(t, -5.0, obj)

	m.PatchFeas(sol, memo.Feasible, memo.UserCost{Riding: 4, Walking: 1, Waiting: 2}, 0.03)

	rec, ok := m.Get(sol)
	require.True(t, ok)
	assert.Equal(t, memo.Feasible, rec.Feas)
	assert.Equal(t, -5.0, rec.Obj, "patching feasibility must not disturb the objective")
	assert.Equal(t, 4.0, rec.UC.Riding)
}

func TestBanIsPermanentSentinel(t *testing.T) {
	m := memo.New()
	sol := []int{9}

	m.PutPartial(sol, -1.0, 0.01)
	m.Ban(sol)

	feas, _, ok := m.GetQuick(sol)
	require.True(t, ok)
	assert.Equal(t, memo.Banned, feas)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	m := memo.New()
	m.PutFull([]int{1, 2}, memo.Record{Feas: memo.Feasible, UC: memo.UserCost{Riding: 1.5, Walking: 2.5, Waiting: 3.5}, ConTime: 0.1, Obj: -7.25, ObjTime: 0.2})
	m.PutFull([]int{3, 4}, memo.Record{Feas: memo.Infeasible, Obj: -1.0})

	path := filepath.Join(t.TempDir(), "solution_log.tsv")
	require.NoError(t, m.Save(path))

	loaded, err := memo.Load(path)
	require.NoError(t, err)

	assert.Equal(t, m.Len(), loaded.Len())
	rec, ok := loaded.Get([]int{1, 2})
	require.True(t, ok)
	assert.Equal(t, memo.Feasible, rec.Feas)
	assert.InDelta(t, -7.25, rec.Obj, 1e-9)
	assert.InDelta(t, 1.5, rec.UC.Riding, 1e-9)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := memo.Load(filepath.Join(t.TempDir(), "does_not_exist.tsv"))
	assert.Error(t, err)
}

func TestLoadToleratesHeaderOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty_log.tsv")
	require.NoError(t, os.WriteFile(path, []byte("Solution\tFeasible\tUC_Riding\tUC_Walking\tUC_Waiting\tCon_Time\tObjective\tObj_Time\n"), 0o644))

	m, err := memo.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}
