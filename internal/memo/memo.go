// Package memo implements the persistent solution memoization table:  a
// string-keyed cache of feasibility, user-cost, and objective results so
// the search driver never re-evaluates a fleet vector it has already seen.
package memo

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Feasibility is the tri-plus-one state a memoized record can carry.
type Feasibility int

const (
	Unknown Feasibility = iota
	Infeasible
	Feasible
	Banned
)

// UserCost is the riding/walking/waiting breakdown stored alongside a
// feasibility verdict.
type UserCost struct {
	Riding  float64
	Walking float64
	Waiting float64
}

// Record is the full 5-tuple the spec's solution memo stores per key:
// feasibility, user-cost components, constraint evaluation time, objective
// value, and objective evaluation time. A record may be partial: Feas is
// Unknown and UserCost/ConTime are zero until patched.
type Record struct {
	Feas    Feasibility
	UC      UserCost
	ConTime float64
	Obj     float64
	ObjTime float64
}

// Memo is the in-process table, keyed by Key(s). It has no internal
// locking: the spec reserves memo access to the single-threaded search
// driver, even though the evaluators it calls parallelize internally.
type Memo struct {
	records map[string]Record
}

// New returns an empty memo.
func New() *Memo {
	return &Memo{records: make(map[string]Record)}
}

// keyDelimiter joins the decimal integers of a solution vector into one
// atomic field. It must not be a tab: every persistence file in this
// package is itself tab-separated, and a tab inside the key would be
// indistinguishable from a column boundary. original_source/definitions.hpp
// uses an underscore for the same reason (its DELIMITER constant).
const keyDelimiter = "_"

// Key canonicalizes a solution vector into the memo's string key.
func Key(sol []int) string {
	parts := make([]string, len(sol))
	for i, v := range sol {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, keyDelimiter)
}

// DecodeKey parses a string produced by Key back into a solution vector.
func DecodeKey(key string) ([]int, error) {
	parts := strings.Split(key, keyDelimiter)
	sol := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", key, err)
		}
		sol[i] = v
	}
	return sol, nil
}

// Exists reports whether sol has ever been recorded.
func (m *Memo) Exists(sol []int) bool {
	_, ok := m.records[Key(sol)]
	return ok
}

// Get returns the full record for sol, or ok=false if it has never been
// recorded.
func (m *Memo) Get(sol []int) (Record, bool) {
	rec, ok := m.records[Key(sol)]
	return rec, ok
}

// GetQuick returns only the feasibility and objective value for sol.
func (m *Memo) GetQuick(sol []int) (feas Feasibility, obj float64, ok bool) {
	rec, ok := m.records[Key(sol)]
	return rec.Feas, rec.Obj, ok
}

// PutFull creates or overwrites the complete record for sol.
func (m *Memo) PutFull(sol []int, rec Record) {
	m.records[Key(sol)] = rec
}

// PutPartial creates a record with only the objective filled in, leaving
// feasibility unknown — used when the cheap pass-1 filter computes an
// objective value without running the constraint check.
func (m *Memo) PutPartial(sol []int, obj, objTime float64) {
	m.records[Key(sol)] = Record{Feas: Unknown, Obj: obj, ObjTime: objTime}
}

// PatchFeas fills in the feasibility and user-cost fields of an existing
// record (typically one created by PutPartial) without disturbing its
// objective value.
func (m *Memo) PatchFeas(sol []int, feas Feasibility, uc UserCost, conTime float64) {
	key := Key(sol)
	rec := m.records[key]
	rec.Feas = feas
	rec.UC = uc
	rec.ConTime = conTime
	m.records[key] = rec
}

// Ban permanently marks sol as excluded from all future search
// consideration.
func (m *Memo) Ban(sol []int) {
	key := Key(sol)
	rec := m.records[key]
	rec.Feas = Banned
	m.records[key] = rec
}

const header = "Solution\tFeasible\tUC_Riding\tUC_Walking\tUC_Waiting\tCon_Time\tObjective\tObj_Time"

// Load reads a memo persistence file into a fresh Memo. An empty file (just
// the header, or nothing at all after it) is tolerated; a missing file is
// an error, matching the spec's "tolerant of an empty file but not of a
// missing one".
func Load(path string) (*Memo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	m := New()
	scanner := bufio.NewScanner(f)
	scanner.Scan() // skip header

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 8 {
			return nil, fmt.Errorf("%s: malformed row %q", path, line)
		}

		feas, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		riding, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		walking, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		waiting, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		conTime, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		obj, err := strconv.ParseFloat(fields[6], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		objTime, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		m.records[fields[0]] = Record{
			Feas:    Feasibility(feas),
			UC:      UserCost{Riding: riding, Walking: walking, Waiting: waiting},
			ConTime: conTime,
			Obj:     obj,
			ObjTime: objTime,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return m, nil
}

// Save writes the memo to a persistence file in full, overwriting any
// existing contents. Row order is the arbitrary map iteration order, same
// as original_source/search_sollog.cpp's unordered_map walk. The write
// goes to a sibling temporary file that is renamed over path only once
// every row has been flushed, so a process killed mid-write never leaves
// path itself truncated.
func (m *Memo) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	writeErr := func() error {
		if _, err := fmt.Fprintln(w, header); err != nil {
			return err
		}
		for key, rec := range m.records {
			_, err := fmt.Fprintf(w, "%s\t%d\t%.15f\t%.15f\t%.15f\t%.15f\t%.15f\t%.15f\n",
				key, int(rec.Feas), rec.UC.Riding, rec.UC.Walking, rec.UC.Waiting, rec.ConTime, rec.Obj, rec.ObjTime)
			if err != nil {
				return err
			}
		}
		return w.Flush()
	}()
	if writeErr != nil {
		f.Close()
		os.Remove(tmp)
		return writeErr
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// Len returns the number of records currently held.
func (m *Memo) Len() int { return len(m.records) }
