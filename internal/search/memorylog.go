package search

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AttractiveSolution pairs a fleet vector with the objective value it had
// when added to the diversification pool.
type AttractiveSolution struct {
	Sol []int
	Obj float64
}

// MemoryState is every piece of mutable search state that survives a
// halt/resume cycle, matching original_source/search_memlog.cpp's row
// layout one field at a time.
type MemoryState struct {
	AddTenure   []float64
	DropTenure  []float64
	SolCurrent  []int
	SolBest     []int
	ObjCurrent  float64
	ObjBest     float64
	Iteration   int
	NonimpIn    int
	NonimpOut   int
	Tenure      float64
	Temperature float64
	Attractive  []AttractiveSolution
}

const memoryHeader = "[add_tenure], [drop_tenure], [sol_current], [sol_best], obj_current, obj_best, iteration, " +
	"nonimp_in, nonimp_out, tenure, temperature, [attractive_objectives], [[attractive_solutions]]"

// LoadMemory reads a memory log file back into a MemoryState, following
// original_source/search_memlog.cpp's fixed row order exactly.
func LoadMemory(path string, solSize int) (MemoryState, error) {
	f, err := os.Open(path)
	if err != nil {
		return MemoryState{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var st MemoryState
	scanner := bufio.NewScanner(f)
	scanner.Scan() // skip comment line

	var attractiveObjs []float64
	row := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		fields := strings.Split(strings.TrimRight(line, "\t"), "\t")
		row++

		switch row {
		case 1:
			st.AddTenure, err = parseFloats(fields, solSize)
		case 2:
			st.DropTenure, err = parseFloats(fields, solSize)
		case 3:
			st.SolCurrent, err = parseInts(fields, solSize)
		case 4:
			st.SolBest, err = parseInts(fields, solSize)
		case 5:
			st.ObjCurrent, err = strconv.ParseFloat(fields[0], 64)
		case 6:
			st.ObjBest, err = strconv.ParseFloat(fields[0], 64)
		case 7:
			st.Iteration, err = strconv.Atoi(fields[0])
		case 8:
			st.NonimpIn, err = strconv.Atoi(fields[0])
		case 9:
			st.NonimpOut, err = strconv.Atoi(fields[0])
		case 10:
			st.Tenure, err = strconv.ParseFloat(fields[0], 64)
		case 11:
			st.Temperature, err = strconv.ParseFloat(fields[0], 64)
		case 12:
			attractiveObjs, err = parseFloatList(fields)
		default:
			var sol []int
			sol, err = parseInts(fields, solSize)
			if err == nil {
				idx := row - 13
				if idx >= len(attractiveObjs) {
					err = fmt.Errorf("%s: attractive solution row %d has no matching objective", path, row)
				} else {
					st.Attractive = append(st.Attractive, AttractiveSolution{Sol: sol, Obj: attractiveObjs[idx]})
				}
			}
		}
		if err != nil {
			return MemoryState{}, fmt.Errorf("%s: row %d: %w", path, row, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return MemoryState{}, fmt.Errorf("read %s: %w", path, err)
	}
	return st, nil
}

// SaveMemory writes a MemoryState to a memory log file and also writes the
// best-known-solution-only output file, matching save_memory's call to
// output_best.
func SaveMemory(path, finalPath string, st MemoryState) error {
	err := writeAtomic(path, func(w *bufio.Writer) error {
		fmt.Fprintln(w, memoryHeader)
		writeFloatRow(w, st.AddTenure)
		writeFloatRow(w, st.DropTenure)
		writeIntRow(w, st.SolCurrent)
		writeIntRow(w, st.SolBest)
		fmt.Fprintf(w, "%.15f\n", st.ObjCurrent)
		fmt.Fprintf(w, "%.15f\n", st.ObjBest)
		fmt.Fprintf(w, "%d\n", st.Iteration)
		fmt.Fprintf(w, "%d\n", st.NonimpIn)
		fmt.Fprintf(w, "%d\n", st.NonimpOut)
		fmt.Fprintf(w, "%.15f\n", st.Tenure)
		fmt.Fprintf(w, "%.15f\n", st.Temperature)

		for _, a := range st.Attractive {
			fmt.Fprintf(w, "%.15f\t", a.Obj)
		}
		fmt.Fprintln(w)
		for _, a := range st.Attractive {
			writeIntRow(w, a.Sol)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return writeFinalSolution(finalPath, st.SolBest, st.ObjBest)
}

func writeFinalSolution(path string, solBest []int, objBest float64) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		writeIntRow(w, solBest)
		fmt.Fprintf(w, "%.15f\n", objBest)
		return nil
	})
}

// writeAtomic runs write against a buffered writer over a sibling ".tmp"
// file and renames it over path only once every byte has been flushed, so
// a process killed mid-write never leaves path itself truncated.
func writeAtomic(path string, write func(w *bufio.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	writeErr := write(w)
	if writeErr == nil {
		writeErr = w.Flush()
	}
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

func writeFloatRow(w *bufio.Writer, vals []float64) {
	for _, v := range vals {
		fmt.Fprintf(w, "%.15f\t", v)
	}
	fmt.Fprintln(w)
}

func writeIntRow(w *bufio.Writer, vals []int) {
	for _, v := range vals {
		fmt.Fprintf(w, "%d\t", v)
	}
	fmt.Fprintln(w)
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d fields, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(fields []string, n int) ([]int, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d fields, got %d", n, len(fields))
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloatList(fields []string) ([]float64, error) {
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
