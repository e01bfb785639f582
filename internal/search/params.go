package search

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/adam-rumpf/social-transit-solver/internal/memo"
)

// Params holds the TS/SA tuning values read from the search parameter
// file: new/continue flag, then the fifteen numeric rows in the order
// original_source/search_memlog.cpp and search_evelog.cpp index by row
// number (row 3 is the initial temperature, row 11 the initial tenure).
type Params struct {
	Pickup        bool
	MaxIterations int
	T0            float64
	TempFactor    float64
	AttractiveMax int
	AddLim1       int
	AddLim2       int
	DropLim1      int
	DropLim2      int
	SwapLim       int
	TenureInit    float64
	TenureFactor  float64
	NonimpInMax   int
	NonimpOutMax  int
	Step          int
	Exhaustive    bool
}

// LoadParams reads the search parameter file.
func LoadParams(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // skip comment line

	values := make([]string, 0, 16)
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
	if len(values) < 16 {
		return Params{}, fmt.Errorf("%s: expected 16 parameter rows, got %d", path, len(values))
	}

	get := func(i int) string { return values[i] }
	atoi := func(i int) (int, error) { return strconv.Atoi(get(i)) }
	atof := func(i int) (float64, error) { return strconv.ParseFloat(get(i), 64) }

	var p Params
	var err2 error
	pickupFlag, err2 := atoi(0)
	if err2 != nil {
		return Params{}, err2
	}
	p.Pickup = pickupFlag == 1

	if p.MaxIterations, err2 = atoi(1); err2 != nil {
		return Params{}, err2
	}
	if p.T0, err2 = atof(2); err2 != nil {
		return Params{}, err2
	}
	if p.TempFactor, err2 = atof(3); err2 != nil {
		return Params{}, err2
	}
	if p.AttractiveMax, err2 = atoi(4); err2 != nil {
		return Params{}, err2
	}
	if p.AddLim1, err2 = atoi(5); err2 != nil {
		return Params{}, err2
	}
	if p.AddLim2, err2 = atoi(6); err2 != nil {
		return Params{}, err2
	}
	if p.DropLim1, err2 = atoi(7); err2 != nil {
		return Params{}, err2
	}
	if p.DropLim2, err2 = atoi(8); err2 != nil {
		return Params{}, err2
	}
	if p.SwapLim, err2 = atoi(9); err2 != nil {
		return Params{}, err2
	}
	if p.TenureInit, err2 = atof(10); err2 != nil {
		return Params{}, err2
	}
	if p.TenureFactor, err2 = atof(11); err2 != nil {
		return Params{}, err2
	}
	if p.NonimpInMax, err2 = atoi(12); err2 != nil {
		return Params{}, err2
	}
	if p.NonimpOutMax, err2 = atoi(13); err2 != nil {
		return Params{}, err2
	}
	if p.Step, err2 = atoi(14); err2 != nil {
		return Params{}, err2
	}
	exhaustiveFlag, err2 := atoi(15)
	if err2 != nil {
		return Params{}, err2
	}
	p.Exhaustive = exhaustiveFlag == 1

	return p, nil
}

// LoadInitialSolution reads the initial solution log file and returns its
// last row's solution vector and objective value, matching
// original_source/search_common.cpp's get_initial_solution (which keeps
// overwriting its row variables until EOF, so the final row wins).
func LoadInitialSolution(path string) ([]int, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // skip comment line

	var sol []int
	var obj float64
	found := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 8 {
			continue
		}
		parsed, err := memo.DecodeKey(fields[0])
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", path, err)
		}
		o, err := strconv.ParseFloat(fields[6], 64)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", path, err)
		}
		sol, obj, found = parsed, o, true
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	if !found {
		return nil, 0, fmt.Errorf("%s: no solution rows found", path)
	}
	return sol, obj, nil
}
