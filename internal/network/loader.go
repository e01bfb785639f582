package network

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// file names inside the data directory, matching original_source's
// DEFINITIONS.hpp macros (NODE_FILE, ARC_FILE, ...).
const (
	fileProblem = "problem_data.tsv"
	fileNode    = "node_data.tsv"
	fileArc     = "arc_data.tsv"
	fileOD      = "od_data.tsv"
	fileTransit = "transit_data.tsv"
	fileVehicle = "vehicle_data.tsv"
)

// rows reads a TSV file and returns every non-blank line's fields, having
// skipped n leading header lines. This is the Go equivalent of the
// original's getline+stringstream line walk.
func rows(path string, skipHeaders int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < skipHeaders && scanner.Scan(); i++ {
	}

	var out [][]string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		out = append(out, strings.Split(line, "\t"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

func parseInt(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse int %q: %w", s, err)
	}
	return v, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float %q: %w", s, err)
	}
	return v, nil
}

// Load builds a Network from the tab-separated input files in dir, following
// original_source/network.cpp's read order: problem, node, vehicle,
// transit, arc, od.
func Load(dir string) (*Network, error) {
	horizon, err := loadHorizon(filepath.Join(dir, fileProblem))
	if err != nil {
		return nil, err
	}

	net := &Network{Horizon: horizon}

	if err := loadNodes(filepath.Join(dir, fileNode), net); err != nil {
		return nil, err
	}
	if err := loadVehicles(filepath.Join(dir, fileVehicle), net); err != nil {
		return nil, err
	}
	if err := loadLines(filepath.Join(dir, fileTransit), net, horizon); err != nil {
		return nil, err
	}
	if err := loadArcs(filepath.Join(dir, fileArc), net); err != nil {
		return nil, err
	}
	if err := loadDemand(filepath.Join(dir, fileOD), net); err != nil {
		return nil, err
	}

	return net, nil
}

// loadHorizon reads problem_data: two header lines (comment, column names)
// then a single data row of (name, horizon), matching network.cpp exactly.
func loadHorizon(path string) (float64, error) {
	r, err := rows(path, 2)
	if err != nil {
		return 0, err
	}
	if len(r) == 0 || len(r[0]) < 2 {
		return 1440.0, nil // default to the full day, as the original does on a missing row
	}
	return parseFloat(r[0][1])
}

func loadNodes(path string, net *Network) error {
	r, err := rows(path, 1)
	if err != nil {
		return err
	}

	parsed := make([]*Node, 0, len(r))
	for _, f := range r {
		if len(f) < 5 {
			return fmt.Errorf("node row %v: want 5 fields", f)
		}
		id, err := parseInt(f[0])
		if err != nil {
			return err
		}
		kind, err := parseInt(f[2])
		if err != nil {
			return err
		}
		value, err := parseFloat(f[4])
		if err != nil {
			return err
		}
		for len(net.Nodes) <= id {
			net.Nodes = append(net.Nodes, nil)
		}
		n := &Node{ID: id, Kind: NodeKind(kind), Value: value}
		net.Nodes[id] = n
		parsed = append(parsed, n)
	}

	idsOfKind := func(kinds ...NodeKind) []int {
		return lo.FilterMap(parsed, func(n *Node, _ int) (int, bool) {
			return n.ID, lo.Contains(kinds, n.Kind)
		})
	}
	net.StopNodes = idsOfKind(StopNode)
	net.BoardingNodes = idsOfKind(BoardingNode)
	net.PopulationNodes = idsOfKind(PopulationNode)
	net.FacilityNodes = idsOfKind(FacilityNode)
	net.CoreNodes = idsOfKind(StopNode, BoardingNode)

	for _, id := range net.StopNodes {
		net.Nodes[id].IncomingDemand = make([]float64, len(net.StopNodes))
	}
	return nil
}

func loadVehicles(path string, net *Network) error {
	r, err := rows(path, 1)
	if err != nil {
		return err
	}
	for _, f := range r {
		if len(f) < 5 {
			return fmt.Errorf("vehicle row %v: want 5 fields", f)
		}
		ub, err := parseInt(f[2])
		if err != nil {
			return err
		}
		seating, err := parseFloat(f[3])
		if err != nil {
			return err
		}
		net.Vehicles = append(net.Vehicles, &Vehicle{MaxFleet: ub, Seating: seating})
	}
	return nil
}

// loadLines reads transit_data. Columns past "ub" (fare/frequency/capacity
// in spec §6) are accepted but ignored, same as original_source/network.cpp
// which never reads them. A short row is skipped rather than failing the
// whole load, mirroring the original's try/catch around out_of_range.
func loadLines(path string, net *Network, horizon float64) error {
	r, err := rows(path, 1)
	if err != nil {
		return err
	}
	for _, f := range r {
		if len(f) < 8 {
			continue
		}
		vehicleType, err := parseInt(f[2])
		if err != nil {
			continue
		}
		circuit, err := parseFloat(f[4])
		if err != nil {
			continue
		}
		dayFraction, err := parseFloat(f[5])
		if err != nil {
			continue
		}
		lb, err := parseInt(f[6])
		if err != nil {
			continue
		}
		ub, err := parseInt(f[7])
		if err != nil {
			continue
		}
		if vehicleType < 0 || vehicleType >= len(net.Vehicles) {
			return fmt.Errorf("line references unknown vehicle type %d", vehicleType)
		}
		net.Lines = append(net.Lines, &Line{
			VehicleType: vehicleType,
			MinFleet:    lb,
			MaxFleet:    ub,
			Circuit:     circuit,
			DayFraction: dayFraction,
			DayHorizon:  horizon,
			Seating:     net.Vehicles[vehicleType].Seating,
		})
	}
	return nil
}

func loadArcs(path string, net *Network) error {
	r, err := rows(path, 1)
	if err != nil {
		return err
	}

	var coreArcs []*Arc
	for _, f := range r {
		if len(f) < 6 {
			return fmt.Errorf("arc row %v: want 6 fields", f)
		}
		id, err := parseInt(f[0])
		if err != nil {
			return err
		}
		kind, err := parseInt(f[1])
		if err != nil {
			return err
		}
		line, err := parseInt(f[2])
		if err != nil {
			return err
		}
		tail, err := parseInt(f[3])
		if err != nil {
			return err
		}
		head, err := parseInt(f[4])
		if err != nil {
			return err
		}
		cost, err := parseFloat(f[5])
		if err != nil {
			return err
		}

		ak := ArcKind(kind)
		if ak == BoardingArc || ak == AlightingArc {
			cost += epsilon
		}

		a := &Arc{ID: id, Tail: tail, Head: head, Cost: cost, Line: line, Kind: ak}

		if ak == AccessArc {
			net.AccessArcs = append(net.AccessArcs, a)
			net.Nodes[tail].AccessOut = append(net.Nodes[tail].AccessOut, len(net.AccessArcs)-1)
			continue
		}

		for len(net.CoreArcs) <= id {
			net.CoreArcs = append(net.CoreArcs, nil)
		}
		net.CoreArcs[id] = a
		net.Nodes[tail].CoreOut = append(net.Nodes[tail].CoreOut, id)
		net.Nodes[head].CoreIn = append(net.Nodes[head].CoreIn, id)
		coreArcs = append(coreArcs, a)
	}

	byKind := func(kind ArcKind) []*Arc {
		return lo.Filter(coreArcs, func(a *Arc, _ int) bool { return a.Kind == kind })
	}
	net.LineArcs = byKind(LineArc)
	net.WalkingArcs = byKind(WalkingArc)

	attachToLine := func(arcs []*Arc, attach func(l *Line, id int)) {
		for _, a := range arcs {
			if a.Line >= 0 && a.Line < len(net.Lines) {
				attach(net.Lines[a.Line], a.ID)
			}
		}
	}
	attachToLine(net.LineArcs, func(l *Line, id int) { l.LineArcs = append(l.LineArcs, id) })
	attachToLine(byKind(BoardingArc), func(l *Line, id int) { l.BoardingArcs = append(l.BoardingArcs, id) })

	return nil
}

// loadDemand reads od_data; origin/destination columns are indices local to
// the stop node list (see Node.IncomingDemand), not global node ids, exactly
// as original_source/network.cpp indexes incoming_demand.
func loadDemand(path string, net *Network) error {
	r, err := rows(path, 1)
	if err != nil {
		return err
	}
	for _, f := range r {
		if len(f) < 4 {
			return fmt.Errorf("od row %v: want 4 fields", f)
		}
		origin, err := parseInt(f[1])
		if err != nil {
			return err
		}
		dest, err := parseInt(f[2])
		if err != nil {
			return err
		}
		volume, err := parseFloat(f[3])
		if err != nil {
			return err
		}
		if dest < 0 || dest >= len(net.StopNodes) || origin < 0 || origin >= len(net.StopNodes) {
			return fmt.Errorf("od row %v: stop index out of range", f)
		}
		net.Nodes[net.StopNodes[dest]].IncomingDemand[origin] = volume
	}
	return nil
}
