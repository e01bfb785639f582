// Package objective computes the two-step gravity accessibility objective:
// facility and population gravity metrics derived from shortest-path
// distances over the combined core-plus-access network.
package objective

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/adam-rumpf/social-transit-solver/internal/network"
	"github.com/adam-rumpf/social-transit-solver/internal/pqueue"
)

// Params holds the gravity-model tuning values read from the objective
// parameter file.
type Params struct {
	LowestMetrics    int
	GravityExponent  float64
	Multiplier       float64
}

// LoadParams reads the objective parameter file: a leading comment line
// followed by four label/value rows, of which only rows 2-4 are used
// (row 1 is unused, matching original_source/objective.cpp).
func LoadParams(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // skip comment line

	values := make([]string, 0, 4)
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
	if len(values) < 4 {
		return Params{}, fmt.Errorf("%s: expected 4 parameter rows, got %d", path, len(values))
	}

	var p Params
	lowest, err := strconv.Atoi(values[1])
	if err != nil {
		return Params{}, err
	}
	p.LowestMetrics = lowest
	if p.GravityExponent, err = strconv.ParseFloat(values[2], 64); err != nil {
		return Params{}, err
	}
	if p.Multiplier, err = strconv.ParseFloat(values[3], 64); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Objective evaluates the fleet allocation's social-access objective value.
type Objective struct {
	net    *network.Network
	params Params
}

// New binds an Objective to a network and its gravity-model parameters.
func New(net *network.Network, params Params) *Objective {
	return &Objective{net: net, params: params}
}

// Calculate returns the negative sum of the lowest LowestMetrics population
// gravity metrics, so that minimizing this value maximizes access for the
// worst-served population centers.
func (o *Objective) Calculate(fleet []int) float64 {
	metrics := o.allMetrics(fleet)
	sorted := append([]float64(nil), metrics...)
	sort.Float64s(sorted)

	n := o.params.LowestMetrics
	if n > len(sorted) {
		n = len(sorted)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += sorted[i]
	}
	return -sum
}

// allMetrics computes the population gravity metric for every population
// center under the given fleet allocation.
func (o *Objective) allMetrics(fleet []int) []float64 {
	net := o.net

	headways := make([]float64, len(net.Lines))
	for i, l := range net.Lines {
		headways[i] = l.Headway(fleet[i])
	}

	arcCosts := make([]float64, len(net.CoreArcs))
	for _, a := range net.CoreArcs {
		arcCosts[a.ID] = a.Cost
		if a.Line >= 0 {
			arcCosts[a.ID] += headways[a.Line]
		}
	}

	popSize, facSize := len(net.PopulationNodes), len(net.FacilityNodes)
	distance := make([][]float64, popSize)

	var wg sync.WaitGroup
	for i := 0; i < popSize; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			distance[i] = o.populationToAllFacilities(i, arcCosts)
		}()
	}
	wg.Wait()

	facMetric := make([]float64, facSize)
	for j := 0; j < facSize; j++ {
		facMetric[j] = o.facilityMetric(j, distance)
	}

	popMetric := make([]float64, popSize)
	for i := 0; i < popSize; i++ {
		popMetric[i] = o.populationMetric(i, distance, facMetric)
	}

	return popMetric
}

// populationToAllFacilities runs single-source Dijkstra from one population
// center over the combined core-plus-access graph, terminating as soon as
// every facility has been finalized. It touches no shared state and is safe
// to run concurrently with any other source's search.
func (o *Objective) populationToAllFacilities(source int, coreCost []float64) []float64 {
	net := o.net
	sourceID := net.PopulationNodes[source]

	dist := make([]float64, len(net.Nodes))
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[sourceID] = 0

	unsearched := make(map[int]bool, len(net.FacilityNodes))
	for _, facID := range net.FacilityNodes {
		unsearched[facID] = true
	}

	q := make(pqueue.PriorityQueue[int], 0)
	q.PushItem(sourceID, 0)

	for len(unsearched) > 0 && q.Len() > 0 {
		chosenNode, chosenDist := q.PopItem()

		if dist[chosenNode] < chosenDist {
			continue
		}
		delete(unsearched, chosenNode)

		for _, arcID := range net.Nodes[chosenNode].CoreOut {
			a := net.CoreArcs[arcID]
			if newDist := dist[chosenNode] + coreCost[arcID]; newDist < dist[a.Head] {
				dist[a.Head] = newDist
				q.PushItem(a.Head, newDist)
			}
		}
		for _, arcID := range net.Nodes[chosenNode].AccessOut {
			a := net.AccessArcs[arcID]
			if newDist := dist[chosenNode] + a.Cost; newDist < dist[a.Head] {
				dist[a.Head] = newDist
				q.PushItem(a.Head, newDist)
			}
		}
	}

	row := make([]float64, len(net.FacilityNodes))
	for i, facID := range net.FacilityNodes {
		row[i] = dist[facID]
	}
	return row
}

// facilityMetric computes V_j = sum_k P_k * d_kj^(-beta).
func (o *Objective) facilityMetric(fac int, distance [][]float64) float64 {
	net := o.net
	var sum float64
	for i := range net.PopulationNodes {
		sum += net.Nodes[net.PopulationNodes[i]].Value * math.Pow(distance[i][fac], -o.params.GravityExponent)
	}
	return sum
}

// populationMetric computes A_i = multiplier * sum_j (S_j * d_ij^(-beta))/V_j.
func (o *Objective) populationMetric(pop int, distance [][]float64, facMetric []float64) float64 {
	net := o.net
	var sum float64
	for j := range net.FacilityNodes {
		sum += (net.Nodes[net.FacilityNodes[j]].Value * math.Pow(distance[pop][j], -o.params.GravityExponent)) / facMetric[j]
	}
	return o.params.Multiplier * sum
}
