// Package assignment implements the constant-cost common-lines transit
// assignment model and the Frank-Wolfe loop that linearizes it against
// congested line capacities.
package assignment

import (
	"math"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	"github.com/adam-rumpf/social-transit-solver/internal/network"
	"github.com/adam-rumpf/social-transit-solver/internal/pqueue"
)

var log = logrus.StandardLogger()

// Solution is a flow vector over core arcs plus a total waiting time scalar,
// the common currency every assignment-model stage produces and consumes.
type Solution struct {
	Flows   []float64
	Waiting float64
}

// Clone returns a deep copy so callers can mutate the result without
// aliasing the original's flow slice.
func (s Solution) Clone() Solution {
	flows := make([]float64, len(s.Flows))
	copy(flows, s.Flows)
	return Solution{Flows: flows, Waiting: s.Waiting}
}

// ConstantAssignment solves the common-lines hyperpath assignment model for
// a fixed arc cost vector, parallelizing the independent per-destination
// label-setting and loading passes across every stop node.
type ConstantAssignment struct {
	net *network.Network
}

// NewConstantAssignment binds the model to the network it evaluates over.
func NewConstantAssignment(net *network.Network) *ConstantAssignment {
	return &ConstantAssignment{net: net}
}

// Calculate solves the hyperpath assignment for a fleet size vector and an
// arc cost vector, returning the aggregate flow vector and total waiting
// time across every origin-destination pair carried by the network.
func (c *ConstantAssignment) Calculate(fleet []int, arcCosts []float64) Solution {
	net := c.net

	lineFreq := make([]float64, len(net.Lines))
	for i, l := range net.Lines {
		lineFreq[i] = l.Frequency(fleet[i])
	}

	freq := make([]float64, len(net.CoreArcs))
	for i := range freq {
		freq[i] = math.Inf(1)
	}
	for i, l := range net.Lines {
		for _, arcID := range l.BoardingArcs {
			freq[arcID] = lineFreq[i]
		}
	}

	flows := make([]float64, len(net.CoreArcs))
	var waiting float64
	var flowMu, waitMu xsync.RBMutex

	var wg sync.WaitGroup
	for destIdx := range net.StopNodes {
		destIdx := destIdx
		wg.Add(1)
		go func() {
			defer wg.Done()
			addFlows, addWait := c.flowsToDestination(destIdx, freq, arcCosts)

			flowMu.Lock()
			for arcID, v := range addFlows {
				if v != 0 {
					flows[arcID] += v
				}
			}
			flowMu.Unlock()

			waitMu.Lock()
			waiting += addWait
			waitMu.Unlock()
		}()
	}
	wg.Wait()

	return Solution{Flows: flows, Waiting: waiting}
}

// flowsToDestination solves the single-sink common-lines model, returning a
// sparse-by-convention flow delta vector (dense slice, mostly zero) and the
// waiting time contributed by this destination. It touches no shared state
// and is safe to run concurrently with any other destination's solve.
func (c *ConstantAssignment) flowsToDestination(destIdx int, freq, arcCosts []float64) ([]float64, float64) {
	net := c.net
	destID := net.StopNodes[destIdx]

	nodeLabel := make([]float64, len(net.Nodes))
	for i := range nodeLabel {
		nodeLabel[i] = math.Inf(1)
	}
	nodeLabel[destID] = 0

	nodeFreq := make([]float64, len(net.Nodes))
	nodeVol := make([]float64, len(net.Nodes))
	for i, stopID := range net.StopNodes {
		nodeVol[stopID] = net.Nodes[destID].IncomingDemand[i]
	}
	nodeWait := make([]float64, len(net.Nodes))

	unprocessed := make([]bool, len(net.CoreArcs))
	remaining := len(net.CoreArcs)
	for _, a := range net.CoreArcs {
		unprocessed[a.ID] = true
	}

	arcQueue := make(pqueue.PriorityQueue[int], 0)
	for _, arcID := range net.Nodes[destID].CoreIn {
		arcQueue.PushItem(arcID, arcCosts[arcID])
	}

	attractive := make([]bool, len(net.CoreArcs))

	for remaining > 0 && arcQueue.Len() > 0 {
		chosenArc, chosenLabel := arcQueue.PopItem()

		if !unprocessed[chosenArc] {
			continue
		}
		unprocessed[chosenArc] = false
		remaining--

		if freq[chosenArc] == 0 {
			continue
		}

		chosenTail := net.CoreArcs[chosenArc].Tail
		if nodeLabel[chosenTail] < chosenLabel {
			continue
		}

		if freq[chosenArc] < math.Inf(1) {
			if nodeLabel[chosenTail] < math.Inf(1) {
				nodeLabel[chosenTail] = (nodeFreq[chosenTail]*nodeLabel[chosenTail] + freq[chosenArc]*chosenLabel) /
					(nodeFreq[chosenTail] + freq[chosenArc])
			} else {
				nodeLabel[chosenTail] = (1 / freq[chosenArc]) + chosenLabel
			}
			nodeFreq[chosenTail] += freq[chosenArc]
		} else {
			nodeLabel[chosenTail] = chosenLabel
			nodeFreq[chosenTail] = math.Inf(1)
			for _, outID := range net.Nodes[chosenTail].CoreOut {
				attractive[outID] = false
			}
		}

		attractive[chosenArc] = true

		for _, inID := range net.Nodes[chosenTail].CoreIn {
			updatedLabel := arcCosts[inID] + nodeLabel[chosenTail]
			arcQueue.PushItem(inID, updatedLabel)
		}
	}

	loadQueue := make(pqueue.PriorityQueue[int], 0)
	for arcID, att := range attractive {
		if !att {
			continue
		}
		a := net.CoreArcs[arcID]
		priority := nodeLabel[a.Head] + arcCosts[arcID]
		loadQueue.PushItem(arcID, -priority) // max-priority via negation
	}

	nodeLabel = nil

	type flowUpdate struct {
		arc  int
		flow float64
	}
	var nonzeroFlows []flowUpdate

	for loadQueue.Len() > 0 {
		chosenArc, _ := loadQueue.PopItem()
		a := net.CoreArcs[chosenArc]
		chosenTail, chosenHead := a.Tail, a.Head

		var addedFlow float64
		if freq[chosenArc] < math.Inf(1) {
			addedFlow = (freq[chosenArc] / nodeFreq[chosenTail]) * nodeVol[chosenTail]
			if w := addedFlow / freq[chosenArc]; w > nodeWait[chosenTail] {
				nodeWait[chosenTail] = w
			}
		} else {
			addedFlow = nodeVol[chosenTail]
		}

		if addedFlow > 0 {
			nodeVol[chosenHead] += addedFlow
			nonzeroFlows = append(nonzeroFlows, flowUpdate{chosenArc, addedFlow})
		}
	}

	var totalWait float64
	for _, w := range nodeWait {
		totalWait += w
	}

	delta := make([]float64, len(net.CoreArcs))
	for _, u := range nonzeroFlows {
		delta[u.arc] += u.flow
	}

	return delta, totalWait
}
