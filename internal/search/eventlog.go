package search

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EventCase enumerates the branch of the main loop an iteration took,
// mirroring original_source/search.hpp's event_case integer but spelled
// out for readability in the persisted trace.
type EventCase int

const (
	EventImprovement EventCase = iota
	EventAcceptedBySA
	EventRejected
	EventEmptyNeighborhood
	EventResample
	EventHalt
)

func (c EventCase) String() string {
	switch c {
	case EventImprovement:
		return "improvement"
	case EventAcceptedBySA:
		return "accepted_by_sa"
	case EventRejected:
		return "rejected"
	case EventEmptyNeighborhood:
		return "empty_neighborhood"
	case EventResample:
		return "resample"
	case EventHalt:
		return "halt"
	default:
		return "unknown"
	}
}

// IterationEvent is the full per-iteration record SPEC_FULL.md §4.7
// restores from search.hpp's EventLog fields, beyond what the distilled
// objective log alone would carry.
type IterationEvent struct {
	Iteration   int
	Tenure      float64
	Temperature float64
	ObjCurrent  float64
	ObjBest     float64
	NewBest     bool
	EventCase   EventCase
	SAProb      float64
	Jump        bool
	NonimpIn    int
	NonimpOut   int
	AddID       int // -1 if the accepted move had no ADD side
	DropID      int // -1 if the accepted move had no DROP side
	ObjLookups  int
	ConLookups  int
	ObjEvals    int
	ConEvals    int
	AddFirst    int
	DropFirst   int
	AddSecond   int
	DropSecond  int
	Swaps       int
	Duration    time.Duration
}

// EventLog appends a human-readable trace of every iteration to an event
// log file and a narrower tab-separated objective trace to a companion
// file, matching original_source/search_evelog.cpp's pair of output
// streams.
type EventLog struct {
	eventPath     string
	objectivePath string
	maxIterations int
}

// NewEventLog opens (or truncates) the event and objective log files. When
// pickup is true the files are appended to instead, with a resuming-session
// banner written to the event log.
func NewEventLog(eventPath, objectivePath string, pickup bool, maxIterations int, initialObj float64) (*EventLog, error) {
	el := &EventLog{eventPath: eventPath, objectivePath: objectivePath, maxIterations: maxIterations}

	if pickup {
		if err := appendFile(eventPath, "\n"+strings.Repeat("=", 60)+"\nResuming session\n"+strings.Repeat("=", 60)+"\n"); err != nil {
			return nil, err
		}
		return el, nil
	}

	header := fmt.Sprintf("New search initialized.\nInitial objective value: %.15f\n", initialObj)
	if err := os.WriteFile(eventPath, []byte(header), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", eventPath, err)
	}
	objHeader := fmt.Sprintf("Iteration\tObj_Current\tObj_Best\n0\t%.15f\t%.15f\n", initialObj, initialObj)
	if err := os.WriteFile(objectivePath, []byte(objHeader), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", objectivePath, err)
	}
	return el, nil
}

// LogIteration appends the full trace of one iteration, including the
// accepted solution vector, to both log files.
func (el *EventLog) LogIteration(ev IterationEvent, sol []int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nIteration %d / %d\n%s\n\n", strings.Repeat("=", 50), ev.Iteration, el.maxIterations, strings.Repeat("=", 50))
	fmt.Fprintf(&b, "case: %s  new_best: %t  jump: %t\n", ev.EventCase, ev.NewBest, ev.Jump)
	fmt.Fprintf(&b, "obj_current: %.15f  obj_best: %.15f  sa_prob: %.6f\n", ev.ObjCurrent, ev.ObjBest, ev.SAProb)
	fmt.Fprintf(&b, "tenure: %.6f  temperature: %.6f  nonimp_in: %d  nonimp_out: %d\n", ev.Tenure, ev.Temperature, ev.NonimpIn, ev.NonimpOut)
	fmt.Fprintf(&b, "add_id: %d  drop_id: %d\n", ev.AddID, ev.DropID)
	fmt.Fprintf(&b, "obj_lookups: %d  obj_evals: %d  con_lookups: %d  con_evals: %d\n", ev.ObjLookups, ev.ObjEvals, ev.ConLookups, ev.ConEvals)
	fmt.Fprintf(&b, "add_first: %d  drop_first: %d  add_second: %d  drop_second: %d  swaps: %d\n", ev.AddFirst, ev.DropFirst, ev.AddSecond, ev.DropSecond, ev.Swaps)
	fmt.Fprintf(&b, "duration: %s\n", ev.Duration)
	fmt.Fprintf(&b, "solution: %s\n", solStr(sol))

	if err := appendFile(el.eventPath, b.String()); err != nil {
		return err
	}

	objRow := fmt.Sprintf("%d\t%.15f\t%.15f\n", ev.Iteration, ev.ObjCurrent, ev.ObjBest)
	return appendFile(el.objectivePath, objRow)
}

// Halt appends a marker row noting that a cooperative halt was observed.
func (el *EventLog) Halt(iteration int) error {
	return appendFile(el.eventPath, fmt.Sprintf("\n%s\nHalt requested at iteration %d.\n%s\n", strings.Repeat("=", 50), iteration, strings.Repeat("=", 50)))
}

func appendFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	_, err = f.WriteString(text)
	return err
}

func solStr(sol []int) string {
	parts := make([]string, len(sol))
	for i, v := range sol {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "\t")
}
