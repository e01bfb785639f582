package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adam-rumpf/social-transit-solver/internal/search"
)

// runBenchmark runs the search driver to completion at warn-level logging
// and reports the elapsed wall-clock time and the best solution found.
func runBenchmark(s *search.Search) {
	log.SetLevel(logrus.WarnLevel)

	start := time.Now()
	if err := s.Solve(context.Background()); err != nil {
		log.Errorf("benchmark run ended with error: %v", err)
	}
	if s.Exhaustive() {
		if err := s.ExhaustiveSearch(); err != nil {
			log.Errorf("benchmark exhaustive post-pass failed to persist: %v", err)
		}
	}
	elapsed := time.Since(start)

	sol, obj := s.SolutionBest()
	log.Warnf(
		"benchmark finished\nelapsed: %v\nbest objective: %.6f\nbest solution: %v\n",
		elapsed, obj, sol,
	)
}
