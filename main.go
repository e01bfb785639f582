package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/adam-rumpf/social-transit-solver/internal/assignment"
	"github.com/adam-rumpf/social-transit-solver/internal/constraint"
	"github.com/adam-rumpf/social-transit-solver/internal/memo"
	"github.com/adam-rumpf/social-transit-solver/internal/network"
	"github.com/adam-rumpf/social-transit-solver/internal/objective"
	"github.com/adam-rumpf/social-transit-solver/internal/search"
)

var (
	dataDirStr  = flag.String("data", "data", "input data directory")
	cacheDirStr = flag.String("cache", "log", "persistence directory for the solution memo, memory log, and event logs")
	pickup      = flag.Bool("pickup", false, "resume a previously halted search instead of starting fresh")
	seed        = flag.Int64("seed", 0, "seed for the search driver's random move sampling")
	logLevel    = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	benchmark   = flag.Bool("benchmark", false, "benchmark mode: run to completion without per-iteration tracing")
	metricsAddr = flag.String("metrics", "", "Prometheus metrics and pprof listening address (empty disables)")

	logLevels = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

var log = logrus.StandardLogger()

// exitCode names the fixed, documented process exit statuses: 0 success;
// 1 clean halt on user signal; 2 input missing; 3 input malformed.
type exitCode int

const (
	exitSuccess      exitCode = 0
	exitHalt         exitCode = 1
	exitInputMissing exitCode = 2
	exitInputBad     exitCode = 3
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	runID := uuid.New().String()
	log.WithField("run_id", runID).Info("starting social transit fleet solver")

	dataDir, err := NewPath(*dataDirStr)
	if err != nil {
		log.Errorf("invalid data directory: %v", err)
		os.Exit(int(exitInputMissing))
	}
	cacheDir, err := NewPath(*cacheDirStr)
	if err != nil {
		if mkErr := os.MkdirAll(*cacheDirStr, 0o755); mkErr != nil {
			log.Errorf("invalid cache directory: %v", err)
			os.Exit(int(exitInputMissing))
		}
		cacheDir, err = NewPath(*cacheDirStr)
		if err != nil {
			log.Errorf("invalid cache directory: %v", err)
			os.Exit(int(exitInputMissing))
		}
	}

	s, err := buildSearch(dataDir, cacheDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Errorf("missing input: %v", err)
			os.Exit(int(exitInputMissing))
		}
		log.Errorf("malformed input: %v", err)
		os.Exit(int(exitInputBad))
	}

	if *metricsAddr != "" {
		startMetricsServer(*metricsAddr)
	}

	if *benchmark {
		runBenchmark(s)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Info("halt requested, finishing current iteration...")
		go func() {
			<-signalCh
			os.Exit(int(exitHalt)) // force quit on a second signal
		}()
		cancel()
	}()

	runErr := s.Solve(ctx)
	if runErr != nil && errors.Is(runErr, context.Canceled) {
		log.Info("search halted cleanly")
		os.Exit(int(exitHalt))
	}
	if runErr != nil {
		log.Errorf("search ended with error: %v", runErr)
		os.Exit(int(exitInputBad))
	}

	if s.Exhaustive() {
		log.Info("iteration budget spent, running exhaustive post-pass")
		if err := s.ExhaustiveSearch(); err != nil {
			log.Errorf("exhaustive post-pass failed to persist: %v", err)
			os.Exit(int(exitInputBad))
		}
	}

	log.Info("search reached its iteration budget")
	os.Exit(int(exitSuccess))
}

// buildSearch wires every collaborator package from the files under
// dataDir, warm-starting from cacheDir's persisted state when *pickup is
// set and from dataDir's initial-solution log otherwise.
func buildSearch(dataDir, cacheDir *Path) (*search.Search, error) {
	net, err := network.Load(dataDir.Dir)
	if err != nil {
		return nil, err
	}

	objParams, err := objective.LoadParams(dataDir.Join("objective_data.tsv"))
	if err != nil {
		return nil, err
	}
	obj := objective.New(net, objParams)

	asgParams, err := assignment.LoadNonlinearParams(dataDir.Join("assignment_data.tsv"))
	if err != nil {
		return nil, err
	}
	model := assignment.NewNonlinearAssignment(net, asgParams)

	ucParams, err := constraint.LoadParams(dataDir.Join("user_cost_data.tsv"))
	if err != nil {
		return nil, err
	}
	con := constraint.New(net, model, ucParams)

	searchParams, err := search.LoadParams(dataDir.Join("search_data.tsv"))
	if err != nil {
		return nil, err
	}

	memPath := cacheDir.Join("memory_log.tsv")
	finalPath := cacheDir.Join("final_solution.tsv")
	solutionLogPath := cacheDir.Join("solution_log.tsv")
	eventPath := cacheDir.Join("event_log.txt")
	objectivePath := cacheDir.Join("objective_log.tsv")

	var m *memo.Memo
	var state search.MemoryState

	if *pickup || searchParams.Pickup {
		m, err = memo.Load(solutionLogPath)
		if err != nil {
			return nil, err
		}
		state, err = search.LoadMemory(memPath, net.NumLines())
		if err != nil {
			return nil, err
		}
	} else {
		m = memo.New()
		initialSol, initialObj, err := search.LoadInitialSolution(dataDir.Join("initial_solution_log.tsv"))
		if err != nil {
			return nil, err
		}
		state = search.NewMemoryState(net, searchParams, initialSol, initialObj)
	}

	eventLog, err := search.NewEventLog(eventPath, objectivePath, *pickup || searchParams.Pickup, searchParams.MaxIterations, state.ObjCurrent)
	if err != nil {
		return nil, err
	}

	s := search.New(net, obj, con, m, eventLog, memPath, finalPath, solutionLogPath, searchParams, state, *seed)
	return s, nil
}
