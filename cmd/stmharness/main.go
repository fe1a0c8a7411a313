// Command stmharness drives an stm.Region through a set of named
// scenarios and reports pass/fail plus commit-latency percentiles. It is a
// pure collaborator around the engine — everything here is test-harness
// plumbing, not part of the transaction manager itself.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

func main() {
	var (
		scenario = flag.String("scenario", "all", "scenario to run (or \"all\")")
		size     = flag.Uint64("size", 4096, "base segment size in bytes")
		align    = flag.Uint64("align", 8, "alignment in bytes")
		workers  = flag.Int("workers", 8, "concurrent workers for stress scenarios")
		rounds   = flag.Int("rounds", 2000, "transactions per worker for stress scenarios")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := level.AllowInfo()
	if *verbose {
		logLevel = level.AllowDebug()
	}
	logger := log.NewLogfmtLogger(os.Stderr)
	logger = level.NewFilter(logger, logLevel)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	cfg := harnessConfig{
		size:    uintptr(*size),
		align:   uintptr(*align),
		workers: *workers,
		rounds:  *rounds,
		logger:  logger,
	}

	scenarios := allScenarios()
	names := []string{*scenario}
	if *scenario == "all" {
		names = scenarioNames(scenarios)
	}

	failed := false
	for _, name := range names {
		sc, ok := scenarios[name]
		if !ok {
			level.Error(logger).Log("msg", "unknown scenario", "name", name)
			failed = true
			continue
		}
		result := runScenario(cfg, name, sc)
		reportResult(logger, result)
		if !result.passed {
			failed = true
		}
	}

	if failed {
		fmt.Fprintln(os.Stderr, "FAIL")
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "PASS")
}

func scenarioNames(scenarios map[string]scenario) []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	return names
}
