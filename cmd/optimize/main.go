// Command optimize runs the allocator once over instruments read from a JSON
// file and prints the report.
//
// Usage:
//
//	optimize -input instruments.json -budget 50 -max-per-instrument 50 \
//	    -ownership ownership.json -seed 1 -json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/evolution"
	"github.com/aristath/allocator/internal/modules/allocation"
	"github.com/aristath/allocator/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "optimize:", err)
		os.Exit(1)
	}
}

// ownershipFile serves a fixed ownership map.
type ownershipFile domain.OwnershipMap

func (o ownershipFile) GetOwnershipCounts(context.Context) (domain.OwnershipMap, error) {
	return domain.OwnershipMap(o), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	fs.SetOutput(stderr)

	input := fs.String("input", "", "instruments JSON file (required)")
	budget := fs.Float64("budget", 50, "money available for new purchases")
	maxPer := fs.Float64("max-per-instrument", 50, "maximum money spent on one instrument")
	ownershipPath := fs.String("ownership", "", "JSON file mapping symbol to units already held")
	seed := fs.Uint64("seed", 0, "random seed, 0 picks one from the clock")
	population := fs.Int("population", evolution.DefaultConfig().PopulationSize, "population size")
	generations := fs.Int("generations", evolution.DefaultConfig().Generations, "number of generations")
	workers := fs.Int("workers", 1, "parallel fitness evaluations")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	history := fs.Bool("history", false, "include per-generation statistics in the JSON report")
	logLevel := fs.String("log-level", "warn", "log level written to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		fs.Usage()
		return fmt.Errorf("-input is required")
	}

	log := logger.NewWithWriter(logger.Config{Level: *logLevel, Pretty: true}, stderr)

	var instruments []domain.Instrument
	if err := readJSON(*input, &instruments); err != nil {
		return fmt.Errorf("failed to read instruments: %w", err)
	}

	ownership := ownershipFile{}
	if *ownershipPath != "" {
		if err := readJSON(*ownershipPath, &ownership); err != nil {
			return fmt.Errorf("failed to read ownership: %w", err)
		}
	}

	engineCfg := evolution.DefaultConfig()
	engineCfg.Seed = *seed
	engineCfg.PopulationSize = *population
	engineCfg.Generations = *generations
	engineCfg.Workers = *workers

	service := allocation.NewService(ownership, engineCfg, allocation.DefaultRiskWeights(), log)
	service.SetKeepHistory(*history)
	report, err := service.Optimize(ctx, instruments, *budget, *maxPer)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return allocation.Render(stdout, *report)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
