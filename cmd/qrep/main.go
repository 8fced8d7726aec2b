package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/theapemachine/qrep"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "qrep:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := qrep.LoadConfig()
	if err != nil {
		return err
	}

	distances := flag.String("distances", "", "comma separated code distances (default from config)")
	flag.IntVar(&cfg.Trials, "trials", cfg.Trials, "trials per distance")
	flag.IntVar(&cfg.Shots, "shots", cfg.Shots, "shots per job")
	flag.Float64Var(&cfg.ErrorRate, "p", cfg.ErrorRate, "bit-flip probability per qubit")
	flag.Float64Var(&cfg.MeasurementError, "q", cfg.MeasurementError, "ancilla readout error")
	flag.Float64Var(&cfg.FailureRate, "fail", cfg.FailureRate, "probability a job comes back incomplete")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "simulator seed")
	flag.StringVar(&cfg.Layout, "layout", cfg.Layout, "qubit layout: dense or modular")
	flag.IntVar(&cfg.Register, "register", cfg.Register, "register size for the modular layout")
	flag.IntVar(&cfg.Offset, "offset", cfg.Offset, "first address for the modular layout")
	flag.IntVar(&cfg.Stride, "stride", cfg.Stride, "address stride for the modular layout")
	flag.IntVar(&cfg.MaxAttempts, "attempts", cfg.MaxAttempts, "submissions per job before giving up")
	flag.DurationVar(&cfg.Backoff, "backoff", cfg.Backoff, "initial retry backoff")
	flag.IntVar(&cfg.Parallelism, "parallel", cfg.Parallelism, "distances run at once (0 = all)")
	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "print per-string tables")
	asJSON := flag.Bool("json", false, "print reports as JSON")
	dump := flag.Bool("dump", false, "dump reports and gathered metrics")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address until interrupted")
	flag.Parse()

	if *distances != "" {
		if cfg.Distances, err = qrep.ParseDistances(*distances); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reg := prometheus.NewRegistry()
	exp, err := qrep.NewSimulatedExperiment(cfg, reg, os.Stdout)
	if err != nil {
		return err
	}

	served := make(chan error, 1)
	if *metricsAddr != "" {
		go func() {
			served <- qrep.ServeMetrics(ctx, *metricsAddr, reg)
		}()
	}

	sweep, err := exp.Sweep(ctx, cfg.Distances, cfg.Verbose)
	if err != nil {
		return err
	}
	reports := qrep.NewReports(sweep)

	if *dump {
		families, err := reg.Gather()
		if err != nil {
			return err
		}
		spew.Dump(reports, exp.Device().Metrics().ExportMetrics(), families)
	}

	if *asJSON {
		if err := reports.EncodeJSON(os.Stdout); err != nil {
			return err
		}
		fmt.Println()
	} else {
		printSummary(reports)
	}

	if *metricsAddr == "" {
		return nil
	}

	fmt.Fprintf(os.Stderr, "serving metrics on %s/metrics, interrupt to exit\n", *metricsAddr)
	return <-served
}

func printSummary(reports qrep.Reports) {
	fmt.Printf("%-4s %-22s %-22s %-22s\n", "d", "full (0/1)", "code (0/1)", "single (0/1)")
	for _, r := range reports {
		full, code, single := r.ErrorFull(), r.ErrorCode(), r.ErrorSingle()
		fmt.Printf("%-4d %-22s %-22s %-22s\n", r.Distance,
			fmt.Sprintf("%.5f/%.5f", full[0], full[1]),
			fmt.Sprintf("%.5f/%.5f", code[0], code[1]),
			fmt.Sprintf("%.5f/%.5f", single[0], single[1]),
		)
	}
}
