package qrep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/theapemachine/errnie"
	"golang.org/x/sync/errgroup"
)

var ErrDuplicateDistance = errors.New("distance listed more than once")

/*
Experiment runs the decoding pipeline against a device for one or more code
distances.
*/
type Experiment struct {
	device      *Device
	trials      int
	parallelism int
	out         io.Writer
}

// NewExperiment runs trials trials per distance on device, writing verbose tables to out.
func NewExperiment(device *Device, trials, parallelism int, out io.Writer) *Experiment {
	if out == nil {
		out = io.Discard
	}
	return &Experiment{
		device:      device,
		trials:      trials,
		parallelism: parallelism,
		out:         out,
	}
}

/*
GetData runs all trials for distance d and returns the report whose
ErrorFull, ErrorCode and ErrorSingle give the mean error per encoded bit.
With verbose set, the view distributions of the last trial are printed.
*/
func (e *Experiment) GetData(ctx context.Context, d int, verbose bool) (*Report, error) {
	report, err := e.run(ctx, d)
	if err != nil {
		return nil, err
	}

	if verbose {
		if err := WriteTable(e.out, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (e *Experiment) run(ctx context.Context, d int) (*Report, error) {
	errnie.Info("running %d trials at distance %d on %s", e.trials, d, e.device.Name())

	distance := strconv.Itoa(d)
	report, err := RunTrials(ctx, d, e.trials, e.device.Layout(), e.device,
		WithTrialObserver(func(int, int) {
			e.device.Metrics().recordTrial(distance)
		}),
	)
	if err != nil {
		return nil, err
	}

	errnie.Info(
		"distance %d: full %v code %v single %v",
		d, report.ErrorFull(), report.ErrorCode(), report.ErrorSingle(),
	)
	return report, nil
}

/*
Sweep runs every distance concurrently, each on its own accumulator. Trials of
one distance stay sequential. Verbose tables are written once all distances
have finished, in ascending order of distance.
*/
func (e *Experiment) Sweep(ctx context.Context, distances []int, verbose bool) (map[int]*Report, error) {
	if err := validateDistances(e.device.Layout(), distances); err != nil {
		return nil, err
	}

	reports := make([]*Report, len(distances))

	g, gctx := errgroup.WithContext(ctx)
	if e.parallelism > 0 {
		g.SetLimit(e.parallelism)
	}

	for i, d := range distances {
		g.Go(func() error {
			report, err := e.run(gctx, d)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int]*Report, len(reports))
	for _, r := range reports {
		out[r.Distance] = r
	}

	if verbose {
		for _, d := range SortedDistances(out) {
			if err := WriteTable(e.out, out[d]); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func validateDistances(layout Layout, distances []int) error {
	seen := make(map[int]struct{}, len(distances))
	for _, d := range distances {
		if err := layout.Validate(d); err != nil {
			return err
		}
		if _, ok := seen[d]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateDistance, d)
		}
		seen[d] = struct{}{}
	}
	return nil
}

// SortedDistances lists the distances of a sweep in ascending order.
func SortedDistances(reports map[int]*Report) []int {
	ds := make([]int, 0, len(reports))
	for d := range reports {
		ds = append(ds, d)
	}
	sort.Ints(ds)
	return ds
}

/*
WriteTable prints, for every view of the last trial, each derived string with
its probability under both encoded bits and the label the decoder gives it.
*/
func WriteTable(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "distance %d, %d trials\n", r.Distance, r.Trials)
	for _, v := range AllViews {
		pair := PairOf(v, r.Last)
		stats := r.Stats[v]

		fmt.Fprintf(tw, "\n[%s] error %.6f / %.6f (var %.3g / %.3g)\n",
			v, stats[0].Mean, stats[1].Mean, stats[0].Variance, stats[1].Variance)
		fmt.Fprintln(tw, "string\tP(s|0)\tP(s|1)\tdecoded")

		for _, s := range unionKeys(pair) {
			label, tie := Decode(s, pair)
			decoded := strconv.Itoa(label)
			if tie {
				decoded = "tie"
			}
			fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t%s\n", s, pair[0][s], pair[1][s], decoded)
		}
	}
	fmt.Fprintln(tw)

	return tw.Flush()
}

func unionKeys(pair Pair) []string {
	seen := make(map[string]struct{}, len(pair[0])+len(pair[1]))
	for _, dist := range pair {
		for k := range dist {
			seen[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

/*
NewSimulatedExperiment wires a Simulator behind a Device configured from cfg.
Metrics are registered on reg when it is non-nil.
*/
func NewSimulatedExperiment(cfg *Config, reg prometheus.Registerer, out io.Writer) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	layout, err := cfg.BuildLayout()
	if err != nil {
		return nil, err
	}

	sim := NewSimulator(cfg.Seed, cfg.ErrorRate, cfg.MeasurementError)
	sim.FailureRate = cfg.FailureRate

	opts := []DeviceOption{
		WithRetry(cfg.MaxAttempts, &ExponentialBackoff{Initial: cfg.Backoff, Max: 30 * time.Second}),
		WithMetrics(NewMetrics(reg)),
	}
	if cfg.MaxFailures > 0 {
		opts = append(opts, WithCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout, 1))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit, cfg.RateRefill))
	}

	device := NewDevice(sim, layout, cfg.Shots, opts...)
	return NewExperiment(device, cfg.Trials, cfg.Parallelism, out), nil
}

// Device returns the device the experiment runs on.
func (e *Experiment) Device() *Device {
	return e.device
}
