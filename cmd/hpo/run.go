package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/GoSim-25-26J-441/hpo-core/internal/objective"
	"github.com/GoSim-25-26J-441/hpo-core/internal/sampler"
	"github.com/GoSim-25-26J-441/hpo-core/internal/storage"
	"github.com/GoSim-25-26J-441/hpo-core/internal/study"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/config"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/logger"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/utils"
	"github.com/spf13/cobra"
)

type runOptions struct {
	trials int
	seed   int64
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a study in-process and print every trial",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadRunConfig(rootOpts, opts, cmd)
			if err != nil {
				return err
			}
			return runStudy(ctx, cfg, rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().IntVarP(&opts.trials, "trials", "n", 0, "override the number of trials")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "override the sampler seed")
	return cmd
}

func loadRunConfig(rootOpts *RootOptions, opts *runOptions, cmd *cobra.Command) (*config.Study, error) {
	if rootOpts.ConfigPath == "" {
		return nil, errConfigRequired
	}
	cfg, err := config.LoadStudy(rootOpts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("trials") {
		if opts.trials <= 0 {
			return nil, fmt.Errorf("--trials must be positive, got %d", opts.trials)
		}
		cfg.Trials = opts.trials
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = opts.seed
	}
	if rootOpts.LogLevel != "" {
		cfg.LogLevel = rootOpts.LogLevel
	}
	return cfg, nil
}

// runResult is the JSON document printed by `hpo run -o json`
type runResult struct {
	Study      string           `json:"study"`
	Objective  string           `json:"objective"`
	Seed       int64            `json:"seed"`
	StopReason string           `json:"stop_reason,omitempty"`
	Summary    map[string]any   `json:"summary"`
	Best       map[string]any   `json:"best,omitempty"`
	Trials     []map[string]any `json:"trials"`
}

func runStudy(ctx context.Context, cfg *config.Study, opts *RootOptions, out, errOut io.Writer) error {
	log := logger.NewText(cfg.LogLevel, errOut)

	obj, err := objective.New(cfg.Objective, cfg.Params)
	if err != nil {
		return err
	}

	s := study.New(cfg.Name, storage.NewInMemoryStorage(), sampler.NewIndependentSampler(utils.NewRandSource(cfg.Seed))).
		WithLogger(log).
		WithConvergence(study.StrategyFromConfig(cfg.Convergence))
	if opts.Output == "text" {
		s = s.WithCallback(func(_ *study.Study, t storage.FrozenTrial) {
			fmt.Fprintln(out, formatTrial(t))
		})
	}

	optErr := s.Optimize(ctx, obj, cfg.Trials)
	if optErr != nil && ctx.Err() == nil {
		return optErr
	}

	best, hasBest := s.BestTrial()
	sum := s.Summary()

	if opts.Output == "json" {
		res := runResult{
			Study:      cfg.Name,
			Objective:  cfg.Objective,
			Seed:       cfg.Seed,
			StopReason: s.StopReason(),
			Summary:    summaryJSON(sum),
		}
		if hasBest {
			res.Best = trialJSON(best)
		}
		for _, t := range s.Trials() {
			res.Trials = append(res.Trials, trialJSON(t))
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(out, "\nstudy %q: %d trials (%d completed, %d failed)", cfg.Name, sum.Trials, sum.Completed, sum.Failed)
	if reason := s.StopReason(); reason != "" {
		fmt.Fprintf(out, ", stopped: %s", reason)
	}
	fmt.Fprintln(out)
	if !hasBest {
		fmt.Fprintln(out, "no completed trials")
		return nil
	}
	fmt.Fprintf(out, "values: mean=%.6g std=%.6g median=%.6g min=%.6g max=%.6g\n", sum.Mean, sum.StdDev, sum.Median, sum.Min, sum.Max)
	fmt.Fprintf(out, "best %s\n", formatTrial(best))
	return nil
}

func formatTrial(t storage.FrozenTrial) string {
	var b strings.Builder
	fmt.Fprintf(&b, "trial %d %s", t.ID, t.State)
	if t.State == storage.StateCompleted {
		fmt.Fprintf(&b, " value=%.6g", t.Value)
	}

	params, err := t.ExternalParams()
	if err == nil && len(params) > 0 {
		parts := make([]string, 0, len(params))
		for _, name := range slices.Sorted(maps.Keys(params)) {
			parts = append(parts, name+"="+params[name].String())
		}
		fmt.Fprintf(&b, " params={%s}", strings.Join(parts, ", "))
	}
	if t.FailReason != "" {
		fmt.Fprintf(&b, " reason=%q", t.FailReason)
	}
	fmt.Fprintf(&b, " (%s)", utils.FormatDuration(t.Duration()))
	return b.String()
}

func trialJSON(t storage.FrozenTrial) map[string]any {
	out := map[string]any{
		"id":          t.ID,
		"state":       t.State.String(),
		"duration_ms": utils.TimeToMs(t.Duration()),
	}
	if t.State == storage.StateCompleted {
		out["value"] = finiteOrNil(t.Value)
	}
	if t.FailReason != "" {
		out["fail_reason"] = t.FailReason
	}
	if params, err := t.ExternalParams(); err == nil {
		out["params"] = study.ParamsToMap(params)
	}
	return out
}

func summaryJSON(sum study.Summary) map[string]any {
	out := map[string]any{
		"trials":    sum.Trials,
		"completed": sum.Completed,
		"failed":    sum.Failed,
	}
	if sum.HasBest {
		out["best_trial_id"] = sum.BestTrialID
		out["best_value"] = finiteOrNil(sum.BestValue)
		out["mean"] = finiteOrNil(sum.Mean)
		out["std_dev"] = finiteOrNil(sum.StdDev)
		out["median"] = finiteOrNil(sum.Median)
	}
	return out
}

// finiteOrNil maps NaN and ±Inf to nil; JSON has no encoding for them
func finiteOrNil(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
