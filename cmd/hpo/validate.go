package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/hpo-core/internal/objective"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/config"
	"github.com/spf13/cobra"
)

var errConfigRequired = errors.New("--config is required")

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a study file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	if opts.ConfigPath == "" {
		return errConfigRequired
	}
	cfg, err := config.LoadStudy(opts.ConfigPath)
	if err == nil {
		_, err = objective.New(cfg.Objective, cfg.Params)
	}

	out := cmd.OutOrStdout()
	if opts.Output == "json" {
		result := map[string]any{"valid": err == nil, "config": opts.ConfigPath}
		if err != nil {
			result["error"] = err.Error()
		} else {
			result["study"] = cfg.Name
			result["params"] = len(cfg.Params)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return encErr
		}
		return err
	}

	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: ok (study %q, objective %s, %d params)\n", opts.ConfigPath, cfg.Name, cfg.Objective, len(cfg.Params))
	return nil
}
