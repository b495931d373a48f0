package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"repertoire/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the environment is ready for a sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			failed := false

			var rows [][]string
			for _, r := range preflight.RunAll(cmd.Context(), cfg) {
				failed = failed || !r.Passed
				rows = append(rows, []string{r.Name, passLabel(r.Passed, false), r.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			statuses := preflight.CheckSystemDeps(cfg)
			if len(statuses) > 0 {
				rows = rows[:0]
				for _, s := range statuses {
					if !s.Available && !s.Optional {
						failed = true
					}
					rows = append(rows, []string{s.Name, passLabel(s.Available, s.Optional), s.Detail, s.Description})
				}
				fmt.Fprintln(out, renderTable([]string{"Dependency", "Status", "Detail", "Purpose"}, rows, nil))
			}

			if failed {
				return errors.New("doctor found problems")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func passLabel(passed, optional bool) string {
	switch {
	case passed:
		return "ok"
	case optional:
		return "missing (optional)"
	default:
		return "FAIL"
	}
}
