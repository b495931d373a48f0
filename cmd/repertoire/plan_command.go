package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"repertoire/internal/content"
	"repertoire/internal/workflow"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var names []string
	var details bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what sync would do without touching the disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}

			plans, err := workflow.NewRunner(cfg, logger).Plan(cmd.Context(), names)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(plans))
			for _, p := range plans {
				rows = append(rows, []string{
					p.Downloader,
					p.Root,
					strconv.Itoa(len(p.Result.AlreadySatisfied)),
					strconv.Itoa(len(p.Result.StillNeeded)),
					strconv.Itoa(len(p.Result.OrphanDirectories)),
					yesNo(p.CleanFilesystem),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Downloader", "Root", "Present", "Missing", "Orphans", "Prune"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))

			if !details {
				return nil
			}
			for _, p := range plans {
				printPlanDetails(cmd, p)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&names, "downloader", "d", nil, "Only plan the named downloader (repeatable)")
	cmd.Flags().BoolVar(&details, "details", false, "List every missing file and orphan folder")
	return cmd
}

func printPlanDetails(cmd *cobra.Command, p workflow.Plan) {
	out := cmd.OutOrStdout()
	if len(p.Result.StillNeeded) == 0 && len(p.Result.OrphanDirectories) == 0 && len(p.Result.Rejected) == 0 {
		fmt.Fprintf(out, "\n%s: up to date\n", p.Downloader)
		return
	}
	fmt.Fprintf(out, "\n%s\n", p.Downloader)
	for _, label := range content.Map(p.Result.StillNeeded, p.Label) {
		fmt.Fprintf(out, "  + %s\n", label)
	}
	for _, dir := range p.Result.OrphanDirectories {
		fmt.Fprintf(out, "  - %s\n", dir)
	}
	for _, item := range p.Result.Rejected {
		fmt.Fprintf(out, "  ! %s\n", item.Error())
	}
}
