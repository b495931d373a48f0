package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"repertoire/internal/deps"
	"repertoire/internal/logging"
	"repertoire/internal/preflight"
	"repertoire/internal/services"
	"repertoire/internal/workflow"
)

// errSyncFailures signals a completed pass with per-item failures.
var errSyncFailures = errors.New("sync finished with failures")

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var noInteraction bool
	var names []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Remove orphan folders and download missing files",
		Long: `Read every configured source, extract links with each downloader, then
bring the managed root in line with them: folders no longer backed by any
content are removed and missing files are downloaded.

Examples:
  repertoire sync                       # Run every downloader
  repertoire sync --dry-run             # Show what would change
  repertoire sync -d videos -n          # One downloader, no prompts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}

			if !dryRun {
				if missing := deps.Missing(preflight.CheckSystemDeps(cfg)); len(missing) > 0 {
					var parts []string
					for _, m := range missing {
						parts = append(parts, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
					}
					logging.ErrorWithContext(logger, "missing dependencies", "dependency_check_failed",
						logging.String("missing", strings.Join(parts, ", ")),
						logging.String(logging.FieldErrorHint, "install the tools or fix the downloader binary setting"),
					)
					return services.Wrap(services.ErrConfiguration, "cli", "check dependencies",
						"missing "+strings.Join(parts, ", "), nil)
				}
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			in := cmd.InOrStdin()
			interactive := cfg.Run.Interactive && !noInteraction && isTerminal(in)
			runner := workflow.NewRunner(cfg, logger, workflow.WithIO(in, cmd.OutOrStdout()))
			summary, err := runner.Sync(signalCtx, workflow.SyncOptions{
				DryRun:      dryRun,
				Interactive: interactive,
				Downloaders: names,
			})
			if err != nil {
				return err
			}
			if n := summary.FailureCount(); n > 0 {
				return fmt.Errorf("%w: %d item(s) failed", errSyncFailures, n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change without touching the disk")
	cmd.Flags().BoolVarP(&noInteraction, "no-interaction", "n", false, "Never ask for confirmation")
	cmd.Flags().StringSliceVarP(&names, "downloader", "d", nil, "Only run the named downloader (repeatable)")
	return cmd
}
