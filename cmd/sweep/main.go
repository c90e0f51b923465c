package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"maintenance-service/internal/app"
	"maintenance-service/internal/config"
	"maintenance-service/internal/logging"
	"maintenance-service/internal/schedule"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var asOf string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance sweep and exit",
		Long: `Run one maintenance sweep over every open task: send due reminders,
update due/overdue tags and escalate overdue tasks.

Failures of individual tasks are reported but do not fail the command.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			today := a.Driver.Today()
			if asOf != "" {
				if today, err = schedule.ParseDay(asOf); err != nil {
					return fmt.Errorf("invalid --as-of %q: %w", asOf, err)
				}
			}

			rep, err := a.Driver.Run(ctx, today)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sweep %s for %s: total=%d processed=%d skipped=%d failed=%d reminders=%d escalations=%d tag_changes=%d\n",
				rep.RunID, rep.Today.Format("2006-01-02"), rep.Total, rep.Processed, rep.Skipped, rep.Failed,
				rep.Reminders, rep.Escalations, rep.TagChanges)
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluate tasks as of this day (YYYY-MM-DD) instead of today")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the sweep report as JSON")
	return cmd
}
