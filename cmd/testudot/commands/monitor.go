package commands

import (
	"context"
	"fmt"
	"strings"
	"testudot/internal/application"
	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
	"testudot/internal/monitor"

	"github.com/spf13/cobra"
)

var (
	monitorInterval int
	monitorTerm     string
	monitorOnce     bool
	monitorDryRun   bool
)

func init() {
	monitorCmd.Flags().IntVarP(&monitorInterval, "interval", "i", 0, "minutes between batches, defaults to the configured interval")
	monitorCmd.Flags().StringVarP(&monitorTerm, "term", "t", "", "testudo term id (YYYYMM), defaults to the current registration term")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run a single batch and exit")
	monitorCmd.Flags().BoolVar(&monitorDryRun, "dry-run", false, "keep state in memory and log notifications instead of sending them")
	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor every watched course, immediately and then on an interval.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		options := []application.Option{application.WithTermID(monitorTerm)}
		if monitorDryRun {
			options = append(options, application.WithDryRun())
		}
		app, err := openApp(ctx, options...)
		if err != nil {
			return err
		}
		defer app.Close()

		fmt.Println(dimStyle.Render(fmt.Sprintf("monitoring term %s", app.TermID())))
		runBatch(ctx, app.Monitor)
		if monitorOnce {
			return nil
		}

		interval := cfg.Monitor.IntervalMinutes
		if monitorInterval > 0 {
			interval = monitorInterval
		}

		telemetry.InstrumentPerfStats(ctx)

		cron := chrono.NewStandardCron(tel)
		err = cron.Cron(chrono.EveryMinutes(interval), func() {
			runBatch(ctx, app.Monitor)
			printNextRun(cron)
		})
		if err != nil {
			return err
		}
		printNextRun(cron)

		<-ctx.Done()
		fmt.Println(dimStyle.Render("stopping, waiting for the running batch to finish..."))
		<-cron.Stop().Done()
		return nil
	},
}

func printNextRun(cron chrono.StandardCron) {
	next := cron.Next()
	if next.IsZero() {
		return
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("next run at %s", next.Format("Jan 2 3:04:05 PM MST"))))
}

func runBatch(ctx context.Context, mon *monitor.Monitor) {
	results, err := mon.RunWatched(ctx)
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("could not read subscriptions: %s", err.Error())))
		return
	}
	if len(results) == 0 {
		fmt.Println(warnStyle.Render("no courses are being watched, add one with `testudot add`"))
		return
	}
	for _, result := range results {
		fmt.Println(formatResult(result))
	}
}

func formatResult(result monitor.CycleResult) string {
	course := boldStyle.Render(result.CourseID)
	if !result.Ok() {
		return fmt.Sprintf(
			"%s %s",
			course,
			errorStyle.Render(fmt.Sprintf("%s: %v", result.Status, result.Err)),
		)
	}

	var line strings.Builder
	line.WriteString(course)
	line.WriteString(" ")
	if result.EventsEmitted == 0 {
		line.WriteString(dimStyle.Render("no changes"))
	} else {
		line.WriteString(okStyle.Render(fmt.Sprintf("%d change(s)", result.EventsEmitted)))
	}
	if len(result.Recipients) > 0 {
		line.WriteString(dimStyle.Render(fmt.Sprintf(" -> %s", strings.Join(result.Recipients, ", "))))
	}
	if result.NotifyErr != nil {
		line.WriteString(" ")
		line.WriteString(warnStyle.Render(fmt.Sprintf("notification failed: %s", result.NotifyErr.Error())))
	}
	return line.String()
}
