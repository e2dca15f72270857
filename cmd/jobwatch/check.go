package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/flemzord/jobwatch/internal/monitor"
	"github.com/flemzord/jobwatch/pkg/app"
	"github.com/spf13/cobra"
)

// errIncidents makes `check` exit with status 2.
var errIncidents = errors.New("incidents detected")

func checkCmd() *cobra.Command {
	var (
		notify bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every configured job once and report conformance",
		Long: `Check every configured job once against its schedule and print the result.

Jobs are judged immediately, without waiting for an observation period.
The command exits with status 2 when a missed or failed run is found.
With --notify, the configured notification modules are started and
incidents are delivered as in the long-running monitor.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := runParams(cmd)
			cfg, cfgPath, err := app.LoadConfig(params.ConfigPath)
			if err != nil {
				return err
			}
			if params.LogLevel == "" {
				params.LogLevel = "error"
			}

			ctx := cmd.Context()
			inst, err := app.Build(ctx, cfg, app.Options{
				ConfigPath:  cfgPath,
				Version:     version,
				LogLevel:    params.LogLevel,
				LogOutput:   cmd.ErrOrStderr(),
				FirstCheck:  monitor.PolicyOneShot,
				NoModules:   !notify,
				NoScheduler: true,
			})
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = inst.Close(closeCtx)
			}()
			if err := inst.App.Start(); err != nil {
				return err
			}

			report := inst.Engine.RunCycle(ctx)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else if err := printReport(cmd.OutOrStdout(), report, inst.Engine.Now()); err != nil {
				return err
			}

			return reportErr(report)
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Deliver incidents through the configured modules")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

// printReport writes one row per checked job.
func printReport(w io.Writer, report monitor.CycleReport, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tOUTCOME\tLAST DUE\tNEXT\tDETAIL")
	for _, res := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			res.JobID, res.Outcome, relative(res.Due, now), relative(res.Next, now), detail(res))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d checked, %d compliant, %d missed, %d failed, %d unavailable\n",
		len(report.Results),
		report.Count(monitor.OutcomeCompliant),
		report.Count(monitor.OutcomeMissed),
		report.Count(monitor.OutcomeFailed),
		report.Count(monitor.OutcomeUnavailable),
	)
	return nil
}

func relative(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func detail(res monitor.Result) string {
	if msg := res.Error(); msg != "" {
		return msg
	}
	inc := res.Incident
	if inc == nil {
		return ""
	}
	if inc.OverdueBy > 0 {
		return "overdue by " + inc.OverdueBy.Round(time.Minute).String()
	}
	if inc.BuildNumber > 0 {
		return fmt.Sprintf("build #%d %s", inc.BuildNumber, inc.BuildStatus)
	}
	return ""
}

// reportErr returns errIncidents when the cycle found missed or failed
// runs, and an error when the server could not be queried for any job.
func reportErr(report monitor.CycleReport) error {
	bad := report.Count(monitor.OutcomeMissed) + report.Count(monitor.OutcomeFailed)
	if bad > 0 {
		return fmt.Errorf("%w: %d", errIncidents, bad)
	}
	if n := report.Count(monitor.OutcomeUnavailable) + report.Count(monitor.OutcomeError); n > 0 && n == len(report.Results) {
		return errors.New("no job could be checked")
	}
	return nil
}
