package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/jobwatch/pkg/jobs"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// Subject returns the notification subject line for inc.
func Subject(inc jobs.Incident) string {
	switch inc.Kind {
	case jobs.KindRecovered:
		return "Jenkins Job Recovered: " + inc.JobID
	default:
		return "Jenkins Job Alert: " + inc.JobID
	}
}

// Format renders inc as a plain-text subject and body.
func Format(inc jobs.Incident) (subject, body string) {
	var b strings.Builder
	b.WriteString("Jenkins Monitor Alert\n\n")
	fmt.Fprintf(&b, "Job: %s\n", inc.JobID)

	switch inc.Kind {
	case jobs.KindMissed:
		writeMissed(&b, inc)
	case jobs.KindFailed:
		b.WriteString("Status: Latest build failed\n\n")
		if inc.Schedule != "" {
			fmt.Fprintf(&b, "Expected Schedule: %s\n", inc.Schedule)
		}
		writeLastBuild(&b, inc)
		b.WriteString("\nThe most recent build finished with a non-success result.\n")
	case jobs.KindRecovered:
		fmt.Fprintf(&b, "Status: Recovered (was %s)\n\n", inc.RecoveredFrom)
		writeLastBuild(&b, inc)
		b.WriteString("\nThe job is running on schedule again.\n")
	default:
		fmt.Fprintf(&b, "Status: %s\n", inc.Kind)
	}

	if inc.JobURL != "" {
		fmt.Fprintf(&b, "\nJenkins URL: %s\n", inc.JobURL)
	}
	return Subject(inc), b.String()
}

func writeMissed(b *strings.Builder, inc jobs.Incident) {
	if inc.LastBuildTime.IsZero() {
		b.WriteString("Status: No builds found\n\n")
	} else {
		b.WriteString("Status: Job has not run as expected\n\n")
	}
	fmt.Fprintf(b, "Expected Schedule: %s\n", inc.Schedule)
	fmt.Fprintf(b, "Last Expected Run: %s\n", inc.ExpectedAt.UTC().Format(timeLayout))

	if inc.LastBuildTime.IsZero() {
		b.WriteString("Last Build: None\n")
	} else {
		writeLastBuild(b, inc)
		fmt.Fprintf(b, "Time Since Last Build: %d minutes\n", minutes(inc.DetectedAt.Sub(inc.LastBuildTime)))
	}
	fmt.Fprintf(b, "Alert Threshold: %d minutes\n", minutes(inc.Threshold))
	fmt.Fprintf(b, "Overdue By: %d minutes\n\n", minutes(inc.OverdueBy))

	if inc.LastBuildTime.IsZero() {
		b.WriteString("The job has no build history and should have run by now.\n")
	} else {
		b.WriteString("The job has not run since the expected time plus the configured threshold.\n")
	}
	b.WriteString("Please check Jenkins for issues.\n")
}

func writeLastBuild(b *strings.Builder, inc jobs.Incident) {
	if inc.LastBuildTime.IsZero() {
		return
	}
	if inc.BuildNumber > 0 {
		fmt.Fprintf(b, "Last Build: %s (Build #%d)\n", inc.LastBuildTime.UTC().Format(timeLayout), inc.BuildNumber)
	} else {
		fmt.Fprintf(b, "Last Build: %s\n", inc.LastBuildTime.UTC().Format(timeLayout))
	}
	fmt.Fprintf(b, "Build Result: %s\n", inc.BuildStatus)
}

func minutes(d time.Duration) int64 {
	return int64(d / time.Minute)
}
