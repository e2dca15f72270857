package alert

import (
	"context"
	"log/slog"

	"github.com/flemzord/jobwatch/pkg/jobs"
)

// LogSink writes incidents to a logger. The router uses it when no
// notification module is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Send implements Sink.
func (s *LogSink) Send(ctx context.Context, inc jobs.Incident) error {
	subject, body := Format(inc)
	s.logger.WarnContext(ctx, "alert: no notification sink configured, alert would have been sent",
		"job", inc.JobID,
		"kind", inc.Kind,
		"subject", subject,
		"body", body,
	)
	return nil
}
