package config

import (
	"fmt"

	"github.com/flemzord/jobwatch/internal/monitor"
)

// JobSpecs converts the configured jobs, normalizing their schedules.
func (c *Config) JobSpecs() ([]monitor.Spec, error) {
	specs := make([]monitor.Spec, 0, len(c.Jobs))
	for _, j := range c.Jobs {
		cron, err := NormalizeCron(j.Schedule)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", j.Name, err)
		}
		specs = append(specs, monitor.Spec{
			ID:        j.Name,
			Cron:      cron,
			Threshold: j.AlertThreshold,
			Enabled:   j.IsEnabled(),
		})
	}
	return specs, nil
}

// BuildJobs is JobSpecs with every schedule parsed.
func (c *Config) BuildJobs() ([]monitor.Job, error) {
	specs, err := c.JobSpecs()
	if err != nil {
		return nil, err
	}
	out := make([]monitor.Job, 0, len(specs))
	for _, s := range specs {
		j, err := monitor.NewJob(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		out = append(out, j)
	}
	return out, nil
}
