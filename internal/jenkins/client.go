// Package jenkins reads job execution data from a Jenkins server.
package jenkins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bndr/gojenkins"
	"github.com/flemzord/jobwatch/pkg/jobs"
)

const defaultTimeout = 30 * time.Second

// ErrEmptyJobID is returned for a job id with no non-empty segment.
var ErrEmptyJobID = errors.New("jenkins: empty job id")

// Config holds the connection settings for a Jenkins server.
type Config struct {
	URL      string
	Username string
	APIToken string

	// Timeout bounds every HTTP request. Defaults to 30 seconds.
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client fetches the latest build of a job through the Jenkins JSON API.
// Build details are always read through the configured base URL, never the
// host the server embeds in lastBuild.url.
type Client struct {
	jenkins *gojenkins.Jenkins
	base    string

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// New creates a client. It does not contact the server; see Ping.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("jenkins: url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	base := strings.TrimRight(cfg.URL, "/")
	var j *gojenkins.Jenkins
	if cfg.Username != "" {
		j = gojenkins.CreateJenkins(httpClient, base, cfg.Username, cfg.APIToken)
	} else {
		j = gojenkins.CreateJenkins(httpClient, base)
	}

	return &Client{
		jenkins: j,
		base:    base,
		now:     time.Now,
	}, nil
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base
}

// Ping checks that the server answers on its root API endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.jenkins.Init(ctx); err != nil {
		return fmt.Errorf("jenkins: connecting to %s: %w", c.base, err)
	}
	return nil
}

// FetchLatest returns the state of the most recent build of the job. A job
// that has never been built yields an Execution without a build time.
func (c *Client) FetchLatest(ctx context.Context, id string) (jobs.Execution, error) {
	segs := Segments(id)
	if len(segs) == 0 {
		return jobs.Execution{}, ErrEmptyJobID
	}

	job, err := c.jenkins.GetJob(ctx, segs[len(segs)-1], segs[:len(segs)-1]...)
	if err != nil {
		return jobs.Execution{}, fmt.Errorf("jenkins: fetching job %s: %w", id, err)
	}

	exec := jobs.Execution{
		ObservedAt:      c.now().UTC(),
		LastBuildStatus: jobs.StatusUnknown,
	}
	if job.Raw == nil || job.Raw.LastBuild.Number == 0 {
		return exec, nil
	}

	build, err := job.GetLastBuild(ctx)
	if err != nil {
		return jobs.Execution{}, fmt.Errorf("jenkins: fetching last build of %s: %w", id, err)
	}

	exec.LastBuildNumber = build.Raw.Number
	exec.Building = build.Raw.Building
	if build.Raw.Timestamp > 0 {
		exec.LastBuildTime = time.UnixMilli(build.Raw.Timestamp).UTC()
	}
	if !exec.Building {
		exec.LastBuildStatus = jobs.ParseStatus(build.Raw.Result)
	}
	return exec, nil
}
