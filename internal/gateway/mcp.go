package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/flemzord/jobwatch/internal/monitor"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// mcpTools exposes the monitor to MCP clients.
type mcpTools struct {
	monitor Monitor
}

// newMCPServer registers the monitor tools on a fresh MCP server.
func newMCPServer(m Monitor, version string) *server.MCPServer {
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer("jobwatch", version, server.WithToolCapabilities(false))
	t := &mcpTools{monitor: m}

	s.AddTool(mcp.NewTool("list_jobs",
		mcp.WithDescription("List monitored Jenkins jobs with their schedule and current state."),
	), t.listJobs)

	s.AddTool(mcp.NewTool("job_status",
		mcp.WithDescription("Show the tracking record of one job: last build, consecutive misses, last alert."),
		mcp.WithString("job", mcp.Required(), mcp.Description("Job id, folders separated by '/'")),
	), t.jobStatus)

	s.AddTool(mcp.NewTool("check_job",
		mcp.WithDescription("Check one job against its schedule now and report the outcome."),
		mcp.WithString("job", mcp.Required(), mcp.Description("Job id, folders separated by '/'")),
	), t.checkJob)

	s.AddTool(mcp.NewTool("next_runs",
		mcp.WithDescription("List the upcoming due instants of a job's schedule."),
		mcp.WithString("job", mcp.Required(), mcp.Description("Job id, folders separated by '/'")),
		mcp.WithNumber("count", mcp.Description("Number of instants, 1 to 50 (default 5)")),
	), t.nextRuns)

	return s
}

// newMCPHandler serves the MCP tools over streamable HTTP.
func newMCPHandler(m Monitor, version string) http.Handler {
	return server.NewStreamableHTTPServer(newMCPServer(m, version))
}

func (t *mcpTools) listJobs(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := t.monitor.Jobs()
	out := make([]jobJSON, 0, len(list))
	for _, job := range list {
		v := describeJob(t.monitor, job, 1)
		v.Record = nil
		out = append(out, v)
	}
	return jsonResult(out)
}

func (t *mcpTools) jobStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, errResult := t.job(req)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(describeJob(t.monitor, job, defaultNextRuns))
}

func (t *mcpTools) checkJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("job")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.monitor.CheckNow(ctx, id)
	if errors.Is(err, monitor.ErrUnknownJob) {
		return mcp.NewToolResultError(fmt.Sprintf("job %q is not monitored", id)), nil
	}
	return jsonResult(checkJSON{Result: res, Error: res.Error()})
}

func (t *mcpTools) nextRuns(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, errResult := t.job(req)
	if errResult != nil {
		return errResult, nil
	}
	n := req.GetInt("count", 5)
	if n < 1 || n > maxNextRuns {
		return mcp.NewToolResultError(fmt.Sprintf("count must be between 1 and %d", maxNextRuns)), nil
	}
	runs, err := job.Schedule.Upcoming(t.monitor.Now(), n)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(runs)
}

// job resolves the "job" argument. A non-nil result is the error to return.
func (t *mcpTools) job(req mcp.CallToolRequest) (monitor.Job, *mcp.CallToolResult) {
	id, err := req.RequireString("job")
	if err != nil {
		return monitor.Job{}, mcp.NewToolResultError(err.Error())
	}
	job, ok := t.monitor.Job(id)
	if !ok {
		return monitor.Job{}, mcp.NewToolResultError(fmt.Sprintf("job %q is not monitored", id))
	}
	return job, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("gateway: encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
