package jenkins

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/jobwatch/pkg/jobs"
)

// newFakeJenkins serves a tiny subset of the Jenkins JSON API.
func newFakeJenkins(t *testing.T) *httptest.Server {
	t.Helper()

	routes := map[string]string{
		"/api/json":                               `{"jobs":[]}`,
		"/job/team/job/nightly-build/api/json":    `{"name":"nightly-build","lastBuild":{"number":42,"url":"http://internal:8080/job/team/job/nightly-build/42/"}}`,
		"/job/team/job/nightly-build/42/api/json": `{"number":42,"result":"FAILURE","building":false,"timestamp":1735783210000}`,
		"/job/running/api/json":                   `{"name":"running","lastBuild":{"number":7}}`,
		"/job/running/7/api/json":                 `{"number":7,"result":"","building":true,"timestamp":1735783210000}`,
		"/job/fresh/api/json":                     `{"name":"fresh","lastBuild":null}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bot" || pass != "token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		body, found := routes[r.URL.Path]
		if !found {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Jenkins", "2.440")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{URL: url + "/", Username: "bot", APIToken: "token", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC) }
	return c
}

func TestClient_FetchLatest_FolderJob(t *testing.T) {
	t.Parallel()

	srv := newFakeJenkins(t)
	c := newTestClient(t, srv.URL)

	exec, err := c.FetchLatest(t.Context(), "team/nightly-build")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}

	if exec.LastBuildNumber != 42 {
		t.Errorf("LastBuildNumber = %d, want 42", exec.LastBuildNumber)
	}
	if exec.LastBuildStatus != jobs.StatusFailure {
		t.Errorf("LastBuildStatus = %q, want FAILURE", exec.LastBuildStatus)
	}
	want := time.Date(2025, 1, 2, 2, 0, 10, 0, time.UTC)
	if !exec.LastBuildTime.Equal(want) {
		t.Errorf("LastBuildTime = %s, want %s", exec.LastBuildTime, want)
	}
	if !exec.ObservedAt.Equal(time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)) {
		t.Errorf("ObservedAt = %s", exec.ObservedAt)
	}
}

func TestClient_FetchLatest_BuildInProgress(t *testing.T) {
	t.Parallel()

	srv := newFakeJenkins(t)
	c := newTestClient(t, srv.URL)

	exec, err := c.FetchLatest(t.Context(), "running")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if !exec.Building {
		t.Error("Building should be true")
	}
	if exec.LastBuildStatus != jobs.StatusUnknown {
		t.Errorf("status = %q, want UNKNOWN while building", exec.LastBuildStatus)
	}
	if !exec.HasBuild() {
		t.Error("a running build still counts as a build")
	}
}

func TestClient_FetchLatest_NeverBuilt(t *testing.T) {
	t.Parallel()

	srv := newFakeJenkins(t)
	c := newTestClient(t, srv.URL)

	exec, err := c.FetchLatest(t.Context(), "fresh")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if exec.HasBuild() {
		t.Errorf("never-built job reported build at %s", exec.LastBuildTime)
	}
	if exec.LastBuildStatus != jobs.StatusUnknown {
		t.Errorf("status = %q, want UNKNOWN", exec.LastBuildStatus)
	}
}

func TestClient_FetchLatest_UnknownJob(t *testing.T) {
	t.Parallel()

	srv := newFakeJenkins(t)
	c := newTestClient(t, srv.URL)

	if _, err := c.FetchLatest(t.Context(), "does/not/exist"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestClient_FetchLatest_EmptyID(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, "http://127.0.0.1:1")
	if _, err := c.FetchLatest(t.Context(), "/"); !errors.Is(err, ErrEmptyJobID) {
		t.Errorf("error = %v, want ErrEmptyJobID", err)
	}
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	srv := newFakeJenkins(t)
	if err := newTestClient(t, srv.URL).Ping(t.Context()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	srv.Close()
	if err := newTestClient(t, srv.URL).Ping(t.Context()); err == nil {
		t.Error("Ping against a closed server should fail")
	}
}

func TestNew_RequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("New without URL should fail")
	}
}
