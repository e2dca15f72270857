package jenkins

import "testing"

func TestJobPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want string
	}{
		{"nightly-build", "/job/nightly-build/api/json"},
		{"team/nightly-build", "/job/team/job/nightly-build/api/json"},
		{"folder/subfolder/nightly build", "/job/folder/job/subfolder/job/nightly%20build/api/json"},
		{"/team//nightly-build/", "/job/team/job/nightly-build/api/json"},
		{"a/b/c/d", "/job/a/job/b/job/c/job/d/api/json"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			if got := JobPath(tt.id); got != tt.want {
				t.Errorf("JobPath(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestJobURL(t *testing.T) {
	t.Parallel()

	got := JobURL("https://jenkins.example.com/", "team/nightly-build")
	want := "https://jenkins.example.com/job/team/job/nightly-build"
	if got != want {
		t.Errorf("JobURL = %q, want %q", got, want)
	}
}

func TestSegments(t *testing.T) {
	t.Parallel()

	if got := Segments("//"); len(got) != 0 {
		t.Errorf("Segments(%q) = %v, want empty", "//", got)
	}
	if got := Segments("a/b"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Segments(%q) = %v", "a/b", got)
	}
}

func TestJobIDFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"job/nightly-build/", "nightly-build", true},
		{"job/team/job/nightly-build/", "team/nightly-build", true},
		{"https://ci.example.com/job/team/job/nightly-build/42/", "team/nightly-build", true},
		{"/job/folder/job/nightly%20build", "folder/nightly build", true},
		{"job/a/job/job", "a/job", true},
		{"view/all/", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := JobIDFromPath(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("JobIDFromPath(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	for _, id := range []string{"a", "team/nightly build", "x/y/z"} {
		if got, ok := JobIDFromPath(JobRoot(id)); !ok || got != id {
			t.Errorf("JobIDFromPath(JobRoot(%q)) = %q, %v", id, got, ok)
		}
	}
}
