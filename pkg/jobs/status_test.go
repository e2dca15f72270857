package jobs

import "testing"

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Status
	}{
		{"SUCCESS", StatusSuccess},
		{"success", StatusSuccess},
		{" FAILURE ", StatusFailure},
		{"UNSTABLE", StatusUnstable},
		{"ABORTED", StatusAborted},
		{"NOT_BUILT", StatusUnknown},
		{"", StatusUnknown},
		{"garbage", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			if got := ParseStatus(tt.raw); got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestStatus_Failing(t *testing.T) {
	t.Parallel()

	failing := map[Status]bool{
		StatusSuccess:  false,
		StatusFailure:  true,
		StatusUnstable: true,
		StatusAborted:  true,
		StatusUnknown:  false,
	}
	for s, want := range failing {
		if got := s.Failing(); got != want {
			t.Errorf("%s.Failing() = %v, want %v", s, got, want)
		}
	}
}
