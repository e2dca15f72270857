package jenkins

import (
	"net/url"
	"strings"
)

// Segments splits a job id on "/" and drops empty segments.
func Segments(id string) []string {
	parts := strings.Split(id, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JobRoot maps a job id to its path on the server: every segment becomes a
// "/job/<segment>" element, escaped for use in a URL path.
//
//	team/nightly-build → /job/team/job/nightly-build
func JobRoot(id string) string {
	var b strings.Builder
	for _, seg := range Segments(id) {
		b.WriteString("/job/")
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}

// JobPath returns the JSON API path for a job id.
//
//	team/nightly-build → /job/team/job/nightly-build/api/json
func JobPath(id string) string {
	return JobRoot(id) + "/api/json"
}

// JobURL returns the browsable URL of a job on the server at base.
func JobURL(base, id string) string {
	return strings.TrimRight(base, "/") + JobRoot(id)
}

// JobIDFromPath is the inverse of JobRoot. It accepts a path or full URL
// such as "job/team/job/nightly-build/" or
// "https://ci/job/team/job/nightly-build/42/" and returns "team/nightly-build".
func JobIDFromPath(p string) (string, bool) {
	if u, err := url.Parse(p); err == nil && u.Scheme != "" {
		p = u.EscapedPath()
	}
	parts := Segments(p)
	var ids []string
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] != "job" {
			continue
		}
		seg, err := url.PathUnescape(parts[i+1])
		if err != nil {
			return "", false
		}
		ids = append(ids, seg)
		i++
	}
	if len(ids) == 0 {
		return "", false
	}
	return strings.Join(ids, "/"), true
}
