package jira

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var issueKeyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]+-[0-9]+$`)

// IsIssueKey reports whether s looks like a Jira issue key ("PROJ-123").
func IsIssueKey(s string) bool {
	return issueKeyRe.MatchString(s)
}

// BrowseURL returns the web URL of an issue.
func BrowseURL(baseURL, key string) string {
	return strings.TrimSuffix(baseURL, "/") + "/browse/" + key
}

// KeyFromURL extracts the issue key from a browse URL.
// For example, "https://company.atlassian.net/browse/PROJ-123" returns "PROJ-123".
// Anything that is already a key is returned unchanged.
func KeyFromURL(ref string) string {
	if IsIssueKey(ref) {
		return ref
	}
	idx := strings.LastIndex(ref, "/browse/")
	if idx == -1 {
		return ""
	}
	key := ref[idx+len("/browse/"):]
	if i := strings.IndexAny(key, "?#/"); i >= 0 {
		key = key[:i]
	}
	return key
}

// ParseTimestamp parses Jira's timestamp format into a time.Time.
// Jira uses ISO 8601 with timezone: 2024-01-15T10:30:00.000+0000 or 2024-01-15T10:30:00.000Z
func ParseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	formats := []string{
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05-0700",
		time.RFC3339Nano,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %s", ts)
}
