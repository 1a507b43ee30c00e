// Package tracker defines the narrow views of external systems that the
// ledger logic depends on: the issue tracker, version control, and the
// artifact checkers. Adapters live in their own packages.
package tracker

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotConfigured is returned by factories missing required settings.
var ErrNotConfigured = errors.New("tracker not configured")

// StatusCategoryDone is the category name trackers use for finished work.
const StatusCategoryDone = "Done"

// Issue is the read-only subset of a tracker issue the core needs.
type Issue interface {
	Key() string
	StatusName() string
	StatusCategory() string
	Labels() []string
	Summary() string
	Description() string
	IssueType() string
}

// Tracker reads and transitions issues. GetIssue returns (nil, nil) when
// the issue does not exist.
type Tracker interface {
	Name() string
	GetIssue(ctx context.Context, key string) (Issue, error)
	// TransitionIssue moves an issue to the named status. It reports false
	// when no transition leads there.
	TransitionIssue(ctx context.Context, key, targetStatus string) (bool, error)
}

// VCS is the version-control view used by the verification gate.
type VCS interface {
	// HeadSHA returns the current commit, or "" when there is none.
	HeadSHA(ctx context.Context) (string, error)
	DiffChangedFiles(ctx context.Context, baseRef string) ([]string, error)
}

// ArtifactChecker locates verification reports.
type ArtifactChecker interface {
	// Path returns the report for the issue, or "" when there is none.
	Path(issueKey string) string
	Exists(issueKey string) bool
	// Hash returns the content hash of the report at path, or "" when it
	// cannot be read.
	Hash(path string) string
}

// PatchBatchChecker reports whether the patch batch an issue waits on exists.
type PatchBatchChecker interface {
	Exists(issueKey string) bool
}

// Settings are the connection parameters handed to a factory.
type Settings struct {
	URL     string
	User    string
	Token   string
	Timeout time.Duration
}

// IsDone reports whether the issue is in the Done status category.
func IsDone(i Issue) bool {
	return i != nil && strings.EqualFold(i.StatusCategory(), StatusCategoryDone)
}
