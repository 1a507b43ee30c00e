package jira

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/workledger/internal/tracker"
)

func init() {
	tracker.Register("jira", func(s tracker.Settings) (tracker.Tracker, error) {
		return NewTracker(s)
	})
}

// Tracker implements tracker.Tracker for Jira.
type Tracker struct {
	client *Client
}

// NewTracker builds a Jira tracker. URL and token are required.
func NewTracker(s tracker.Settings) (*Tracker, error) {
	if s.URL == "" || s.Token == "" {
		return nil, fmt.Errorf("jira: url and token are required: %w", tracker.ErrNotConfigured)
	}
	c := NewClient(s.URL, s.User, s.Token)
	if s.Timeout > 0 {
		c.HTTPClient.Timeout = s.Timeout
	}
	return &Tracker{client: c}, nil
}

// Client exposes the underlying HTTP client for tuning in tests.
func (t *Tracker) Client() *Client { return t.client }

func (t *Tracker) Name() string { return "jira" }

// GetIssue returns (nil, nil) for an issue Jira does not know.
func (t *Tracker) GetIssue(ctx context.Context, key string) (tracker.Issue, error) {
	issue, err := t.client.GetIssue(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return issueView{issue: issue}, nil
}

// TransitionIssue moves the issue along the first transition whose name or
// destination status matches targetStatus, ignoring case. An issue already
// in that status is left alone and reported as moved.
func (t *Tracker) TransitionIssue(ctx context.Context, key, targetStatus string) (bool, error) {
	issue, err := t.client.GetIssue(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s := issue.Fields.Status; s != nil && strings.EqualFold(s.Name, targetStatus) {
		return true, nil
	}

	transitions, err := t.client.Transitions(ctx, key)
	if err != nil {
		return false, err
	}
	for _, tr := range transitions {
		if strings.EqualFold(tr.To.Name, targetStatus) || strings.EqualFold(tr.Name, targetStatus) {
			if err := t.client.DoTransition(ctx, key, tr.ID); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}
