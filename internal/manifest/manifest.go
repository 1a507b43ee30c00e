// Package manifest records how a parent issue was decomposed into child
// issues, so that decomposition can be repeated without creating duplicates.
package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/steveyegge/workledger/internal/fingerprint"
	"github.com/steveyegge/workledger/internal/types"
)

var (
	// ErrInvalidKey is returned for epic keys that cannot name a file.
	ErrInvalidKey = errors.New("invalid epic key")
	// ErrUnknownIntent is returned when assigning a key to an intent that is
	// not in the manifest.
	ErrUnknownIntent = errors.New("unknown intent")
	// ErrKeyConflict is returned when an intent already carries another key.
	ErrKeyConflict = errors.New("intent already has a different key")
)

// StoryIntent is a planned child issue. Key is nil until the child has been
// created in the tracker.
type StoryIntent struct {
	IntentID string  `json:"intent_id"`
	Summary  string  `json:"summary"`
	Key      *string `json:"key"`
}

// Keyed reports whether the intent has been created externally.
func (s StoryIntent) Keyed() bool {
	return s.Key != nil && *s.Key != ""
}

// NewIntent builds an unkeyed intent for summary.
func NewIntent(summary string) StoryIntent {
	return StoryIntent{
		IntentID: fingerprint.IntentID(summary),
		Summary:  strings.TrimSpace(summary),
	}
}

// Manifest is the decomposition record of one parent issue.
type Manifest struct {
	EpicKey     string               `json:"epic_key"`
	Fingerprint string               `json:"fingerprint"`
	Children    []StoryIntent        `json:"children"`
	Status      types.ManifestStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// New returns an INCOMPLETE manifest for the given parent content.
func New(epicKey, description string, now time.Time) *Manifest {
	return &Manifest{
		EpicKey:     epicKey,
		Fingerprint: ContentFingerprint(description),
		Children:    []StoryIntent{},
		Status:      types.ManifestIncomplete,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ContentFingerprint hashes a parent description. Line endings and
// surrounding whitespace are normalized so that an editor round trip does not
// look like a content change.
func ContentFingerprint(description string) string {
	d := strings.ReplaceAll(description, "\r\n", "\n")
	return fingerprint.Fingerprint(strings.TrimSpace(d))
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	c := *m
	c.Children = make([]StoryIntent, len(m.Children))
	for i, s := range m.Children {
		c.Children[i] = s
		if s.Key != nil {
			k := *s.Key
			c.Children[i].Key = &k
		}
	}
	return &c
}

// AllKeyed reports whether every intent has an external key. It is true for a
// manifest with no children.
func (m *Manifest) AllKeyed() bool {
	for _, s := range m.Children {
		if !s.Keyed() {
			return false
		}
	}
	return true
}

// Pending returns the intents that still need to be created.
func (m *Manifest) Pending() []StoryIntent {
	var out []StoryIntent
	for _, s := range m.Children {
		if !s.Keyed() {
			out = append(out, s)
		}
	}
	return out
}

// Keys returns the external keys of created children, in manifest order.
func (m *Manifest) Keys() []string {
	var out []string
	for _, s := range m.Children {
		if s.Keyed() {
			out = append(out, *s.Key)
		}
	}
	return out
}

// Merge folds a freshly proposed list of child summaries into the manifest.
// A proposal matches an existing intent by intent id first and then by a
// looser comparison that also ignores punctuation. Unmatched proposals are
// appended as new unkeyed intents. Existing intents are never removed or
// reordered, so keys assigned earlier survive any number of merges.
//
// Merge returns the pending intents after the merge. Status is only ever
// lowered to INCOMPLETE here; use RefreshStatus to raise it.
func (m *Manifest) Merge(proposed []string) []StoryIntent {
	byID := make(map[string]bool, len(m.Children))
	byLoose := make(map[string]bool, len(m.Children))
	for _, s := range m.Children {
		byID[s.IntentID] = true
		byLoose[looseNormalize(s.Summary)] = true
	}

	for _, summary := range proposed {
		if strings.TrimSpace(summary) == "" {
			continue
		}
		intent := NewIntent(summary)
		loose := looseNormalize(summary)
		if byID[intent.IntentID] || byLoose[loose] {
			continue
		}
		byID[intent.IntentID] = true
		byLoose[loose] = true
		m.Children = append(m.Children, intent)
	}

	pending := m.Pending()
	if len(pending) > 0 {
		m.Status = types.ManifestIncomplete
	}
	return pending
}

// AssignKey records the external key of a created child and refreshes the
// status. Assigning the same key twice is a no-op.
func (m *Manifest) AssignKey(intentID, key string, now time.Time) error {
	if key == "" {
		return fmt.Errorf("assign key to %s: %w", intentID, ErrInvalidKey)
	}
	i := slices.IndexFunc(m.Children, func(s StoryIntent) bool { return s.IntentID == intentID })
	if i < 0 {
		return fmt.Errorf("assign %s: %w: %s", key, ErrUnknownIntent, intentID)
	}
	cur := m.Children[i]
	if cur.Keyed() {
		if *cur.Key == key {
			return nil
		}
		return fmt.Errorf("assign %s to %s (has %s): %w", key, intentID, *cur.Key, ErrKeyConflict)
	}
	k := key
	m.Children[i].Key = &k
	m.RefreshStatus(now)
	return nil
}

// RefreshStatus sets Status from key presence and bumps UpdatedAt.
func (m *Manifest) RefreshStatus(now time.Time) {
	if m.AllKeyed() {
		m.Status = types.ManifestComplete
	} else {
		m.Status = types.ManifestIncomplete
	}
	m.UpdatedAt = now
}

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// looseNormalize is the second-pass matching key: the normalized summary with
// every run of non-alphanumeric characters collapsed to one space.
func looseNormalize(summary string) string {
	s := punctRe.ReplaceAllString(fingerprint.NormalizeSummary(summary), " ")
	return strings.TrimSpace(s)
}
