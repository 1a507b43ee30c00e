// Package ledger is the durable record of per-issue pipeline progress.
//
// The whole table is read into memory, mutated, and written back in one
// atomic replace. There is a single writer by construction; the mutex only
// protects readers such as a watch loop in the same process.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/steveyegge/workledger/internal/atomicfile"
	"github.com/steveyegge/workledger/internal/types"
)

// FormatVersion is the version written to the ledger file.
const FormatVersion = 1

// FingerprintAutomationDefect is recorded when a failure is caused by the
// automation itself rather than by the work. Entries carrying it are never
// resumed automatically.
const FingerprintAutomationDefect = "automation-defect"

// DefaultBlockedStatus is the tracker status of an issue parked until its
// patch batch exists.
const DefaultBlockedStatus = "BLOCKED_WAITING_PATCH_BATCH"

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("ledger entry not found")
	// ErrEmptyKey is returned when an entry has no issue key.
	ErrEmptyKey = errors.New("ledger entry has empty issue key")
	// ErrLoadFailed is returned by Save while the last Load could not read
	// the file, so an unreadable ledger is never replaced by a partial table.
	ErrLoadFailed = errors.New("ledger failed to load")
)

// file is the on-disk layout.
type file struct {
	Version int               `json:"version"`
	Entries map[string]*Entry `json:"entries"`
}

// Options configures a Ledger. Zero values select the defaults.
type Options struct {
	Logger *slog.Logger
	// NonRetryable lists error fingerprints that permanently exclude an
	// entry from resumption. FingerprintAutomationDefect is always included.
	NonRetryable []string
	// Implementable lists the issue types that produce their own
	// verification artifact. Defaults to Story, Bug, Task.
	Implementable []types.IssueType
	// BlockedStatus defaults to DefaultBlockedStatus.
	BlockedStatus string
	// ErrorPrefixLen bounds the error text used in fingerprints.
	ErrorPrefixLen int
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

// Ledger is the in-memory table plus its backing file.
type Ledger struct {
	mu      sync.RWMutex
	path    string
	entries map[string]*Entry
	version int
	loadErr error

	log            *slog.Logger
	nonRetryable   map[string]bool
	implementable  map[types.IssueType]bool
	blockedStatus  string
	errorPrefixLen int
	now            func() time.Time
}

// New returns an empty ledger backed by path. Call Load to read it.
func New(path string, opts Options) *Ledger {
	l := &Ledger{
		path:           path,
		entries:        make(map[string]*Entry),
		version:        FormatVersion,
		log:            opts.Logger,
		nonRetryable:   map[string]bool{FingerprintAutomationDefect: true},
		implementable:  make(map[types.IssueType]bool),
		blockedStatus:  opts.BlockedStatus,
		errorPrefixLen: opts.ErrorPrefixLen,
		now:            opts.Now,
	}
	if l.log == nil {
		l.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	for _, fp := range opts.NonRetryable {
		if fp != "" {
			l.nonRetryable[fp] = true
		}
	}
	implementable := opts.Implementable
	if len(implementable) == 0 {
		implementable = []types.IssueType{types.TypeStory, types.TypeBug, types.TypeTask}
	}
	for _, t := range implementable {
		l.implementable[types.ParseIssueType(string(t))] = true
	}
	if l.blockedStatus == "" {
		l.blockedStatus = DefaultBlockedStatus
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Load replaces the in-memory table with the file contents. It returns false
// when the file is absent or unreadable; in both cases the table is left
// empty. An absent file is a normal first run; an unreadable one sets
// LoadFailed.
func (l *Ledger) Load() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[string]*Entry)
	l.version = FormatVersion
	l.loadErr = nil

	data, err := os.ReadFile(l.path) // #nosec G304 - path resolved at startup
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Debug("ledger file not found, starting empty", "path", l.path)
			return false
		}
		l.loadErr = fmt.Errorf("read ledger: %w", err)
		l.log.Warn("failed to read ledger", "path", l.path, "error", err)
		return false
	}

	raws, version, err := decode(data)
	if err != nil {
		l.loadErr = fmt.Errorf("parse ledger: %w", err)
		l.log.Warn("failed to parse ledger", "path", l.path, "error", err)
		return false
	}
	if version > FormatVersion {
		l.log.Warn("ledger written by a newer version", "path", l.path, "version", version)
	}

	for key, raw := range raws {
		e, dropped, err := decodeEntry(raw)
		if err != nil {
			l.log.Warn("skipping unreadable ledger entry", "key", key, "error", err)
			continue
		}
		if e == nil {
			continue
		}
		if len(dropped) > 0 {
			l.log.Warn("ignoring unreadable ledger fields", "key", key, "fields", dropped)
		}
		if e.IssueKey == "" {
			e.IssueKey = key
		}
		if e.IssueKey != key {
			l.log.Warn("ledger entry key mismatch, using map key", "key", key, "issue_key", e.IssueKey)
			e.IssueKey = key
		}
		l.entries[key] = e
	}
	if len(raws) > 0 && len(l.entries) == 0 {
		l.entries = make(map[string]*Entry)
		l.loadErr = errors.New("parse ledger: no readable entries")
		l.log.Warn("failed to parse ledger", "path", l.path, "error", l.loadErr)
		return false
	}
	l.version = version
	l.log.Debug("ledger loaded", "path", l.path, "entries", len(l.entries), "version", version)
	return true
}

// decode splits the file into raw entries. It accepts the versioned layout
// and the legacy bare object keyed by issue key (reported as version 0).
func decode(data []byte) (map[string]json.RawMessage, int, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, 0, err
	}
	if top == nil {
		return nil, 0, errors.New("ledger is not a JSON object")
	}

	rawEntries, ok := top["entries"]
	if !ok {
		delete(top, "version")
		return top, 0, nil
	}

	var version int
	if v, ok := top["version"]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			return nil, 0, fmt.Errorf("ledger version: %w", err)
		}
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(rawEntries, &entries); err != nil {
		return nil, 0, fmt.Errorf("ledger entries: %w", err)
	}
	return entries, version, nil
}

// LoadFailed reports whether the last Load found a file it could not read
// or parse. Callers should treat the ledger conservatively in that case.
func (l *Ledger) LoadFailed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadErr != nil
}

// LoadErr returns the error behind LoadFailed, if any.
func (l *Ledger) LoadErr() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadErr
}

// Version returns the format version of the loaded file (0 for legacy).
func (l *Ledger) Version() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Save writes the whole table atomically. On error the previous file is
// intact and the error is returned; nothing is retried. Save refuses with
// ErrLoadFailed after a failed Load until Reset is called.
func (l *Ledger) Save() error {
	l.mu.RLock()
	if l.loadErr != nil {
		loadErr := l.loadErr
		l.mu.RUnlock()
		l.log.Error("refusing to save over unreadable ledger", "path", l.path, "error", loadErr)
		return fmt.Errorf("save ledger %s: %w: %w", l.path, ErrLoadFailed, loadErr)
	}
	f := file{Version: FormatVersion, Entries: l.entries}
	err := atomicfile.WriteJSON(l.path, f)
	l.mu.RUnlock()

	if err != nil {
		l.log.Error("failed to save ledger", "path", l.path, "error", err)
		return fmt.Errorf("save ledger: %w", err)
	}

	l.mu.Lock()
	l.version = FormatVersion
	l.mu.Unlock()
	return nil
}

// Reset discards the in-memory table and any load failure. The next Save
// replaces the file on disk, including one that could not be read.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loadErr != nil {
		l.log.Warn("resetting unreadable ledger", "path", l.path, "error", l.loadErr)
	}
	l.entries = make(map[string]*Entry)
	l.version = FormatVersion
	l.loadErr = nil
}

// Get returns a copy of the entry for key.
func (l *Ledger) Get(key string) (*Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[key]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Upsert stores a copy of e, replacing any existing entry with the same key.
func (l *Ledger) Upsert(e *Entry) error {
	if e == nil || e.IssueKey == "" {
		return ErrEmptyKey
	}
	c := e.Clone()
	now := l.now()
	c.UpdatedAt = &now

	l.mu.Lock()
	l.entries[c.IssueKey] = c
	l.mu.Unlock()
	return nil
}

// Update applies fn to the entry for key. It returns false, without calling
// fn, when the entry does not exist. fn must not change IssueKey.
func (l *Ledger) Update(key string, fn func(*Entry)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return false
	}
	c := e.Clone()
	fn(c)
	c.IssueKey = key
	now := l.now()
	c.UpdatedAt = &now
	l.entries[key] = c
	return true
}

// Ensure returns a copy of the entry for key, creating it first when absent.
func (l *Ledger) Ensure(key string, issueType types.IssueType) (*Entry, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key]; ok {
		return e.Clone(), nil
	}
	now := l.now()
	e := &Entry{IssueKey: key, IssueType: issueType, UpdatedAt: &now}
	l.entries[key] = e
	return e.Clone(), nil
}

// Delete removes the entry for key. Entries are only removed by an
// administrator; nothing in the pipeline deletes them.
func (l *Ledger) Delete(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[key]; !ok {
		return false
	}
	delete(l.entries, key)
	return true
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Keys returns the issue keys in sorted order.
func (l *Ledger) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Entries returns copies of all entries sorted by issue key.
func (l *Ledger) Entries() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b *Entry) int {
		switch {
		case a.IssueKey < b.IssueKey:
			return -1
		case a.IssueKey > b.IssueKey:
			return 1
		}
		return 0
	})
	return out
}

// IsNonRetryable reports whether fp is one of the fatal signatures.
func (l *Ledger) IsNonRetryable(fp string) bool {
	return fp != "" && l.nonRetryable[fp]
}

// IsImplementable reports whether issues of type t produce their own
// verification artifact.
func (l *Ledger) IsImplementable(t types.IssueType) bool {
	return l.implementable[t]
}
