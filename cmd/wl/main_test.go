package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/workledger"
	"github.com/steveyegge/workledger/internal/atomicfile"
	"github.com/steveyegge/workledger/internal/config"
	"github.com/steveyegge/workledger/internal/ledger"
	"github.com/steveyegge/workledger/internal/lockfile"
	"github.com/steveyegge/workledger/internal/manifest"
	"github.com/steveyegge/workledger/internal/timeparsing"
	"github.com/steveyegge/workledger/internal/tracker"
)

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

const seedLedger = `{
  "KAN-1": {"issue_key": "KAN-1", "issue_type": "Story", "last_step": "IMPLEMENTER", "last_step_result": "timed_out", "last_error_fingerprint": "aaaa"},
  "KAN-2": {"issue_key": "KAN-2", "issue_type": "Story", "last_step": "VERIFY", "last_step_result": "success"},
  "KAN-3": {"issue_key": "KAN-3", "issue_type": "Story", "last_step": "IMPLEMENTER", "last_step_result": "failed", "last_error_fingerprint": "bbbb"},
  "KAN-9": {"issue_key": "KAN-9", "issue_type": "Epic"}
}`

type testEnv struct {
	t        *testing.T
	stateDir string
	app      *app
	out      *bytes.Buffer
	errOut   *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	t.Setenv("WL_NO_PAGER", "1")
	t.Setenv("WL_REPO_DIR", t.TempDir())
	t.Setenv("GIT_CEILING_DIRECTORIES", os.TempDir())

	env := &testEnv{
		t:        t,
		stateDir: filepath.Join(t.TempDir(), ".workledger"),
		out:      &bytes.Buffer{},
		errOut:   &bytes.Buffer{},
	}
	env.app = newApp()
	env.app.in = strings.NewReader("")
	env.app.out = env.out
	env.app.errOut = env.errOut
	env.app.now = func() time.Time { return testNow }
	env.app.confirm = func(string, string) (bool, error) {
		t.Fatal("unexpected confirmation prompt")
		return false, nil
	}
	return env
}

func (e *testEnv) seed(content string) {
	e.t.Helper()
	path := filepath.Join(e.stateDir, "var", "ledger.json")
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o644))
}

func (e *testEnv) run(args ...string) error {
	e.t.Helper()
	e.out.Reset()
	e.errOut.Reset()
	cmd := newRootCmd(e.app)
	cmd.SetArgs(append([]string{"--state-dir", e.stateDir, "--no-color"}, args...))
	return cmd.ExecuteContext(context.Background())
}

func (e *testEnv) workspace() *workledger.Workspace {
	e.t.Helper()
	cfg, err := config.Load(config.Options{StateDir: e.stateDir})
	require.NoError(e.t, err)
	ws, err := workledger.Open(cfg, workledger.Options{Now: func() time.Time { return testNow }})
	require.NoError(e.t, err)
	return ws
}

func TestSummaryJSON(t *testing.T) {
	env := newTestEnv(t)
	env.seed(seedLedger)

	require.NoError(t, env.run("--json", "summary"))
	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &views))
	require.Len(t, views, 4)

	byKey := map[string]map[string]interface{}{}
	for _, v := range views {
		byKey[v["issue_key"].(string)] = v
	}
	assert.Equal(t, true, byKey["KAN-1"]["resumable"])
	assert.Equal(t, "transient_failure", byKey["KAN-1"]["rule"])
	assert.Equal(t, "artifact_missing", byKey["KAN-2"]["rule"])
	assert.Equal(t, "handled_failure", byKey["KAN-3"]["rule"])
	assert.Equal(t, "fresh", byKey["KAN-9"]["rule"])
}

func TestSummaryMarkdown(t *testing.T) {
	env := newTestEnv(t)
	env.seed(seedLedger)

	require.NoError(t, env.run("summary"))
	out := env.out.String()
	assert.Contains(t, out, "# Work ledger")
	assert.Contains(t, out, "2 of 4 entries resumable.")
}

func TestResumableTable(t *testing.T) {
	env := newTestEnv(t)
	env.seed(seedLedger)

	require.NoError(t, env.run("resumable"))
	out := env.out.String()
	assert.Contains(t, out, "ISSUE")
	assert.Contains(t, out, "KAN-1")
	assert.Contains(t, out, "KAN-2")
	assert.NotContains(t, out, "KAN-3")

	require.NoError(t, env.run("resumable", "--all"))
	assert.Contains(t, env.out.String(), "handled_failure")
}

func TestResumableEmpty(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run("resumable"))
	assert.Contains(t, env.out.String(), "Nothing to resume.")

	require.NoError(t, env.run("--json", "resumable"))
	assert.JSONEq(t, "[]", env.out.String())
}

func TestShow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(seedLedger)

	require.NoError(t, env.run("show", "KAN-1"))
	out := env.out.String()
	assert.Contains(t, out, "issue_key: KAN-1")
	assert.Contains(t, out, "last_step_result: timed_out")
	assert.Contains(t, out, "rule: transient_failure")

	err := env.run("show", "KAN-404")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Equal(t, "not_found", errorCode(err))
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seed(seedLedger)

	t.Run("declined", func(t *testing.T) {
		env.app.confirm = func(title, _ string) (bool, error) {
			assert.Equal(t, "Delete 1 ledger entry?", title)
			return false, nil
		}
		require.NoError(t, env.run("delete", "KAN-1"))
		_, ok := env.workspace().Ledger.Get("KAN-1")
		assert.True(t, ok)
	})

	t.Run("confirmed with --yes", func(t *testing.T) {
		env.app.confirm = func(string, string) (bool, error) {
			t.Fatal("--yes must not prompt")
			return false, nil
		}
		require.NoError(t, env.run("delete", "--yes", "KAN-1", "KAN-3"))
		assert.Contains(t, env.out.String(), "Deleted KAN-3")
		ws := env.workspace()
		assert.Equal(t, 2, ws.Ledger.Len())
		_, ok := ws.Ledger.Get("KAN-1")
		assert.False(t, ok)
	})

	t.Run("unknown key leaves ledger untouched", func(t *testing.T) {
		err := env.run("delete", "--yes", "KAN-2", "KAN-404")
		assert.ErrorIs(t, err, ledger.ErrNotFound)
		_, ok := env.workspace().Ledger.Get("KAN-2")
		assert.True(t, ok)
	})
}

func TestSnooze(t *testing.T) {
	env := newTestEnv(t)
	env.seed(seedLedger)

	require.NoError(t, env.run("snooze", "KAN-2", "--until", "2d"))
	e, ok := env.workspace().Ledger.Get("KAN-2")
	require.True(t, ok)
	require.NotNil(t, e.VerifySnoozedUntil)
	assert.True(t, e.VerifySnoozedUntil.Equal(testNow.AddDate(0, 0, 2)))
	require.NoError(t, env.run("--json", "gate", "KAN-2"))
	var view gateView
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &view))
	assert.False(t, view.ReportExists)
	assert.Equal(t, "skip", view.Verify)
	assert.Equal(t, "snoozed", view.VerifyReason)

	require.NoError(t, env.run("--json", "snooze", "KAN-9", "--cycle", "reconcile", "--until", "1h30m"))
	var resp map[string]string
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	assert.Equal(t, "reconcile", resp["cycle"])
	assert.Equal(t, testNow.Add(90*time.Minute).Format(time.RFC3339), resp["until"])

	assert.ErrorIs(t, env.run("snooze", "KAN-2", "--until", "2020-01-01"), timeparsing.ErrNotFuture)
	assert.ErrorIs(t, env.run("snooze", "KAN-404", "--until", "1d"), ledger.ErrNotFound)
	assert.Error(t, env.run("snooze", "KAN-2", "--cycle", "deploy", "--until", "1d"))
	assert.Error(t, env.run("snooze", "KAN-2"), "--until is required")
}

func TestSnoozeRefusesCorruptLedger(t *testing.T) {
	env := newTestEnv(t)
	env.seed("{not json")

	err := env.run("snooze", "KAN-2", "--until", "1d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable ledger")
	assert.ErrorIs(t, err, ledger.ErrLoadFailed)
	data, readErr := os.ReadFile(filepath.Join(env.stateDir, "var", "ledger.json"))
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(data))
}

func TestMigrate(t *testing.T) {
	env := newTestEnv(t)
	legacy := filepath.Join(filepath.Dir(env.stateDir), ".workledger.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`{"KAN-4":{"issue_key":"KAN-4"}}`), 0o644))

	require.NoError(t, env.run("migrate"))
	assert.Contains(t, env.out.String(), "Migrated")
	assert.FileExists(t, legacy+".migrated")
	_, ok := env.workspace().Ledger.Get("KAN-4")
	assert.True(t, ok)

	require.NoError(t, env.run("migrate"))
	assert.Contains(t, env.out.String(), "Nothing to migrate.")
}

func TestManifestCommands(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace()
	m := manifest.New("KAN-9", "Checkout epic", testNow)
	m.Merge([]string{"Persist cart", "Show totals"})
	require.NoError(t, m.AssignKey(m.Children[0].IntentID, "KAN-10", testNow))
	require.NoError(t, ws.SaveManifest(context.Background(), m))

	require.NoError(t, env.run("manifest", "list"))
	out := env.out.String()
	assert.Contains(t, out, "KAN-9")
	assert.Contains(t, out, "INCOMPLETE")

	require.NoError(t, env.run("--json", "manifest", "list"))
	var rows []manifestRow
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Children)
	assert.Equal(t, 1, rows[0].Pending)

	require.NoError(t, env.run("manifest", "show", "KAN-9"))
	out = env.out.String()
	assert.Contains(t, out, "KAN-10")
	assert.Contains(t, out, "Show totals")

	assert.ErrorIs(t, env.run("manifest", "show", "../etc"), manifest.ErrInvalidKey)
	assert.Error(t, env.run("manifest", "show", "KAN-404"))
}

type stubIssue struct {
	key, status, category, issueType, description, parent string
}

func (s stubIssue) Key() string            { return s.key }
func (s stubIssue) StatusName() string     { return s.status }
func (s stubIssue) StatusCategory() string { return s.category }
func (s stubIssue) Labels() []string       { return nil }
func (s stubIssue) Summary() string        { return "Summary of " + s.key }
func (s stubIssue) Description() string    { return s.description }
func (s stubIssue) IssueType() string      { return s.issueType }
func (s stubIssue) ParentKey() string      { return s.parent }

type stubTracker struct {
	issues      map[string]stubIssue
	transitions []string
}

func (s *stubTracker) Name() string { return "stub" }

func (s *stubTracker) GetIssue(_ context.Context, key string) (tracker.Issue, error) {
	i, ok := s.issues[key]
	if !ok {
		return nil, nil
	}
	return i, nil
}

func (s *stubTracker) TransitionIssue(_ context.Context, key, target string) (bool, error) {
	if target == "Nowhere" {
		return false, nil
	}
	s.transitions = append(s.transitions, key+"->"+target)
	i := s.issues[key]
	i.status = target
	s.issues[key] = i
	return true, nil
}

func TestObserve(t *testing.T) {
	env := newTestEnv(t)
	st := &stubTracker{issues: map[string]stubIssue{
		"KAN-11": {key: "KAN-11", status: "In Progress", category: "In Progress", issueType: "story", parent: "KAN-9",
			description: "Intro\n## Acceptance Criteria\n- Cart persists\n- Totals update"},
		"KAN-9": {key: "KAN-9", status: "To Do", category: "To Do", issueType: "Epic", description: "Checkout epic"},
	}}
	env.app.newTracker = func(name string, _ tracker.Settings) (tracker.Tracker, error) {
		assert.Equal(t, "jira", name)
		return st, nil
	}

	require.NoError(t, env.run("observe", "KAN-11", "--transition", "In Review"))
	out := env.out.String()
	assert.Contains(t, out, "Status: In Review")
	assert.Contains(t, out, "- Totals update")
	assert.Equal(t, []string{"KAN-11->In Review"}, st.transitions)

	e, ok := env.workspace().Ledger.Get("KAN-11")
	require.True(t, ok)
	assert.Equal(t, "In Review", e.StatusLastObserved)
	assert.Equal(t, "KAN-9", e.ParentKey)
	assert.EqualValues(t, "Story", e.IssueType)

	require.NoError(t, env.run("--json", "observe", "KAN-9"))
	var obs observation
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &obs))
	require.NotNil(t, obs.Decompose)
	assert.True(t, obs.Decompose.ShouldAct)
	assert.EqualValues(t, "new", obs.Decompose.Mode)
	assert.Equal(t, "attempt (content_changed)", obs.Reconcile)
	assert.Empty(t, obs.AcceptanceCriteria)

	assert.Error(t, env.run("observe", "KAN-404"))
	assert.Error(t, env.run("observe", "KAN-11", "--transition", "Nowhere"))
}

func TestObserveFillsMissingIssueType(t *testing.T) {
	env := newTestEnv(t)
	env.seed(`{"KAN-11": {"issue_key": "KAN-11", "last_step": "VERIFY", "last_step_result": "success", "verify_last_commented_reason": "report_missing"}}`)
	env.app.newTracker = func(string, tracker.Settings) (tracker.Tracker, error) {
		return &stubTracker{issues: map[string]stubIssue{
			"KAN-11": {key: "KAN-11", status: "In Progress", category: "In Progress", issueType: "Story"},
		}}, nil
	}

	require.NoError(t, env.run("observe", "KAN-11"))
	ws := env.workspace()
	e, ok := ws.Ledger.Get("KAN-11")
	require.True(t, ok)
	assert.EqualValues(t, "Story", e.IssueType)
	r, ok := ws.Classify(context.Background(), "KAN-11")
	require.True(t, ok)
	assert.Equal(t, ledger.RuleArtifactMissing, r.Rule)
}

func TestObserveWithoutTrackerConfig(t *testing.T) {
	env := newTestEnv(t)
	err := env.run("observe", "KAN-1")
	assert.ErrorIs(t, err, tracker.ErrNotConfigured)
}

func TestGate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(seedLedger)

	require.NoError(t, env.run("--json", "gate", "KAN-2"))
	var view gateView
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &view))
	assert.False(t, view.ReportExists)
	assert.Equal(t, "attempt", view.Verify)
	assert.Equal(t, "report_missing", view.VerifyReason)
	assert.Empty(t, view.HeadSHA)

	reports := filepath.Join(env.stateDir, "reports")
	require.NoError(t, os.MkdirAll(reports, 0o755))
	require.NoError(t, atomicfile.Write(filepath.Join(reports, "KAN-2.md"), []byte("# passed\n")))
	require.NoError(t, env.run("gate", "KAN-2"))
	out := env.out.String()
	assert.Contains(t, out, "Report:      present")
	assert.Contains(t, out, "Verify:      attempt (content_changed)")

	require.NoError(t, env.run("--json", "gate", "KAN-77"))
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &view))
	assert.Equal(t, "no_entry", view.VerifyReason)
}

func TestWriterLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "var", "wl.lock")
	assert.Contains(t, writerLabel(path), "writer: idle")

	lock, err := lockfile.Acquire(path, "dispatcher")
	require.NoError(t, err)
	assert.Contains(t, writerLabel(path), fmt.Sprintf("writer: pid %d (dispatcher)", os.Getpid()))

	require.NoError(t, lock.Release())
	assert.Contains(t, writerLabel(path), "writer: idle")
	info, err := lockfile.ReadLockInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "dispatcher", info.Command)
}

func TestWatchLedgerRerendersOnSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.json")
	renders := make(chan struct{}, 8)
	render := func() error {
		renders <- struct{}{}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watchLedger(ctx, path, render, 20*time.Millisecond, &bytes.Buffer{}) }()

	waitRender := func() {
		t.Helper()
		select {
		case <-renders:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for render")
		}
	}
	waitRender()

	require.NoError(t, atomicfile.Write(path, []byte(`{}`)))
	waitRender()

	// Files other than the ledger are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	select {
	case <-renders:
		t.Fatal("render for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestBadLogFormat(t *testing.T) {
	env := newTestEnv(t)
	err := env.run("--log-format", "xml", "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--log-format")
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "not_found", errorCode(ledger.ErrNotFound))
	assert.Equal(t, "invalid_key", errorCode(manifest.ErrInvalidKey))
	assert.Equal(t, "ledger_unreadable", errorCode(fmt.Errorf("save: %w", ledger.ErrLoadFailed)))
	assert.Equal(t, "", errorCode(errors.New("boom")))

	var buf bytes.Buffer
	outputJSONError(&buf, ledger.ErrNotFound, "not_found")
	assert.JSONEq(t, `{"error":"ledger entry not found","code":"not_found"}`, buf.String())
}
