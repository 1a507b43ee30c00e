// Package workledger is the public entry point for dispatchers embedding the
// work ledger: it opens the ledger and manifest stores for a state directory
// and runs the gates against the on-disk artifacts.
//
// A Workspace is meant for one serial dispatcher. Mutating callers should
// hold the state-dir lock (see internal/lockfile) for the lifetime of the
// Workspace.
package workledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/workledger/internal/artifact"
	"github.com/steveyegge/workledger/internal/config"
	"github.com/steveyegge/workledger/internal/ledger"
	"github.com/steveyegge/workledger/internal/logging"
	"github.com/steveyegge/workledger/internal/manifest"
	"github.com/steveyegge/workledger/internal/policy"
	"github.com/steveyegge/workledger/internal/statedir"
	"github.com/steveyegge/workledger/internal/telemetry"
	"github.com/steveyegge/workledger/internal/tracker"
	"github.com/steveyegge/workledger/internal/types"
)

// Core types
type (
	Config       = config.Config
	Entry        = ledger.Entry
	Attempt      = ledger.Attempt
	Outcome      = ledger.Outcome
	Manifest     = manifest.Manifest
	StoryIntent  = manifest.StoryIntent
	Decision     = policy.Decision
	Report       = policy.Report
	IssueType    = types.IssueType
	Step         = types.Step
	StepResult   = types.StepResult
	Resumability = ledger.Resumability
)

// Gate names used as the "gate" metric attribute.
const (
	GateResume    = "resume"
	GateDecompose = "decompose"
	GateVerify    = "verify"
	GateReconcile = "reconcile"
	GateComment   = "comment"
)

// Options configure Open. All fields are optional.
type Options struct {
	Logger    *slog.Logger
	Telemetry *telemetry.Provider
	Now       func() time.Time
	// Migrate moves a legacy ledger into place before loading.
	Migrate bool
	// Reports and Patches replace the file-backed artifact checkers rooted
	// in the state directory.
	Reports tracker.ArtifactChecker
	Patches tracker.PatchBatchChecker
}

// Workspace bundles the stores of one state directory.
type Workspace struct {
	Config    config.Config
	Paths     statedir.Paths
	Ledger    *ledger.Ledger
	Manifests *manifest.Store
	Reports   tracker.ArtifactChecker
	Patches   tracker.PatchBatchChecker

	log  *slog.Logger
	inst *telemetry.Instruments
	now  func() time.Time
}

// Open resolves the state directory for cfg and loads the ledger. A corrupt
// ledger does not fail Open; check Ledger.LoadFailed.
func Open(cfg config.Config, opts Options) (*Workspace, error) {
	paths, err := statedir.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	log := logging.OrDiscard(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if opts.Migrate {
		if _, err := statedir.MigrateLegacy(paths, log); err != nil {
			return nil, fmt.Errorf("migrate legacy ledger: %w", err)
		}
	}

	w := &Workspace{
		Config: cfg,
		Paths:  paths,
		Ledger: ledger.New(paths.Ledger, ledger.Options{
			Logger:         log,
			NonRetryable:   cfg.NonRetryable,
			Implementable:  cfg.Implementable,
			BlockedStatus:  cfg.BlockedStatus,
			ErrorPrefixLen: cfg.ErrorPrefixLen,
			Now:            now,
		}),
		Manifests: manifest.NewStore(paths.Manifests, log),
		Reports:   opts.Reports,
		Patches:   opts.Patches,
		log:       log,
		inst:      telemetry.NewInstruments(opts.Telemetry),
		now:       now,
	}
	if w.Reports == nil {
		w.Reports = artifact.NewReports(paths.Reports)
	}
	if w.Patches == nil {
		w.Patches = artifact.NewPatchBatches(paths.Patches)
	}
	if !w.Ledger.Load() && w.Ledger.LoadFailed() {
		log.Warn("ledger unreadable, escalations fail closed", "path", paths.Ledger, "error", w.Ledger.LoadErr())
	}
	return w, nil
}

// Checks returns the classifier predicates backed by the artifact dirs.
// An entry with an explicit report path is judged by that path.
func (w *Workspace) Checks() ledger.ResumeChecks {
	return ledger.ResumeChecks{
		ReportExists: func(key string) bool {
			if e, ok := w.Ledger.Get(key); ok && e.VerificationReportPath != "" {
				return w.Reports.Hash(e.VerificationReportPath) != ""
			}
			return w.Reports.Exists(key)
		},
		PatchBatchExists: w.Patches.Exists,
	}
}

// Classify runs the resumability classifier for one entry.
func (w *Workspace) Classify(ctx context.Context, key string) (Resumability, bool) {
	e, ok := w.Ledger.Get(key)
	if !ok {
		return Resumability{}, false
	}
	r := w.Ledger.Classify(e, w.Checks())
	w.inst.Decision(ctx, GateResume, string(r.Rule))
	return r, true
}

// Resumable returns the entries eligible for automatic retry.
func (w *Workspace) Resumable(ctx context.Context) []*Entry {
	checks := w.Checks()
	var out []*Entry
	for _, e := range w.Ledger.Entries() {
		r := w.Ledger.Classify(e, checks)
		w.inst.Decision(ctx, GateResume, string(r.Rule))
		if r.Resumable {
			out = append(out, e)
		}
	}
	return out
}

// Summary is the operator markdown summary, judged against the artifact dirs.
func (w *Workspace) Summary() string {
	return w.Ledger.SummarizeWith(w.Checks())
}

// ShouldDecompose decides whether an epic needs (re)decomposition.
func (w *Workspace) ShouldDecompose(ctx context.Context, epicKey, description string, hasExternalChildren bool) manifest.Decision {
	d := manifest.ShouldDecompose(w.Manifests, epicKey, description, hasExternalChildren, w.now())
	w.inst.Decision(ctx, GateDecompose, string(d.Mode))
	return d
}

// ReportState gathers the verification report for key and the current HEAD.
// vcs may be nil when no repository is available.
func (w *Workspace) ReportState(ctx context.Context, key string, vcs tracker.VCS) policy.Report {
	path := ""
	if e, ok := w.Ledger.Get(key); ok && e.VerificationReportPath != "" {
		path = e.VerificationReportPath
	} else {
		path = w.Reports.Path(key)
	}
	r := policy.Report{Hash: w.Reports.Hash(path)}
	r.Exists = r.Hash != ""
	if vcs != nil {
		sha, err := vcs.HeadSHA(ctx)
		if err != nil {
			w.log.Debug("head sha unavailable", "error", err)
		}
		r.HeadSHA = sha
	}
	return r
}

// VerifyDecision runs the verification gate against the report on disk.
func (w *Workspace) VerifyDecision(ctx context.Context, key string, vcs tracker.VCS) (Decision, Report) {
	r := w.ReportState(ctx, key, vcs)
	d := w.Ledger.VerifyDecision(key, r, w.now())
	w.inst.Decision(ctx, GateVerify, d.Reason)
	return d, r
}

// RecordVerifyFailure opens the next verification cooldown for key.
func (w *Workspace) RecordVerifyFailure(key, reason string, r Report) bool {
	return w.Ledger.RecordVerifyFailure(key, reason, r, w.Config.VerifySchedule(), w.Config.Verify.MissingReportCooldown)
}

// ReconcileDecision runs the reconciliation gate for the epic description.
func (w *Workspace) ReconcileDecision(ctx context.Context, key, description string) (Decision, string) {
	fp := manifest.ContentFingerprint(description)
	d := w.Ledger.ReconcileDecision(key, fp, w.now())
	w.inst.Decision(ctx, GateReconcile, d.Reason)
	return d, fp
}

// RecordReconcileFailure opens the next reconciliation cooldown for key.
func (w *Workspace) RecordReconcileFailure(key, reason, contentFingerprint string) bool {
	return w.Ledger.RecordReconcileFailure(key, reason, contentFingerprint, w.Config.ReconcileSchedule())
}

// ClaimVerifyComment wraps Ledger.ClaimVerifyComment and counts the result.
func (w *Workspace) ClaimVerifyComment(ctx context.Context, key, reason, reportHash string) bool {
	post := w.Ledger.ClaimVerifyComment(key, reason, reportHash)
	w.inst.Decision(ctx, GateComment, commentDecision(post))
	return post
}

// ClaimReconcileComment wraps Ledger.ClaimReconcileComment and counts the result.
func (w *Workspace) ClaimReconcileComment(ctx context.Context, key, reason, contentFingerprint string) bool {
	post := w.Ledger.ClaimReconcileComment(key, reason, contentFingerprint)
	w.inst.Decision(ctx, GateComment, commentDecision(post))
	return post
}

func commentDecision(post bool) string {
	if post {
		return "post"
	}
	return "duplicate"
}

// ShouldRepair applies the repair gate with the configured limit.
func (w *Workspace) ShouldRepair(key, reportHash string) Decision {
	var s policy.RepairState
	if e, ok := w.Ledger.Get(key); ok {
		s = e.RepairState()
	}
	return policy.ShouldRepair(s, reportHash, w.Config.MaxRepairs)
}

// ShouldAutoFix applies the auto-fix loop gate with the configured limit.
func (w *Workspace) ShouldAutoFix(key, failureHash string) Decision {
	var s policy.LoopState
	if e, ok := w.Ledger.Get(key); ok {
		s = e.LoopState()
	}
	return policy.ShouldAutoFix(s, failureHash, w.Config.MaxAutoFixAttempts)
}

// ShouldAutoVerify applies the auto-verify bound with the configured limit.
func (w *Workspace) ShouldAutoVerify(key string) Decision {
	var s policy.LoopState
	if e, ok := w.Ledger.Get(key); ok {
		s = e.LoopState()
	}
	return policy.ShouldAutoVerify(s, w.Config.MaxAutoVerifyRuns)
}

// RecordRepair notes an automatic repair for reportHash.
func (w *Workspace) RecordRepair(key, reportHash string) bool {
	return w.Ledger.RecordRepair(key, reportHash)
}

// RecordAutoFix counts an automatic fix attempt.
func (w *Workspace) RecordAutoFix(key, failureHash, failureType string) bool {
	return w.Ledger.RecordAutoFix(key, failureHash, failureType)
}

// RecordAutoVerify counts an automatic verification run.
func (w *Workspace) RecordAutoVerify(key string) bool {
	return w.Ledger.RecordAutoVerify(key)
}

// Save writes the ledger.
func (w *Workspace) Save(ctx context.Context) error {
	return w.inst.Save(ctx, "ledger", w.Ledger.Save)
}

// SaveManifest writes m to the manifest store.
func (w *Workspace) SaveManifest(ctx context.Context, m *Manifest) error {
	return w.inst.Save(ctx, "manifest", func() error { return w.Manifests.Save(m) })
}
