package manifest

import (
	"time"

	"github.com/steveyegge/workledger/internal/types"
)

// Loader is the read side of a manifest store.
type Loader interface {
	Load(epicKey string) *Manifest
}

// Decision is the verdict of ShouldDecompose.
type Decision struct {
	ShouldAct bool
	Mode      types.DecomposeMode
	// Manifest is the manifest the caller should work from and save. It is
	// never nil.
	Manifest *Manifest
}

// ShouldDecompose decides whether the decomposition step must run for a
// parent issue, and in which mode.
//
// Skip is returned only when the stored fingerprint matches the current
// description, the manifest is COMPLETE, and its children are known to
// exist. Every ambiguous state resolves to retry, because the ledger and the
// manifest are saved independently and either may be ahead after a crash.
//
// A retry or delta manifest is always INCOMPLETE, so a crash after saving it
// leads to another retry rather than a skip.
func ShouldDecompose(store Loader, epicKey, description string, hasExternalChildren bool, now time.Time) Decision {
	fp := ContentFingerprint(description)

	m := store.Load(epicKey)
	if m == nil {
		return Decision{ShouldAct: true, Mode: types.ModeNew, Manifest: New(epicKey, description, now)}
	}

	retry := func() Decision {
		refingerprint(m, fp, now)
		m.Status = types.ManifestIncomplete
		return Decision{ShouldAct: true, Mode: types.ModeRetry, Manifest: m}
	}

	if m.Status != types.ManifestComplete {
		return retry()
	}
	if !m.AllKeyed() {
		return retry()
	}
	if len(m.Children) == 0 && !hasExternalChildren {
		return retry()
	}
	if m.Fingerprint == fp {
		return Decision{ShouldAct: false, Mode: types.ModeSkip, Manifest: m}
	}

	refingerprint(m, fp, now)
	return Decision{ShouldAct: true, Mode: types.ModeDelta, Manifest: m}
}

func refingerprint(m *Manifest, fp string, now time.Time) {
	if m.Fingerprint == fp {
		return
	}
	m.Fingerprint = fp
	m.Status = types.ManifestIncomplete
	m.UpdatedAt = now
}
