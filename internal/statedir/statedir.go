// Package statedir resolves where the work ledger and its companion files
// live, and moves ledgers written by older layouts into place.
//
// Resolution happens once at startup; the resulting Paths are injected into
// the stores so nothing else derives file locations.
package statedir

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/steveyegge/workledger/internal/atomicfile"
	"github.com/steveyegge/workledger/internal/config"
)

// File and directory names inside the state directory.
const (
	VarDirName      = "var"
	LedgerFileName  = "ledger.json"
	LockFileName    = "wl.lock"
	ManifestDirName = "manifests"
	ReportDirName   = "reports"
	PatchDirName    = "patches"

	// LegacyLedgerName is the dotfile older versions kept next to the state
	// directory.
	LegacyLedgerName = ".workledger.json"
	// MigratedSuffix is appended to a legacy ledger once it has been copied.
	MigratedSuffix = ".migrated"
)

// Paths are the resolved, absolute locations of every file the tool owns.
type Paths struct {
	Root      string
	Ledger    string
	Manifests string
	Reports   string
	Patches   string
	Lock      string
}

// Resolve turns the configured locations into absolute paths. Relative
// overrides are taken relative to the state directory.
func Resolve(cfg config.Config) (Paths, error) {
	root, err := filepath.Abs(cfg.StateDir)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve state dir %q: %w", cfg.StateDir, err)
	}
	under := func(override string, def ...string) string {
		if override == "" {
			return filepath.Join(append([]string{root}, def...)...)
		}
		if filepath.IsAbs(override) {
			return filepath.Clean(override)
		}
		return filepath.Join(root, override)
	}
	return Paths{
		Root:      root,
		Ledger:    under(cfg.LedgerFile, VarDirName, LedgerFileName),
		Manifests: under(cfg.ManifestDir, ManifestDirName),
		Reports:   under(cfg.ReportDir, ReportDirName),
		Patches:   under(cfg.PatchDir, PatchDirName),
		Lock:      filepath.Join(root, VarDirName, LockFileName),
	}, nil
}

// Ensure creates the directories in p.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.Root, filepath.Dir(p.Ledger), filepath.Dir(p.Lock), p.Manifests, p.Reports, p.Patches} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// LegacyLedgers lists the locations older layouts wrote the ledger to, most
// recent first.
func (p Paths) LegacyLedgers() []string {
	return []string{
		filepath.Join(p.Root, LedgerFileName),
		filepath.Join(filepath.Dir(p.Root), LegacyLedgerName),
	}
}

// Migration describes what MigrateLegacy did.
type Migration struct {
	From     string
	To       string
	Migrated bool
}

// MigrateLegacy copies the first legacy ledger it finds to p.Ledger and
// renames the source with MigratedSuffix. It does nothing when p.Ledger
// already exists, so it is safe to run on every start.
//
// The copy is atomic; a crash before the rename leaves both files, and the
// next run sees the canonical file and stops.
func MigrateLegacy(p Paths, logger *slog.Logger) (Migration, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if _, err := os.Stat(p.Ledger); err == nil {
		return Migration{To: p.Ledger}, nil
	} else if !os.IsNotExist(err) {
		return Migration{}, fmt.Errorf("stat ledger: %w", err)
	}

	for _, src := range p.LegacyLedgers() {
		if filepath.Clean(src) == filepath.Clean(p.Ledger) {
			continue
		}
		info, err := os.Stat(src)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		data, err := os.ReadFile(src) // #nosec G304 - fixed legacy locations
		if err != nil {
			return Migration{}, fmt.Errorf("read legacy ledger: %w", err)
		}
		if err := atomicfile.Write(p.Ledger, data); err != nil {
			return Migration{}, fmt.Errorf("copy legacy ledger: %w", err)
		}
		if err := os.Rename(src, src+MigratedSuffix); err != nil {
			return Migration{}, fmt.Errorf("retire legacy ledger: %w", err)
		}
		logger.Info("migrated legacy ledger", "from", src, "to", p.Ledger)
		return Migration{From: src, To: p.Ledger, Migrated: true}, nil
	}
	return Migration{To: p.Ledger}, nil
}
