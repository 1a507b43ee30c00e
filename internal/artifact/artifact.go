// Package artifact implements the file-backed artifact checkers: the
// verification report written for each issue and the patch batch a blocked
// issue waits on.
package artifact

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/workledger/internal/fingerprint"
)

// Reports finds verification reports under Dir. A report for KAN-7 is any
// of KAN-7.md, KAN-7/report.md or KAN-7/report.json, checked in that order.
type Reports struct {
	Dir string
}

// NewReports returns a report checker rooted at dir.
func NewReports(dir string) *Reports {
	return &Reports{Dir: dir}
}

func (r *Reports) candidates(issueKey string) []string {
	return []string{
		filepath.Join(r.Dir, issueKey+".md"),
		filepath.Join(r.Dir, issueKey, "report.md"),
		filepath.Join(r.Dir, issueKey, "report.json"),
	}
}

// Path returns the first existing report for the issue, or "".
func (r *Reports) Path(issueKey string) string {
	if !validKey(issueKey) {
		return ""
	}
	for _, p := range r.candidates(issueKey) {
		if isFile(p) {
			return p
		}
	}
	return ""
}

// Exists reports whether a verification report exists for the issue.
func (r *Reports) Exists(issueKey string) bool {
	return r.Path(issueKey) != ""
}

// Hash returns the SHA-256 of the file at path, or "" when unreadable.
func (r *Reports) Hash(path string) string {
	if path == "" {
		return ""
	}
	h, err := fingerprint.File(path)
	if err != nil {
		return ""
	}
	return h
}

// PatchBatches finds patch batches under Dir. The batch for KAN-7 is
// either a KAN-7.patch file or a KAN-7 directory holding at least one
// .patch file.
type PatchBatches struct {
	Dir string
}

// NewPatchBatches returns a patch-batch checker rooted at dir.
func NewPatchBatches(dir string) *PatchBatches {
	return &PatchBatches{Dir: dir}
}

// Exists reports whether the patch batch for the issue has been produced.
func (p *PatchBatches) Exists(issueKey string) bool {
	if !validKey(issueKey) {
		return false
	}
	if isFile(filepath.Join(p.Dir, issueKey+".patch")) {
		return true
	}
	entries, err := os.ReadDir(filepath.Join(p.Dir, issueKey))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".patch") {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// validKey rejects keys that would escape the artifact directory.
func validKey(key string) bool {
	return key != "" && key != "." && key != ".." && !strings.ContainsAny(key, `/\`+"\x00")
}
