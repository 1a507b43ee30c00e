// Package fingerprint turns noisy text (ticket descriptions, error messages,
// command output) into short stable identifiers used for change detection
// and deduplication.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const (
	// ErrorPrefixLen is how much of a normalized error message takes part in
	// an error fingerprint. Long stack traces that only differ past this
	// point collapse to the same fingerprint.
	ErrorPrefixLen = 200

	// OutputPrefixLen bounds the command output that takes part in a
	// failure hash.
	OutputPrefixLen = 2000

	shortLen  = 16
	intentLen = 12
)

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	implementPrefix = regexp.MustCompile(`(?i)^\s*implement\s*:\s*`)
)

// Fingerprint returns the SHA-256 hex digest of text. It is order-sensitive
// and operates on the raw bytes.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ErrorFingerprint identifies a class of failure within a pipeline stage.
// The message is trimmed, lowercased and truncated to ErrorPrefixLen before
// hashing; the stage tag keeps identical messages from different stages apart.
func ErrorFingerprint(stage, errText string) string {
	return ErrorFingerprintN(stage, errText, ErrorPrefixLen)
}

// ErrorFingerprintN is ErrorFingerprint with an explicit prefix length.
// A non-positive n falls back to ErrorPrefixLen.
func ErrorFingerprintN(stage, errText string, n int) string {
	if n <= 0 {
		n = ErrorPrefixLen
	}
	msg := truncateRunes(strings.ToLower(strings.TrimSpace(errText)), n)
	return short(strings.ToUpper(strings.TrimSpace(stage)) + "|" + msg)
}

// NormalizeSummary strips a leading "Implement:" prefix, lowercases and
// collapses runs of whitespace.
func NormalizeSummary(summary string) string {
	s := implementPrefix.ReplaceAllString(summary, "")
	s = whitespaceRe.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(s)
}

// IntentID is the identifier of a planned child ticket, derived from its
// normalized summary so that cosmetic rewording still matches.
func IntentID(summary string) string {
	return Fingerprint(NormalizeSummary(summary))[:intentLen]
}

// FailureHash identifies "the same failure again": the command, its exit
// status and a whitespace-normalized prefix of its combined output.
func FailureHash(command string, exitCode int, output string) string {
	out := whitespaceRe.ReplaceAllString(strings.TrimSpace(output), " ")
	out = truncateRunes(out, OutputPrefixLen)
	return short(fmt.Sprintf("%s|%d|%s", strings.TrimSpace(command), exitCode, out))
}

// File returns the SHA-256 hex digest of the file contents.
func File(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - caller-controlled artifact path
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func short(s string) string {
	return Fingerprint(s)[:shortLen]
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
