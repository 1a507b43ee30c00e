package fingerprint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := "As a user I can log in.\n\n## Acceptance Criteria\n- login works"
	assert.Equal(t, Fingerprint(a), Fingerprint(a))
	assert.Len(t, Fingerprint(a), 64)

	inputs := []string{
		"desc A",
		"desc B",
		"desc A ",
		"Desc A",
		"A desc",
		strings.Repeat("x", 4096),
		strings.Repeat("x", 4095) + "y",
	}
	seen := map[string]string{}
	for _, in := range inputs {
		fp := Fingerprint(in)
		if prev, ok := seen[fp]; ok {
			t.Fatalf("collision between %q and %q", prev, in)
		}
		seen[fp] = in
	}
}

func TestIntentIDNormalization(t *testing.T) {
	assert.Equal(t, IntentID("Implement: Add login"), IntentID("add   login"))
	assert.Equal(t, IntentID("implement:add login"), IntentID("ADD LOGIN"))
	assert.Equal(t, IntentID("\tAdd\nlogin "), IntentID("add login"))
	assert.NotEqual(t, IntentID("add login"), IntentID("add logout"))
	assert.Len(t, IntentID("add login"), 12)
}

func TestNormalizeSummary(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Implement: Add login", "add login"},
		{"  IMPLEMENT :  Add   Login  ", "add login"},
		{"Implementation notes", "implementation notes"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSummary(tt.in), "input %q", tt.in)
	}
}

func TestErrorFingerprint(t *testing.T) {
	base := "Traceback: connection refused"
	t.Run("stage separates", func(t *testing.T) {
		assert.NotEqual(t, ErrorFingerprint("IMPLEMENTER", base), ErrorFingerprint("VERIFY", base))
	})
	t.Run("case and whitespace insensitive", func(t *testing.T) {
		assert.Equal(t, ErrorFingerprint("IMPLEMENTER", base), ErrorFingerprint("implementer", "  "+strings.ToUpper(base)+"\n"))
	})
	t.Run("tail differences collapse", func(t *testing.T) {
		head := strings.Repeat("e", ErrorPrefixLen)
		assert.Equal(t,
			ErrorFingerprint("VERIFY", head+" at line 10"),
			ErrorFingerprint("VERIFY", head+" at line 99"))
	})
	t.Run("head differences do not", func(t *testing.T) {
		assert.NotEqual(t, ErrorFingerprint("VERIFY", "a"+base), ErrorFingerprint("VERIFY", "b"+base))
	})
	t.Run("explicit prefix length", func(t *testing.T) {
		assert.Equal(t, ErrorFingerprintN("VERIFY", "abcdef", 3), ErrorFingerprintN("VERIFY", "abcxyz", 3))
		assert.Equal(t, ErrorFingerprint("VERIFY", base), ErrorFingerprintN("VERIFY", base, 0))
	})
}

func TestFailureHash(t *testing.T) {
	h := FailureHash("go test ./...", 1, "FAIL  pkg\n  expected 1")
	assert.Len(t, h, 16)
	assert.Equal(t, h, FailureHash("go test ./...", 1, "FAIL pkg expected 1"))
	assert.NotEqual(t, h, FailureHash("go test ./...", 2, "FAIL pkg expected 1"))
	assert.NotEqual(t, h, FailureHash("go vet ./...", 1, "FAIL pkg expected 1"))
	assert.NotEqual(t, h, FailureHash("go test ./...", 1, "FAIL pkg expected 2"))

	long := strings.Repeat("o", OutputPrefixLen)
	assert.Equal(t, FailureHash("make", 2, long+"tail-a"), FailureHash("make", 2, long+"tail-b"))
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, os.WriteFile(path, []byte("report"), 0o644))

	got, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint("report"), got)

	_, err = File(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}
