// Package atomicfile writes JSON documents so that a reader never observes a
// partially written file. The document is written to a temporary file in the
// destination directory and then renamed over the canonical path; a crash at
// any point leaves either the old or the new file in place.
package atomicfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// Canonical encodes v as indented JSON with object keys sorted at every
// level, so that successive saves of the same state are byte-identical and
// diffs stay small.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	out, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// WriteJSON atomically replaces path with the canonical encoding of v.
// On any error the previous file at path is left untouched.
func WriteJSON(path string, v any) error {
	data, err := Canonical(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return Write(path, data)
}

// Write atomically replaces path with data, creating parent directories.
func Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
