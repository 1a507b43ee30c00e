package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/workledger/internal/atomicfile"
	"github.com/steveyegge/workledger/internal/config"
	"github.com/steveyegge/workledger/internal/ledger"
	"github.com/steveyegge/workledger/internal/lockfile"
	"github.com/steveyegge/workledger/internal/manifest"
	"github.com/steveyegge/workledger/internal/ui"
)

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputJSONError writes {"error": ..., "code": ...} to w.
func outputJSONError(w io.Writer, err error, code string) {
	errObj := map[string]string{"error": err.Error()}
	if code != "" {
		errObj["code"] = code
	}
	_ = outputJSON(w, errObj)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, lockfile.ErrLockBusy):
		return "lock_busy"
	case errors.Is(err, config.ErrInvalid):
		return "invalid_config"
	case errors.Is(err, manifest.ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, ledger.ErrLoadFailed):
		return "ledger_unreadable"
	}
	return ""
}

// outputYAML renders v as YAML with the same snake_case keys used on disk.
func outputYAML(w io.Writer, v interface{}) error {
	data, err := atomicfile.Canonical(v)
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// entryView is an entry as reported by read commands.
type entryView struct {
	*ledger.Entry
	Resumable bool        `json:"resumable"`
	Rule      ledger.Rule `json:"rule"`
}

// confirmPrompt asks through an interactive huh form.
func confirmPrompt(title, description string) (bool, error) {
	if !ui.IsTerminal() {
		return false, fmt.Errorf("not a terminal; pass --yes to confirm")
	}
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// isStdout reports whether w is the process stdout, where styling applies.
func isStdout(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && f == os.Stdout
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
