package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger/internal/lockfile"
	"github.com/steveyegge/workledger/internal/statedir"
	"github.com/steveyegge/workledger/internal/ui"
)

const watchDebounce = 500 * time.Millisecond

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Redraw the resumable table whenever the ledger changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := statedir.Resolve(a.cfg)
			if err != nil {
				return err
			}
			if err := paths.Ensure(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			render := func() error {
				ws, err := a.open()
				if err != nil {
					return err
				}
				clearScreen(out)
				fmt.Fprintf(out, "%s  %s  %s\n\n", ui.RenderCategory("wl watch"),
					ui.RenderMuted(a.now().Format(time.RFC3339)), writerLabel(paths.Lock))
				checks := ws.Checks()
				var views []entryView
				for _, e := range ws.Ledger.Entries() {
					views = append(views, newEntryView(ws.Ledger, e, checks))
				}
				if err := renderResumable(out, views); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (Press Ctrl+C to exit)\n")
				return nil
			}
			err = watchLedger(cmd.Context(), paths.Ledger, render, watchDebounce, a.errOut)
			fmt.Fprintf(cmd.ErrOrStderr(), "\nStopped watching.\n")
			return err
		},
	}
}

// writerLabel describes who holds the state lock, if anyone.
func writerLabel(lockPath string) string {
	held, info := lockfile.Held(lockPath)
	switch {
	case !held:
		return ui.RenderMuted("writer: idle")
	case info == nil:
		return ui.RenderWarn("writer: busy")
	case info.Command != "":
		return ui.RenderWarn(fmt.Sprintf("writer: pid %d (%s)", info.PID, info.Command))
	}
	return ui.RenderWarn(fmt.Sprintf("writer: pid %d", info.PID))
}

// watchLedger calls render once, then again after every burst of changes
// to the ledger file. The directory is watched rather than the file because
// saves replace the file by rename. It returns nil when ctx is done.
func watchLedger(ctx context.Context, ledgerPath string, render func() error, debounce time.Duration, errOut io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(ledgerPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(ledgerPath), err)
	}
	if err := render(); err != nil {
		return err
	}

	base := filepath.Base(ledgerPath)
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case <-timer.C:
			if err := render(); err != nil {
				fmt.Fprintf(errOut, "Error refreshing ledger: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(errOut, "Watcher error: %v\n", err)
		}
	}
}

func clearScreen(w io.Writer) {
	if isStdout(w) && ui.IsTerminal() {
		fmt.Fprint(w, "\033[H\033[2J")
	}
}
