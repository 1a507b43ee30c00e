// Command wl inspects and administers a work ledger: the durable record of
// which tracker issues were processed, how each step ended, and which
// cooldowns are open.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger"
	"github.com/steveyegge/workledger/internal/config"
	"github.com/steveyegge/workledger/internal/ledger"
	"github.com/steveyegge/workledger/internal/lockfile"
	"github.com/steveyegge/workledger/internal/logging"
	"github.com/steveyegge/workledger/internal/statedir"
	"github.com/steveyegge/workledger/internal/telemetry"
	"github.com/steveyegge/workledger/internal/tracker"
	"github.com/steveyegge/workledger/internal/ui"
)

// Version is set at build time.
var Version = "dev"

// lockWait bounds how long a mutating command waits for another wl process.
const lockWait = 10 * time.Second

// app is the state shared by all subcommands of one invocation.
type app struct {
	stateDir   string
	configFile string
	jsonOutput bool
	verbose    bool
	quiet      bool
	noColor    bool
	noPager    bool
	logFormat  string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg config.Config
	log *slog.Logger
	tel *telemetry.Provider
	now func() time.Time

	// confirm asks the operator a yes/no question.
	confirm func(title, description string) (bool, error)
	// newTracker builds a tracker adapter by name.
	newTracker func(name string, s tracker.Settings) (tracker.Tracker, error)
}

func newApp() *app {
	return &app{
		in:         os.Stdin,
		out:        os.Stdout,
		errOut:     os.Stderr,
		now:        time.Now,
		confirm:    confirmPrompt,
		newTracker: tracker.New,
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wl",
		Short:         "wl - inspect and administer the work ledger",
		Long:          `wl shows what the dispatcher recorded about each issue, which entries will be resumed, and lets operators delete entries or snooze cooldowns.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.stateDir, "state-dir", "", "State directory (default $WL_STATE_DIR or .workledger)")
	pf.StringVar(&a.configFile, "config", "", "Config file (default <state-dir>/config.yaml)")
	pf.BoolVar(&a.jsonOutput, "json", false, "Output JSON format")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Only log warnings and errors")
	pf.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&a.noPager, "no-pager", false, "Do not pipe long output to a pager")
	pf.StringVar(&a.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		newSummaryCmd(a),
		newShowCmd(a),
		newResumableCmd(a),
		newDeleteCmd(a),
		newSnoozeCmd(a),
		newManifestCmd(a),
		newMigrateCmd(a),
		newWatchCmd(a),
		newObserveCmd(a),
		newGateCmd(a),
	)
	return rootCmd
}

// setup loads the configuration and builds the logger and telemetry.
func (a *app) setup(ctx context.Context) error {
	jsonLogs, ok := logging.ParseFormat(a.logFormat)
	if !ok {
		return fmt.Errorf("unknown --log-format %q (want text or json)", a.logFormat)
	}
	a.log = logging.New(a.errOut, logging.Options{Verbose: a.verbose, Quiet: a.quiet, JSON: jsonLogs})
	ui.ApplyColorMode(a.noColor || a.jsonOutput)

	cfg, err := config.Load(config.Options{StateDir: a.stateDir, ConfigFile: a.configFile})
	if err != nil {
		return err
	}
	a.cfg = cfg
	if cfg.Source != "" {
		a.log.Debug("config loaded", "file", cfg.Source)
	}

	a.tel, err = telemetry.Init(ctx, telemetry.Settings{
		Enabled:      cfg.Telemetry.Enabled,
		Stdout:       cfg.Telemetry.Stdout,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Writer:       a.errOut,
	}, "wl", Version)
	return err
}

func (a *app) teardown() error {
	if a.tel == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.log.Warn("telemetry shutdown", "error", err)
	}
	return nil
}

// open returns a read-only view of the workspace.
func (a *app) open() (*workledger.Workspace, error) {
	return workledger.Open(a.cfg, workledger.Options{Logger: a.log, Telemetry: a.tel, Now: a.now})
}

// withLock runs fn with the state-dir lock held and a freshly loaded
// workspace, so concurrent writers never interleave load and save. A
// legacy ledger is migrated first.
func (a *app) withLock(ctx context.Context, command string, fn func(*workledger.Workspace) error) error {
	paths, err := statedir.Resolve(a.cfg)
	if err != nil {
		return err
	}
	lock, err := lockfile.AcquireWait(ctx, paths.Lock, command, lockWait)
	if err != nil {
		var busy *lockfile.BusyError
		if errors.As(err, &busy) {
			return fmt.Errorf("%w (is another wl or dispatcher running?)", busy)
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.log.Warn("release lock", "error", err)
		}
	}()

	ws, err := workledger.Open(a.cfg, workledger.Options{Logger: a.log, Telemetry: a.tel, Now: a.now, Migrate: true})
	if err != nil {
		return err
	}
	if ws.Ledger.LoadFailed() {
		return fmt.Errorf("refusing to modify unreadable ledger %s: %w: %w", ws.Paths.Ledger, ledger.ErrLoadFailed, ws.Ledger.LoadErr())
	}
	return fn(ws)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		if a.jsonOutput {
			outputJSONError(a.errOut, err, errorCode(err))
		} else {
			fmt.Fprintf(a.errOut, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
