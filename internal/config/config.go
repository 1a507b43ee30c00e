// Package config builds the immutable runtime configuration from defaults,
// an optional config.yaml and WL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/steveyegge/workledger/internal/policy"
	"github.com/steveyegge/workledger/internal/types"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is the prefix of environment overrides (WL_STATE_DIR, ...).
const EnvPrefix = "WL"

// DefaultStateDir is used when no state directory is configured.
const DefaultStateDir = ".workledger"

// Config keys
const (
	KeyStateDir    = "state-dir"
	KeyLedgerFile  = "ledger-file"
	KeyManifestDir = "manifest-dir"
	KeyReportDir   = "report-dir"
	KeyPatchDir    = "patch-dir"
	KeyRepoDir     = "repo-dir"

	KeyImplementableTypes = "directly-implementable-types"
	KeyNonRetryable       = "non-retryable-fingerprints"
	KeyBlockedStatus      = "blocked-status"
	KeyErrorPrefixLen     = "error-prefix-len"

	KeyVerifyCooldown        = "verify.cooldown"
	KeyVerifyMaxCooldown     = "verify.max-cooldown"
	KeyVerifyMissingCooldown = "verify.missing-report-cooldown"
	KeyReconcileCooldown     = "reconcile.cooldown"
	KeyReconcileMaxCooldown  = "reconcile.max-cooldown"

	KeyMaxAutoVerifyRuns  = "max-auto-verify-runs"
	KeyMaxAutoFixAttempts = "max-auto-fix-attempts"
	KeyMaxRepairs         = "max-repairs"

	KeyJiraURL     = "jira.url"
	KeyJiraUser    = "jira.user"
	KeyJiraToken   = "jira.token"
	KeyJiraTimeout = "jira.timeout"

	KeyTelemetryEnabled = "telemetry.enabled"
	KeyTelemetryStdout  = "telemetry.stdout"
	KeyTelemetryOTLP    = "telemetry.otlp-endpoint"
)

// Config is the resolved configuration. It is a value: components receive a
// copy at construction and never read the environment themselves.
type Config struct {
	StateDir    string
	LedgerFile  string
	ManifestDir string
	ReportDir   string
	PatchDir    string
	RepoDir     string

	Implementable  []types.IssueType
	NonRetryable   []string
	BlockedStatus  string
	ErrorPrefixLen int

	Verify    VerifyConfig
	Reconcile ReconcileConfig

	MaxAutoVerifyRuns  int
	MaxAutoFixAttempts int
	MaxRepairs         int

	Jira      JiraConfig
	Telemetry TelemetryConfig

	// Source is the config file that was read, empty when none was.
	Source string
}

// VerifyConfig holds the verification cooldown settings.
type VerifyConfig struct {
	Cooldown              time.Duration
	MaxCooldown           time.Duration
	MissingReportCooldown time.Duration
}

// ReconcileConfig holds the reconciliation cooldown settings.
type ReconcileConfig struct {
	Cooldown    time.Duration
	MaxCooldown time.Duration
}

// JiraConfig holds tracker connection settings.
type JiraConfig struct {
	URL     string
	User    string
	Token   string
	Timeout time.Duration
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	Enabled      bool
	Stdout       bool
	OTLPEndpoint string
}

// Options are the command-line inputs to Load.
type Options struct {
	// StateDir overrides state-dir from every other source.
	StateDir string
	// ConfigFile is an explicit config path; it must exist when set.
	// Otherwise <state-dir>/config.yaml is read if present.
	ConfigFile string
	// Overrides are applied last, keyed like the config file.
	Overrides map[string]any
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyStateDir, DefaultStateDir)
	v.SetDefault(KeyLedgerFile, "")
	v.SetDefault(KeyManifestDir, "")
	v.SetDefault(KeyReportDir, "")
	v.SetDefault(KeyPatchDir, "")
	v.SetDefault(KeyRepoDir, ".")

	v.SetDefault(KeyImplementableTypes, []string{string(types.TypeStory), string(types.TypeBug), string(types.TypeTask)})
	v.SetDefault(KeyNonRetryable, []string{"automation-defect"})
	v.SetDefault(KeyBlockedStatus, "BLOCKED_WAITING_PATCH_BATCH")
	v.SetDefault(KeyErrorPrefixLen, 200)

	v.SetDefault(KeyVerifyCooldown, "15m")
	v.SetDefault(KeyVerifyMaxCooldown, "6h")
	v.SetDefault(KeyVerifyMissingCooldown, "30m")
	v.SetDefault(KeyReconcileCooldown, "30m")
	v.SetDefault(KeyReconcileMaxCooldown, "12h")

	v.SetDefault(KeyMaxAutoVerifyRuns, 5)
	v.SetDefault(KeyMaxAutoFixAttempts, 3)
	v.SetDefault(KeyMaxRepairs, 2)

	v.SetDefault(KeyJiraURL, "")
	v.SetDefault(KeyJiraUser, "")
	v.SetDefault(KeyJiraToken, "")
	v.SetDefault(KeyJiraTimeout, "30s")

	v.SetDefault(KeyTelemetryEnabled, false)
	v.SetDefault(KeyTelemetryStdout, false)
	v.SetDefault(KeyTelemetryOTLP, "")
}

// Load resolves the configuration. Precedence, lowest first: defaults,
// config file, WL_* environment, Options.
func Load(opts Options) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	stateDir := opts.StateDir
	if stateDir == "" {
		stateDir = v.GetString(KeyStateDir)
	}

	path := opts.ConfigFile
	if path == "" {
		candidate := filepath.Join(stateDir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// The state directory is where the config file was found; a state-dir
	// entry inside that file cannot move it.
	if opts.StateDir != "" || opts.ConfigFile == "" {
		v.Set(KeyStateDir, stateDir)
	}
	for k, val := range opts.Overrides {
		v.Set(k, val)
	}

	cfg := Config{
		StateDir:    v.GetString(KeyStateDir),
		LedgerFile:  v.GetString(KeyLedgerFile),
		ManifestDir: v.GetString(KeyManifestDir),
		ReportDir:   v.GetString(KeyReportDir),
		PatchDir:    v.GetString(KeyPatchDir),
		RepoDir:     v.GetString(KeyRepoDir),

		NonRetryable:   splitList(v.GetStringSlice(KeyNonRetryable)),
		BlockedStatus:  strings.TrimSpace(v.GetString(KeyBlockedStatus)),
		ErrorPrefixLen: v.GetInt(KeyErrorPrefixLen),

		Verify: VerifyConfig{
			Cooldown:              v.GetDuration(KeyVerifyCooldown),
			MaxCooldown:           v.GetDuration(KeyVerifyMaxCooldown),
			MissingReportCooldown: v.GetDuration(KeyVerifyMissingCooldown),
		},
		Reconcile: ReconcileConfig{
			Cooldown:    v.GetDuration(KeyReconcileCooldown),
			MaxCooldown: v.GetDuration(KeyReconcileMaxCooldown),
		},

		MaxAutoVerifyRuns:  v.GetInt(KeyMaxAutoVerifyRuns),
		MaxAutoFixAttempts: v.GetInt(KeyMaxAutoFixAttempts),
		MaxRepairs:         v.GetInt(KeyMaxRepairs),

		Jira: JiraConfig{
			URL:     strings.TrimRight(v.GetString(KeyJiraURL), "/"),
			User:    v.GetString(KeyJiraUser),
			Token:   v.GetString(KeyJiraToken),
			Timeout: v.GetDuration(KeyJiraTimeout),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool(KeyTelemetryEnabled),
			Stdout:       v.GetBool(KeyTelemetryStdout),
			OTLPEndpoint: v.GetString(KeyTelemetryOTLP),
		},
		Source: v.ConfigFileUsed(),
	}
	for _, s := range splitList(v.GetStringSlice(KeyImplementableTypes)) {
		cfg.Implementable = append(cfg.Implementable, types.ParseIssueType(s))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the decision logic cannot work with.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.StateDir) == "" {
		problems = append(problems, KeyStateDir+" is empty")
	}
	durations := []struct {
		key string
		d   time.Duration
	}{
		{KeyVerifyCooldown, c.Verify.Cooldown},
		{KeyVerifyMaxCooldown, c.Verify.MaxCooldown},
		{KeyVerifyMissingCooldown, c.Verify.MissingReportCooldown},
		{KeyReconcileCooldown, c.Reconcile.Cooldown},
		{KeyReconcileMaxCooldown, c.Reconcile.MaxCooldown},
	}
	for _, d := range durations {
		if d.d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %s", d.key, d.d))
		}
	}
	if c.Verify.MaxCooldown > 0 && c.Verify.MaxCooldown < c.Verify.Cooldown {
		problems = append(problems, KeyVerifyMaxCooldown+" is below "+KeyVerifyCooldown)
	}
	if c.Reconcile.MaxCooldown > 0 && c.Reconcile.MaxCooldown < c.Reconcile.Cooldown {
		problems = append(problems, KeyReconcileMaxCooldown+" is below "+KeyReconcileCooldown)
	}
	limits := []struct {
		key string
		n   int
	}{
		{KeyMaxAutoVerifyRuns, c.MaxAutoVerifyRuns},
		{KeyMaxAutoFixAttempts, c.MaxAutoFixAttempts},
		{KeyMaxRepairs, c.MaxRepairs},
		{KeyErrorPrefixLen, c.ErrorPrefixLen},
	}
	for _, l := range limits {
		if l.n <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %d", l.key, l.n))
		}
	}
	if len(c.Implementable) == 0 {
		problems = append(problems, KeyImplementableTypes+" is empty")
	}
	if c.BlockedStatus == "" {
		problems = append(problems, KeyBlockedStatus+" is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// VerifySchedule is the exponential cooldown for verification failures.
func (c Config) VerifySchedule() policy.Schedule {
	return policy.Schedule{Base: c.Verify.Cooldown, Max: c.Verify.MaxCooldown}
}

// ReconcileSchedule is the exponential cooldown for reconciliation failures.
func (c Config) ReconcileSchedule() policy.Schedule {
	return policy.Schedule{Base: c.Reconcile.Cooldown, Max: c.Reconcile.MaxCooldown}
}

// splitList accepts both YAML lists and comma separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
