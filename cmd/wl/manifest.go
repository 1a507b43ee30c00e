package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger/internal/manifest"
	"github.com/steveyegge/workledger/internal/types"
	"github.com/steveyegge/workledger/internal/ui"
)

func newManifestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect decomposition manifests",
	}
	cmd.AddCommand(newManifestListCmd(a), newManifestShowCmd(a))
	return cmd
}

// manifestRow is one line of "manifest list".
type manifestRow struct {
	EpicKey   string               `json:"epic_key"`
	Status    types.ManifestStatus `json:"status"`
	Children  int                  `json:"children"`
	Pending   int                  `json:"pending"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func newManifestListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored manifests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			keys, err := ws.Manifests.List()
			if err != nil {
				return err
			}
			rows := make([]manifestRow, 0, len(keys))
			for _, key := range keys {
				m := ws.Manifests.Load(key)
				if m == nil {
					a.log.Warn("skipping unreadable manifest", "epic", key)
					continue
				}
				rows = append(rows, manifestRow{
					EpicKey:   m.EpicKey,
					Status:    m.Status,
					Children:  len(m.Children),
					Pending:   len(m.Pending()),
					UpdatedAt: m.UpdatedAt,
				})
			}
			if a.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), rows)
			}
			return renderManifestRows(cmd.OutOrStdout(), rows)
		},
	}
}

func renderManifestRows(w io.Writer, rows []manifestRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, ui.RenderMuted("No manifests."))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EPIC\tCHILDREN\tPENDING\tUPDATED\tSTATUS")
	for _, r := range rows {
		status := ui.RenderWarn(string(r.Status))
		if r.Status == types.ManifestComplete {
			status = ui.RenderAccent(string(r.Status))
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.EpicKey, r.Children, r.Pending, r.UpdatedAt.Format(time.RFC3339), status)
	}
	return tw.Flush()
}

func newManifestShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <epic-key>",
		Short: "Show one manifest and its story intents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			if _, err := ws.Manifests.Path(args[0]); err != nil {
				return err
			}
			m := ws.Manifests.Load(args[0])
			if m == nil {
				return fmt.Errorf("no readable manifest for %s", args[0])
			}
			if a.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), m)
			}
			return renderManifest(cmd.OutOrStdout(), m)
		},
	}
}

func renderManifest(w io.Writer, m *manifest.Manifest) error {
	fmt.Fprintf(w, "%s %s\n", ui.RenderKey(m.EpicKey), ui.RenderCategory(string(m.Status)))
	fmt.Fprintf(w, "Fingerprint: %s\n", m.Fingerprint)
	fmt.Fprintf(w, "Updated:     %s\n\n", m.UpdatedAt.Format(time.RFC3339))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INTENT\tKEY\tSUMMARY")
	for _, c := range m.Children {
		key := "-"
		if c.Keyed() {
			key = *c.Key
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.IntentID, key, ui.Truncate(c.Summary, 60))
	}
	return tw.Flush()
}
