package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chainstate/internal/blob"
	"chainstate/internal/persistence"
	"chainstate/pkg/chainerr"
)

func newSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect stored chain snapshots",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored chains",
			Args:  cobra.NoArgs,
			RunE:  withPersister(listSnapshots),
		},
		&cobra.Command{
			Use:   "show <chain-id>",
			Short: "Print one stored chain snapshot",
			Args:  cobra.ExactArgs(1),
			RunE:  withPersister(showSnapshot),
		},
		&cobra.Command{
			Use:   "verify",
			Short: "Check every stored snapshot against its fingerprint",
			Args:  cobra.NoArgs,
			RunE:  withPersister(verifySnapshots),
		},
	)
	return cmd
}

type persisterRun func(cmd *cobra.Command, args []string, p *persistence.Persister) error

func withPersister(run persisterRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := blob.Open(cmd.Context(), cfg.Blob)
		if err != nil {
			return err
		}
		defer blob.Close(store)
		return run(cmd, args, persistence.New(store))
	}
}

type snapshotRow struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Accounts    int    `json:"accounts"`
	Contracts   int    `json:"contracts"`
	History     int    `json:"history"`
	Size        int64  `json:"size"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

func collectRows(cmd *cobra.Command, p *persistence.Persister) ([]snapshotRow, error) {
	infos, err := p.Keys(cmd.Context())
	if err != nil {
		return nil, err
	}
	rows := make([]snapshotRow, 0, len(infos))
	for _, info := range infos {
		id, _ := persistence.ChainIDFromKey(info.Key)
		row := snapshotRow{ID: id, Size: info.Size}
		snap, ok, err := p.Read(cmd.Context(), id)
		switch {
		case err != nil:
			row.Status, row.Error = "unreadable", err.Error()
		case !ok:
			row.Status = "missing"
		default:
			row.DisplayName = snap.DisplayName
			row.Kind = string(snap.Kind)
			row.Accounts = len(snap.DomainState.Accounts)
			row.Contracts = len(snap.DomainState.Deployment)
			row.History = len(snap.DomainState.History)
			row.Status = "ok"
			if match, verr := snap.Verify(); verr != nil {
				row.Status, row.Error = "unreadable", verr.Error()
			} else if !match {
				row.Status = "fingerprint mismatch"
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func listSnapshots(cmd *cobra.Command, _ []string, p *persistence.Persister) error {
	rows, err := collectRows(cmd, p)
	if err != nil {
		return err
	}
	if getOptions(cmd).JSONOutput {
		return writeJSON(cmd.OutOrStdout(), rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored chains.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tACCOUNTS\tCONTRACTS\tHISTORY\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", r.ID, r.DisplayName, r.Kind, r.Accounts, r.Contracts, r.History, r.Status)
	}
	return tw.Flush()
}

func showSnapshot(cmd *cobra.Command, args []string, p *persistence.Persister) error {
	snap, ok, err := p.Read(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return chainerr.ChainNotFound(args[0])
	}
	return writeJSON(cmd.OutOrStdout(), snap)
}

func verifySnapshots(cmd *cobra.Command, _ []string, p *persistence.Persister) error {
	rows, err := collectRows(cmd, p)
	if err != nil {
		return err
	}
	bad := 0
	for _, r := range rows {
		if r.Status != "ok" {
			bad++
		}
	}
	if getOptions(cmd).JSONOutput {
		if err := writeJSON(cmd.OutOrStdout(), rows); err != nil {
			return err
		}
	} else {
		for _, r := range rows {
			line := fmt.Sprintf("%s  %s", r.ID, r.Status)
			if r.Error != "" {
				line += ": " + r.Error
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}
	if bad > 0 {
		return chainerr.New(chainerr.CodePersistence, fmt.Sprintf("%d of %d snapshot(s) failed verification", bad, len(rows)))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
