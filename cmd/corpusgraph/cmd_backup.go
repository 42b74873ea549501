package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/nvandessel/corpus-graph/internal/backup"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export every node and the graph to a backup file",
		Long: `Backup the corpus nodes and the current graph to a checksummed,
compressed file.

Default location: <corpus>/backups/corpusgraph-backup-YYYYMMDD-HHMMSS.cgb
Backups written there are rotated (index.backup_keep, default 10).

Examples:
  corpusgraph backup                        # Backup to default location
  corpusgraph backup --output pre-migration.cgb
  corpusgraph backup list                   # List all backups
  corpusgraph backup verify <file>          # Verify backup integrity
  corpusgraph backup prune --max-age 30d    # Apply a retention policy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.Backup(cmd.Context(), outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			if jsonOut {
				return printJSON(cmd, res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backup created: %d nodes, %d edges\n", res.NodeCount, res.EdgeCount)
			fmt.Fprintf(out, "  Path: %s\n", res.Path)
			fmt.Fprintf(out, "  Checksum: %s\n", res.Checksum)
			if len(res.Rotated) > 0 {
				fmt.Fprintf(out, "  Rotated %d old backup(s)\n", len(res.Rotated))
			}
			if len(res.Skipped) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d unreadable node(s) left out of the backup\n", len(res.Skipped))
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path (default: auto-generated in the corpus backups directory)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
		newBackupPruneCmd(),
	)

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			backups, err := eng.ListBackups()
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}
			if jsonOut {
				return printJSON(cmd, map[string]any{"backups": backups, "count": len(backups)})
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tNODES\tSIZE\tPATH")
			for _, b := range backups {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", b.CreatedAt.Format("2006-01-02 15:04:05"), b.NodeCount, formatBytes(b.Size), b.Path)
			}
			return w.Flush()
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify backup file integrity",
		Long: `Verify the integrity of a backup file by checking its SHA-256 checksum.

Examples:
  corpusgraph backup verify corpus/backups/corpusgraph-backup-20260206-120000.cgb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := backup.ReadHeader(filePath)
			if err == nil {
				err = backup.VerifyChecksum(filePath)
			}
			if jsonOut {
				result := map[string]any{"file": filePath, "valid": err == nil}
				if err != nil {
					result["error"] = err.Error()
				} else {
					result["version"] = header.Version
					result["node_count"] = header.NodeCount
					result["edge_count"] = header.EdgeCount
					result["checksum"] = header.Checksum
				}
				if perr := printJSON(cmd, result); perr != nil {
					return perr
				}
			}
			if err != nil {
				return fmt.Errorf("backup verification failed: %w", err)
			}
			if !jsonOut {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Backup OK: %d nodes, %d edges\n", header.NodeCount, header.EdgeCount)
				fmt.Fprintf(out, "  File: %s\n", filePath)
				fmt.Fprintf(out, "  Created: %s\n", header.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newBackupPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete backups outside a retention policy",
		Long: `Delete backups from the corpus backups directory that fall outside every
given limit. Limits combine: a backup is kept only if all of them keep it.

Examples:
  corpusgraph backup prune --max-count 5
  corpusgraph backup prune --max-age 30d --max-size 100MB`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			maxCount, _ := cmd.Flags().GetInt("max-count")
			maxAge, _ := cmd.Flags().GetString("max-age")
			maxSize, _ := cmd.Flags().GetString("max-size")

			policy, err := buildRetentionPolicy(maxCount, maxAge, maxSize)
			if err != nil {
				return err
			}

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			deleted, err := backup.ApplyRetention(eng.Layout().BackupsDir(), policy)
			if err != nil {
				return fmt.Errorf("failed to apply retention: %w", err)
			}
			if jsonOut {
				return printJSON(cmd, map[string]any{"deleted": deleted, "count": len(deleted)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d backup(s)\n", len(deleted))
			for _, p := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().Int("max-count", 0, "Keep at most this many backups")
	cmd.Flags().String("max-age", "", "Delete backups older than this (e.g. 30d, 2w, 12h)")
	cmd.Flags().String("max-size", "", "Keep the newest backups within this total size (e.g. 100MB)")

	return cmd
}

// buildRetentionPolicy combines the given limits. At least one is required.
func buildRetentionPolicy(maxCount int, maxAge, maxSize string) (backup.RetentionPolicy, error) {
	var policies []backup.RetentionPolicy

	if maxCount > 0 {
		policies = append(policies, &backup.CountPolicy{MaxCount: maxCount})
	}
	if maxAge != "" {
		d, err := backup.ParseDuration(maxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-age: %w", err)
		}
		policies = append(policies, &backup.AgePolicy{MaxAge: d})
	}
	if maxSize != "" {
		s, err := backup.ParseSize(maxSize)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-size: %w", err)
		}
		policies = append(policies, &backup.SizePolicy{MaxTotalBytes: s})
	}

	switch len(policies) {
	case 0:
		return nil, fmt.Errorf("at least one of --max-count, --max-age or --max-size is required")
	case 1:
		return policies[0], nil
	default:
		return &backup.CompositePolicy{Policies: policies}, nil
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Import nodes from a backup file",
		Long: `Restore the nodes of a backup and rebuild the graph.

Modes:
  merge    add nodes missing from the corpus, keep existing ones (default)
  replace  delete every node first, then restore the backup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeName, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseRestoreMode(modeName)
			if err != nil {
				return err
			}

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.Restore(cmd.Context(), args[0], mode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			if jsonOut {
				return printJSON(cmd, res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restored %d node(s), skipped %d", res.NodesRestored, res.NodesSkipped)
			if res.NodesRemoved > 0 {
				fmt.Fprintf(out, ", removed %d", res.NodesRemoved)
			}
			fmt.Fprintln(out)
			for _, e := range res.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", e)
			}
			if res.Rebuild != nil {
				fmt.Fprintf(out, "Graph rebuilt: %d nodes, %d edges\n", res.Rebuild.Nodes, res.Rebuild.Edges)
			}
			return nil
		},
	}

	cmd.Flags().String("mode", string(backup.RestoreMerge), "Restore mode: merge or replace")

	return cmd
}
