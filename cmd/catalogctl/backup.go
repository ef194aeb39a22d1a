package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"small-library/internal/app"
	"small-library/internal/backup"
)

var errNoBucket = errors.New("storage bucket is not configured (set LIBRARY_STORAGE_BUCKET)")

func newBackupCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export, restore and manage catalog snapshots",
	}
	cmd.AddCommand(newExportCmd(c), newImportCmd(c), newListCmd(c), newPruneCmd(c))
	return cmd
}

func (c *cli) archive(cmd *cobra.Command) (*backup.Archive, error) {
	svc, err := app.NewStorage(cmd.Context(), c.cfg, c.log)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, errNoBucket
	}
	return backup.NewArchive(svc, c.cfg.Storage.Bucket, c.cfg.Storage.KeyPrefix), nil
}

func newExportCmd(c *cli) *cobra.Command {
	var (
		out    string
		upload bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot to a file, stdout or object storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := backup.Export(cmd.Context(), c.store.Repos)
			if err != nil {
				return err
			}

			if upload {
				archive, err := c.archive(cmd)
				if err != nil {
					return err
				}
				loc, err := archive.Put(cmd.Context(), snap, func(done, total int64) {
					c.log.WithField("bytes", done).WithField("total", total).Debug("uploading snapshot")
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), loc)
				return nil
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return backup.Encode(w, snap)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload to the configured storage bucket")
	cmd.MarkFlagsMutuallyExclusive("out", "upload")
	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	var (
		in  string
		key string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the catalog with a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				snap *backup.Snapshot
				err  error
			)
			if key != "" {
				archive, aerr := c.archive(cmd)
				if aerr != nil {
					return aerr
				}
				snap, err = archive.Get(cmd.Context(), key)
			} else {
				snap, err = readSnapshot(cmd.InOrStdin(), in)
			}
			if err != nil {
				return err
			}

			if err := backup.Import(cmd.Context(), c.store.Repos, snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d authors, %d books, %d users\n", len(snap.Authors), len(snap.Books), len(snap.Users))
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "snapshot file (default stdin)")
	cmd.Flags().StringVar(&key, "key", "", "object key of a stored snapshot")
	cmd.MarkFlagsMutuallyExclusive("in", "key")
	return cmd
}

func readSnapshot(stdin io.Reader, path string) (*backup.Snapshot, error) {
	if path == "" || path == "-" {
		return backup.Decode(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return backup.Decode(f)
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			archive, err := c.archive(cmd)
			if err != nil {
				return err
			}
			objects, err := archive.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
			for _, obj := range objects {
				modified := "-"
				if obj.LastModified != nil {
					modified = obj.LastModified.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", obj.Key, obj.Size, modified)
			}
			return tw.Flush()
		},
	}
}

func newPruneCmd(c *cli) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			archive, err := c.archive(cmd)
			if err != nil {
				return err
			}
			removed, err := archive.Prune(cmd.Context(), keep)
			for _, key := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 7, "number of snapshots to keep")
	return cmd
}
