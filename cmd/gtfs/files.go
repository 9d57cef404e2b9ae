package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/linpawslitap/mds-scaling/pkg/tierfs"
)

var (
	putOverwrite   bool
	putAppend      bool
	putBufferSize  int
	putReplication int16
	putBlockSize   int64

	mkdirMode string
	rmRecurse bool
)

var putCmd = &cobra.Command{
	Use:   "put <local> <path>",
	Short: "Copy a local file into the store",
	Long:  `Copy a local file into the store. Use "-" to read from stdin.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runPut,
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show the status of a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

var lsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runLs,
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory and any missing parents",
	Args:  cobra.ExactArgs(1),
	RunE:  runMkdir,
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file or an empty directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

func init() {
	putCmd.Flags().BoolVar(&putOverwrite, "overwrite", false, "Replace an existing file")
	putCmd.Flags().BoolVar(&putAppend, "append", false, "Append to an existing file")
	putCmd.Flags().IntVar(&putBufferSize, "buffer-size", 0, "Write buffer size in bytes (default from config)")
	putCmd.Flags().Int16Var(&putReplication, "replication", 0, "Replication passed to the bulk store (default from config)")
	putCmd.Flags().Int64Var(&putBlockSize, "block-size", 0, "Block size passed to the bulk store (default from config)")
	putCmd.MarkFlagsMutuallyExclusive("overwrite", "append")

	mkdirCmd.Flags().StringVarP(&mkdirMode, "mode", "m", "755", "Permission bits in octal")
	rmCmd.Flags().BoolVarP(&rmRecurse, "recursive", "r", false, "Remove directories recursively")

	rootCmd.AddCommand(putCmd, catCmd, statCmd, lsCmd, mkdirCmd, rmCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	var src io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		src = f
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var w *tierfs.WriteSession
	if putAppend {
		w, err = s.fs.Append(s.ctx, args[1], putBufferSize, nil)
	} else {
		w, err = s.fs.Create(s.ctx, args[1], tierfs.CreateOptions{
			Overwrite:   putOverwrite,
			BufferSize:  putBufferSize,
			Replication: putReplication,
			BlockSize:   putBlockSize,
		})
	}
	if err != nil {
		return err
	}

	n, err := io.Copy(w, src)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", args[1], err)
	}

	tier := "inline"
	if w.Migrated() {
		tier = "bulk"
	}
	cmd.Printf("%s: %d bytes (%s)\n", w.Path(), n, tier)
	return nil
}

func runCat(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.fs.Open(s.ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	_, err = io.Copy(cmd.OutOrStdout(), r)
	return err
}

func runStat(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.fs.GetFileStatus(s.ctx, args[0])
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("%s: %w", args[0], tierfs.ErrNotFound)
	}

	cmd.Printf("Path:        %s\n", st.Path)
	cmd.Printf("Type:        %s\n", kind(st))
	cmd.Printf("Size:        %d\n", st.Size)
	cmd.Printf("Permission:  %s\n", st.Permission)
	cmd.Printf("Owner:       %d:%d\n", st.UID, st.GID)
	cmd.Printf("Replication: %d\n", st.Replication)
	cmd.Printf("Block size:  %d\n", st.BlockSize)
	cmd.Printf("Modified:    %s\n", st.ModTime.Format(time.RFC3339))
	cmd.Printf("Accessed:    %s\n", st.AccessTime.Format(time.RFC3339))
	if st.Migrated() {
		cmd.Printf("Bulk object: %s\n", st.Link)
	}
	return nil
}

func kind(st *tierfs.FileStatus) string {
	switch {
	case st.IsDir:
		return "directory"
	case st.Migrated():
		return "file (bulk)"
	default:
		return "file (inline)"
	}
}

func runLs(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.fs.ListStatus(s.ctx, args[0])
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, st := range entries {
		tier := "-"
		if !st.IsDir {
			tier = "inline"
			if st.Migrated() {
				tier = "bulk"
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			st.Permission, st.Size, tier, st.ModTime.Format("2006-01-02 15:04"), st.Path)
	}
	return tw.Flush()
}

func runMkdir(cmd *cobra.Command, args []string) error {
	mode, err := strconv.ParseUint(mkdirMode, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid mode %q: %w", mkdirMode, err)
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.fs.Mkdirs(s.ctx, args[0], os.FileMode(mode).Perm())
}

func runRm(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.fs.Delete(s.ctx, args[0], rmRecurse)
}
