package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dieseltech/stacks/internal/cli"
	"github.com/dieseltech/stacks/internal/common"
	"github.com/dieseltech/stacks/internal/config"
	"github.com/dieseltech/stacks/internal/library"
)

func undoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo <downloads-dir> [run-id]",
		Short: "Reverse a processing run",
		Long: `Removes the files a run placed in the library and restores the
original archives from the finished holding area. Placed files whose
source location cannot be restored are kept in the recovery folder.
Without a run id, --last undoes the most recent run.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runUndo,
	}

	cmd.Flags().Bool("last", false, "undo the most recent run")

	return cmd
}

func runUndo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	downloads := config.ExpandPath(args[0])
	if info, err := os.Stat(downloads); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", downloads)
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var runID string
	switch {
	case len(args) == 2:
		runID = args[1]
	default:
		last, _ := cmd.Flags().GetBool("last")
		if !last {
			return fmt.Errorf("provide a run id or --last")
		}
		runID, err = store.LatestRunID(ctx)
		if errors.Is(err, common.ErrNotFound) {
			fmt.Println(cli.FormatWarning("No runs recorded yet."))
			return nil
		}
		if err != nil {
			return err
		}
	}

	undoer := library.NewUndoer(downloads, store)
	summary, err := undoer.UndoRun(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Undid run %s: %d restored, %d recovered, %d already gone",
		runID, summary.Restored, summary.Recovered, summary.AlreadyGone)))
	if summary.Recovered > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf(
			"%d files had no source location to restore; see %s", summary.Recovered, library.RecoveredDir)))
	}
	return nil
}
