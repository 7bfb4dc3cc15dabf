package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dieseltech/stacks/internal/cli"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List processing runs and their journal",
		Long: `Without arguments, lists every recorded run with placement counts
and space savings. With a run id, lists that run's individual
placements.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)

	if len(args) == 1 {
		records, err := store.GetRunHistory(ctx, args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println(cli.FormatWarning("No placements recorded for this run."))
			return nil
		}

		fmt.Fprintln(w, "PLACED\tDESTINATION\tSAVED\tUNDONE")
		for _, r := range records {
			undone := ""
			if r.UndoneAt != nil {
				undone = r.UndoneAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.ProcessedAt.Format("2006-01-02 15:04"),
				r.DestPath,
				formatBytes(r.SpaceSaved),
				undone)
		}
		return w.Flush()
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println(cli.FormatWarning("No runs recorded yet."))
		return nil
	}

	fmt.Fprintln(w, "STARTED\tRUN ID\tPLACED\tUNDONE\tSAVED")
	for _, rs := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			rs.Run.StartedAt.Format("2006-01-02 15:04"),
			rs.Run.ID,
			rs.Placed,
			rs.Undone,
			formatBytes(rs.SpaceSaved))
	}
	return w.Flush()
}
