package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dieseltech/stacks/internal/cli"
	"github.com/dieseltech/stacks/internal/common"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Manage remembered series patterns",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List remembered series patterns",
		Args:  cobra.NoArgs,
		RunE:  runPatternsList,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <series-name>",
		Short: "Forget a remembered series pattern",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatternsForget,
	})

	return cmd
}

func runPatternsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	patterns, err := store.ListSeriesPatterns(ctx)
	if err != nil {
		return err
	}
	if len(patterns) == 0 {
		fmt.Println(cli.FormatWarning("No series patterns remembered yet."))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERIES\tRULE\tUSES\tLAST USED")
	for _, p := range patterns {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			p.SeriesName,
			p.RuleName,
			p.UseCount,
			p.LastUsedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runPatternsForget(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.DeleteSeriesPattern(ctx, args[0]); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Println(cli.FormatWarning("No pattern remembered for that series."))
			return nil
		}
		return err
	}

	fmt.Println(cli.FormatSuccess("Forgot pattern for " + args[0]))
	return nil
}
