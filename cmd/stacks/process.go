package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dieseltech/stacks/internal/classify"
	"github.com/dieseltech/stacks/internal/cli"
	"github.com/dieseltech/stacks/internal/config"
	"github.com/dieseltech/stacks/internal/convert"
	"github.com/dieseltech/stacks/internal/engine"
	"github.com/dieseltech/stacks/internal/extract"
	"github.com/dieseltech/stacks/internal/library"
	"github.com/dieseltech/stacks/internal/pattern"
	"github.com/dieseltech/stacks/internal/score"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <downloads-dir> <library-dir>",
		Short: "Classify, convert and file comic archives",
		Long: `Walks the downloads directory, classifies each archive's filename,
converts page images to WebP, and files the result into the library
layout. Ambiguous or low-confidence matches prompt interactively
unless --auto is set.`,
		Args: cobra.ExactArgs(2),
		RunE: runProcess,
	}

	cmd.Flags().Bool("auto", false, "accept best matches without prompting")
	cmd.Flags().Int("workers", 0, "image conversion workers (0 = half the CPUs)")
	cmd.Flags().Float64("quality", 0, "WebP quality (0 = default 80)")
	cmd.Flags().Bool("no-progress", false, "disable progress bars")

	_ = viper.BindPFlag("classify.auto", cmd.Flags().Lookup("auto"))
	_ = viper.BindPFlag("convert.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("convert.quality", cmd.Flags().Lookup("quality"))

	viper.SetDefault("classify.max_chapter", score.DefaultConfig().MaxChapter)
	viper.SetDefault("classify.close_score_margin", classify.DefaultConfig().CloseScoreMargin)
	viper.SetDefault("classify.low_confidence", classify.DefaultConfig().LowConfidence)
	viper.SetDefault("convert.quality", 80)

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	downloads := config.ExpandPath(args[0])
	libraryRoot := config.ExpandPath(args[1])
	for _, dir := range []string{downloads, libraryRoot} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("not a directory: %s", dir)
		}
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	auto := viper.GetBool("classify.auto")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	showProgress := !noProgress

	var prompter classify.Prompter
	if !auto {
		prompter = cli.NewPrompter(os.Stdin, os.Stdout)
	}

	classifier := classify.New(
		pattern.DefaultRules(),
		score.NewScorer(score.Config{MaxChapter: viper.GetInt("classify.max_chapter")}),
		store,
		prompter,
		classify.Config{
			Auto:             auto,
			CloseScoreMargin: viper.GetFloat64("classify.close_score_margin"),
			LowConfidence:    viper.GetFloat64("classify.low_confidence"),
		},
	)

	converter := convert.NewConverter(convert.Config{
		Workers:      viper.GetInt("convert.workers"),
		Quality:      float32(viper.GetFloat64("convert.quality")),
		ShowProgress: showProgress && !auto,
	})

	placer := library.NewPlacer(libraryRoot, downloads, store)

	extractor := extract.NewUnrarExtractor()
	if !extractor.Available() {
		fmt.Fprintln(os.Stderr, cli.FormatWarning("unrar not found; .rar/.cbr archives will be skipped"))
	}

	eng := engine.New(engine.Config{
		DownloadsRoot: downloads,
		LibraryRoot:   libraryRoot,
		ShowProgress:  showProgress && auto,
	}, store, classifier, converter, placer, extractor)

	summary, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Processed %d, skipped %d, failed %d (saved %s). Run id: %s",
		summary.Processed, summary.Skipped, summary.Failed,
		formatBytes(summary.SpaceSaved), summary.RunID)))
	if summary.Failed > 0 {
		fmt.Println(cli.FormatWarning("Some archives failed; their source folders were left in place."))
	}
	return nil
}

// formatBytes renders a byte count in a readable unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit && n > -unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit || v <= -unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
